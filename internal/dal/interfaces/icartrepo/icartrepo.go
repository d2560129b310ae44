package icartrepo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
)

// ICartRepository stores carts together with their lines.
type ICartRepository interface {
	// GetActive returns the user's ACTIVE cart or a not found error.
	GetActive(ctx context.Context, userID string) (*cart.Cart, error)

	// Create inserts an empty ACTIVE cart unless the user already has one.
	// It reports false when another cart won; the caller re-reads it with GetActive.
	Create(ctx context.Context, c *cart.Cart) (bool, error)

	// Save upserts the cart header and replaces its lines.
	Save(ctx context.Context, c *cart.Cart) error

	// MarkConverted flips an ACTIVE cart to CONVERTED.
	MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) error
}
