package iorderrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
)

// IOrderRepository is an interface for the order repository.
type IOrderRepository interface {
	// Insert stores a new order and its lines.
	Insert(ctx context.Context, o *order.Order) error

	// Get returns the order with its lines or a not found error.
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)

	// GetForUpdate is Get that also locks the row until the transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error)

	// Update persists the mutable order fields.
	Update(ctx context.Context, o *order.Order) error

	Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error)
}
