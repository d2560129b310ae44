package iinventory

import (
	"context"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inventory"
)

// ILedger is the inventory ledger. Reserve and Release are atomic per product.
type ILedger interface {
	// Reserve decrements available stock or fails with insufficient stock.
	Reserve(ctx context.Context, productID int64, qty int) error

	// Release returns previously reserved stock.
	Release(ctx context.Context, productID int64, qty int) error

	Available(ctx context.Context, productID int64) (int, error)
	Get(ctx context.Context, productID int64) (inventory.Record, error)

	// SetStock creates or overwrites the counter of a product.
	SetStock(ctx context.Context, productID int64, available, minThreshold int) error
}
