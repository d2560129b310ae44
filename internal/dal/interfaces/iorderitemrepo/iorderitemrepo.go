package iorderitemrepo

import (
	"context"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/orderitem"
)

// IOrderItemRepository is an interface for the order item repository.
type IOrderItemRepository interface {
	BulkInsert(ctx context.Context, items []orderitem.OrderItem) error
	ListByOrders(ctx context.Context, orderIDs []uuid.UUID) ([]orderitem.OrderItem, error)
}
