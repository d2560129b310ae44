package icatalog

import (
	"context"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
)

// ICatalog is the read side of the product catalog.
type ICatalog interface {
	GetProduct(ctx context.Context, id int64) (*product.Product, error)
	UpsertProduct(ctx context.Context, p product.Product) error
}
