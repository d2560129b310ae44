package memory

import (
	"context"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
)

type catalog struct {
	view
}

func (c *catalog) GetProduct(_ context.Context, id int64) (*product.Product, error) {
	var out *product.Product
	err := c.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.GetProduct", "product %d not found", id)
		}
		out = &p

		return nil
	})

	return out, err
}

func (c *catalog) UpsertProduct(_ context.Context, p product.Product) error {
	return c.do(func(st *state) error {
		st.products[p.ID] = p

		return nil
	})
}
