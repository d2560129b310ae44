package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
)

type cartRepo struct {
	view
}

func (r *cartRepo) GetActive(_ context.Context, userID string) (*cart.Cart, error) {
	var out *cart.Cart
	err := r.do(func(st *state) error {
		for _, c := range st.carts {
			if c.UserID == userID && c.Status == cart.StatusActive {
				out = c.Clone()

				return nil
			}
		}

		return errs.E(errs.KindNotFound, "memory.GetActiveCart", "active cart not found")
	})

	return out, err
}

func (r *cartRepo) Create(_ context.Context, c *cart.Cart) (bool, error) {
	created := false
	err := r.do(func(st *state) error {
		if err := r.failAt(OpCartSave); err != nil {
			return err
		}
		for _, other := range st.carts {
			if other.UserID == c.UserID && other.Status == cart.StatusActive {
				return nil
			}
		}
		st.carts[c.ID] = c.Clone()
		created = true

		return nil
	})

	return created, err
}

func (r *cartRepo) Save(_ context.Context, c *cart.Cart) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpCartSave); err != nil {
			return err
		}
		if existing, ok := st.carts[c.ID]; ok && existing.Status == cart.StatusConverted {
			return errs.E(errs.KindValidation, "memory.SaveCart", "converted cart is immutable")
		}
		if c.Status == cart.StatusActive {
			for id, other := range st.carts {
				if id != c.ID && other.UserID == c.UserID && other.Status == cart.StatusActive {
					return errs.E(errs.KindInternal, "memory.SaveCart", "user already has an active cart")
				}
			}
		}
		st.carts[c.ID] = c.Clone()

		return nil
	})
}

func (r *cartRepo) MarkConverted(_ context.Context, cartID uuid.UUID, at time.Time) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpCartConvert); err != nil {
			return err
		}
		c, ok := st.carts[cartID]
		if !ok || c.Status != cart.StatusActive {
			return errs.E(errs.KindNotFound, "memory.MarkConverted", "active cart not found")
		}
		c.Status = cart.StatusConverted
		c.Items = []cart.Item{}
		c.UpdatedAt = at

		return nil
	})
}
