package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
)

type orderRepo struct {
	view
}

func (r *orderRepo) Insert(_ context.Context, o *order.Order) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpOrderInsert); err != nil {
			return err
		}
		if _, ok := st.orders[o.ID]; ok {
			return errs.Errorf(errs.KindInternal, "memory.InsertOrder", "order %s already exists", o.ID)
		}
		for _, other := range st.orders {
			if other.OrderNumber == o.OrderNumber {
				return errs.Errorf(errs.KindInternal, "memory.InsertOrder", "order number %s already exists", o.OrderNumber)
			}
		}
		st.orders[o.ID] = o.Clone()

		return nil
	})
}

func (r *orderRepo) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	var out *order.Order
	err := r.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.GetOrder", "order %s not found", id)
		}
		out = o.Clone()

		return nil
	})

	return out, err
}

// GetForUpdate needs no row lock here; the unit of work already serializes writers.
func (r *orderRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *orderRepo) Update(_ context.Context, o *order.Order) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpOrderUpdate); err != nil {
			return err
		}
		cur, ok := st.orders[o.ID]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.UpdateOrder", "order %s not found", o.ID)
		}
		upd := cur.Clone()
		upd.Status = o.Status
		upd.PaymentStatus = o.PaymentStatus
		upd.TrackingNumber = o.TrackingNumber
		upd.PaymentTransactionID = o.PaymentTransactionID
		upd.VerificationAttempts = o.VerificationAttempts
		upd.UpdatedAt = o.UpdatedAt
		st.orders[o.ID] = upd

		return nil
	})
}

func (r *orderRepo) Query(_ context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	var out []order.Order
	err := r.do(func(st *state) error {
		for _, o := range st.orders {
			if !matches(o, filter) {
				continue
			}
			cp := o.Clone()
			if !filter.IncludeItems {
				cp.Items = nil
			}
			out = append(out, *cp)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber > out[j].OrderNumber
		}

		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []order.Order{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	if out == nil {
		out = []order.Order{}
	}

	return out, nil
}

func matches(o *order.Order, f *order.QueryOrdersModel) bool {
	if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, o.UserID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, o.Status) {
		return false
	}
	if len(f.PaymentStatuses) > 0 && !slices.Contains(f.PaymentStatuses, o.PaymentStatus) {
		return false
	}
	if !f.UpdatedBefore.IsZero() && !o.UpdatedAt.Before(f.UpdatedBefore) {
		return false
	}

	return true
}
