package memory

import (
	"context"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inventory"
)

type ledger struct {
	view
}

func (l *ledger) Reserve(_ context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errs.Errorf(errs.KindValidation, "memory.Reserve", "quantity must be positive, got %d", qty)
	}

	return l.do(func(st *state) error {
		if err := l.failAt(OpLedgerReserve); err != nil {
			return err
		}
		rec, ok := st.stock[productID]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.Reserve", "no inventory for product %d", productID)
		}
		if rec.Available < qty {
			return errs.Errorf(errs.KindInsufficientStock, "memory.Reserve",
				"product %d has %d available, %d requested", productID, rec.Available, qty)
		}
		rec.Available -= qty
		rec.UpdatedAt = time.Now()
		st.stock[productID] = rec

		return nil
	})
}

func (l *ledger) Release(_ context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return errs.Errorf(errs.KindValidation, "memory.Release", "quantity must be positive, got %d", qty)
	}

	return l.do(func(st *state) error {
		rec, ok := st.stock[productID]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.Release", "no inventory for product %d", productID)
		}
		rec.Available += qty
		rec.UpdatedAt = time.Now()
		st.stock[productID] = rec

		return nil
	})
}

func (l *ledger) Available(ctx context.Context, productID int64) (int, error) {
	rec, err := l.Get(ctx, productID)
	if err != nil {
		return 0, err
	}

	return rec.Available, nil
}

func (l *ledger) Get(_ context.Context, productID int64) (inventory.Record, error) {
	var out inventory.Record
	err := l.do(func(st *state) error {
		rec, ok := st.stock[productID]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.GetInventory", "no inventory for product %d", productID)
		}
		out = rec

		return nil
	})

	return out, err
}

func (l *ledger) SetStock(_ context.Context, productID int64, available, minThreshold int) error {
	if available < 0 {
		return errs.Errorf(errs.KindValidation, "memory.SetStock", "available must not be negative, got %d", available)
	}

	return l.do(func(st *state) error {
		st.stock[productID] = inventory.Record{
			ProductID:    productID,
			Available:    available,
			MinThreshold: minThreshold,
			UpdatedAt:    time.Now(),
		}

		return nil
	})
}
