package ordersvc

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/statemachine"
)

// Reconcile action labels.
const (
	ActionRepublish        = "republish"
	ActionCancel           = "cancel"
	ActionAwaitingOperator = "awaiting_operator"
	ActionError            = "error"
)

// ReconcileReport counts what one reconciliation pass did.
type ReconcileReport struct {
	Republished      int
	Cancelled        int
	AwaitingOperator int
	Errors           int
}

// Reconcile sweeps orders stuck waiting for payment verification.
//
// A PENDING order with PENDING payment older than the timeout gets its verification request re-published
// until MaxAttempts is reached; after that it is cancelled and its stock released.
// Orders whose payment FAILED are only reported; they wait for an operator.
func (s *OrderService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	ctx, span := tracer.Start(ctx, "OrderService.Reconcile")
	defer span.End()

	var report ReconcileReport
	cutoff := s.now().Add(-s.reconcile.PendingTimeout)

	stuck, err := s.uow.OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Statuses:        []order.Status{order.StatusPending},
		PaymentStatuses: []order.PaymentStatus{order.PaymentPending},
		UpdatedBefore:   cutoff,
		Limit:           s.reconcile.BatchSize,
		IncludeItems:    true,
	})
	if err != nil {
		return report, err
	}

	for i := range stuck {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		o := &stuck[i]
		if o.VerificationAttempts < s.reconcile.MaxAttempts {
			err = s.republishVerification(ctx, o, cutoff)
			if err == nil {
				report.Republished++
				s.metrics.Reconciled(ActionRepublish)

				continue
			}
		} else {
			_, err = s.apply(ctx, change{
				orderID:  o.ID,
				trigger:  statemachine.Cancel,
				guard:    stillStuck(cutoff),
				metadata: map[string]string{event.MetaReason: ReasonVerificationTimeout},
			})
			if err == nil {
				report.Cancelled++
				s.metrics.Reconciled(ActionCancel)
				slog.Warn("Order cancelled after payment verification timeout",
					"order_id", o.ID,
					"attempts", o.VerificationAttempts,
				)

				continue
			}
		}

		if errs.KindOf(err) == errs.KindInvalidTransition {
			// Moved on since the query ran.
			continue
		}
		report.Errors++
		s.metrics.Reconciled(ActionError)
		slog.Error("Failed to reconcile order", "order_id", o.ID, "error", err)
	}

	failed, err := s.uow.OrderRepository().Query(ctx, &order.QueryOrdersModel{
		Statuses:        []order.Status{order.StatusPending},
		PaymentStatuses: []order.PaymentStatus{order.PaymentFailed},
		UpdatedBefore:   cutoff,
		Limit:           s.reconcile.BatchSize,
	})
	if err != nil {
		return report, err
	}
	for _, o := range failed {
		report.AwaitingOperator++
		s.metrics.Reconciled(ActionAwaitingOperator)
		slog.Warn("Order with failed payment awaits operator", "order_id", o.ID, "user_id", o.UserID)
	}

	if report != (ReconcileReport{}) {
		slog.Info("Reconciliation finished",
			"republished", report.Republished,
			"cancelled", report.Cancelled,
			"awaiting_operator", report.AwaitingOperator,
			"errors", report.Errors,
		)
	}

	return report, nil
}

// republishVerification bumps the attempt counter and sends the verification request again.
// The updated timestamp restarts the timeout for the next attempt.
func (s *OrderService) republishVerification(ctx context.Context, stale *order.Order, cutoff time.Time) error {
	unlock := s.keyLocks.lock(stale.ID.String())
	defer unlock()

	var o *order.Order
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		cur, err := tx.OrderRepository().GetForUpdate(ctx, stale.ID)
		if err != nil {
			return err
		}
		if err := stillStuck(cutoff)(cur); err != nil {
			return err
		}

		cur.VerificationAttempts++
		cur.UpdatedAt = s.now()
		if err := tx.OrderRepository().Update(ctx, cur); err != nil {
			return err
		}
		o = cur

		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("Payment verification re-requested", "order_id", o.ID, "attempt", o.VerificationAttempts)
	s.publishLocked(ctx, event.NewOrderEvent(event.PaymentVerificationRequested, o, s.now(), map[string]string{
		event.MetaPaymentMethod: string(o.PaymentMethod),
		event.MetaAttempt:       strconv.Itoa(o.VerificationAttempts),
	}))

	return nil
}

// stillStuck rejects orders that changed since the sweep selected them.
func stillStuck(cutoff time.Time) func(o *order.Order) error {
	return func(o *order.Order) error {
		if o.Status != order.StatusPending || o.PaymentStatus != order.PaymentPending || !o.UpdatedAt.Before(cutoff) {
			return errs.Errorf(errs.KindInvalidTransition, "ordersvc.Reconcile",
				"order %s is no longer awaiting verification", o.ID)
		}

		return nil
	}
}
