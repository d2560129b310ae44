package ordersvc

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/statemachine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ReasonVerificationTimeout is recorded on orders cancelled by reconciliation.
const ReasonVerificationTimeout = "payment_verification_timeout"

// change describes one state machine step on an order.
type change struct {
	orderID  uuid.UUID
	trigger  statemachine.Trigger
	guard    func(o *order.Order) error
	mutate   func(o *order.Order)
	metadata map[string]string
	// eventID, when set, makes the step idempotent per consumed event.
	eventID string
}

type applied struct {
	order     *order.Order
	outcome   statemachine.Outcome
	duplicate bool
}

// apply runs a transition in one unit of work: dedup, row lock, table lookup, update, stock release.
// Events are published after commit. The order's publish lock is held from before the transaction
// until its events are handed off, so events leave in commit order.
func (s *OrderService) apply(ctx context.Context, ch change) (applied, error) {
	unlock := s.keyLocks.lock(ch.orderID.String())
	defer unlock()

	var res applied
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		if ch.eventID != "" {
			fresh, err := tx.ProcessedRepository().MarkProcessed(ctx, ConsumerName, ch.eventID, s.now())
			if err != nil {
				return err
			}
			if !fresh {
				res.duplicate = true

				return nil
			}
		}

		o, err := tx.OrderRepository().GetForUpdate(ctx, ch.orderID)
		if err != nil {
			return err
		}
		if ch.guard != nil {
			if err := ch.guard(o); err != nil {
				return err
			}
		}

		out, err := statemachine.Apply(o.Status, o.PaymentStatus, ch.trigger)
		if err != nil {
			return err
		}
		res.order = o
		res.outcome = out
		if !out.Changed && len(out.Events) == 0 {
			return nil
		}

		o.Status = out.To
		o.PaymentStatus = out.PaymentTo
		if ch.mutate != nil {
			ch.mutate(o)
		}
		o.UpdatedAt = s.now()
		if err := tx.OrderRepository().Update(ctx, o); err != nil {
			return err
		}

		if out.ReleaseStock {
			for _, it := range o.Items {
				if err := tx.Ledger().Release(ctx, it.ProductID, it.Quantity); err != nil {
					return err
				}
			}
		}

		return nil
	})
	if err != nil || res.duplicate {
		return res, err
	}

	out := res.outcome
	if out.Changed {
		s.metrics.Transition(string(out.From), string(out.To), string(ch.trigger))
		slog.Info("Order transitioned",
			"order_id", res.order.ID,
			"trigger", ch.trigger,
			"from", out.From,
			"to", out.To,
			"payment_from", out.PaymentFrom,
			"payment_to", out.PaymentTo,
			"stock_released", out.ReleaseStock,
		)
	}
	s.publishLocked(ctx, s.events(res.order, out, ch.metadata)...)

	return res, nil
}

func (s *OrderService) events(o *order.Order, out statemachine.Outcome, metadata map[string]string) []event.OrderEvent {
	now := s.now()
	events := make([]event.OrderEvent, 0, len(out.Events))
	for _, t := range out.Events {
		meta := map[string]string{}
		for k, v := range metadata {
			meta[k] = v
		}
		if t == event.OrderStatusUpdated {
			meta[event.MetaPreviousStatus] = string(out.From)
		}
		if o.TrackingNumber != "" {
			meta[event.MetaTrackingNumber] = o.TrackingNumber
		}
		events = append(events, event.NewOrderEvent(t, o, now, meta))
	}

	return events
}

// GetOrder returns an order owned by userID.
func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.GetOrder", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	o, err := s.uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := owns(userID)(o); err != nil {
		return nil, err
	}

	return o, nil
}

// ListOrders returns a page of the user's orders, newest first. Pages start at 1.
func (s *OrderService) ListOrders(ctx context.Context, userID string, page, pageSize int) ([]order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.ListOrders", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return s.uow.OrderRepository().Query(ctx, &order.QueryOrdersModel{
		UserIDs:      []string{userID},
		Limit:        pageSize,
		Offset:       (page - 1) * pageSize,
		IncludeItems: true,
	})
}

// CancelOrder cancels the user's order and returns its stock.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID, reason string) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CancelOrder", trace.WithAttributes(
		attribute.String("user.id", userID),
		attribute.String("order.id", orderID.String()),
	))
	defer span.End()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "cancelled_by_customer"
	}

	res, err := s.apply(ctx, change{
		orderID:  orderID,
		trigger:  statemachine.Cancel,
		guard:    owns(userID),
		metadata: map[string]string{event.MetaReason: reason},
	})
	if err != nil {
		return nil, err
	}

	return res.order, nil
}

// StartProcessing moves a CONFIRMED order into fulfillment.
func (s *OrderService) StartProcessing(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.operate(ctx, "OrderService.StartProcessing", change{orderID: orderID, trigger: statemachine.StartProcessing})
}

// ShipOrder marks a PROCESSING order as shipped with its tracking number.
func (s *OrderService) ShipOrder(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error) {
	tracking, err := requireTracking("ordersvc.ShipOrder", trackingNumber)
	if err != nil {
		return nil, err
	}

	return s.operate(ctx, "OrderService.ShipOrder", change{
		orderID: orderID,
		trigger: statemachine.Ship,
		mutate:  func(o *order.Order) { o.TrackingNumber = tracking },
	})
}

// UpdateTracking replaces the tracking number of a SHIPPED order.
func (s *OrderService) UpdateTracking(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*order.Order, error) {
	tracking, err := requireTracking("ordersvc.UpdateTracking", trackingNumber)
	if err != nil {
		return nil, err
	}

	return s.operate(ctx, "OrderService.UpdateTracking", change{
		orderID: orderID,
		trigger: statemachine.UpdateTracking,
		mutate:  func(o *order.Order) { o.TrackingNumber = tracking },
	})
}

func (s *OrderService) DeliverOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.operate(ctx, "OrderService.DeliverOrder", change{orderID: orderID, trigger: statemachine.Deliver})
}

// RefundOrder refunds a DELIVERED order, or a CANCELLED one that was paid.
func (s *OrderService) RefundOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.operate(ctx, "OrderService.RefundOrder", change{orderID: orderID, trigger: statemachine.Refund})
}

func (s *OrderService) operate(ctx context.Context, name string, ch change) (*order.Order, error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("order.id", ch.orderID.String()),
		attribute.String("order.trigger", string(ch.trigger)),
	))
	defer span.End()

	res, err := s.apply(ctx, ch)
	if err != nil {
		return nil, err
	}

	return res.order, nil
}

func owns(userID string) func(o *order.Order) error {
	return func(o *order.Order) error {
		if o.UserID != userID {
			return errs.E(errs.KindUnauthorized, "ordersvc.owns", "order belongs to another user")
		}

		return nil
	}
}

func requireTracking(op, trackingNumber string) (string, error) {
	tracking := strings.TrimSpace(trackingNumber)
	if tracking == "" {
		return "", errs.E(errs.KindValidation, op, "tracking number is required")
	}

	return tracking, nil
}
