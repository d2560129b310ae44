package ordersvc

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/statemachine"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var paymentTriggers = map[event.PaymentEventStatus]statemachine.Trigger{
	event.PaymentStatusSuccessful:        statemachine.PaymentSucceeded,
	event.PaymentStatusFailed:            statemachine.PaymentFailed,
	event.PaymentStatusRefunded:          statemachine.Refund,
	event.PaymentStatusPartiallyRefunded: statemachine.PartialRefund,
}

// HandlePaymentEvent applies a payment verification response or payment status update to its order.
// Redelivered events are recognised by event id and acknowledged without effect.
// Intermediate statuses are recorded as processed and otherwise ignored.
func (s *OrderService) HandlePaymentEvent(ctx context.Context, e event.PaymentEvent) error {
	const op = "ordersvc.HandlePaymentEvent"

	ctx, span := tracer.Start(ctx, "OrderService.HandlePaymentEvent", trace.WithAttributes(
		attribute.String("event.id", e.EventID),
		attribute.String("event.type", string(e.EventType)),
		attribute.String("order.id", e.OrderID),
		attribute.String("payment.status", string(e.Status)),
	))
	defer span.End()

	if err := e.Validate(); err != nil {
		return err
	}
	orderID, err := uuid.Parse(e.OrderID)
	if err != nil {
		return errs.Wrap(errs.KindValidation, op, err)
	}

	trigger, ok := paymentTriggers[e.Status]
	if !ok {
		return s.acknowledge(ctx, e)
	}

	meta := map[string]string{event.MetaPaymentStatus: string(e.Status)}
	txID := e.Metadata[event.MetaTransactionID]
	if txID != "" {
		meta[event.MetaTransactionID] = txID
	}
	if reason := e.Metadata[event.MetaReason]; reason != "" {
		meta[event.MetaReason] = reason
	}

	res, err := s.apply(ctx, change{
		orderID: orderID,
		trigger: trigger,
		eventID: e.EventID,
		mutate: func(o *order.Order) {
			if txID != "" {
				o.PaymentTransactionID = txID
			}
		},
		metadata: meta,
	})
	if err != nil {
		return err
	}
	if res.duplicate {
		s.metrics.Consumed(e.Topic(), metrics.OutcomeDuplicate)
		slog.Info("Duplicate payment event skipped", "event_id", e.EventID, "order_id", e.OrderID)

		return nil
	}

	if trigger == statemachine.PaymentFailed && res.outcome.To == order.StatusPending {
		slog.Warn("Payment failed, order kept pending with its stock reserved",
			"order_id", e.OrderID,
			"event_id", e.EventID,
			"reason", e.Metadata[event.MetaReason],
		)
	}

	return nil
}

// acknowledge records an event that carries no transition.
func (s *OrderService) acknowledge(ctx context.Context, e event.PaymentEvent) error {
	var fresh bool
	err := s.inTx(ctx, func(tx iuow.Tx) error {
		var err error
		fresh, err = tx.ProcessedRepository().MarkProcessed(ctx, ConsumerName, e.EventID, s.now())

		return err
	})
	if err != nil {
		return err
	}

	if fresh {
		slog.Debug("Payment event acknowledged", "event_id", e.EventID, "status", e.Status, "order_id", e.OrderID)
	}

	return nil
}
