// Package responder is an in-process stand-in for the payment side of the choreography.
// It answers verification requests the way the real payment service would.
package responder

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var responseNamespace = uuid.MustParse("6f1c3b8e-2a47-4d0e-9b51-7c2f4e8a9d13")

// Responder consumes payment verification requests and publishes their outcome.
type Responder struct {
	subscriber bus.Subscriber
	publisher  bus.Publisher
	gateway    Gateway
	now        func() time.Time
}

// New creates a Responder and subscribes it to verification requests.
func New(subscriber bus.Subscriber, publisher bus.Publisher, gateway Gateway) *Responder {
	r := &Responder{
		subscriber: subscriber,
		publisher:  publisher,
		gateway:    gateway,
		now:        time.Now,
	}
	subscriber.Subscribe(event.TopicPaymentVerification, r.handle)

	return r
}

// Run consumes until ctx is cancelled.
func (r *Responder) Run(ctx context.Context) error {
	slog.Info("Payment responder started", "topic", event.TopicPaymentVerification)

	return r.subscriber.Run(ctx)
}

func (r *Responder) Shutdown() error {
	return r.subscriber.Close()
}

func (r *Responder) handle(ctx context.Context, msg bus.Message) error {
	req, err := event.DecodeOrderEvent(msg.Value)
	if err != nil {
		return err
	}
	if req.EventType != event.PaymentVerificationRequested {
		return nil
	}

	ctx, span := otel.Tracer("responder").Start(ctx, "Responder.handle", trace.WithAttributes(
		attribute.String("order.id", req.OrderID),
		attribute.String("event.id", req.EventID),
	))
	defer span.End()

	resp := r.respond(ctx, req)

	out, err := event.Encode(resp)
	if err != nil {
		return err
	}
	err = r.publisher.Publish(ctx, bus.Message{
		Topic: resp.Topic(),
		Key:   []byte(resp.PartitionKey()),
		Value: out,
		Headers: map[string]string{
			event.HeaderEventType:   string(resp.EventType),
			event.HeaderEventID:     resp.EventID,
			event.HeaderContentType: event.ContentTypeJSON,
		},
	})
	if err != nil {
		return errs.Wrap(errs.KindGateway, "responder.publish", err)
	}

	slog.Info("Payment verification answered",
		"order_id", resp.OrderID,
		"status", resp.Status,
		"request_id", req.EventID,
	)

	return nil
}

// respond verifies the payment. The response id derives from the request id so redelivered requests yield duplicates.
func (r *Responder) respond(ctx context.Context, req event.OrderEvent) event.PaymentEvent {
	resp := event.PaymentEvent{
		EventID:   uuid.NewSHA1(responseNamespace, []byte(req.EventID)).String(),
		EventType: event.PaymentVerificationCompleted,
		OrderID:   req.OrderID,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Metadata:  map[string]string{},
		Timestamp: r.now().UTC(),
	}

	method := order.PaymentMethod(req.Metadata[event.MetaPaymentMethod])
	v, err := r.gateway.Verify(ctx, req.Amount.Decimal(), method, map[string]string{
		"orderId":     req.OrderID,
		"userId":      req.UserID,
		"orderNumber": req.Metadata[event.MetaOrderNumber],
	})

	switch {
	case err != nil:
		resp.Status = event.PaymentStatusFailed
		resp.Metadata[event.MetaError] = err.Error()
		slog.Warn("Payment gateway error", "order_id", req.OrderID, "error", err)
	case v.Approved:
		resp.Status = event.PaymentStatusSuccessful
		resp.Metadata[event.MetaTransactionID] = v.TransactionID
	default:
		resp.Status = event.PaymentStatusFailed
		resp.Metadata[event.MetaReason] = v.Reason
	}
	if v.Approved && v.Reason != "" {
		resp.Metadata[event.MetaReason] = v.Reason
	}

	return resp
}
