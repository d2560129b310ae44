package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
)

// service represents the service layer interface.
type service interface {
	HandlePaymentEvent(ctx context.Context, e event.PaymentEvent) error
}

// Consumer feeds payment events from the bus into the order service.
// Every message is acknowledged; retryable failures are parked in the inbox.
type Consumer struct {
	subscriber bus.Subscriber
	service    service
	inboxRepo  iinboxrepo.IInboxRepository
	metrics    *metrics.Metrics
	maxRetries int
	retryBase  time.Duration
	now        func() time.Time
}

// NewConsumer creates a new Consumer and registers its topic handlers.
func NewConsumer(
	subscriber bus.Subscriber,
	service service,
	inboxRepo iinboxrepo.IInboxRepository,
	m *metrics.Metrics,
	maxRetries int,
	retryBase time.Duration,
) *Consumer {
	c := &Consumer{
		subscriber: subscriber,
		service:    service,
		inboxRepo:  inboxRepo,
		metrics:    m,
		maxRetries: maxRetries,
		retryBase:  retryBase,
		now:        time.Now,
	}

	subscriber.Subscribe(event.TopicPaymentVerificationResponse, c.handlePayment)
	subscriber.Subscribe(event.TopicPaymentStatusUpdates, c.handlePayment)
	subscriber.Subscribe(event.TopicUserStatusUpdates, c.handleUserStatus)

	return c
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	slog.Info("Consumer started",
		"topics", []string{
			event.TopicPaymentVerificationResponse,
			event.TopicPaymentStatusUpdates,
			event.TopicUserStatusUpdates,
		},
	)

	return c.subscriber.Run(ctx)
}

// Shutdown gracefully shuts down the consumer.
func (c *Consumer) Shutdown() error {
	slog.Info("Shutting down consumer")

	return c.subscriber.Close()
}

// Process decodes a payment event and applies it.
func (c *Consumer) Process(ctx context.Context, msg bus.Message) error {
	e, err := event.DecodePaymentEvent(msg.Value)
	if err != nil {
		return err
	}

	return c.service.HandlePaymentEvent(ctx, e)
}

func (c *Consumer) handlePayment(ctx context.Context, msg bus.Message) error {
	err := c.Process(ctx, msg)
	switch {
	case err == nil:
		c.metrics.Consumed(msg.Topic, metrics.OutcomeSuccess)

		return nil
	case errs.IsPermanent(err):
		c.metrics.Consumed(msg.Topic, metrics.OutcomeDropped)
		slog.Warn("Dropping payment event",
			"topic", msg.Topic,
			"event_id", msg.Headers[event.HeaderEventID],
			"kind", errs.KindOf(err),
			"error", err,
		)

		return nil
	}

	c.metrics.Consumed(msg.Topic, metrics.OutcomeRetry)
	slog.Warn("Failed to process payment event, parking in inbox",
		"topic", msg.Topic,
		"event_id", msg.Headers[event.HeaderEventID],
		"error", err,
	)

	now := c.now()

	return c.inboxRepo.Insert(ctx, inbox.InboxMessage{
		MessageID:    msg.Headers[event.HeaderEventID],
		Topic:        msg.Topic,
		PartitionKey: string(msg.Key),
		Payload:      msg.Value,
		Headers:      msg.Headers,
		MaxRetries:   c.maxRetries,
		LastError:    err.Error(),
		CreatedAt:    now,
		UpdatedAt:    now,
		NextRetryAt:  now.Add(c.retryBase),
	})
}

// handleUserStatus acknowledges user status changes; orders do not react to them.
func (c *Consumer) handleUserStatus(_ context.Context, msg bus.Message) error {
	c.metrics.Consumed(msg.Topic, metrics.OutcomeSuccess)
	slog.Debug("User status update acknowledged", "key", string(msg.Key))

	return nil
}
