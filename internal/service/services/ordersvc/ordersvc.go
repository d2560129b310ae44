package ordersvc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/event"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
	"go.opentelemetry.io/otel"
)

// ConsumerName keys the processed events written by this service.
const ConsumerName = "order-service"

const defaultOutboxMaxRetries = 10

var tracer = otel.Tracer("ordersvc")

// OrderService is the order orchestrator: checkout, the order state machine and the payment choreography.
type OrderService struct {
	uow              unitOfWork
	publisher        bus.Publisher
	metrics          *metrics.Metrics
	pricing          Pricing
	reconcile        ReconcilePolicy
	outboxMaxRetries int
	now              func() time.Time
	keyLocks         stripedLock
}

// unitOfWork opens transactions and exposes autocommit repositories for reads and compensation.
// Autocommit repositories must not be used while a transaction of the same store is open.
type unitOfWork interface {
	iuow.Repositories
	Begin(ctx context.Context) (iuow.Tx, error)
}

// option is a function that configures the OrderService.
type option func(*OrderService)

// MustNewOrderService creates a new OrderService.
func MustNewOrderService(opts ...option) *OrderService {
	s := &OrderService{
		pricing:          DefaultPricing(),
		reconcile:        DefaultReconcilePolicy(),
		outboxMaxRetries: defaultOutboxMaxRetries,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.uow == nil || s.publisher == nil {
		panic("ordersvc: unit of work and publisher are required")
	}

	return s
}

// WithUnitOfWork sets the storage the OrderService works on.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithUnitOfWork(u unitOfWork) option {
	return func(s *OrderService) {
		s.uow = u
	}
}

// WithPublisher sets the event bus publisher.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithPublisher(p bus.Publisher) option {
	return func(s *OrderService) {
		s.publisher = p
	}
}

// WithMetrics sets the prometheus collectors.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithMetrics(m *metrics.Metrics) option {
	return func(s *OrderService) {
		s.metrics = m
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithPricing(p Pricing) option {
	return func(s *OrderService) {
		s.pricing = p
	}
}

//goland:noinspection GoExportedFuncWithUnexportedType
func WithReconcilePolicy(p ReconcilePolicy) option {
	return func(s *OrderService) {
		s.reconcile = p
	}
}

// WithOutboxMaxRetries sets the retry budget of messages parked in the outbox.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithOutboxMaxRetries(n int) option {
	return func(s *OrderService) {
		s.outboxMaxRetries = n
	}
}

// WithClock overrides the time source.
//
//goland:noinspection GoExportedFuncWithUnexportedType
func WithClock(now func() time.Time) option {
	return func(s *OrderService) {
		s.now = now
	}
}

// publish hands events to the bus under their keys' publish locks.
func (s *OrderService) publish(ctx context.Context, events ...event.OrderEvent) {
	keys := make([]string, 0, 1)
	for _, e := range events {
		keys = append(keys, e.PartitionKey())
	}
	unlock := s.keyLocks.lock(keys...)
	defer unlock()

	s.publishLocked(ctx, events...)
}

// publishLocked hands events to the bus. If the bus refuses them, or an earlier event of the same
// key is still parked, they go to the outbox so the relay delivers them in order.
// The caller holds the publish lock of every event's key.
// A failure here never fails the caller; the state change is already committed.
func (s *OrderService) publishLocked(ctx context.Context, events ...event.OrderEvent) {
	if len(events) == 0 {
		return
	}

	msgs := make([]bus.Message, 0, len(events))
	keys := make([]string, 0, 1)
	for _, e := range events {
		msg, err := ToMessage(e)
		if err != nil {
			slog.Error("Failed to encode event", "event_type", e.EventType, "order_id", e.OrderID, "error", err)

			continue
		}
		msgs = append(msgs, msg)
		keys = append(keys, string(msg.Key))
	}

	if key, backlog := s.backlog(ctx, keys); backlog {
		slog.Info("Earlier events of this key are parked, queueing behind them", "key", key, "count", len(msgs))
		s.park(ctx, msgs, errQueuedBehind)

		return
	}

	pubErr := s.publisher.Publish(ctx, msgs...)
	if pubErr == nil {
		for _, m := range msgs {
			s.metrics.Published(m.Topic, metrics.OutcomeSuccess)
		}

		return
	}

	slog.Warn("Failed to publish events, writing to outbox", "count", len(msgs), "error", pubErr)
	s.park(ctx, msgs, pubErr)
}

var errQueuedBehind = errors.New("queued behind undelivered events of the same key")

// backlog reports the first key that still has messages in the outbox.
// An unreadable outbox counts as a backlog.
func (s *OrderService) backlog(ctx context.Context, keys []string) (string, bool) {
	for _, key := range keys {
		pending, err := s.uow.OutboxRepository().HasPending(ctx, key)
		if err != nil {
			slog.Error("Failed to check outbox backlog", "key", key, "error", err)

			return key, true
		}
		if pending {
			return key, true
		}
	}

	return "", false
}

func (s *OrderService) park(ctx context.Context, msgs []bus.Message, cause error) {
	now := s.now()
	for _, m := range msgs {
		err := s.uow.OutboxRepository().Insert(ctx, outbox.OutboxMessage{
			EventID:      m.Headers[event.HeaderEventID],
			Topic:        m.Topic,
			PartitionKey: string(m.Key),
			Payload:      m.Value,
			Headers:      m.Headers,
			MaxRetries:   s.outboxMaxRetries,
			LastError:    cause.Error(),
			CreatedAt:    now,
			UpdatedAt:    now,
			NextRetryAt:  now,
		})
		if err != nil {
			s.metrics.Published(m.Topic, metrics.OutcomeError)
			slog.Error("Failed to write event to outbox",
				"topic", m.Topic,
				"event_id", m.Headers[event.HeaderEventID],
				"error", err,
			)

			continue
		}
		s.metrics.Published(m.Topic, metrics.OutcomeOutbox)
	}
}

// ToMessage encodes an order event into a bus message with the standard headers.
func ToMessage(e event.OrderEvent) (bus.Message, error) {
	payload, err := event.Encode(e)
	if err != nil {
		return bus.Message{}, err
	}

	return bus.Message{
		Topic: e.Topic(),
		Key:   []byte(e.PartitionKey()),
		Value: payload,
		Headers: map[string]string{
			event.HeaderEventType:   string(e.EventType),
			event.HeaderEventID:     e.EventID,
			event.HeaderContentType: event.ContentTypeJSON,
		},
	}, nil
}

func (s *OrderService) inTx(ctx context.Context, fn func(tx iuow.Tx) error) error {
	tx, err := s.uow.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
