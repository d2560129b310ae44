package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/poller"
	"golang.org/x/sync/errgroup"
)

const relayConcurrency = 8

// Worker relays messages parked in the outbox table to the bus.
type Worker struct {
	*poller.Loop
	repo      ioutboxrepo.IOutboxRepository
	publisher bus.Publisher
	metrics   *metrics.Metrics
	batchSize int
	retryBase time.Duration
	now       func() time.Time
}

func NewWorker(repo ioutboxrepo.IOutboxRepository, publisher bus.Publisher, m *metrics.Metrics, cfg config.WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 30 * time.Second
	}

	w := &Worker{
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		batchSize: cfg.BatchSize,
		retryBase: cfg.RetryBase,
		now:       time.Now,
	}
	w.Loop = poller.New("outbox", cfg.PollInterval, w.processMessages)

	return w
}

// processMessages relays one batch. Messages sharing a partition key go out in order on one goroutine.
func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.repo.GetPendingMessages(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to read outbox", "error", err)

		return
	}

	w.metrics.OutboxBatch(len(messages))
	if len(messages) == 0 {
		return
	}

	slog.Info("Relaying outbox messages", "count", len(messages))

	var keys []string
	byKey := map[string][]outbox.OutboxMessage{}
	for _, msg := range messages {
		if _, ok := byKey[msg.PartitionKey]; !ok {
			keys = append(keys, msg.PartitionKey)
		}
		byKey[msg.PartitionKey] = append(byKey[msg.PartitionKey], msg)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(relayConcurrency)
	for _, key := range keys {
		key := key
		g.Go(func() error {
			msgs := byKey[key]
			for i, msg := range msgs {
				if retryAt, ok := w.relay(gctx, msg); !ok {
					w.hold(gctx, msgs[i+1:], retryAt)

					return nil
				}
			}

			return nil
		})
	}
	_ = g.Wait()
}

// relay publishes one message and reports whether it left the outbox.
// When it did not, retryAt is the earliest time the key may be tried again.
func (w *Worker) relay(ctx context.Context, msg outbox.OutboxMessage) (retryAt time.Time, ok bool) {
	log := slog.With("outbox_id", msg.ID, "event_id", msg.EventID, "topic", msg.Topic)

	err := w.publisher.Publish(ctx, bus.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.PartitionKey),
		Value:   msg.Payload,
		Headers: msg.Headers,
	})
	if err != nil {
		attempt := poller.Fail(msg.RetryCount, msg.MaxRetries, w.retryBase, w.now())
		if attempt.Exhausted {
			w.metrics.Published(msg.Topic, metrics.OutcomeDropped)
			log.Error("Outbox message out of retries", "error", err)
		} else {
			w.metrics.Published(msg.Topic, metrics.OutcomeRetry)
			log.Warn("Outbox publish failed, rescheduled",
				"retry_count", attempt.RetryCount,
				"next_retry", attempt.NextAt,
				"error", err,
			)
		}

		// Exhausted rows stay for inspection; they are no longer due.
		if err := w.repo.UpdateRetry(ctx, msg.ID, attempt.RetryCount, err.Error(), attempt.NextAt); err != nil {
			log.Error("Failed to reschedule outbox message", "error", err)
		}

		return attempt.NextAt, false
	}

	w.metrics.Published(msg.Topic, metrics.OutcomeSuccess)
	if err := w.repo.Delete(ctx, msg.ID); err != nil {
		log.Error("Published outbox message could not be deleted", "error", err)

		return w.now(), false
	}
	log.Debug("Outbox message relayed")

	return time.Time{}, true
}

// hold keeps msgs queued behind a failed message of the same key until retryAt.
func (w *Worker) hold(ctx context.Context, msgs []outbox.OutboxMessage, retryAt time.Time) {
	for _, msg := range msgs {
		if err := w.repo.UpdateRetry(ctx, msg.ID, msg.RetryCount, msg.LastError, retryAt); err != nil {
			slog.Error("Failed to hold outbox message", "outbox_id", msg.ID, "error", err)
		}
	}
}
