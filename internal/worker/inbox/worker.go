package inbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/metrics"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/worker/poller"
)

// processor applies one consumed message.
type processor interface {
	Process(ctx context.Context, msg bus.Message) error
}

// Worker feeds parked inbox messages back through the consumer.
type Worker struct {
	*poller.Loop
	repo      iinboxrepo.IInboxRepository
	processor processor
	metrics   *metrics.Metrics
	batchSize int
	retryBase time.Duration
	now       func() time.Time
}

func NewWorker(repo iinboxrepo.IInboxRepository, p processor, m *metrics.Metrics, cfg config.WorkerConfig) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 5 * time.Second
	}

	w := &Worker{
		repo:      repo,
		processor: p,
		metrics:   m,
		batchSize: cfg.BatchSize,
		retryBase: cfg.RetryBase,
		now:       time.Now,
	}
	w.Loop = poller.New("inbox", cfg.PollInterval, w.processMessages)

	return w
}

func (w *Worker) processMessages(ctx context.Context) {
	messages, err := w.repo.GetPendingMessages(ctx, w.now(), w.batchSize)
	if err != nil {
		slog.Error("Failed to read inbox", "error", err)

		return
	}
	if len(messages) > 0 {
		slog.Info("Retrying inbox messages", "count", len(messages))
	}

	for _, msg := range messages {
		w.retry(ctx, msg)
	}
}

// retry handles one parked message. Success and permanent failures leave the inbox;
// retryable failures are rescheduled until the message runs out of attempts.
func (w *Worker) retry(ctx context.Context, msg inbox.InboxMessage) {
	log := slog.With("inbox_id", msg.ID, "message_id", msg.MessageID, "topic", msg.Topic)

	err := w.processor.Process(ctx, bus.Message{
		Topic:   msg.Topic,
		Key:     []byte(msg.PartitionKey),
		Value:   msg.Payload,
		Headers: msg.Headers,
	})

	switch {
	case err == nil:
		w.metrics.Consumed(msg.Topic, metrics.OutcomeSuccess)
		log.Info("Inbox message processed")
	case errs.IsPermanent(err):
		w.metrics.Consumed(msg.Topic, metrics.OutcomeDropped)
		log.Warn("Inbox message failed permanently, dropping", "error", err)
	default:
		attempt := poller.Fail(msg.RetryCount, msg.MaxRetries, w.retryBase, w.now())
		if !attempt.Exhausted {
			w.metrics.Consumed(msg.Topic, metrics.OutcomeRetry)
			log.Warn("Inbox message failed, rescheduled",
				"retry_count", attempt.RetryCount,
				"next_retry", attempt.NextAt,
				"error", err,
			)
			if err := w.repo.UpdateRetry(ctx, msg.ID, attempt.RetryCount, err.Error(), attempt.NextAt); err != nil {
				log.Error("Failed to reschedule inbox message", "error", err)
			}

			return
		}
		w.metrics.Consumed(msg.Topic, metrics.OutcomeDropped)
		log.Error("Inbox message out of retries, dropping", "error", err)
	}

	if err := w.repo.Delete(ctx, msg.ID); err != nil {
		log.Error("Failed to delete inbox message", "error", err)
	}
}
