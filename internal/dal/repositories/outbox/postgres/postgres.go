package postgresrepo

import (
	"context"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	retryqueue "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/retryqueue/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
)

// OutboxRepository keeps events the bus refused until the relay republishes them.
type OutboxRepository struct {
	q *retryqueue.Table
}

func NewOutboxRepository(conn postgres.GenericConn) *OutboxRepository {
	return &OutboxRepository{q: retryqueue.NewTable(conn, "outbox", "event_id")}
}

// Insert parks msg. Parking the same event id twice keeps the first row.
func (r *OutboxRepository) Insert(ctx context.Context, msg outbox.OutboxMessage) error {
	return r.q.Insert(ctx, retryqueue.Row{
		Key:          msg.EventID,
		Topic:        msg.Topic,
		PartitionKey: msg.PartitionKey,
		Payload:      msg.Payload,
		Headers:      msg.Headers,
		RetryCount:   msg.RetryCount,
		MaxRetries:   msg.MaxRetries,
		LastError:    msg.LastError,
		CreatedAt:    msg.CreatedAt,
		UpdatedAt:    msg.UpdatedAt,
		NextRetryAt:  msg.NextRetryAt,
	})
}

// GetPendingMessages claims due events for this relay.
func (r *OutboxRepository) GetPendingMessages(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	rows, err := r.q.Claim(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	msgs := make([]outbox.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, outbox.OutboxMessage{
			ID:           row.ID,
			EventID:      row.Key,
			Topic:        row.Topic,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			Headers:      row.Headers,
			RetryCount:   row.RetryCount,
			MaxRetries:   row.MaxRetries,
			LastError:    row.LastError,
			CreatedAt:    row.CreatedAt,
			UpdatedAt:    row.UpdatedAt,
			NextRetryAt:  row.NextRetryAt,
		})
	}

	return msgs, nil
}

func (r *OutboxRepository) HasPending(ctx context.Context, partitionKey string) (bool, error) {
	return r.q.Pending(ctx, partitionKey)
}

func (r *OutboxRepository) Delete(ctx context.Context, id int64) error {
	return r.q.Delete(ctx, id)
}

func (r *OutboxRepository) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	return r.q.Reschedule(ctx, id, retryCount, lastError, nextRetryAt)
}
