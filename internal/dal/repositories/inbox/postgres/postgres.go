package postgresrepo

import (
	"context"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	retryqueue "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/retryqueue/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
)

// InboxRepository holds consumed events whose handling failed with a retryable error.
type InboxRepository struct {
	q *retryqueue.Table
}

func NewInboxRepository(conn postgres.GenericConn) *InboxRepository {
	return &InboxRepository{q: retryqueue.NewTable(conn, "inbox", "message_id")}
}

// Insert parks msg. A redelivered message that is already parked is ignored.
func (r *InboxRepository) Insert(ctx context.Context, msg inbox.InboxMessage) error {
	return r.q.Insert(ctx, toRow(msg))
}

// GetPendingMessages claims due messages for this worker.
func (r *InboxRepository) GetPendingMessages(ctx context.Context, now time.Time, limit int) ([]inbox.InboxMessage, error) {
	rows, err := r.q.Claim(ctx, now, limit)
	if err != nil {
		return nil, err
	}

	msgs := make([]inbox.InboxMessage, len(rows))
	for i, row := range rows {
		msgs[i] = fromRow(row)
	}

	return msgs, nil
}

func (r *InboxRepository) Delete(ctx context.Context, id int64) error {
	return r.q.Delete(ctx, id)
}

func (r *InboxRepository) UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	return r.q.Reschedule(ctx, id, retryCount, lastError, nextRetryAt)
}

func toRow(m inbox.InboxMessage) retryqueue.Row {
	return retryqueue.Row{
		ID:           m.ID,
		Key:          m.MessageID,
		Topic:        m.Topic,
		PartitionKey: m.PartitionKey,
		Payload:      m.Payload,
		Headers:      m.Headers,
		RetryCount:   m.RetryCount,
		MaxRetries:   m.MaxRetries,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		NextRetryAt:  m.NextRetryAt,
	}
}

func fromRow(r retryqueue.Row) inbox.InboxMessage {
	return inbox.InboxMessage{
		ID:           r.ID,
		MessageID:    r.Key,
		Topic:        r.Topic,
		PartitionKey: r.PartitionKey,
		Payload:      r.Payload,
		Headers:      r.Headers,
		RetryCount:   r.RetryCount,
		MaxRetries:   r.MaxRetries,
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
		NextRetryAt:  r.NextRetryAt,
	}
}
