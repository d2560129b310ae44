package ioutboxrepo

import (
	"context"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
)

// IOutboxRepository parks events that could not be published after commit.
// A message with a non-empty EventID is parked at most once.
type IOutboxRepository interface {
	Insert(ctx context.Context, msg outbox.OutboxMessage) error
	// GetPendingMessages returns due, non-exhausted messages oldest first.
	// A message is held back while an earlier non-exhausted message of its partition key is not yet due.
	// Backends shared by several relays hide the returned rows from the others for a lease period.
	GetPendingMessages(ctx context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error)
	// HasPending reports whether partitionKey has non-exhausted messages waiting.
	HasPending(ctx context.Context, partitionKey string) (bool, error)
	Delete(ctx context.Context, id int64) error
	UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error
}
