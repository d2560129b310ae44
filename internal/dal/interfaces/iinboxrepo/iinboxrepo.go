package iinboxrepo

import (
	"context"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
)

// IInboxRepository parks consumed messages for a later retry.
// Redeliveries of an already parked MessageID are ignored.
type IInboxRepository interface {
	Insert(ctx context.Context, msg inbox.InboxMessage) error
	// GetPendingMessages returns due, non-exhausted messages oldest first.
	GetPendingMessages(ctx context.Context, now time.Time, limit int) ([]inbox.InboxMessage, error)
	Delete(ctx context.Context, id int64) error
	UpdateRetry(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error
}
