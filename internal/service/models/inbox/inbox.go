package inbox

import (
	"time"
)

// InboxMessage is a consumed event whose handler failed with a retryable error.
// MessageID is the event id header of the original delivery.
type InboxMessage struct {
	ID           int64
	MessageID    string
	Topic        string
	PartitionKey string
	Payload      []byte
	Headers      map[string]string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// Due reports whether the message should be handled again at now.
func (m InboxMessage) Due(now time.Time) bool {
	return !m.NextRetryAt.After(now) && m.RetryCount < m.MaxRetries
}
