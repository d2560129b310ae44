package outbox

import (
	"time"
)

// OutboxMessage is an event that could not be handed to the bus and waits for a retry.
type OutboxMessage struct {
	ID           int64
	EventID      string
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

// Exhausted reports whether the message used up its retries.
func (m OutboxMessage) Exhausted() bool {
	return m.RetryCount >= m.MaxRetries
}

// Due reports whether the relay should try the message at now.
func (m OutboxMessage) Due(now time.Time) bool {
	return !m.NextRetryAt.After(now) && !m.Exhausted()
}
