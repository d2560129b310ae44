package iprocessedrepo

import (
	"context"
	"time"
)

// IProcessedEventRepository records which events a consumer already applied.
type IProcessedEventRepository interface {
	// MarkProcessed records the event and reports false if it was already recorded.
	MarkProcessed(ctx context.Context, consumer, eventID string, at time.Time) (bool, error)
}
