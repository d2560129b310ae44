// Package poller runs the periodic loops behind the background workers.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// maxShift caps the backoff exponent so the duration cannot overflow.
const maxShift = 20

// Loop calls tick every interval until the context ends or Stop is called.
type Loop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	stopCh   chan struct{}
	stopOnce sync.Once
}

func New(name string, interval time.Duration, tick func(ctx context.Context)) *Loop {
	return &Loop{
		name:     name,
		interval: interval,
		tick:     tick,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks until the loop ends.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	log := slog.With("worker", l.name)
	log.Info("Worker started", "interval", l.interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("Worker shutting down")

			return
		case <-l.stopCh:
			log.Info("Worker stopped")

			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// Stop ends the loop. It is safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Attempt is the outcome of one failed delivery of a queued message.
type Attempt struct {
	RetryCount int
	NextAt     time.Time
	Exhausted  bool
}

// Fail records a failure of a message that already failed retryCount times.
// The next try waits base * 2^(retryCount+1).
func Fail(retryCount, maxRetries int, base time.Duration, now time.Time) Attempt {
	n := retryCount + 1
	shift := n
	if shift > maxShift {
		shift = maxShift
	}

	return Attempt{
		RetryCount: n,
		NextAt:     now.Add(base << shift),
		Exhausted:  n >= maxRetries,
	}
}
