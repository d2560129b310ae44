package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFail_DoublesWaitAndFlagsLastAttempt(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	a := Fail(0, 3, time.Second, now)
	assert.Equal(t, 1, a.RetryCount)
	assert.Equal(t, now.Add(2*time.Second), a.NextAt)
	assert.False(t, a.Exhausted)

	a = Fail(1, 3, time.Second, now)
	assert.Equal(t, now.Add(4*time.Second), a.NextAt)
	assert.False(t, a.Exhausted)

	a = Fail(2, 3, time.Second, now)
	assert.True(t, a.Exhausted)

	a = Fail(500, 1000, time.Second, now)
	assert.True(t, a.NextAt.After(now), "large retry counts must not overflow")
}

func TestLoop_TicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	l := New("test", 5*time.Millisecond, func(context.Context) { ticks.Add(1) })

	done := make(chan struct{})
	go func() {
		l.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)
	l.Stop()
	l.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoop_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New("test", time.Hour, func(context.Context) {})

	done := make(chan struct{})
	go func() {
		l.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop ignored cancellation")
	}
}
