package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	membus "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorker(t *testing.T) (*Worker, *memory.Store, *membus.Bus, *time.Time) {
	t.Helper()
	store := memory.NewStore()
	b := membus.New(1, membus.WithCapture())
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWorker(store.OutboxRepository(), b, nil, config.WorkerConfig{BatchSize: 10, RetryBase: time.Second})
	w.now = func() time.Time { return now }

	return w, store, b, &now
}

func park(t *testing.T, store *memory.Store, key, payload string, at time.Time, maxRetries int) {
	t.Helper()
	require.NoError(t, store.OutboxRepository().Insert(context.Background(), outbox.OutboxMessage{
		EventID:      payload,
		Topic:        "order-events",
		PartitionKey: key,
		Payload:      []byte(payload),
		Headers:      map[string]string{"event_id": payload},
		MaxRetries:   maxRetries,
		NextRetryAt:  at,
	}))
}

func TestProcessMessages_RelaysAndDeletes(t *testing.T) {
	w, store, b, now := newWorker(t)
	park(t, store, "o1", "a", *now, 3)
	park(t, store, "o2", "b", *now, 3)
	park(t, store, "o3", "later", now.Add(time.Hour), 3)

	w.processMessages(context.Background())

	published := b.Published()
	require.Len(t, published, 2)
	values := []string{string(published[0].Value), string(published[1].Value)}
	assert.ElementsMatch(t, []string{"a", "b"}, values)

	left, err := store.OutboxRepository().GetPendingMessages(context.Background(), now.Add(2*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "later", left[0].EventID)
}

func TestProcessMessages_BacksOffExponentially(t *testing.T) {
	w, store, b, now := newWorker(t)
	park(t, store, "o1", "a", *now, 2)
	b.FailNext(errors.New("broker down"))

	w.processMessages(context.Background())

	pending, err := store.OutboxRepository().GetPendingMessages(context.Background(), *now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "message must wait for its backoff")

	pending, err = store.OutboxRepository().GetPendingMessages(context.Background(), now.Add(2*time.Second), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, "broker down", pending[0].LastError)
	assert.Equal(t, now.Add(2*time.Second), pending[0].NextRetryAt)

	*now = now.Add(2 * time.Second)
	b.FailNext(errors.New("still down"))
	w.processMessages(context.Background())

	pending, err = store.OutboxRepository().GetPendingMessages(context.Background(), now.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "exhausted messages are no longer relayed")
	assert.Empty(t, b.Published())
}

func TestProcessMessages_HoldsKeyBehindFailedMessage(t *testing.T) {
	w, store, b, now := newWorker(t)
	park(t, store, "o1", "first", *now, 3)
	park(t, store, "o1", "second", *now, 3)
	b.FailNext(errors.New("broker down"))

	w.processMessages(context.Background())

	pending, err := store.OutboxRepository().GetPendingMessages(context.Background(), *now, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "later message waits with the failed one")

	*now = now.Add(2 * time.Second)
	pending, err = store.OutboxRepository().GetPendingMessages(context.Background(), *now, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].RetryCount)
	assert.Equal(t, 0, pending[1].RetryCount)

	w.processMessages(context.Background())

	published := b.Published()
	require.Len(t, published, 2)
	assert.Equal(t, "first", string(published[0].Value))
	assert.Equal(t, "second", string(published[1].Value))
}
