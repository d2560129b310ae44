package inbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/bus"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/config"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/memory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProcessor struct {
	results []error
	calls   []bus.Message
}

func (p *scriptedProcessor) Process(_ context.Context, msg bus.Message) error {
	p.calls = append(p.calls, msg)
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]

	return err
}

func setup(t *testing.T, maxRetries int, results ...error) (*Worker, *memory.Store, *scriptedProcessor, *time.Time) {
	t.Helper()
	store := memory.NewStore()
	p := &scriptedProcessor{results: results}
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := NewWorker(store.InboxRepository(), p, nil, config.WorkerConfig{BatchSize: 10, RetryBase: time.Second})
	w.now = func() time.Time { return now }

	require.NoError(t, store.InboxRepository().Insert(context.Background(), inbox.InboxMessage{
		MessageID:    "evt-1",
		Topic:        "payment-status-updates",
		PartitionKey: "order-1",
		Payload:      []byte(`{}`),
		MaxRetries:   maxRetries,
		NextRetryAt:  now,
	}))

	return w, store, p, &now
}

func pending(t *testing.T, store *memory.Store, at time.Time) []inbox.InboxMessage {
	t.Helper()
	msgs, err := store.InboxRepository().GetPendingMessages(context.Background(), at, 10)
	require.NoError(t, err)

	return msgs
}

func TestProcessMessages_SuccessDeletes(t *testing.T) {
	w, store, p, now := setup(t, 3)

	w.processMessages(context.Background())

	require.Len(t, p.calls, 1)
	assert.Equal(t, "order-1", string(p.calls[0].Key))
	assert.Empty(t, pending(t, store, now.Add(time.Hour)))
}

func TestProcessMessages_RetryThenSucceed(t *testing.T) {
	w, store, p, now := setup(t, 3, errors.New("timeout"))

	w.processMessages(context.Background())
	msgs := pending(t, store, now.Add(time.Hour))
	require.Len(t, msgs, 1)
	assert.Equal(t, 1, msgs[0].RetryCount)
	assert.Equal(t, now.Add(2*time.Second), msgs[0].NextRetryAt)

	w.processMessages(context.Background())
	assert.Len(t, p.calls, 1, "not due yet")

	*now = now.Add(2 * time.Second)
	w.processMessages(context.Background())
	assert.Len(t, p.calls, 2)
	assert.Empty(t, pending(t, store, now.Add(time.Hour)))
}

func TestProcessMessages_DropsPermanentAndExhausted(t *testing.T) {
	w, store, _, now := setup(t, 3, errs.E(errs.KindNotFound, "test", "order gone"))
	w.processMessages(context.Background())
	assert.Empty(t, pending(t, store, now.Add(time.Hour)))

	w, store, _, now = setup(t, 1, errors.New("timeout"))
	w.processMessages(context.Background())
	assert.Empty(t, pending(t, store, now.Add(time.Hour)))
}
