package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_ConcurrentReserveNeverOversells(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Ledger().SetStock(ctx, 1, 10, 0))

	var ok, short atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Ledger().Reserve(ctx, 1, 1)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, errs.ErrInsufficientStock):
				short.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	assert.EqualValues(t, 40, short.Load())
	available, err := s.Ledger().Available(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

func TestLedger_ReleaseAndValidation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Ledger().SetStock(ctx, 1, 2, 1))

	require.NoError(t, s.Ledger().Reserve(ctx, 1, 2))
	require.NoError(t, s.Ledger().Release(ctx, 1, 2))

	rec, err := s.Ledger().Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Available)
	assert.False(t, rec.BelowThreshold())

	assert.ErrorIs(t, s.Ledger().Reserve(ctx, 1, 0), errs.ErrValidation)
	assert.ErrorIs(t, s.Ledger().Reserve(ctx, 99, 1), errs.ErrNotFound)
}

func TestTx_RollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Ledger().SetStock(ctx, 1, 5, 0))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Ledger().Reserve(ctx, 1, 3))
	o := &order.Order{ID: uuid.New(), OrderNumber: "ORD-1", UserID: "u1"}
	require.NoError(t, tx.OrderRepository().Insert(ctx, o))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	available, err := s.Ledger().Available(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, available)
	_, err = s.OrderRepository().Get(ctx, o.ID)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTx_CommitKeepsState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	fresh, err := tx.ProcessedRepository().MarkProcessed(ctx, "orders", "evt-1", time.Now())
	require.NoError(t, err)
	assert.True(t, fresh)
	require.NoError(t, tx.Commit(ctx))
	require.NoError(t, tx.Rollback(ctx))

	fresh, err = s.ProcessedRepository().MarkProcessed(ctx, "orders", "evt-1", time.Now())
	require.NoError(t, err)
	assert.False(t, fresh)

	fresh, err = s.ProcessedRepository().MarkProcessed(ctx, "other", "evt-1", time.Now())
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestCartRepo_SingleActiveCartAndConversion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.CartRepository()
	now := time.Now()

	_, err := repo.GetActive(ctx, "u1")
	require.ErrorIs(t, err, errs.ErrNotFound)

	c := cart.New("u1", now)
	require.NoError(t, repo.Save(ctx, c))
	assert.Error(t, repo.Save(ctx, cart.New("u1", now)))

	require.NoError(t, repo.MarkConverted(ctx, c.ID, now))
	assert.ErrorIs(t, repo.MarkConverted(ctx, c.ID, now), errs.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, c), errs.ErrValidation)

	_, err = repo.GetActive(ctx, "u1")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, repo.Save(ctx, cart.New("u1", now)))
}

func TestCartRepo_CreateKeepsFirstActiveCart(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().CartRepository()
	now := time.Now()

	first := cart.New("u1", now)
	created, err := repo.Create(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, cart.New("u1", now))
	require.NoError(t, err)
	assert.False(t, created)

	got, err := repo.GetActive(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestOrderRepo_QueryFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.OrderRepository()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		status := order.StatusPending
		if i%2 == 1 {
			status = order.StatusConfirmed
		}
		require.NoError(t, repo.Insert(ctx, &order.Order{
			ID:            uuid.New(),
			OrderNumber:   uuid.NewString(),
			UserID:        "u1",
			Status:        status,
			PaymentStatus: order.PaymentPending,
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Insert(ctx, &order.Order{ID: uuid.New(), OrderNumber: "x", UserID: "u2"}))

	all, err := repo.Query(ctx, &order.QueryOrdersModel{UserIDs: []string{"u1"}})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.True(t, all[0].CreatedAt.After(all[4].CreatedAt))

	page, err := repo.Query(ctx, &order.QueryOrdersModel{UserIDs: []string{"u1"}, Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	pending, err := repo.Query(ctx, &order.QueryOrdersModel{
		Statuses:      []order.Status{order.StatusPending},
		UpdatedBefore: base.Add(3 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestFailNext_FiresOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("disk full")
	s.FailNext(OpOutboxInsert, boom)

	assert.ErrorIs(t, s.OutboxRepository().Insert(ctx, outbox.OutboxMessage{MaxRetries: 1}), boom)
	require.NoError(t, s.OutboxRepository().Insert(ctx, outbox.OutboxMessage{MaxRetries: 1}))

	msgs, err := s.OutboxRepository().GetPendingMessages(ctx, time.Now(), 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.EqualValues(t, 1, msgs[0].ID)
}

func TestInbox_RedeliveryIsParkedOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	msg := inbox.InboxMessage{MessageID: "evt-9", MaxRetries: 2, NextRetryAt: now}

	require.NoError(t, s.InboxRepository().Insert(ctx, msg))
	require.NoError(t, s.InboxRepository().Insert(ctx, msg))
	require.NoError(t, s.InboxRepository().Insert(ctx, inbox.InboxMessage{MessageID: "evt-10", MaxRetries: 2, NextRetryAt: now}))

	msgs, err := s.InboxRepository().GetPendingMessages(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "evt-9", msgs[0].MessageID)
	assert.Equal(t, "evt-10", msgs[1].MessageID)

	require.NoError(t, s.InboxRepository().UpdateRetry(ctx, msgs[0].ID, 2, "boom", now))
	msgs, err = s.InboxRepository().GetPendingMessages(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1, "exhausted message is not pending")
}

func TestOutbox_KeyWaitsForEarlierMessage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	now := time.Now()
	park := func(id, key string, retries int, at time.Time) {
		require.NoError(t, s.OutboxRepository().Insert(ctx, outbox.OutboxMessage{
			EventID: id, PartitionKey: key, RetryCount: retries, MaxRetries: 3, NextRetryAt: at,
		}))
	}
	park("a1", "a", 1, now.Add(time.Minute))
	park("a2", "a", 0, now)
	park("b1", "b", 0, now)
	park("c1", "c", 3, now.Add(time.Minute))
	park("c2", "c", 0, now)

	msgs, err := s.OutboxRepository().GetPendingMessages(ctx, now, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.EventID)
	}
	assert.Equal(t, []string{"b1", "c2"}, ids, "exhausted messages do not block their key")

	for key, want := range map[string]bool{"a": true, "b": true, "c": true, "z": false} {
		got, err := s.OutboxRepository().HasPending(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got, key)
	}
}
