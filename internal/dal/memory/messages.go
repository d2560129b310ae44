package memory

import (
	"context"
	"sort"
	"time"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
)

// due returns the queued messages ready at now in insertion order, capped at limit.
func due[M any](queue map[int64]M, ready func(M) bool, limit int) []M {
	ids := make([]int64, 0, len(queue))
	for id, m := range queue {
		if ready(m) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]M, len(ids))
	for i, id := range ids {
		out[i] = queue[id]
	}

	return out
}

type outboxRepo struct {
	view
}

func (r *outboxRepo) Insert(_ context.Context, msg outbox.OutboxMessage) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpOutboxInsert); err != nil {
			return err
		}
		if msg.EventID != "" {
			for _, m := range st.outbox {
				if m.EventID == msg.EventID {
					return nil
				}
			}
		}
		st.outboxSeq++
		msg.ID = st.outboxSeq
		st.outbox[msg.ID] = msg

		return nil
	})
}

func (r *outboxRepo) GetPendingMessages(_ context.Context, now time.Time, limit int) ([]outbox.OutboxMessage, error) {
	var out []outbox.OutboxMessage
	err := r.do(func(st *state) error {
		// first id of each key that is still waiting for a later retry
		blockedFrom := map[string]int64{}
		for id, m := range st.outbox {
			if m.Exhausted() || !m.NextRetryAt.After(now) {
				continue
			}
			if first, ok := blockedFrom[m.PartitionKey]; !ok || id < first {
				blockedFrom[m.PartitionKey] = id
			}
		}

		out = due(st.outbox, func(m outbox.OutboxMessage) bool {
			first, blocked := blockedFrom[m.PartitionKey]

			return m.Due(now) && (!blocked || m.ID < first)
		}, limit)

		return nil
	})

	return out, err
}

func (r *outboxRepo) HasPending(_ context.Context, partitionKey string) (bool, error) {
	pending := false
	err := r.do(func(st *state) error {
		for _, m := range st.outbox {
			if m.PartitionKey == partitionKey && !m.Exhausted() {
				pending = true

				break
			}
		}

		return nil
	})

	return pending, err
}

func (r *outboxRepo) Delete(_ context.Context, id int64) error {
	return r.do(func(st *state) error {
		delete(st.outbox, id)

		return nil
	})
}

func (r *outboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	return r.do(func(st *state) error {
		m, ok := st.outbox[id]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.UpdateOutboxRetry", "outbox message %d not found", id)
		}
		m.RetryCount = retryCount
		m.LastError = lastError
		m.NextRetryAt = nextRetryAt
		m.UpdatedAt = time.Now()
		st.outbox[id] = m

		return nil
	})
}

type inboxRepo struct {
	view
}

func (r *inboxRepo) Insert(_ context.Context, msg inbox.InboxMessage) error {
	return r.do(func(st *state) error {
		if err := r.failAt(OpInboxInsert); err != nil {
			return err
		}
		if msg.MessageID != "" {
			for _, m := range st.inbox {
				if m.MessageID == msg.MessageID {
					return nil
				}
			}
		}
		st.inboxSeq++
		msg.ID = st.inboxSeq
		st.inbox[msg.ID] = msg

		return nil
	})
}

func (r *inboxRepo) GetPendingMessages(_ context.Context, now time.Time, limit int) ([]inbox.InboxMessage, error) {
	var out []inbox.InboxMessage
	err := r.do(func(st *state) error {
		out = due(st.inbox, func(m inbox.InboxMessage) bool { return m.Due(now) }, limit)

		return nil
	})

	return out, err
}

func (r *inboxRepo) Delete(_ context.Context, id int64) error {
	return r.do(func(st *state) error {
		delete(st.inbox, id)

		return nil
	})
}

func (r *inboxRepo) UpdateRetry(_ context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	return r.do(func(st *state) error {
		m, ok := st.inbox[id]
		if !ok {
			return errs.Errorf(errs.KindNotFound, "memory.UpdateInboxRetry", "inbox message %d not found", id)
		}
		m.RetryCount = retryCount
		m.LastError = lastError
		m.NextRetryAt = nextRetryAt
		m.UpdatedAt = time.Now()
		st.inbox[id] = m

		return nil
	})
}

type processedRepo struct {
	view
}

func (r *processedRepo) MarkProcessed(_ context.Context, consumer, eventID string, _ time.Time) (bool, error) {
	fresh := false
	err := r.do(func(st *state) error {
		key := consumer + "/" + eventID
		if _, ok := st.processed[key]; ok {
			return nil
		}
		st.processed[key] = struct{}{}
		fresh = true

		return nil
	})

	return fresh, err
}
