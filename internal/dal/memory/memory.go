// Package memory is an in-process storage backend used for local runs and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icartrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icatalog"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinventory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iorderrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iprocessedrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inventory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/outbox"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
)

// Fault points for FailNext.
const (
	OpCartSave      = "cart.save"
	OpCartConvert   = "cart.convert"
	OpOrderInsert   = "order.insert"
	OpOrderUpdate   = "order.update"
	OpOutboxInsert  = "outbox.insert"
	OpInboxInsert   = "inbox.insert"
	OpLedgerReserve = "ledger.reserve"
)

type state struct {
	products  map[int64]product.Product
	stock     map[int64]inventory.Record
	carts     map[uuid.UUID]*cart.Cart
	orders    map[uuid.UUID]*order.Order
	outbox    map[int64]outbox.OutboxMessage
	inbox     map[int64]inbox.InboxMessage
	processed map[string]struct{}
	outboxSeq int64
	inboxSeq  int64
}

func newState() *state {
	return &state{
		products:  map[int64]product.Product{},
		stock:     map[int64]inventory.Record{},
		carts:     map[uuid.UUID]*cart.Cart{},
		orders:    map[uuid.UUID]*order.Order{},
		outbox:    map[int64]outbox.OutboxMessage{},
		inbox:     map[int64]inbox.InboxMessage{},
		processed: map[string]struct{}{},
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.products {
		cp.products[k] = v
	}
	for k, v := range s.stock {
		cp.stock[k] = v
	}
	for k, v := range s.carts {
		cp.carts[k] = v.Clone()
	}
	for k, v := range s.orders {
		cp.orders[k] = v.Clone()
	}
	for k, v := range s.outbox {
		cp.outbox[k] = v
	}
	for k, v := range s.inbox {
		cp.inbox[k] = v
	}
	for k := range s.processed {
		cp.processed[k] = struct{}{}
	}
	cp.outboxSeq = s.outboxSeq
	cp.inboxSeq = s.inboxSeq

	return cp
}

// Store keeps every table in memory behind one mutex.
// A unit of work holds the mutex from Begin until Commit or Rollback.
type Store struct {
	mu     sync.Mutex
	data   *state
	faults map[string]error
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		data:   newState(),
		faults: map[string]error{},
	}
}

// FailNext makes the next call at op return err.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	err, ok := s.faults[op]
	if !ok {
		return nil
	}
	delete(s.faults, op)

	return err
}

// view runs repository calls against the store, locking unless a unit of work already holds the lock.
type view struct {
	s      *Store
	locked bool
}

func (v view) do(fn func(st *state) error) error {
	if !v.locked {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}

	return fn(v.s.data)
}

func (v view) failAt(op string) error {
	return v.s.fault(op)
}

func (s *Store) CartRepository() icartrepo.ICartRepository {
	return &cartRepo{view{s: s}}
}

func (s *Store) OrderRepository() iorderrepo.IOrderRepository {
	return &orderRepo{view{s: s}}
}

func (s *Store) Ledger() iinventory.ILedger {
	return &ledger{view{s: s}}
}

func (s *Store) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return &outboxRepo{view{s: s}}
}

func (s *Store) ProcessedRepository() iprocessedrepo.IProcessedEventRepository {
	return &processedRepo{view{s: s}}
}

func (s *Store) InboxRepository() iinboxrepo.IInboxRepository {
	return &inboxRepo{view{s: s}}
}

func (s *Store) Catalog() icatalog.ICatalog {
	return &catalog{view{s: s}}
}

// Begin opens a unit of work.
func (s *Store) Begin(ctx context.Context) (iuow.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()

	return &tx{s: s, snapshot: s.data.clone()}, nil
}

type tx struct {
	s        *Store
	snapshot *state
	done     bool
}

func (t *tx) v() view { return view{s: t.s, locked: true} }

func (t *tx) CartRepository() icartrepo.ICartRepository { return &cartRepo{t.v()} }

func (t *tx) OrderRepository() iorderrepo.IOrderRepository { return &orderRepo{t.v()} }

func (t *tx) Ledger() iinventory.ILedger { return &ledger{t.v()} }

func (t *tx) OutboxRepository() ioutboxrepo.IOutboxRepository { return &outboxRepo{t.v()} }

func (t *tx) ProcessedRepository() iprocessedrepo.IProcessedEventRepository {
	return &processedRepo{t.v()}
}

func (t *tx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.mu.Unlock()

	return nil
}

func (t *tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.data = t.snapshot
	t.s.mu.Unlock()

	return nil
}
