package iuow

import (
	"context"

	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icartrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinventory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iorderrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iprocessedrepo"
)

// Repositories are the stores that take part in a unit of work.
type Repositories interface {
	CartRepository() icartrepo.ICartRepository
	OrderRepository() iorderrepo.IOrderRepository
	Ledger() iinventory.ILedger
	OutboxRepository() ioutboxrepo.IOutboxRepository
	ProcessedRepository() iprocessedrepo.IProcessedEventRepository
}

// Tx is an open unit of work. Rollback after Commit is a no-op.
type Tx interface {
	Repositories
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// IUnitOfWork starts units of work.
type IUnitOfWork interface {
	Begin(ctx context.Context) (Tx, error)
}
