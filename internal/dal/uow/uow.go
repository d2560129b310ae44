package uow

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icartrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/icatalog"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iinventory"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iorderrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/ioutboxrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iprocessedrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iuow"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	cartrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/cart/postgres"
	catalogrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/catalog/postgres"
	inboxrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/inbox/postgres"
	inventoryrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/inventory/postgres"
	orderrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/order/postgres"
	outboxrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/outbox/postgres"
	processedrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/processed/postgres"
)

// repositories binds every repository to one connection: the pool or an open transaction.
type repositories struct {
	conn postgres.GenericConn
}

func (r repositories) CartRepository() icartrepo.ICartRepository {
	return cartrepo.NewPostgresCartRepository(r.conn)
}

func (r repositories) OrderRepository() iorderrepo.IOrderRepository {
	return orderrepo.NewPostgresOrderRepository(r.conn)
}

func (r repositories) Ledger() iinventory.ILedger {
	return inventoryrepo.NewPostgresLedger(r.conn)
}

func (r repositories) OutboxRepository() ioutboxrepo.IOutboxRepository {
	return outboxrepo.NewOutboxRepository(r.conn)
}

func (r repositories) ProcessedRepository() iprocessedrepo.IProcessedEventRepository {
	return processedrepo.NewPostgresProcessedEventRepository(r.conn)
}

// Store exposes pool-bound repositories and starts transactions.
type Store struct {
	repositories
	client *postgres.Client
}

func NewStore(client *postgres.Client) *Store {
	return &Store{
		repositories: repositories{conn: client.Pool()},
		client:       client,
	}
}

func (s *Store) InboxRepository() iinboxrepo.IInboxRepository {
	return inboxrepo.NewInboxRepository(s.conn)
}

func (s *Store) Catalog() icatalog.ICatalog {
	return catalogrepo.NewPostgresCatalog(s.conn)
}

// Begin opens a read committed transaction; repositories from the result run inside it.
func (s *Store) Begin(ctx context.Context) (iuow.Tx, error) {
	tx, err := s.client.Pool().BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &unitOfWork{repositories: repositories{conn: tx}, tx: tx}, nil
}

type unitOfWork struct {
	repositories
	tx pgx.Tx
}

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}
