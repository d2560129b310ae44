package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/inventory"
)

// PostgresLedger keeps stock counters in the inventory table.
// Reservations are a single conditional UPDATE so concurrent callers never oversell.
type PostgresLedger struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresLedger(conn postgres.GenericConn) *PostgresLedger {
	return &PostgresLedger{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (l *PostgresLedger) Reserve(ctx context.Context, productID int64, qty int) error {
	const op = "postgres.Reserve"
	if qty <= 0 {
		return errs.Errorf(errs.KindValidation, op, "quantity must be positive, got %d", qty)
	}

	sql, args, err := l.sb.Update("inventory").
		Set("available", sq.Expr("available - ?", qty)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"product_id": productID}).
		Where(sq.GtOrEq{"available": qty}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := l.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	rec, err := l.Get(ctx, productID)
	if err != nil {
		return err
	}

	return errs.Errorf(errs.KindInsufficientStock, op,
		"product %d has %d available, %d requested", productID, rec.Available, qty)
}

func (l *PostgresLedger) Release(ctx context.Context, productID int64, qty int) error {
	const op = "postgres.Release"
	if qty <= 0 {
		return errs.Errorf(errs.KindValidation, op, "quantity must be positive, got %d", qty)
	}

	sql, args, err := l.sb.Update("inventory").
		Set("available", sq.Expr("available + ?", qty)).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := l.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Errorf(errs.KindNotFound, op, "no inventory for product %d", productID)
	}

	return nil
}

func (l *PostgresLedger) Available(ctx context.Context, productID int64) (int, error) {
	rec, err := l.Get(ctx, productID)
	if err != nil {
		return 0, err
	}

	return rec.Available, nil
}

func (l *PostgresLedger) Get(ctx context.Context, productID int64) (inventory.Record, error) {
	sql, args, err := l.sb.Select("product_id", "available", "min_threshold", "updated_at").
		From("inventory").
		Where(sq.Eq{"product_id": productID}).
		ToSql()
	if err != nil {
		return inventory.Record{}, fmt.Errorf("failed to build select query: %w", err)
	}

	var rec inventory.Record
	err = l.conn.QueryRow(ctx, sql, args...).Scan(&rec.ProductID, &rec.Available, &rec.MinThreshold, &rec.UpdatedAt)
	if postgres.IsNoRows(err) {
		return inventory.Record{}, errs.Errorf(errs.KindNotFound, "postgres.GetInventory",
			"no inventory for product %d", productID)
	}
	if err != nil {
		return inventory.Record{}, fmt.Errorf("failed to get inventory: %w", err)
	}

	return rec, nil
}

func (l *PostgresLedger) SetStock(ctx context.Context, productID int64, available, minThreshold int) error {
	if available < 0 {
		return errs.Errorf(errs.KindValidation, "postgres.SetStock", "available must not be negative, got %d", available)
	}

	sql, args, err := l.sb.Insert("inventory").
		Columns("product_id", "available", "min_threshold", "updated_at").
		Values(productID, available, minThreshold, sq.Expr("now()")).
		Suffix("ON CONFLICT (product_id) DO UPDATE SET " +
			"available = EXCLUDED.available, min_threshold = EXCLUDED.min_threshold, updated_at = EXCLUDED.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := l.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
	}

	return nil
}
