package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/cart"
)

var cartItemColumns = []string{
	"id",
	"cart_id",
	"product_id",
	"product_name",
	"product_image",
	"unit_price",
	"quantity",
	"subtotal",
	"created_at",
	"updated_at",
}

// PostgresCartRepository stores carts and their lines.
type PostgresCartRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresCartRepository(conn postgres.GenericConn) *PostgresCartRepository {
	return &PostgresCartRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// GetActive loads the ACTIVE cart of userID.
// The row is locked when called inside a transaction; in autocommit mode the lock ends with the statement.
func (r *PostgresCartRepository) GetActive(ctx context.Context, userID string) (*cart.Cart, error) {
	sql, args, err := r.sb.Select("id", "user_id", "status", "total_amount", "item_count", "created_at", "updated_at").
		From("carts").
		Where(sq.Eq{"user_id": userID, "status": cart.StatusActive}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var c cart.Cart
	err = r.conn.QueryRow(ctx, sql, args...).Scan(
		&c.ID,
		&c.UserID,
		&c.Status,
		&c.TotalAmount,
		&c.ItemCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if postgres.IsNoRows(err) {
		return nil, errs.E(errs.KindNotFound, "postgres.GetActiveCart", "active cart not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active cart: %w", err)
	}

	c.Items, err = r.items(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (r *PostgresCartRepository) items(ctx context.Context, cartID uuid.UUID) ([]cart.Item, error) {
	sql, args, err := r.sb.Select(cartItemColumns...).
		From("cart_items").
		Where(sq.Eq{"cart_id": cartID.String()}).
		OrderBy("created_at ASC", "id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items := []cart.Item{}
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(
			&it.ID,
			&it.CartID,
			&it.ProductID,
			&it.ProductName,
			&it.ProductImage,
			&it.UnitPrice,
			&it.Quantity,
			&it.Subtotal,
			&it.CreatedAt,
			&it.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, it)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return items, nil
}

// Create inserts c as the user's ACTIVE cart. Under a concurrent create for the same user the insert
// waits for the other transaction and then does nothing, so the caller can re-read the winner.
func (r *PostgresCartRepository) Create(ctx context.Context, c *cart.Cart) (bool, error) {
	sql, args, err := r.sb.Insert("carts").
		Columns("id", "user_id", "status", "total_amount", "item_count", "created_at", "updated_at").
		Values(c.ID, c.UserID, c.Status, c.TotalAmount, c.ItemCount, c.CreatedAt, c.UpdatedAt).
		Suffix("ON CONFLICT (user_id) WHERE status = 'ACTIVE' DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build create query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to create cart: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Save upserts the cart header and replaces its lines. Converted carts are rejected.
func (r *PostgresCartRepository) Save(ctx context.Context, c *cart.Cart) error {
	sql, args, err := r.sb.Insert("carts").
		Columns("id", "user_id", "status", "total_amount", "item_count", "created_at", "updated_at").
		Values(c.ID, c.UserID, c.Status, c.TotalAmount, c.ItemCount, c.CreatedAt, c.UpdatedAt).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"total_amount = EXCLUDED.total_amount, item_count = EXCLUDED.item_count, updated_at = EXCLUDED.updated_at " +
			"WHERE carts.status = 'ACTIVE'").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if postgres.IsUniqueViolation(err) {
		return errs.Wrap(errs.KindInternal, "postgres.SaveCart", fmt.Errorf("user already has an active cart: %w", err))
	}
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(errs.KindValidation, "postgres.SaveCart", "converted cart is immutable")
	}

	sql, args, err = r.sb.Delete("cart_items").Where(sq.Eq{"cart_id": c.ID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	if len(c.Items) == 0 {
		return nil
	}

	insert := r.sb.Insert("cart_items").Columns(cartItemColumns...)
	for _, it := range c.Items {
		insert = insert.Values(
			it.ID,
			c.ID,
			it.ProductID,
			it.ProductName,
			it.ProductImage,
			it.UnitPrice,
			it.Quantity,
			it.Subtotal,
			it.CreatedAt,
			it.UpdatedAt,
		)
	}

	sql, args, err = insert.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert cart items: %w", err)
	}

	return nil
}

// MarkConverted closes an ACTIVE cart and drops its lines.
func (r *PostgresCartRepository) MarkConverted(ctx context.Context, cartID uuid.UUID, at time.Time) error {
	sql, args, err := r.sb.Update("carts").
		Set("status", cart.StatusConverted).
		Set("updated_at", at).
		Where(sq.Eq{"id": cartID.String(), "status": cart.StatusActive}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to convert cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.E(errs.KindNotFound, "postgres.MarkConverted", "active cart not found")
	}

	sql, args, err = r.sb.Delete("cart_items").Where(sq.Eq{"cart_id": cartID.String()}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}

	return nil
}
