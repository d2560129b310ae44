package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/interfaces/iorderitemrepo"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	orderitemrepo "github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/repositories/orderitem/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/order"
)

var orderColumns = []string{
	"id",
	"order_number",
	"user_id",
	"subtotal",
	"tax_amount",
	"shipping_amount",
	"total",
	"currency",
	"status",
	"payment_status",
	"payment_method",
	"recipient_name",
	"phone",
	"address_line1",
	"address_line2",
	"city",
	"state",
	"postal_code",
	"country",
	"tracking_number",
	"payment_transaction_id",
	"verification_attempts",
	"created_at",
	"updated_at",
}

// PostgresOrderRepository stores orders and delegates their lines to the order item repository.
type PostgresOrderRepository struct {
	conn  postgres.GenericConn
	sb    sq.StatementBuilderType
	items iorderitemrepo.IOrderItemRepository
}

func NewPostgresOrderRepository(conn postgres.GenericConn) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		conn:  conn,
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		items: orderitemrepo.NewPostgresOrderItemRepository(conn),
	}
}

// Insert stores the order header and its lines.
func (r *PostgresOrderRepository) Insert(ctx context.Context, o *order.Order) error {
	sql, args, err := r.sb.Insert("orders").
		Columns(orderColumns...).
		Values(
			o.ID,
			o.OrderNumber,
			o.UserID,
			o.Subtotal,
			o.TaxAmount,
			o.ShippingAmount,
			o.Total,
			o.Currency.String(),
			o.Status,
			o.PaymentStatus,
			o.PaymentMethod,
			o.Delivery.RecipientName,
			o.Delivery.Phone,
			o.Delivery.AddressLine1,
			o.Delivery.AddressLine2,
			o.Delivery.City,
			o.Delivery.State,
			o.Delivery.PostalCode,
			o.Delivery.Country,
			o.TrackingNumber,
			o.PaymentTransactionID,
			o.VerificationAttempts,
			o.CreatedAt,
			o.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert query: %w", err)
	}

	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	return r.items.BulkInsert(ctx, o.Items)
}

func (r *PostgresOrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate locks the order row for the rest of the transaction.
func (r *PostgresOrderRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.get(ctx, id, true)
}

func (r *PostgresOrderRepository) get(ctx context.Context, id uuid.UUID, lock bool) (*order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders").Where(sq.Eq{"id": id.String()})
	if lock {
		query = query.Suffix("FOR UPDATE")
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	o, err := scanOrder(r.conn.QueryRow(ctx, sql, args...))
	if postgres.IsNoRows(err) {
		return nil, errs.Errorf(errs.KindNotFound, "postgres.GetOrder", "order %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	items, err := r.items.ListByOrders(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

// Update persists status, payment and tracking fields.
func (r *PostgresOrderRepository) Update(ctx context.Context, o *order.Order) error {
	sql, args, err := r.sb.Update("orders").
		Set("status", o.Status).
		Set("payment_status", o.PaymentStatus).
		Set("tracking_number", o.TrackingNumber).
		Set("payment_transaction_id", o.PaymentTransactionID).
		Set("verification_attempts", o.VerificationAttempts).
		Set("updated_at", o.UpdatedAt).
		Where(sq.Eq{"id": o.ID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Errorf(errs.KindNotFound, "postgres.UpdateOrder", "order %s not found", o.ID)
	}

	return nil
}

// Query retrieves orders based on filter criteria, newest first.
func (r *PostgresOrderRepository) Query(ctx context.Context, filter *order.QueryOrdersModel) ([]order.Order, error) {
	query := r.sb.Select(orderColumns...).From("orders")

	if len(filter.UserIDs) > 0 {
		query = query.Where(sq.Eq{"user_id": filter.UserIDs})
	}

	if len(filter.Statuses) > 0 {
		query = query.Where(sq.Eq{"status": filter.Statuses})
	}

	if len(filter.PaymentStatuses) > 0 {
		query = query.Where(sq.Eq{"payment_status": filter.PaymentStatuses})
	}

	if !filter.UpdatedBefore.IsZero() {
		query = query.Where(sq.Lt{"updated_at": filter.UpdatedBefore})
	}

	query = query.OrderBy("created_at DESC", "order_number DESC")

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	result := []order.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *o)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if !filter.IncludeItems || len(result) == 0 {
		return result, nil
	}

	ids := make([]uuid.UUID, len(result))
	for i := range result {
		ids[i] = result[i].ID
	}
	items, err := r.items.ListByOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range result {
		for _, item := range items {
			if item.OrderID == result[i].ID {
				result[i].Items = append(result[i].Items, item)
			}
		}
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.Subtotal,
		&o.TaxAmount,
		&o.ShippingAmount,
		&o.Total,
		&o.Currency,
		&o.Status,
		&o.PaymentStatus,
		&o.PaymentMethod,
		&o.Delivery.RecipientName,
		&o.Delivery.Phone,
		&o.Delivery.AddressLine1,
		&o.Delivery.AddressLine2,
		&o.Delivery.City,
		&o.Delivery.State,
		&o.Delivery.PostalCode,
		&o.Delivery.Country,
		&o.TrackingNumber,
		&o.PaymentTransactionID,
		&o.VerificationAttempts,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if postgres.IsNoRows(err) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	return &o, nil
}
