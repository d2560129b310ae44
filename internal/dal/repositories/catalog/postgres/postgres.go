package postgresrepo

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/errs"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/service/models/product"
)

// PostgresCatalog reads products from the products table.
type PostgresCatalog struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresCatalog(conn postgres.GenericConn) *PostgresCatalog {
	return &PostgresCatalog{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (c *PostgresCatalog) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	sql, args, err := c.sb.Select("id", "name", "image_url", "unit_price").
		From("products").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	var p product.Product
	err = c.conn.QueryRow(ctx, sql, args...).Scan(&p.ID, &p.Name, &p.ImageURL, &p.UnitPrice)
	if postgres.IsNoRows(err) {
		return nil, errs.Errorf(errs.KindNotFound, "postgres.GetProduct", "product %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return &p, nil
}

func (c *PostgresCatalog) UpsertProduct(ctx context.Context, p product.Product) error {
	sql, args, err := c.sb.Insert("products").
		Columns("id", "name", "image_url", "unit_price").
		Values(p.ID, p.Name, p.ImageURL, p.UnitPrice).
		Suffix("ON CONFLICT (id) DO UPDATE SET " +
			"name = EXCLUDED.name, image_url = EXCLUDED.image_url, unit_price = EXCLUDED.unit_price, updated_at = now()").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert query: %w", err)
	}

	if _, err := c.conn.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}

	return nil
}
