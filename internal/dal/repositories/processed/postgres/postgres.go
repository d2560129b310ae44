package postgresrepo

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
)

// PostgresProcessedEventRepository is the per-consumer idempotency table.
type PostgresProcessedEventRepository struct {
	conn postgres.GenericConn
	sb   sq.StatementBuilderType
}

func NewPostgresProcessedEventRepository(conn postgres.GenericConn) *PostgresProcessedEventRepository {
	return &PostgresProcessedEventRepository{
		conn: conn,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *PostgresProcessedEventRepository) MarkProcessed(
	ctx context.Context,
	consumer, eventID string,
	at time.Time,
) (bool, error) {
	sql, args, err := r.sb.Insert("processed_events").
		Columns("consumer", "event_id", "processed_at").
		Values(consumer, eventID, at).
		Suffix("ON CONFLICT (consumer, event_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build insert query: %w", err)
	}

	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("failed to mark event processed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
