// Package postgresrepo stores retry queues (outbox and inbox) in PostgreSQL.
// Both tables share one layout and differ only in the name of their dedup key column.
package postgresrepo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/samrat-deshpande/ecommerce-backend-capstone-sub000/internal/dal/postgres"
)

// DefaultLease is how long a claimed row stays invisible to other relays.
const DefaultLease = time.Minute

// Row is one queued message.
type Row struct {
	ID           int64
	Key          string
	Topic        string
	PartitionKey string
	Payload      []byte
	Headers      map[string]string
	RetryCount   int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	NextRetryAt  time.Time
}

// Table is a retry queue backed by a single table.
type Table struct {
	conn      postgres.GenericConn
	sb        sq.StatementBuilderType
	name      string
	keyColumn string
	lease     time.Duration
}

// NewTable binds a queue to table name whose dedup key lives in keyColumn.
func NewTable(conn postgres.GenericConn, name, keyColumn string) *Table {
	return &Table{
		conn:      conn,
		sb:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		name:      name,
		keyColumn: keyColumn,
		lease:     DefaultLease,
	}
}

func (t *Table) columns() []string {
	return []string{
		t.keyColumn, "topic", "partition_key", "payload", "headers",
		"retry_count", "max_retries", "last_error",
		"created_at", "updated_at", "next_retry_at",
	}
}

// Insert enqueues r. A row whose key is already queued is ignored.
func (t *Table) Insert(ctx context.Context, r Row) error {
	if r.Headers == nil {
		r.Headers = map[string]string{}
	}

	query, args, err := t.sb.Insert(t.name).
		Columns(t.columns()...).
		Values(
			r.Key, r.Topic, r.PartitionKey, r.Payload, r.Headers,
			r.RetryCount, r.MaxRetries, r.LastError,
			r.CreatedAt, r.UpdatedAt, r.NextRetryAt,
		).
		Suffix("ON CONFLICT (" + t.keyColumn + ") DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s insert: %w", t.name, err)
	}

	if _, err := t.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", t.name, err)
	}

	return nil
}

// Claim returns up to limit due rows and pushes their next_retry_at past the lease,
// so a concurrent relay skips them. Rows come back in insertion order.
// A row is only due once no earlier live row of its partition key is still waiting,
// which keeps one key's messages in order across retries.
func (t *Table) Claim(ctx context.Context, now time.Time, limit int) ([]Row, error) {
	due := sq.Select("candidate.id").
		From(t.name + " AS candidate").
		Where(sq.LtOrEq{"candidate.next_retry_at": now}).
		Where("candidate.retry_count < candidate.max_retries").
		Where(sq.Expr(
			"NOT EXISTS (SELECT 1 FROM "+t.name+" AS earlier"+
				" WHERE earlier.partition_key = candidate.partition_key"+
				" AND earlier.id < candidate.id"+
				" AND earlier.retry_count < earlier.max_retries"+
				" AND earlier.next_retry_at > ?)",
			now,
		)).
		OrderBy("candidate.id").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED")

	query, args, err := t.sb.Update(t.name).
		Set("next_retry_at", now.Add(t.lease)).
		Where(sq.Expr("id IN (?)", due)).
		Suffix("RETURNING id, " + strings.Join(t.columns(), ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build %s claim: %w", t.name, err)
	}

	rows, err := t.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claim from %s: %w", t.name, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(
			&r.ID, &r.Key, &r.Topic, &r.PartitionKey, &r.Payload, &r.Headers,
			&r.RetryCount, &r.MaxRetries, &r.LastError,
			&r.CreatedAt, &r.UpdatedAt, &r.NextRetryAt,
		); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", t.name, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", t.name, err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// Pending reports whether partitionKey has rows that may still be delivered.
func (t *Table) Pending(ctx context.Context, partitionKey string) (bool, error) {
	query, args, err := t.sb.Select("1").
		From(t.name).
		Where(sq.Eq{"partition_key": partitionKey}).
		Where("retry_count < max_retries").
		Prefix("SELECT EXISTS (").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s pending: %w", t.name, err)
	}

	var pending bool
	if err := t.conn.QueryRow(ctx, query, args...).Scan(&pending); err != nil {
		return false, fmt.Errorf("check %s pending: %w", t.name, err)
	}

	return pending, nil
}

// Delete drops a delivered row.
func (t *Table) Delete(ctx context.Context, id int64) error {
	query, args, err := t.sb.Delete(t.name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build %s delete: %w", t.name, err)
	}

	if _, err := t.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", t.name, err)
	}

	return nil
}

// Reschedule records a failed attempt and releases the claim at nextRetryAt.
func (t *Table) Reschedule(ctx context.Context, id int64, retryCount int, lastError string, nextRetryAt time.Time) error {
	query, args, err := t.sb.Update(t.name).
		SetMap(sq.Eq{
			"retry_count":   retryCount,
			"last_error":    lastError,
			"next_retry_at": nextRetryAt,
			"updated_at":    time.Now(),
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build %s reschedule: %w", t.name, err)
	}

	if _, err := t.conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("reschedule %s row %d: %w", t.name, id, err)
	}

	return nil
}
