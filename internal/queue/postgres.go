package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueue implements Queue against the queue_messages table, with a
// claim query using FOR UPDATE SKIP LOCKED so concurrent workers never
// double-claim a row.
type PostgresQueue struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresQueue(ctx context.Context, dsn string) (*PostgresQueue, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create queue pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping queue database: %w", err)
	}
	q := &PostgresQueue{pool: pool, logger: slog.Default().With("component", "queue-postgres")}
	if err := q.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return q, nil
}

func (q *PostgresQueue) initSchema(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS queue_messages (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			payload JSONB NOT NULL,
			visible_at TIMESTAMPTZ NOT NULL,
			delivery_count INTEGER NOT NULL DEFAULT 0,
			locked_by TEXT,
			locked_until TIMESTAMPTZ,
			enqueued_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_queue_project_id ON queue_messages(project_id, id);
		CREATE INDEX IF NOT EXISTS idx_queue_visible_at ON queue_messages(visible_at);
	`)
	if err != nil {
		return fmt.Errorf("init queue schema: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Enqueue(ctx context.Context, projectID string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := q.pool.Exec(ctx, `
		INSERT INTO queue_messages (id, project_id, payload, visible_at, enqueued_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`, id, projectID, payload)
	if err != nil {
		return "", fmt.Errorf("enqueue message: %w", err)
	}
	return id, nil
}

// Dequeue claims the oldest eligible row: visible now and not currently
// locked by another worker. FOR UPDATE SKIP LOCKED lets concurrent workers
// run this query simultaneously without blocking on each other.
func (q *PostgresQueue) Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Message, error) {
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin dequeue tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var m Message
	err = tx.QueryRow(ctx, `
		SELECT id, project_id, payload, delivery_count, enqueued_at
		FROM queue_messages
		WHERE visible_at <= NOW() AND (locked_until IS NULL OR locked_until < NOW())
		ORDER BY enqueued_at, id
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&m.ID, &m.ProjectID, &m.Payload, &m.DeliveryCount, &m.EnqueuedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("claim message: %w", err)
	}

	lockedUntil := time.Now().Add(visibilityTimeout)
	if _, err := tx.Exec(ctx, `
		UPDATE queue_messages
		SET locked_until = $1, delivery_count = delivery_count + 1, visible_at = $1
		WHERE id = $2
	`, lockedUntil, m.ID); err != nil {
		return nil, fmt.Errorf("lock message: %w", err)
	}
	m.DeliveryCount++

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit dequeue tx: %w", err)
	}
	return &m, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM queue_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ack message: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Release(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE queue_messages SET visible_at = NOW(), locked_until = NULL WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("release message: %w", err)
	}
	return nil
}

func (q *PostgresQueue) Close() error {
	q.pool.Close()
	return nil
}
