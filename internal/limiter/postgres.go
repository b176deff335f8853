package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed Store shared by every server instance.
type PG struct {
	pool pgxQuerier
	now  func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed store.
func NewPG(pool *pgxpool.Pool) *PG {
	return &PG{pool: pool, now: time.Now}
}

// NewPGWithQuerier constructs a PostgreSQL-backed store over any querier.
func NewPGWithQuerier(q pgxQuerier) *PG {
	return &PG{pool: q, now: time.Now}
}

// Hit implements Store with a single upsert that restarts expired windows.
func (l *PG) Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()

	const q = `
INSERT INTO rate_limits (key_hash, hits, window_start)
VALUES ($1, 1, $2)
ON CONFLICT (key_hash) DO UPDATE
SET
  hits = CASE WHEN rate_limits.window_start <= $2 - $3::interval THEN 1 ELSE rate_limits.hits + 1 END,
  window_start = CASE WHEN rate_limits.window_start <= $2 - $3::interval THEN $2 ELSE rate_limits.window_start END
RETURNING hits, window_start`
	var (
		hits  int
		start time.Time
	)
	if err := l.pool.QueryRow(ctx, q, HashKey(key), now, window).Scan(&hits, &start); err != nil {
		return Decision{}, err
	}
	if hits <= limit {
		return Decision{Allowed: true}, nil
	}
	return Decision{RetryAfter: start.Add(window).Sub(now)}, nil
}

// Prune deletes windows that started before cutoff and reports how many.
func (l *PG) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM rate_limits WHERE window_start < $1`
	tag, err := l.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
