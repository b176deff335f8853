package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// OutboxRepo implements OutboxRepository using PostgreSQL.
type OutboxRepo struct{ db *DB }

// NewOutboxRepo constructs an outbox repository.
func NewOutboxRepo(db *DB) *OutboxRepo { return &OutboxRepo{db: db} }

// Enqueue stores a pending email.
func (r *OutboxRepo) Enqueue(ctx context.Context, e model.Email) (uuid.UUID, error) {
	const q = `
INSERT INTO email_outbox (id, kind, recipient, reply_to, subject, html, text, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')`
	id, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := r.db.Pool.Exec(ctx, q, id, e.Kind, e.To, e.ReplyTo, e.Subject, e.HTML, e.Text); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Claim leases pending rows, plus rows whose previous lease expired, to the caller.
// Concurrent workers never receive the same row.
func (r *OutboxRepo) Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]model.OutboxEntry, error) {
	const q = `
UPDATE email_outbox SET status='sending', claimed_at=$1
WHERE id IN (
  SELECT id FROM email_outbox
  WHERE status='pending' OR (status='sending' AND claimed_at < $2)
  ORDER BY created_at
  LIMIT $3
  FOR UPDATE SKIP LOCKED
)
RETURNING id, kind, recipient, reply_to, subject, html, text, status, attempts, last_error, created_at, sent_at`
	rows, err := r.db.Pool.Query(ctx, q, now, now.Add(-lease), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OutboxEntry
	for rows.Next() {
		var e model.OutboxEntry
		if err := rows.Scan(&e.ID, &e.Email.Kind, &e.Email.To, &e.Email.ReplyTo, &e.Email.Subject,
			&e.Email.HTML, &e.Email.Text, &e.Status, &e.Attempts, &e.LastError, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkSent records a successful delivery.
func (r *OutboxRepo) MarkSent(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error {
	const q = `UPDATE email_outbox SET status='sent', attempts=$2, sent_at=$3, last_error='' WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, attempts, at)
	return err
}

// MarkDead parks a message after its final failed attempt.
func (r *OutboxRepo) MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error {
	const q = `UPDATE email_outbox SET status='dead', attempts=$2, last_error=$3 WHERE id=$1`
	_, err := r.db.Pool.Exec(ctx, q, id, attempts, lastErr)
	return err
}

// PurgeSent deletes delivered rows older than cutoff.
func (r *OutboxRepo) PurgeSent(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM email_outbox WHERE status='sent' AND sent_at < $1`
	tag, err := r.db.Pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
