package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// OutboxRepository persists emails awaiting delivery.
type OutboxRepository interface {
	// Enqueue stores a pending message.
	Enqueue(ctx context.Context, e model.Email) (uuid.UUID, error)
	// Claim leases up to limit pending rows (or rows whose lease expired) to the caller.
	Claim(ctx context.Context, limit int, now time.Time, lease time.Duration) ([]model.OutboxEntry, error)
	// MarkSent records successful delivery.
	MarkSent(ctx context.Context, id uuid.UUID, attempts int, at time.Time) error
	// MarkDead moves a message to the dead-letter state with the last error.
	MarkDead(ctx context.Context, id uuid.UUID, attempts int, lastErr string) error
	// PurgeSent removes delivered rows older than cutoff.
	PurgeSent(ctx context.Context, cutoff time.Time) (int64, error)
}
