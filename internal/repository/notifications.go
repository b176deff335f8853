package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// NotificationRepository stores back-in-stock subscriptions.
type NotificationRepository interface {
	// Upsert activates the (account, product) subscription and clears notified_at.
	Upsert(ctx context.Context, n *model.ProductNotification) (*model.ProductNotification, error)
	// Deactivate marks the subscription inactive; errs.ErrNotFound when absent.
	Deactivate(ctx context.Context, accountID, productID uuid.UUID) error
	// ListPending returns active, never-notified subscriptions for a product.
	ListPending(ctx context.Context, productID uuid.UUID) ([]model.ProductNotification, error)
	// MarkNotified sets notified_at and deactivates the given subscriptions.
	MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error
	// ListActiveByAccount returns the account's active subscriptions with product data.
	ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.NotificationView, error)
	// ListByProduct returns subscriptions for a product, optionally including inactive ones.
	ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.ProductNotification, error)
}
