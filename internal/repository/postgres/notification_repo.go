package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
)

// NotificationRepo implements NotificationRepository using PostgreSQL.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo constructs a notification repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationCols = `id, account_id, product_id, email, active, notified_at, created_at, updated_at`

func scanNotification(row pgx.Row) (*model.ProductNotification, error) {
	var n model.ProductNotification
	if err := row.Scan(&n.ID, &n.AccountID, &n.ProductID, &n.Email, &n.Active, &n.NotifiedAt,
		&n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

// Upsert re-activates an existing (account, product) row or inserts a new one.
func (r *NotificationRepo) Upsert(ctx context.Context, n *model.ProductNotification) (*model.ProductNotification, error) {
	q := `
INSERT INTO product_notifications (id, account_id, product_id, email, active, notified_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NULL, $5, $5)
ON CONFLICT (account_id, product_id) DO UPDATE
SET email=EXCLUDED.email, active=TRUE, notified_at=NULL, updated_at=EXCLUDED.updated_at
RETURNING ` + notificationCols
	return scanNotification(r.db.Pool.QueryRow(ctx, q, n.ID, n.AccountID, n.ProductID, n.Email, n.CreatedAt))
}

// Deactivate flips the subscription off without deleting it.
func (r *NotificationRepo) Deactivate(ctx context.Context, accountID, productID uuid.UUID) error {
	const q = `UPDATE product_notifications SET active=FALSE, updated_at=now() WHERE account_id=$1 AND product_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, accountID, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// ListPending returns subscriptions that still await a back-in-stock email.
func (r *NotificationRepo) ListPending(ctx context.Context, productID uuid.UUID) ([]model.ProductNotification, error) {
	q := `SELECT ` + notificationCols + ` FROM product_notifications
WHERE product_id=$1 AND active AND notified_at IS NULL ORDER BY created_at`
	return r.list(ctx, q, productID)
}

// ListByProduct returns subscriptions for a product.
func (r *NotificationRepo) ListByProduct(ctx context.Context, productID uuid.UUID, includeInactive bool) ([]model.ProductNotification, error) {
	q := `SELECT ` + notificationCols + ` FROM product_notifications
WHERE product_id=$1 AND (active OR $2) ORDER BY created_at DESC`
	return r.list(ctx, q, productID, includeInactive)
}

func (r *NotificationRepo) list(ctx context.Context, q string, args ...any) ([]model.ProductNotification, error) {
	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ProductNotification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkNotified stamps notified_at and deactivates the rows.
func (r *NotificationRepo) MarkNotified(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE product_notifications SET notified_at=$2, active=FALSE, updated_at=$2 WHERE id = ANY($1)`
	_, err := r.db.Pool.Exec(ctx, q, ids, at)
	return err
}

// ListActiveByAccount joins active subscriptions with product display data.
func (r *NotificationRepo) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]model.NotificationView, error) {
	const q = `
SELECT n.id, n.account_id, n.product_id, n.email, n.active, n.notified_at, n.created_at, n.updated_at,
       p.name, p.brand, p.price, p.slug, p.images
FROM product_notifications n
JOIN products p ON p.id = n.product_id
WHERE n.account_id=$1 AND n.active
ORDER BY n.created_at DESC`
	rows, err := r.db.Pool.Query(ctx, q, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.NotificationView{}
	for rows.Next() {
		var (
			v      model.NotificationView
			images []model.Image
		)
		err := rows.Scan(&v.ID, &v.AccountID, &v.ProductID, &v.Email, &v.Active, &v.NotifiedAt,
			&v.CreatedAt, &v.UpdatedAt, &v.Product.Name, &v.Product.Brand, &v.Product.Price,
			&v.Product.Slug, &images)
		if err != nil {
			return nil, err
		}
		v.Product.ID = v.ProductID
		p := model.Product{Images: images}
		if im, ok := p.PrimaryImage(); ok {
			v.Product.Image = &im
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
