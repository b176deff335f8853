package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

// querier is the subset shared by the pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepo implements OrderRepository using PostgreSQL.
type OrderRepo struct{ db *DB }

// NewOrderRepo constructs an order repository.
func NewOrderRepo(db *DB) *OrderRepo { return &OrderRepo{db: db} }

const orderCols = `id, order_number, account_id, items, subtotal, tax_amount, tax_rate, shipping_cost,
shipping_method, estimated_delivery, discount_amount, discount_code, discount_type, total, customer,
billing_address, shipping_address, status, payment, tracking, created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.AccountID, &o.Items, &o.Subtotal, &o.Tax.Amount, &o.Tax.Rate,
		&o.Shipping.Cost, &o.Shipping.Method, &o.Shipping.EstimatedDelivery, &o.Discount.Amount,
		&o.Discount.Code, &o.Discount.Type, &o.Total, &o.Customer, &o.BillingAddress, &o.ShippingAddress,
		&o.Status, &o.Payment, &o.Tracking, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// NextSequence bumps the per-day counter and returns the new value.
func (r *OrderRepo) NextSequence(ctx context.Context, day time.Time) (int, error) {
	const q = `
INSERT INTO order_counters (day, last_seq) VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE SET last_seq = order_counters.last_seq + 1
RETURNING last_seq`
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	var seq int
	if err := r.db.Pool.QueryRow(ctx, q, d).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// Create inserts the order and its initial history in one transaction.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	q := `INSERT INTO orders (` + orderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`
	items := o.Items
	if items == nil {
		items = []model.OrderItem{}
	}
	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, o.ID, o.OrderNumber, o.AccountID, items, o.Subtotal, o.Tax.Amount,
			o.Tax.Rate, o.Shipping.Cost, o.Shipping.Method, o.Shipping.EstimatedDelivery, o.Discount.Amount,
			o.Discount.Code, o.Discount.Type, o.Total, o.Customer, o.BillingAddress, o.ShippingAddress,
			o.Status, o.Payment, o.Tracking, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("order number %s: %w", o.OrderNumber, errs.ErrAlreadyExists)
			}
			return err
		}
		return appendHistory(ctx, tx, o.ID, 0, o.StatusHistory)
	})
}

func appendHistory(ctx context.Context, q querier, orderID uuid.UUID, from int, entries []model.StatusEntry) error {
	const ins = `INSERT INTO order_status_history (order_id, seq, status, note, actor_id, at) VALUES ($1,$2,$3,$4,$5,$6)`
	for i := from; i < len(entries); i++ {
		e := entries[i]
		if _, err := q.Exec(ctx, ins, orderID, i+1, e.Status, e.Note, e.UpdatedBy, e.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// attachHistory loads history rows for all orders in one query.
func attachHistory(ctx context.Context, q querier, orders []*model.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	byID := make(map[uuid.UUID]*model.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
		o.StatusHistory = []model.StatusEntry{}
	}
	const sel = `SELECT order_id, status, note, actor_id, at FROM order_status_history WHERE order_id = ANY($1) ORDER BY order_id, seq`
	rows, err := q.Query(ctx, sel, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			e  model.StatusEntry
		)
		if err := rows.Scan(&id, &e.Status, &e.Note, &e.UpdatedBy, &e.Timestamp); err != nil {
			return err
		}
		if o, ok := byID[id]; ok {
			o.StatusHistory = append(o.StatusHistory, e)
		}
	}
	return rows.Err()
}

// GetByID loads an order with its history.
func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	q := `SELECT ` + orderCols + ` FROM orders WHERE id=$1`
	o, err := scanOrder(r.db.Pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, err
	}
	if err := attachHistory(ctx, r.db.Pool, []*model.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// Mutate locks the row, applies fn and writes back the order and new history entries.
func (r *OrderRepo) Mutate(ctx context.Context, id uuid.UUID, fn repository.OrderMutation) (*model.Order, error) {
	sel := `SELECT ` + orderCols + ` FROM orders WHERE id=$1 FOR UPDATE`
	const upd = `
UPDATE orders SET
  items=$2, subtotal=$3, tax_amount=$4, tax_rate=$5, shipping_cost=$6, shipping_method=$7,
  estimated_delivery=$8, discount_amount=$9, discount_code=$10, discount_type=$11, total=$12,
  status=$13, payment=$14, tracking=$15, updated_at=$16
WHERE id=$1`

	var out *model.Order
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		o, err := scanOrder(tx.QueryRow(ctx, sel, id))
		if err != nil {
			return err
		}
		if err := attachHistory(ctx, tx, []*model.Order{o}); err != nil {
			return err
		}
		before := len(o.StatusHistory)
		if err := fn(o); err != nil {
			return err
		}
		if len(o.StatusHistory) < before {
			return errors.New("order history is append-only")
		}
		_, err = tx.Exec(ctx, upd, o.ID, o.Items, o.Subtotal, o.Tax.Amount, o.Tax.Rate, o.Shipping.Cost,
			o.Shipping.Method, o.Shipping.EstimatedDelivery, o.Discount.Amount, o.Discount.Code,
			o.Discount.Type, o.Total, o.Status, o.Payment, o.Tracking, o.UpdatedAt)
		if err != nil {
			return err
		}
		if err := appendHistory(ctx, tx, o.ID, before, o.StatusHistory); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByAccount returns the owner's orders newest first.
func (r *OrderRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, page model.Page) ([]model.Order, int, error) {
	return r.List(ctx, model.OrderFilter{AccountID: &accountID}, page)
}

// List returns orders matching f newest first.
func (r *OrderRepo) List(ctx context.Context, f model.OrderFilter, page model.Page) ([]model.Order, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.AccountID != nil {
		w.add("account_id = ?", *f.AccountID)
	}
	if f.From != nil {
		w.add("created_at >= ?", *f.From)
	}
	if f.To != nil {
		w.add("created_at <= ?", *f.To)
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM orders`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	filter := w.sql()
	limit := w.next(page.Limit)
	offset := w.next(page.Offset())
	q := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT %s OFFSET %s`, orderCols, filter, limit, offset)
	rows, err := r.db.Pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	var ptrs []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := attachHistory(ctx, r.db.Pool, ptrs); err != nil {
		return nil, 0, err
	}
	out := make([]model.Order, len(ptrs))
	for i, o := range ptrs {
		out[i] = *o
	}
	return out, total, nil
}
