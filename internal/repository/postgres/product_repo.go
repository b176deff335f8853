package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

// ProductRepo implements ProductRepository using PostgreSQL.
type ProductRepo struct{ db *DB }

// NewProductRepo constructs a product repository.
func NewProductRepo(db *DB) *ProductRepo { return &ProductRepo{db: db} }

const productCols = `id, name, description, short_description, price, original_price, category, subcategory,
brand, sku, images, quantity, low_stock_threshold, track_inventory, tags, state, is_featured, is_on_sale,
sale_start, sale_end, slug, created_at, updated_at`

var productOrder = map[repository.ProductSort]string{
	repository.SortNewest:    "created_at DESC",
	repository.SortOldest:    "created_at ASC",
	repository.SortPriceAsc:  "price ASC, created_at DESC",
	repository.SortPriceDesc: "price DESC, created_at DESC",
	repository.SortNameAsc:   "name ASC",
	repository.SortNameDesc:  "name DESC",
}

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.ShortDescription, &p.Price, &p.OriginalPrice,
		&p.Category, &p.Subcategory, &p.Brand, &p.SKU, &p.Images, &p.Inventory.Quantity,
		&p.Inventory.LowStockThreshold, &p.Inventory.TrackInventory, &p.Tags, &p.State, &p.IsFeatured,
		&p.IsOnSale, &p.SaleStart, &p.SaleEnd, &p.Slug, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func productArgs(p *model.Product) []any {
	images := p.Images
	if images == nil {
		images = []model.Image{}
	}
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return []any{p.ID, p.Name, p.Description, p.ShortDescription, p.Price, p.OriginalPrice,
		p.Category, p.Subcategory, p.Brand, p.SKU, images, p.Inventory.Quantity,
		p.Inventory.LowStockThreshold, p.Inventory.TrackInventory, tags, p.State, p.IsFeatured,
		p.IsOnSale, p.SaleStart, p.SaleEnd, p.Slug, p.CreatedAt, p.UpdatedAt}
}

func mapProductWriteErr(err error) error {
	if isUniqueViolation(err) {
		return errs.With(errs.ErrAlreadyExists, "SKU already exists")
	}
	return err
}

// Create inserts a product row.
func (r *ProductRepo) Create(ctx context.Context, p *model.Product) error {
	q := `INSERT INTO products (` + productCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	_, err := r.db.Pool.Exec(ctx, q, productArgs(p)...)
	return mapProductWriteErr(err)
}

// Update overwrites the mutable columns; created_at is kept.
func (r *ProductRepo) Update(ctx context.Context, p *model.Product) error {
	const q = `
UPDATE products SET
  name=$2, description=$3, short_description=$4, price=$5, original_price=$6, category=$7, subcategory=$8,
  brand=$9, sku=$10, images=$11, quantity=$12, low_stock_threshold=$13, track_inventory=$14, tags=$15,
  state=$16, is_featured=$17, is_on_sale=$18, sale_start=$19, sale_end=$20, slug=$21, updated_at=$22
WHERE id=$1`
	args := productArgs(p)
	args = append(args[:21], p.UpdatedAt) // drop created_at
	tag, err := r.db.Pool.Exec(ctx, q, args...)
	if err != nil {
		return mapProductWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// UpsertBySKU inserts a product or replaces the one holding the same SKU.
func (r *ProductRepo) UpsertBySKU(ctx context.Context, p *model.Product) error {
	q := `INSERT INTO products (` + productCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)
ON CONFLICT (sku) DO UPDATE SET
  name=EXCLUDED.name, description=EXCLUDED.description, short_description=EXCLUDED.short_description,
  price=EXCLUDED.price, original_price=EXCLUDED.original_price, category=EXCLUDED.category,
  subcategory=EXCLUDED.subcategory, brand=EXCLUDED.brand, images=EXCLUDED.images, quantity=EXCLUDED.quantity,
  low_stock_threshold=EXCLUDED.low_stock_threshold, track_inventory=EXCLUDED.track_inventory,
  tags=EXCLUDED.tags, state=EXCLUDED.state, is_featured=EXCLUDED.is_featured, is_on_sale=EXCLUDED.is_on_sale,
  sale_start=EXCLUDED.sale_start, sale_end=EXCLUDED.sale_end, slug=EXCLUDED.slug, updated_at=EXCLUDED.updated_at
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, productArgs(p)...).Scan(&p.ID)
}

// GetByID selects a product by ID regardless of state.
func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE id=$1`
	return scanProduct(r.db.Pool.QueryRow(ctx, q, id))
}

// GetBySlug selects the newest product with the slug regardless of state.
func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
	q := `SELECT ` + productCols + ` FROM products WHERE slug=$1 ORDER BY created_at DESC LIMIT 1`
	return scanProduct(r.db.Pool.QueryRow(ctx, q, slug))
}

// GetMany loads several products in one round trip.
func (r *ProductRepo) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	out := make(map[uuid.UUID]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	q := `SELECT ` + productCols + ` FROM products WHERE id = ANY($1)`
	rows, err := r.db.Pool.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

// List returns one page of products matching f plus the total match count.
func (r *ProductRepo) List(ctx context.Context, f repository.ProductFilter, page model.Page) ([]model.Product, int, error) {
	if len(f.States) == 0 {
		return nil, 0, errors.New("product filter: states must be explicit")
	}
	order, ok := productOrder[f.Sort]
	if !ok {
		order = productOrder[repository.SortNewest]
	}

	var w where
	states := make([]string, len(f.States))
	for i, s := range f.States {
		states[i] = string(s)
	}
	w.add("state = ANY(?)", states)
	if f.Search != "" {
		w.add("(name ILIKE ? OR description ILIKE ? OR brand ILIKE ?)", containsPattern(f.Search))
	}
	if f.Category != "" {
		w.add("category = ?", string(f.Category))
	}
	if f.Brand != "" {
		w.add("lower(brand) = lower(?)", f.Brand)
	}
	if len(f.Tags) > 0 {
		w.add("tags && ?", f.Tags)
	}
	if f.Featured != nil {
		w.add("is_featured = ?", *f.Featured)
	}
	if f.OnSale != nil {
		w.add("is_on_sale = ?", *f.OnSale)
	}
	if f.MinPrice != nil {
		w.add("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		w.add("price <= ?", *f.MaxPrice)
	}

	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM products`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	filter := w.sql()
	limit := w.next(page.Limit)
	offset := w.next(page.Offset())
	q := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY %s LIMIT %s OFFSET %s`, productCols, filter, order, limit, offset)
	rows, err := r.db.Pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Product, 0, page.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// SetState changes the lifecycle state.
func (r *ProductRepo) SetState(ctx context.Context, id uuid.UUID, state model.Lifecycle) error {
	const q = `UPDATE products SET state=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, state)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
