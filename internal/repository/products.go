package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// ProductSort is a whitelisted ordering.
type ProductSort string

const (
	SortNewest    ProductSort = "-createdAt"
	SortOldest    ProductSort = "createdAt"
	SortPriceAsc  ProductSort = "price"
	SortPriceDesc ProductSort = "-price"
	SortNameAsc   ProductSort = "name"
	SortNameDesc  ProductSort = "-name"
)

// ProductFilter is the storage-level predicate set. States is always explicit.
type ProductFilter struct {
	States   []model.Lifecycle
	Search   string
	Category model.Category
	Brand    string
	Tags     []string
	Featured *bool
	OnSale   *bool
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     ProductSort
}

// ProductRepository provides access to the catalog.
type ProductRepository interface {
	// Create inserts a product; a taken SKU yields errs.ErrAlreadyExists.
	Create(ctx context.Context, p *model.Product) error
	// Update overwrites all mutable columns of an existing product.
	Update(ctx context.Context, p *model.Product) error
	// GetByID loads a product regardless of state.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	// GetBySlug loads a product regardless of state.
	GetBySlug(ctx context.Context, slug string) (*model.Product, error)
	// GetMany loads products by IDs; missing IDs are simply absent from the map.
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error)
	// List returns a filtered page and the total count of matches.
	List(ctx context.Context, f ProductFilter, page model.Page) ([]model.Product, int, error)
	// SetState changes the lifecycle state.
	SetState(ctx context.Context, id uuid.UUID, state model.Lifecycle) error
	// UpsertBySKU inserts or replaces a product keyed by SKU (catalog seeding).
	UpsertBySKU(ctx context.Context, p *model.Product) error
}
