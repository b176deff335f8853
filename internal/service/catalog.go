package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
	"github.com/and161185/cosmetics-shop/internal/validate"
)

// DefaultProductLimit is the catalog page size when none is requested.
const DefaultProductLimit = 12

// PublicQuery is what anonymous and regular callers may filter by. It always resolves to active products.
type PublicQuery struct {
	Search   string
	Category model.Category
	Brand    string
	Tags     []string
	Featured *bool
	OnSale   *bool
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
	Page     int
	Limit    int
}

// AdminQuery extends PublicQuery for admins.
type AdminQuery struct {
	PublicQuery
	IncludeInactive bool
}

// ProductView is a product with its derived fields.
type ProductView struct {
	*model.Product
	DiscountPercentage int               `json:"discountPercentage"`
	StockStatus        model.StockStatus `json:"stockStatus"`
	IsCurrentlyOnSale  bool              `json:"isCurrentlyOnSale"`
}

// ImageInput is a submitted product image.
type ImageInput struct {
	URL       string `json:"url" validate:"required,imageurl"`
	Alt       string `json:"alt" validate:"max=200"`
	IsPrimary bool   `json:"isPrimary"`
}

// InventoryInput is the submitted stock block.
type InventoryInput struct {
	Quantity          *int  `json:"quantity,omitempty" validate:"omitnil,gte=0"`
	LowStockThreshold *int  `json:"lowStockThreshold,omitempty" validate:"omitnil,gte=0"`
	TrackInventory    *bool `json:"trackInventory,omitempty"`
}

// ProductInput is used for both create and partial update; nil fields are left untouched on update.
type ProductInput struct {
	Name             *string          `json:"name,omitempty" validate:"required,min=1,max=200"`
	Description      *string          `json:"description,omitempty" validate:"required,min=1,max=2000"`
	ShortDescription *string          `json:"shortDescription,omitempty" validate:"omitnil,max=500"`
	Price            *decimal.Decimal `json:"price,omitempty" validate:"required,gte=0"`
	OriginalPrice    *decimal.Decimal `json:"originalPrice,omitempty" validate:"omitnil,gte=0"`
	Category         *model.Category  `json:"category,omitempty" validate:"required,oneof=skincare makeup haircare fragrance bodycare tools sets other"`
	Subcategory      *string          `json:"subcategory,omitempty" validate:"omitnil,max=100"`
	Brand            *string          `json:"brand,omitempty" validate:"required,min=1,max=100"`
	SKU              *string          `json:"sku,omitempty" validate:"required,min=1,max=50,sku"`
	Images           []ImageInput     `json:"images,omitempty" validate:"omitempty,dive"`
	Inventory        *InventoryInput  `json:"inventory,omitempty"`
	Tags             []string         `json:"tags,omitempty" validate:"omitempty,dive,max=50"`
	IsFeatured       *bool            `json:"isFeatured,omitempty"`
	IsOnSale         *bool            `json:"isOnSale,omitempty"`
	SaleStart        *time.Time       `json:"saleStartDate,omitempty"`
	SaleEnd          *time.Time       `json:"saleEndDate,omitempty"`
	Slug             *string          `json:"slug,omitempty" validate:"omitnil,max=200"`
}

// CatalogService manages products.
type CatalogService interface {
	ListPublic(ctx context.Context, q PublicQuery) ([]ProductView, model.Pagination, error)
	// ListAdmin may include deactivated products.
	ListAdmin(ctx context.Context, q AdminQuery) ([]ProductView, model.Pagination, error)
	// Get hides deactivated products from non-admin viewers.
	Get(ctx context.Context, id uuid.UUID, viewer *model.Account) (ProductView, error)
	GetBySlug(ctx context.Context, slug string, viewer *model.Account) (ProductView, error)
	Create(ctx context.Context, in ProductInput) (ProductView, error)
	Update(ctx context.Context, id uuid.UUID, in ProductInput) (ProductView, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// CatalogServiceImpl implements CatalogService.
type CatalogServiceImpl struct {
	products repository.ProductRepository
	log      *zap.Logger
	now      func() time.Time
}

// NewCatalogService constructs CatalogService.
func NewCatalogService(products repository.ProductRepository, log *zap.Logger) *CatalogServiceImpl {
	return &CatalogServiceImpl{products: products, log: log, now: time.Now}
}

var sorts = map[string]repository.ProductSort{
	"-createdAt": repository.SortNewest,
	"createdAt":  repository.SortOldest,
	"price":      repository.SortPriceAsc,
	"-price":     repository.SortPriceDesc,
	"name":       repository.SortNameAsc,
	"-name":      repository.SortNameDesc,
}

func (q PublicQuery) filter(states ...model.Lifecycle) repository.ProductFilter {
	sort, ok := sorts[q.Sort]
	if !ok {
		sort = repository.SortNewest
	}
	var tags []string
	for _, t := range q.Tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return repository.ProductFilter{
		States:   states,
		Search:   strings.TrimSpace(q.Search),
		Category: q.Category,
		Brand:    strings.TrimSpace(q.Brand),
		Tags:     tags,
		Featured: q.Featured,
		OnSale:   q.OnSale,
		MinPrice: q.MinPrice,
		MaxPrice: q.MaxPrice,
		Sort:     sort,
	}
}

// ListPublic lists active products.
func (s *CatalogServiceImpl) ListPublic(ctx context.Context, q PublicQuery) ([]ProductView, model.Pagination, error) {
	return s.list(ctx, q.filter(model.LifecycleActive), q.Page, q.Limit)
}

// ListAdmin lists products for an admin.
func (s *CatalogServiceImpl) ListAdmin(ctx context.Context, q AdminQuery) ([]ProductView, model.Pagination, error) {
	states := []model.Lifecycle{model.LifecycleActive}
	if q.IncludeInactive {
		states = append(states, model.LifecycleDeactivated)
	}
	return s.list(ctx, q.filter(states...), q.Page, q.Limit)
}

func (s *CatalogServiceImpl) list(ctx context.Context, f repository.ProductFilter, number, limit int) ([]ProductView, model.Pagination, error) {
	page := model.NewPage(number, limit, DefaultProductLimit)
	items, total, err := s.products.List(ctx, f, page)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	now := s.now()
	out := make([]ProductView, len(items))
	for i := range items {
		out[i] = viewOf(&items[i], now)
	}
	return out, model.Paginate(page, total), nil
}

var errProductNotFound = errs.With(errs.ErrNotFound, "Product not found")

// Get loads a product by id.
func (s *CatalogServiceImpl) Get(ctx context.Context, id uuid.UUID, viewer *model.Account) (ProductView, error) {
	p, err := s.products.GetByID(ctx, id)
	return s.visible(p, err, viewer)
}

// GetBySlug loads a product by slug.
func (s *CatalogServiceImpl) GetBySlug(ctx context.Context, slug string, viewer *model.Account) (ProductView, error) {
	p, err := s.products.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	return s.visible(p, err, viewer)
}

func (s *CatalogServiceImpl) visible(p *model.Product, err error, viewer *model.Account) (ProductView, error) {
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ProductView{}, errProductNotFound
		}
		return ProductView{}, err
	}
	if !p.Active() && (viewer == nil || !viewer.IsAdmin()) {
		return ProductView{}, errProductNotFound
	}
	return viewOf(p, s.now()), nil
}

// Create validates, normalizes and stores a new active product.
func (s *CatalogServiceImpl) Create(ctx context.Context, in ProductInput) (ProductView, error) {
	trimInput(&in)
	if err := validate.Struct(in); err != nil {
		return ProductView{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return ProductView{}, err
	}
	now := s.now().UTC()
	p := &model.Product{
		ID:        id,
		State:     model.LifecycleActive,
		Inventory: model.Inventory{LowStockThreshold: model.DefaultLowStockThreshold, TrackInventory: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(p, in)
	normalize(p)
	if err := s.products.Create(ctx, p); err != nil {
		return ProductView{}, skuConflict(err)
	}
	s.log.Info("product created", zap.String("id", p.ID.String()), zap.String("sku", p.SKU))
	return viewOf(p, s.now()), nil
}

// Import creates the product or replaces the stored one with the same SKU.
// It backs catalog seeding; the stored ID is kept on replace.
func (s *CatalogServiceImpl) Import(ctx context.Context, in ProductInput) (ProductView, error) {
	trimInput(&in)
	if err := validate.Struct(in); err != nil {
		return ProductView{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return ProductView{}, err
	}
	now := s.now().UTC()
	p := &model.Product{
		ID:        id,
		State:     model.LifecycleActive,
		Inventory: model.Inventory{LowStockThreshold: model.DefaultLowStockThreshold, TrackInventory: true},
		CreatedAt: now,
		UpdatedAt: now,
	}
	apply(p, in)
	normalize(p)
	if err := s.products.UpsertBySKU(ctx, p); err != nil {
		return ProductView{}, err
	}
	return viewOf(p, s.now()), nil
}

// Update applies a partial patch over the stored product and re-validates the result.
func (s *CatalogServiceImpl) Update(ctx context.Context, id uuid.UUID, in ProductInput) (ProductView, error) {
	trimInput(&in)
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ProductView{}, errProductNotFound
		}
		return ProductView{}, err
	}
	apply(p, in)
	normalize(p)
	if err := validate.Struct(inputOf(p)); err != nil {
		return ProductView{}, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return ProductView{}, errProductNotFound
		}
		return ProductView{}, skuConflict(err)
	}
	return viewOf(p, s.now()), nil
}

// SoftDelete deactivates a product.
func (s *CatalogServiceImpl) SoftDelete(ctx context.Context, id uuid.UUID) error {
	err := s.products.SetState(ctx, id, model.LifecycleDeactivated)
	if errors.Is(err, errs.ErrNotFound) {
		return errProductNotFound
	}
	return err
}

func viewOf(p *model.Product, now time.Time) ProductView {
	return ProductView{
		Product:            p,
		DiscountPercentage: p.DiscountPercentage(),
		StockStatus:        p.StockStatus(),
		IsCurrentlyOnSale:  p.OnSaleAt(now),
	}
}

func skuConflict(err error) error {
	if _, ok := errs.PublicMessage(err); !ok && errors.Is(err, errs.ErrAlreadyExists) {
		return errs.With(errs.ErrAlreadyExists, "SKU already exists")
	}
	return err
}

func trimPtr(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func trimInput(in *ProductInput) {
	for _, s := range []*string{in.Name, in.Description, in.ShortDescription, in.Subcategory, in.Brand, in.SKU, in.Slug} {
		trimPtr(s)
	}
	if in.SKU != nil {
		*in.SKU = strings.ToUpper(*in.SKU)
	}
	if in.Category != nil {
		*in.Category = model.Category(strings.ToLower(string(*in.Category)))
	}
}

func apply(p *model.Product, in ProductInput) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.ShortDescription != nil {
		p.ShortDescription = *in.ShortDescription
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		op := *in.OriginalPrice
		p.OriginalPrice = &op
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Subcategory != nil {
		p.Subcategory = *in.Subcategory
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.SKU != nil {
		p.SKU = *in.SKU
	}
	if in.Images != nil {
		p.Images = make([]model.Image, len(in.Images))
		for i, im := range in.Images {
			p.Images[i] = model.Image{URL: strings.TrimSpace(im.URL), Alt: strings.TrimSpace(im.Alt), IsPrimary: im.IsPrimary}
		}
	}
	if inv := in.Inventory; inv != nil {
		if inv.Quantity != nil {
			p.Inventory.Quantity = *inv.Quantity
		}
		if inv.LowStockThreshold != nil {
			p.Inventory.LowStockThreshold = *inv.LowStockThreshold
		}
		if inv.TrackInventory != nil {
			p.Inventory.TrackInventory = *inv.TrackInventory
		}
	}
	if in.Tags != nil {
		p.Tags = append([]string(nil), in.Tags...)
	}
	if in.IsFeatured != nil {
		p.IsFeatured = *in.IsFeatured
	}
	if in.IsOnSale != nil {
		p.IsOnSale = *in.IsOnSale
	}
	if in.SaleStart != nil {
		p.SaleStart = in.SaleStart
	}
	if in.SaleEnd != nil {
		p.SaleEnd = in.SaleEnd
	}
	if in.Slug != nil {
		p.Slug = *in.Slug
	}
}

func normalize(p *model.Product) {
	if p.Tags == nil {
		p.Tags = []string{}
	}
	p.NormalizeTags()
	if p.Images == nil {
		p.Images = []model.Image{}
	}
	p.NormalizeImages()
	if p.Slug == "" {
		p.Slug = model.Slugify(p.Name)
	} else {
		p.Slug = model.Slugify(p.Slug)
	}
}

// inputOf turns a merged product back into an input so update runs the create rules.
func inputOf(p *model.Product) ProductInput {
	cat := p.Category
	qty, low, track := p.Inventory.Quantity, p.Inventory.LowStockThreshold, p.Inventory.TrackInventory
	imgs := make([]ImageInput, len(p.Images))
	for i, im := range p.Images {
		imgs[i] = ImageInput{URL: im.URL, Alt: im.Alt, IsPrimary: im.IsPrimary}
	}
	price := p.Price
	return ProductInput{
		Name:             &p.Name,
		Description:      &p.Description,
		ShortDescription: &p.ShortDescription,
		Price:            &price,
		OriginalPrice:    p.OriginalPrice,
		Category:         &cat,
		Subcategory:      &p.Subcategory,
		Brand:            &p.Brand,
		SKU:              &p.SKU,
		Images:           imgs,
		Inventory:        &InventoryInput{Quantity: &qty, LowStockThreshold: &low, TrackInventory: &track},
		Tags:             p.Tags,
		Slug:             &p.Slug,
	}
}
