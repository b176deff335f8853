package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
)

// Category is the fixed product taxonomy.
type Category string

const (
	CategorySkincare  Category = "skincare"
	CategoryMakeup    Category = "makeup"
	CategoryHaircare  Category = "haircare"
	CategoryFragrance Category = "fragrance"
	CategoryBodycare  Category = "bodycare"
	CategoryTools     Category = "tools"
	CategorySets      Category = "sets"
	CategoryOther     Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategorySkincare, CategoryMakeup, CategoryHaircare, CategoryFragrance,
	CategoryBodycare, CategoryTools, CategorySets, CategoryOther,
}

// ValidCategory reports whether c is in Categories.
func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// StockStatus is derived from inventory, never stored.
type StockStatus string

const (
	InStock    StockStatus = "in-stock"
	LowStock   StockStatus = "low-stock"
	OutOfStock StockStatus = "out-of-stock"
)

// DefaultLowStockThreshold applies when a product is created without one.
const DefaultLowStockThreshold = 10

// Image is a product media entry.
type Image struct {
	URL       string `json:"url"`
	Alt       string `json:"alt"`
	IsPrimary bool   `json:"isPrimary"`
}

// Inventory holds stock counters.
type Inventory struct {
	Quantity          int  `json:"quantity"`
	LowStockThreshold int  `json:"lowStockThreshold"`
	TrackInventory    bool `json:"trackInventory"`
}

// Product is a catalog entry.
type Product struct {
	ID               uuid.UUID        `json:"id"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	ShortDescription string           `json:"shortDescription,omitempty"`
	Price            decimal.Decimal  `json:"price"`
	OriginalPrice    *decimal.Decimal `json:"originalPrice,omitempty"`
	Category         Category         `json:"category"`
	Subcategory      string           `json:"subcategory,omitempty"`
	Brand            string           `json:"brand"`
	SKU              string           `json:"sku"` // unique, uppercase
	Images           []Image          `json:"images"`
	Inventory        Inventory        `json:"inventory"`
	Tags             []string         `json:"tags"`
	State            Lifecycle        `json:"state"`
	IsFeatured       bool             `json:"isFeatured"`
	IsOnSale         bool             `json:"isOnSale"`
	SaleStart        *time.Time       `json:"saleStartDate,omitempty"`
	SaleEnd          *time.Time       `json:"saleEndDate,omitempty"`
	Slug             string           `json:"slug"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Active reports whether the product is visible to the public.
func (p *Product) Active() bool { return p.State == LifecycleActive }

// NormalizeImages keeps exactly one primary image when images exist:
// the first flagged one wins, and the first image is promoted when none is flagged.
func (p *Product) NormalizeImages() {
	seen := false
	for i := range p.Images {
		if p.Images[i].IsPrimary {
			if seen {
				p.Images[i].IsPrimary = false
			}
			seen = true
		}
	}
	if !seen && len(p.Images) > 0 {
		p.Images[0].IsPrimary = true
	}
}

// PrimaryImage returns the primary image, falling back to the first.
func (p *Product) PrimaryImage() (Image, bool) {
	for _, im := range p.Images {
		if im.IsPrimary {
			return im, true
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0], true
	}
	return Image{}, false
}

// NormalizeTags lowercases, trims and drops empty tags.
func (p *Product) NormalizeTags() {
	out := p.Tags[:0]
	for _, t := range p.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	p.Tags = out
}

// DiscountPercentage is the rounded percent off the original price, or 0.
func (p *Product) DiscountPercentage() int {
	if p.OriginalPrice == nil || !p.OriginalPrice.GreaterThan(p.Price) {
		return 0
	}
	orig := *p.OriginalPrice
	return int(orig.Sub(p.Price).Div(orig).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}

// StockStatus derives availability from inventory counters.
func (p *Product) StockStatus() StockStatus {
	inv := p.Inventory
	switch {
	case !inv.TrackInventory:
		return InStock
	case inv.Quantity <= 0:
		return OutOfStock
	case inv.Quantity <= inv.LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

// OnSaleAt reports whether the sale flag is set and now falls inside the optional window.
func (p *Product) OnSaleAt(now time.Time) bool {
	if !p.IsOnSale {
		return false
	}
	if p.SaleStart != nil && now.Before(*p.SaleStart) {
		return false
	}
	if p.SaleEnd != nil && now.After(*p.SaleEnd) {
		return false
	}
	return true
}

// HasStock reports positive quantity on hand.
func (p *Product) HasStock() bool { return p.Inventory.Quantity > 0 }

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaces   = regexp.MustCompile(`\s+`)
	slugDashes   = regexp.MustCompile(`-+`)
	skuPattern   = regexp.MustCompile(`^[A-Z0-9\-_]+$`)
	imageURLExpr = regexp.MustCompile(`^(https?://.+|data:image/(jpeg|jpg|png|gif|webp|svg\+xml);base64,.+)$`)
)

// Slugify derives a URL-safe slug from a product name.
func Slugify(name string) string {
	s := strings.ToLower(name)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(strings.TrimSpace(s), "-")
	return slugDashes.ReplaceAllString(s, "-")
}

// ValidSKU reports whether an already uppercased SKU matches the allowed alphabet.
func ValidSKU(sku string) bool { return skuPattern.MatchString(sku) }

// ValidImageURL accepts http(s) URLs and base64 image data URLs.
func ValidImageURL(u string) bool { return imageURLExpr.MatchString(u) }

// ProductSummary is the slice of product data shown next to subscriptions.
type ProductSummary struct {
	ID    uuid.UUID       `json:"id"`
	Name  string          `json:"name"`
	Brand string          `json:"brand"`
	Price decimal.Decimal `json:"price"`
	Slug  string          `json:"slug"`
	Image *Image          `json:"image,omitempty"`
}
