package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

// catalogFile is the seed document.
type catalogFile struct {
	Admin    *adminEntry    `yaml:"admin"`
	Products []productEntry `yaml:"products"`
}

type adminEntry struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type imageEntry struct {
	URL     string `yaml:"url"`
	Alt     string `yaml:"alt"`
	Primary bool   `yaml:"primary"`
}

type productEntry struct {
	Name             string       `yaml:"name"`
	Description      string       `yaml:"description"`
	ShortDescription string       `yaml:"short_description"`
	Price            string       `yaml:"price"`
	OriginalPrice    string       `yaml:"original_price"`
	Category         string       `yaml:"category"`
	Subcategory      string       `yaml:"subcategory"`
	Brand            string       `yaml:"brand"`
	SKU              string       `yaml:"sku"`
	Images           []imageEntry `yaml:"images"`
	Quantity         *int         `yaml:"quantity"`
	LowStock         *int         `yaml:"low_stock_threshold"`
	Tags             []string     `yaml:"tags"`
	Featured         bool         `yaml:"featured"`
	OnSale           bool         `yaml:"on_sale"`
	SaleStart        string       `yaml:"sale_start"`
	SaleEnd          string       `yaml:"sale_end"`
}

// parseCatalog decodes r strictly; unknown keys are errors.
func parseCatalog(r io.Reader) (catalogFile, error) {
	var f catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return catalogFile{}, fmt.Errorf("decode catalog: %w", err)
	}
	return f, nil
}

func (a *adminEntry) input() service.RegisterInput {
	return service.RegisterInput{Name: a.Name, Email: a.Email, Password: a.Password}
}

// input converts the entry into a catalog input; field rules are enforced by the service.
func (p productEntry) input() (service.ProductInput, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
	if err != nil {
		return service.ProductInput{}, fmt.Errorf("%s: price: %w", p.SKU, err)
	}
	in := service.ProductInput{
		Name:        &p.Name,
		Description: &p.Description,
		Price:       &price,
		Category:    (*model.Category)(&p.Category),
		Brand:       &p.Brand,
		SKU:         &p.SKU,
		Tags:        p.Tags,
		IsFeatured:  &p.Featured,
		IsOnSale:    &p.OnSale,
	}
	if p.ShortDescription != "" {
		in.ShortDescription = &p.ShortDescription
	}
	if p.Subcategory != "" {
		in.Subcategory = &p.Subcategory
	}
	if p.OriginalPrice != "" {
		op, err := decimal.NewFromString(strings.TrimSpace(p.OriginalPrice))
		if err != nil {
			return service.ProductInput{}, fmt.Errorf("%s: original_price: %w", p.SKU, err)
		}
		in.OriginalPrice = &op
	}
	for _, im := range p.Images {
		in.Images = append(in.Images, service.ImageInput{URL: im.URL, Alt: im.Alt, IsPrimary: im.Primary})
	}
	if p.Quantity != nil || p.LowStock != nil {
		in.Inventory = &service.InventoryInput{Quantity: p.Quantity, LowStockThreshold: p.LowStock}
	}
	if in.SaleStart, err = optDate(p.SaleStart); err != nil {
		return service.ProductInput{}, fmt.Errorf("%s: sale_start: %w", p.SKU, err)
	}
	if in.SaleEnd, err = optDate(p.SaleEnd); err != nil {
		return service.ProductInput{}, fmt.Errorf("%s: sale_end: %w", p.SKU, err)
	}
	return in, nil
}

// optDate accepts RFC 3339 timestamps or plain dates.
func optDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}
