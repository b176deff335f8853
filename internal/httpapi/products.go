package httpapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

type productBody struct {
	Product service.ProductView `json:"product"`
}

type pageBody[T any] struct {
	Items      []T              `json:"items"`
	Pagination model.Pagination `json:"pagination"`
}

// parseBool accepts true/1/yes/on. Absent values yield nil.
func parseBool(q url.Values, key string) *bool {
	if !q.Has(key) {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(q.Get(key))) {
	case "true", "1", "yes", "on":
		v := true
		return &v
	default:
		v := false
		return &v
	}
}

func parseInt(q url.Values, key string) int {
	n, _ := strconv.Atoi(q.Get(key))
	return n
}

func parsePrice(q url.Values, key string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, errs.Field(key, "Invalid "+key)
	}
	return &d, nil
}

func publicQuery(q url.Values) (service.PublicQuery, error) {
	pq := service.PublicQuery{
		Search:   strings.TrimSpace(q.Get("search")),
		Category: model.Category(strings.ToLower(strings.TrimSpace(q.Get("category")))),
		Brand:    strings.TrimSpace(q.Get("brand")),
		Featured: parseBool(q, "isFeatured"),
		OnSale:   parseBool(q, "isOnSale"),
		Sort:     q.Get("sort"),
		Page:     parseInt(q, "page"),
		Limit:    parseInt(q, "limit"),
	}
	for _, raw := range q["tags"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				pq.Tags = append(pq.Tags, t)
			}
		}
	}
	var err error
	if pq.MinPrice, err = parsePrice(q, "minPrice"); err != nil {
		return pq, err
	}
	if pq.MaxPrice, err = parsePrice(q, "maxPrice"); err != nil {
		return pq, err
	}
	return pq, nil
}

// listProducts serves the public listing; admins may add includeInactive.
func (a *API) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pq, err := publicQuery(q)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	var (
		items []service.ProductView
		page  model.Pagination
	)
	if acc := viewer(r); acc != nil && acc.IsAdmin() {
		inc := parseBool(q, "includeInactive")
		items, page, err = a.catalog.ListAdmin(r.Context(), service.AdminQuery{
			PublicQuery:     pq,
			IncludeInactive: inc != nil && *inc,
		})
	} else {
		items, page, err = a.catalog.ListPublic(r.Context(), pq)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []service.ProductView{}
	}
	ok(w, "Products fetched successfully", pageBody[service.ProductView]{Items: items, Pagination: page})
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	v, err := a.catalog.Get(r.Context(), id, viewer(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Product fetched successfully", productBody{Product: v})
}

func (a *API) productBySlug(w http.ResponseWriter, r *http.Request) {
	v, err := a.catalog.GetBySlug(r.Context(), mux.Vars(r)["slug"], viewer(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Product fetched successfully", productBody{Product: v})
}

func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	v, err := a.catalog.Create(r.Context(), in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, "Product created successfully", productBody{Product: v})
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.ProductInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	v, err := a.catalog.Update(r.Context(), id, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Product updated successfully", productBody{Product: v})
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.catalog.SoftDelete(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Product deactivated successfully", nil)
}
