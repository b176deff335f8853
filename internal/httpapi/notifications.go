package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

type notificationBody struct {
	Notification *model.ProductNotification `json:"notification"`
}

type triggerBody struct {
	service.TriggerResult
	Product *triggeredProduct `json:"product,omitempty"`
}

type triggeredProduct struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Brand string    `json:"brand"`
}

func (a *API) requestNotification(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		ProductID string `json:"productId"`
	}
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	raw := strings.TrimSpace(in.ProductID)
	if raw == "" {
		a.fail(w, r, errs.Invalid("Product ID is required"))
		return
	}
	pid, err := uuid.FromString(raw)
	if err != nil {
		a.fail(w, r, errs.Field("productId", "Invalid productId"))
		return
	}
	n, err := a.notes.Request(r.Context(), acc, pid)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, "You will be notified when this product becomes available", notificationBody{Notification: n})
}

func (a *API) cancelNotification(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	pid, err := pathID(r, "productId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.notes.Cancel(r.Context(), acc.ID, pid); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Notification cancelled successfully", nil)
}

func (a *API) myNotifications(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	list, err := a.notes.ListMine(r.Context(), acc.ID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.NotificationView{}
	}
	ok(w, "Notifications retrieved successfully", map[string]any{"notifications": list})
}

func (a *API) triggerAvailability(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "productId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.notes.Trigger(r.Context(), pid)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	body := triggerBody{TriggerResult: res}
	if res.Sent == 0 && res.Failed == 0 {
		ok(w, "No active notifications found for this product", body)
		return
	}
	if p := res.Product; p != nil {
		body.Product = &triggeredProduct{ID: p.ID, Name: p.Name, Brand: p.Brand}
	}
	ok(w, fmt.Sprintf("Notifications sent to %d users", res.Sent), body)
}

func (a *API) productNotifications(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "productId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	inc := parseBool(r.URL.Query(), "includeInactive")
	list, err := a.notes.ListForProduct(r.Context(), pid, inc != nil && *inc)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.ProductNotification{}
	}
	ok(w, "Product notifications retrieved successfully", map[string]any{"notifications": list})
}
