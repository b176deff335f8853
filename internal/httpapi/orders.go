package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

type orderBody struct {
	Order *model.Order `json:"order"`
}

func (a *API) createOrder(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.CreateOrderInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.orders.Create(r.Context(), acc, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, "Order created successfully", orderBody{Order: o})
}

func (a *API) createOrderFor(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	target, err := pathID(r, "userId")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in service.CreateOrderInput
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.orders.CreateForAccount(r.Context(), acc, target, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	created(w, "Order created for user successfully", orderBody{Order: o})
}

func (a *API) myOrders(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	items, page, err := a.orders.ListMine(r.Context(), acc, parseInt(q, "page"), parseInt(q, "limit"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []model.Order{}
	}
	ok(w, "Orders fetched", pageBody[model.Order]{Items: items, Pagination: page})
}

// parseDate reads the first non-empty key and accepts RFC 3339 or a bare date.
func parseDate(q url.Values, keys ...string) (*time.Time, error) {
	var key, raw string
	for _, key = range keys {
		if raw = strings.TrimSpace(q.Get(key)); raw != "" {
			break
		}
	}
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, errs.Field(key, "Invalid date")
}

func orderFilter(q url.Values) (model.OrderFilter, error) {
	f := model.OrderFilter{Status: model.OrderStatus(strings.TrimSpace(q.Get("status")))}
	if raw := strings.TrimSpace(q.Get("userId")); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			return f, errs.Field("userId", "Invalid userId")
		}
		f.AccountID = &id
	}
	var err error
	if f.From, err = parseDate(q, "startDate", "from"); err != nil {
		return f, err
	}
	if f.To, err = parseDate(q, "endDate", "to"); err != nil {
		return f, err
	}
	return f, nil
}

func (a *API) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := orderFilter(q)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, page, err := a.orders.ListAll(r.Context(), f, parseInt(q, "page"), parseInt(q, "limit"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if items == nil {
		items = []model.Order{}
	}
	ok(w, "Orders fetched", pageBody[model.Order]{Items: items, Pagination: page})
}

func (a *API) getOrder(w http.ResponseWriter, r *http.Request) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := a.orders.Get(r.Context(), id, acc)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Order fetched", orderBody{Order: o})
}

// adminMutation decodes body into in and applies fn to the order in the path.
func adminMutation[T any](a *API, w http.ResponseWriter, r *http.Request, msg string,
	fn func(id uuid.UUID, actor *model.Account, in T) (*model.Order, error)) {
	acc, err := caller(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in T
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	o, err := fn(id, acc, in)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, msg, orderBody{Order: o})
}

func (a *API) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	adminMutation(a, w, r, "Order status updated", func(id uuid.UUID, actor *model.Account, in service.StatusInput) (*model.Order, error) {
		return a.orders.UpdateStatus(r.Context(), id, actor, in)
	})
}

func (a *API) addTracking(w http.ResponseWriter, r *http.Request) {
	adminMutation(a, w, r, "Tracking added", func(id uuid.UUID, actor *model.Account, in service.TrackingInput) (*model.Order, error) {
		return a.orders.AddTracking(r.Context(), id, actor, in)
	})
}

func (a *API) processPayment(w http.ResponseWriter, r *http.Request) {
	adminMutation(a, w, r, "Payment processed", func(id uuid.UUID, actor *model.Account, in service.PaymentInput) (*model.Order, error) {
		return a.orders.ProcessPayment(r.Context(), id, actor, in)
	})
}

func (a *API) deliveryInstructions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var in struct {
		Instructions string `json:"instructions"`
	}
	if err := decode(w, r, &in); err != nil {
		a.fail(w, r, err)
		return
	}
	if strings.TrimSpace(in.Instructions) == "" {
		a.fail(w, r, errs.Field("instructions", "Instructions are required"))
		return
	}
	if err := a.orders.SendDeliveryInstructions(r.Context(), id, in.Instructions); err != nil {
		a.fail(w, r, err)
		return
	}
	ok(w, "Delivery instructions sent", nil)
}
