// Package httpapi exposes the storefront REST API.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/limiter"
	"github.com/and161185/cosmetics-shop/internal/metrics"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/service"
)

const (
	authAttempts    = 5
	contactAttempts = 3
	attemptWindow   = 15 * time.Minute
)

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Auth          service.AuthService
	Catalog       service.CatalogService
	Orders        service.OrderService
	Notifications service.NotificationService
	Contact       service.ContactService
	Limits        limiter.Store
	Log           *zap.Logger
	Env           string
	CORSOrigins   []string
	Throttle      *Throttle // nil disables the per-IP throttle
}

// API holds handler state.
type API struct {
	auth    service.AuthService
	catalog service.CatalogService
	orders  service.OrderService
	notes   service.NotificationService
	contact service.ContactService
	limits  limiter.Store
	log     *zap.Logger
	env     string
	dev     bool
	started time.Time
	now     func() time.Time
}

// New builds the API from deps.
func New(d Deps) *API {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	limits := d.Limits
	if limits == nil {
		limits = limiter.NewMemory()
	}
	return &API{
		auth:    d.Auth,
		catalog: d.Catalog,
		orders:  d.Orders,
		notes:   d.Notifications,
		contact: d.Contact,
		limits:  limits,
		log:     log,
		env:     d.Env,
		dev:     d.Env == "development",
		started: time.Now(),
		now:     time.Now,
	}
}

type mw = func(http.Handler) http.Handler

// chain wraps h so that the first middleware runs first.
func chain(h http.HandlerFunc, mws ...mw) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// NewRouter wires every route behind CORS, logging, metrics and panic recovery.
func NewRouter(d Deps) http.Handler {
	a := New(d)
	r := mux.NewRouter()
	r.Use(Logging(a.log), metrics.InstrumentHandler, Recover(a.log))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failMsg(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		failMsg(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", a.health).Methods(http.MethodGet)
	r.HandleFunc("/", a.index).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if d.Throttle != nil {
		api.Use(d.Throttle.Handler)
	}

	authLimit := a.RateLimit(Limit{Scope: "auth", Max: authAttempts, Window: attemptWindow, ByEmail: true})
	admin := Authorize(model.RoleAdmin)

	au := api.PathPrefix("/auth").Subrouter()
	au.Handle("/register", chain(a.register, authLimit)).Methods(http.MethodPost)
	au.Handle("/login", chain(a.login, authLimit)).Methods(http.MethodPost)
	au.HandleFunc("/refresh", a.refresh).Methods(http.MethodPost)
	au.Handle("/logout", chain(a.logout, a.Authenticate)).Methods(http.MethodPost)
	au.Handle("/forgot-password", chain(a.forgotPassword, authLimit)).Methods(http.MethodPost)
	au.HandleFunc("/reset-password", a.resetPassword).Methods(http.MethodPost)
	au.HandleFunc("/verify-email", a.verifyEmail).Methods(http.MethodPost)
	au.Handle("/me", chain(a.me, a.Authenticate)).Methods(http.MethodGet)
	au.Handle("/profile", chain(a.updateProfile, a.Authenticate)).Methods(http.MethodPut)
	au.Handle("/change-password", chain(a.changePassword, a.Authenticate)).Methods(http.MethodPut)
	au.Handle("/users/{id}/state", chain(a.setAccountState, a.Authenticate, admin)).Methods(http.MethodPut)

	pr := api.PathPrefix("/products").Subrouter()
	pr.Handle("", chain(a.listProducts, a.OptionalAuth)).Methods(http.MethodGet)
	pr.Handle("/slug/{slug}", chain(a.productBySlug, a.OptionalAuth)).Methods(http.MethodGet)
	pr.Handle("/{id}", chain(a.getProduct, a.OptionalAuth)).Methods(http.MethodGet)
	pr.Handle("", chain(a.createProduct, a.Authenticate, admin)).Methods(http.MethodPost)
	pr.Handle("/{id}", chain(a.updateProduct, a.Authenticate, admin)).Methods(http.MethodPut)
	pr.Handle("/{id}", chain(a.deleteProduct, a.Authenticate, admin)).Methods(http.MethodDelete)

	or := api.PathPrefix("/orders").Subrouter()
	or.Handle("", chain(a.createOrder, a.Authenticate, Authorize(model.RoleUser))).Methods(http.MethodPost)
	or.Handle("/user/{userId}", chain(a.createOrderFor, a.Authenticate, admin)).Methods(http.MethodPost)
	or.Handle("/mine", chain(a.myOrders, a.Authenticate)).Methods(http.MethodGet)
	or.Handle("", chain(a.listOrders, a.Authenticate, admin)).Methods(http.MethodGet)
	or.Handle("/{id}", chain(a.getOrder, a.Authenticate)).Methods(http.MethodGet)
	or.Handle("/{id}/status", chain(a.updateOrderStatus, a.Authenticate, admin)).Methods(http.MethodPut)
	or.Handle("/{id}/tracking", chain(a.addTracking, a.Authenticate, admin)).Methods(http.MethodPost)
	or.Handle("/{id}/payment", chain(a.processPayment, a.Authenticate, admin)).Methods(http.MethodPost)
	or.Handle("/{id}/delivery-instructions", chain(a.deliveryInstructions, a.Authenticate, admin)).Methods(http.MethodPost)

	nt := api.PathPrefix("/notifications").Subrouter()
	nt.Handle("/product-availability", chain(a.requestNotification, a.Authenticate)).Methods(http.MethodPost)
	nt.Handle("/product-availability/{productId}", chain(a.cancelNotification, a.Authenticate)).Methods(http.MethodDelete)
	nt.Handle("/my-notifications", chain(a.myNotifications, a.Authenticate)).Methods(http.MethodGet)
	nt.Handle("/trigger-availability/{productId}", chain(a.triggerAvailability, a.Authenticate, admin)).Methods(http.MethodPost)
	nt.Handle("/product/{productId}", chain(a.productNotifications, a.Authenticate, admin)).Methods(http.MethodGet)

	contactLimit := a.RateLimit(Limit{Scope: "contact", Max: contactAttempts, Window: attemptWindow})
	api.Handle("/contact", chain(a.submitContact, contactLimit)).Methods(http.MethodPost)

	return CORS(d.CORSOrigins)(r)
}

type healthBody struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	now := a.now()
	ok(w, "Server is running", healthBody{
		Status:      "OK",
		Timestamp:   now.UTC(),
		Uptime:      now.Sub(a.started).Seconds(),
		Environment: a.env,
	})
}

func (a *API) index(w http.ResponseWriter, _ *http.Request) {
	ok(w, "Cosmetics shop API", map[string]any{
		"endpoints": []string{
			"/api/auth", "/api/products", "/api/orders", "/api/notifications", "/api/contact", "/health",
		},
	})
}
