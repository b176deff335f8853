package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/metrics"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/repository"
	"github.com/and161185/cosmetics-shop/internal/validate"
)

// Order page sizes.
const (
	DefaultMyOrdersLimit    = 10
	DefaultAdminOrdersLimit = 20
)

// numberAttempts bounds retries when a generated order number collides.
const numberAttempts = 3

// OrderItemInput is a submitted order line. Price overrides the live product price when present.
type OrderItemInput struct {
	Product  uuid.UUID        `json:"product" validate:"required"`
	Quantity int              `json:"quantity" validate:"min=1"`
	Price    *decimal.Decimal `json:"price,omitempty" validate:"omitnil,gte=0"`
}

type TaxInput struct {
	Amount decimal.Decimal `json:"amount" validate:"gte=0"`
	Rate   decimal.Decimal `json:"rate" validate:"gte=0"`
}

type ShippingInput struct {
	Cost              decimal.Decimal      `json:"cost" validate:"gte=0"`
	Method            model.ShippingMethod `json:"method" validate:"oneof=standard express overnight pickup"`
	EstimatedDelivery *time.Time           `json:"estimatedDelivery,omitempty"`
}

type DiscountInput struct {
	Amount decimal.Decimal    `json:"amount" validate:"gte=0"`
	Code   string             `json:"code,omitempty" validate:"max=50"`
	Type   model.DiscountType `json:"type,omitempty" validate:"omitempty,oneof=percentage fixed free-shipping"`
}

type CustomerInput struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email,max=254"`
	Phone string `json:"phone,omitempty" validate:"max=20"`
}

type AddressInput struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=20"`
	Country string `json:"country" validate:"required,max=100"`
}

type PaymentMethodInput struct {
	Method model.PaymentMethod `json:"method" validate:"required,oneof=credit-card debit-card paypal stripe cash-on-delivery"`
}

// CreateOrderInput is the checkout payload. Client-sent subtotal and total are never read.
type CreateOrderInput struct {
	Items           []OrderItemInput   `json:"items" validate:"dive"`
	Tax             TaxInput           `json:"tax"`
	Shipping        ShippingInput      `json:"shipping"`
	Discount        DiscountInput      `json:"discount"`
	Customer        CustomerInput      `json:"customer"`
	BillingAddress  AddressInput       `json:"billingAddress"`
	ShippingAddress AddressInput       `json:"shippingAddress"`
	Payment         PaymentMethodInput `json:"payment"`
}

// StatusInput changes the order status.
type StatusInput struct {
	Status model.OrderStatus `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded returned"`
	Note   string            `json:"note,omitempty" validate:"max=500"`
}

// TrackingInput attaches shipment details.
type TrackingInput struct {
	Carrier        string `json:"carrier" validate:"required,max=100"`
	TrackingNumber string `json:"trackingNumber" validate:"required,max=100"`
	TrackingURL    string `json:"trackingUrl,omitempty" validate:"omitempty,url"`
}

// PaymentInput records a completed payment.
type PaymentInput struct {
	TransactionID string              `json:"transactionId" validate:"required,max=200"`
	Method        model.PaymentMethod `json:"method,omitempty" validate:"omitempty,oneof=credit-card debit-card paypal stripe cash-on-delivery"`
}

// OrderService covers checkout and order administration.
type OrderService interface {
	// Create places an order owned by the caller.
	Create(ctx context.Context, owner *model.Account, in CreateOrderInput) (*model.Order, error)
	// CreateForAccount places an order on behalf of another active account.
	CreateForAccount(ctx context.Context, admin *model.Account, target uuid.UUID, in CreateOrderInput) (*model.Order, error)
	// Get returns the order when viewer owns it or is an admin.
	Get(ctx context.Context, id uuid.UUID, viewer *model.Account) (*model.Order, error)
	ListMine(ctx context.Context, owner *model.Account, page, limit int) ([]model.Order, model.Pagination, error)
	ListAll(ctx context.Context, f model.OrderFilter, page, limit int) ([]model.Order, model.Pagination, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, actor *model.Account, in StatusInput) (*model.Order, error)
	AddTracking(ctx context.Context, id uuid.UUID, actor *model.Account, in TrackingInput) (*model.Order, error)
	ProcessPayment(ctx context.Context, id uuid.UUID, actor *model.Account, in PaymentInput) (*model.Order, error)
	SendDeliveryInstructions(ctx context.Context, id uuid.UUID, instructions string) error
}

// OrderServiceImpl implements OrderService.
type OrderServiceImpl struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	accounts repository.AccountRepository
	mails    *mailer.Renderer
	queue    outbox.Enqueuer
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

// NewOrderService constructs OrderService. Order numbers use the calendar day in loc.
func NewOrderService(orders repository.OrderRepository, products repository.ProductRepository,
	accounts repository.AccountRepository, mails *mailer.Renderer, queue outbox.Enqueuer,
	log *zap.Logger, loc *time.Location) *OrderServiceImpl {
	if loc == nil {
		loc = time.UTC
	}
	return &OrderServiceImpl{
		orders:   orders,
		products: products,
		accounts: accounts,
		mails:    mails,
		queue:    queue,
		log:      log,
		loc:      loc,
		now:      time.Now,
	}
}

var (
	errOrderNotFound = errs.With(errs.ErrNotFound, "Order not found")
	errOrderAccess   = errs.With(errs.ErrForbidden, "Access denied")
)

// Create places an order for owner.
func (s *OrderServiceImpl) Create(ctx context.Context, owner *model.Account, in CreateOrderInput) (*model.Order, error) {
	return s.place(ctx, owner, owner.ID, in)
}

// CreateForAccount places an order for target with the admin as the recorded actor.
func (s *OrderServiceImpl) CreateForAccount(ctx context.Context, admin *model.Account, target uuid.UUID, in CreateOrderInput) (*model.Order, error) {
	acc, err := s.accounts.GetByID(ctx, target)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if acc == nil || !acc.Active() {
		return nil, errs.Invalid("Target user not found or inactive")
	}
	return s.place(ctx, acc, admin.ID, in)
}

func (s *OrderServiceImpl) place(ctx context.Context, owner *model.Account, actor uuid.UUID, in CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, errs.Field("items", "Order must contain at least one item")
	}
	defaults(&in, owner)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, it := range in.Items {
		ids = append(ids, it.Product)
	}
	found, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		p, ok := found[it.Product]
		if !ok || !p.Active() {
			return nil, errs.With(errs.ErrProductUnavailable, fmt.Sprintf("Product %s is not available", it.Product))
		}
		price := p.Price
		if it.Price != nil {
			price = *it.Price
		}
		snap := model.ItemSnapshot{Name: p.Name, SKU: p.SKU, Brand: p.Brand}
		if im, ok := p.PrimaryImage(); ok {
			snap.Image = &model.Image{URL: im.URL, Alt: im.Alt}
		}
		items = append(items, model.OrderItem{ProductID: p.ID, Quantity: it.Quantity, Price: price, Snapshot: snap})
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	eta := in.Shipping.EstimatedDelivery
	if eta == nil {
		t := model.EstimatedDelivery(in.Shipping.Method, now)
		eta = &t
	}
	o := &model.Order{
		ID:              id,
		AccountID:       owner.ID,
		Items:           items,
		Tax:             model.Tax{Amount: in.Tax.Amount, Rate: in.Tax.Rate},
		Shipping:        model.Shipping{Cost: in.Shipping.Cost, Method: in.Shipping.Method, EstimatedDelivery: eta},
		Discount:        model.Discount{Amount: in.Discount.Amount, Code: in.Discount.Code, Type: in.Discount.Type},
		Customer:        model.Customer{Name: in.Customer.Name, Email: in.Customer.Email, Phone: in.Customer.Phone},
		BillingAddress:  address(in.BillingAddress),
		ShippingAddress: address(in.ShippingAddress),
		Status:          model.StatusPending,
		StatusHistory: []model.StatusEntry{{
			Status:    model.StatusPending,
			Timestamp: now,
			Note:      "Order created",
			UpdatedBy: &actor,
		}},
		Payment:   model.Payment{Method: in.Payment.Method, Status: model.PaymentPending},
		CreatedAt: now,
		UpdatedAt: now,
	}
	o.Recalculate()

	if err := s.insertNumbered(ctx, o, now); err != nil {
		return nil, err
	}
	metrics.OrderCreated()
	s.log.Info("order created",
		zap.String("order", o.OrderNumber),
		zap.String("account", o.AccountID.String()),
		zap.String("total", o.Total.StringFixed(2)))

	enqueue(ctx, s.queue, s.log, func() (mailer.Message, error) { return s.mails.OrderConfirmation(o) })
	return o, nil
}

// insertNumbered assigns the next day sequence and inserts, retrying on a number collision.
func (s *OrderServiceImpl) insertNumbered(ctx context.Context, o *model.Order, now time.Time) error {
	local := now.In(s.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	var lastErr error
	for attempt := 1; attempt <= numberAttempts; attempt++ {
		seq, err := s.orders.NextSequence(ctx, day)
		if err != nil {
			return err
		}
		num, err := model.FormatOrderNumber(day, seq)
		if err != nil {
			return err
		}
		o.OrderNumber = num
		err = s.orders.Create(ctx, o)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errs.ErrAlreadyExists) {
			return err
		}
		lastErr = err
		s.log.Warn("order number collision", zap.String("number", num), zap.Int("attempt", attempt))
	}
	return fmt.Errorf("allocate order number: %w", lastErr)
}

func defaults(in *CreateOrderInput, owner *model.Account) {
	c := &in.Customer
	c.Name = strings.TrimSpace(c.Name)
	c.Email = NormalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" {
		c.Name = owner.Name
	}
	if c.Email == "" {
		c.Email = owner.Email
	}
	if c.Phone == "" {
		c.Phone = owner.Phone
	}
	if in.Shipping.Method == "" {
		in.Shipping.Method = model.ShipStandard
	}
	in.Discount.Code = strings.ToUpper(strings.TrimSpace(in.Discount.Code))
	for _, a := range []*AddressInput{&in.BillingAddress, &in.ShippingAddress} {
		a.Street = strings.TrimSpace(a.Street)
		a.City = strings.TrimSpace(a.City)
		a.State = strings.TrimSpace(a.State)
		a.ZipCode = strings.TrimSpace(a.ZipCode)
		a.Country = strings.TrimSpace(a.Country)
	}
}

func address(a AddressInput) model.Address {
	return model.Address{Street: a.Street, City: a.City, State: a.State, ZipCode: a.ZipCode, Country: a.Country}
}

// Get loads an order for viewer.
func (s *OrderServiceImpl) Get(ctx context.Context, id uuid.UUID, viewer *model.Account) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, orderErr(err)
	}
	if !o.CanView(viewer) {
		return nil, errOrderAccess
	}
	return o, nil
}

// ListMine lists the owner's orders.
func (s *OrderServiceImpl) ListMine(ctx context.Context, owner *model.Account, page, limit int) ([]model.Order, model.Pagination, error) {
	p := model.NewPage(page, limit, DefaultMyOrdersLimit)
	items, total, err := s.orders.ListByAccount(ctx, owner.ID, p)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return items, model.Paginate(p, total), nil
}

// ListAll lists orders across accounts.
func (s *OrderServiceImpl) ListAll(ctx context.Context, f model.OrderFilter, page, limit int) ([]model.Order, model.Pagination, error) {
	if f.Status != "" && !model.ValidOrderStatus(f.Status) {
		return nil, model.Pagination{}, errs.Field("status", "Invalid order status")
	}
	p := model.NewPage(page, limit, DefaultAdminOrdersLimit)
	items, total, err := s.orders.List(ctx, f, p)
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return items, model.Paginate(p, total), nil
}

// UpdateStatus appends a history entry and mails the customer when the status changed.
func (s *OrderServiceImpl) UpdateStatus(ctx context.Context, id uuid.UUID, actor *model.Account, in StatusInput) (*model.Order, error) {
	in.Note = strings.TrimSpace(in.Note)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(o *model.Order, now time.Time) bool {
		return o.UpdateStatus(in.Status, in.Note, actorID(actor), now)
	})
}

// AddTracking stores shipment details; a processing order becomes shipped.
func (s *OrderServiceImpl) AddTracking(ctx context.Context, id uuid.UUID, actor *model.Account, in TrackingInput) (*model.Order, error) {
	in.Carrier = strings.TrimSpace(in.Carrier)
	in.TrackingNumber = strings.TrimSpace(in.TrackingNumber)
	in.TrackingURL = strings.TrimSpace(in.TrackingURL)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(o *model.Order, now time.Time) bool {
		return o.AddTracking(in.Carrier, in.TrackingNumber, in.TrackingURL, actorID(actor), now)
	})
}

// ProcessPayment marks the payment completed; a pending order becomes confirmed.
func (s *OrderServiceImpl) ProcessPayment(ctx context.Context, id uuid.UUID, actor *model.Account, in PaymentInput) (*model.Order, error) {
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(o *model.Order, now time.Time) bool {
		return o.ProcessPayment(in.TransactionID, in.Method, actorID(actor), now)
	})
}

// SendDeliveryInstructions mails delivery instructions to the order's customer.
func (s *OrderServiceImpl) SendDeliveryInstructions(ctx context.Context, id uuid.UUID, instructions string) error {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return orderErr(err)
	}
	m, err := s.mails.DeliveryInstructions(o, strings.TrimSpace(instructions))
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, m)
}

// mutate runs fn under the order row lock and mails a status update when fn reports a change.
func (s *OrderServiceImpl) mutate(ctx context.Context, id uuid.UUID, fn func(o *model.Order, now time.Time) bool) (*model.Order, error) {
	changed := false
	now := s.now().UTC()
	o, err := s.orders.Mutate(ctx, id, func(o *model.Order) error {
		changed = fn(o, now)
		return nil
	})
	if err != nil {
		return nil, orderErr(err)
	}
	if changed {
		s.log.Info("order status changed", zap.String("order", o.OrderNumber), zap.String("status", string(o.Status)))
		enqueue(ctx, s.queue, s.log, func() (mailer.Message, error) { return s.mails.StatusUpdate(o) })
	}
	return o, nil
}

func actorID(a *model.Account) *uuid.UUID {
	if a == nil {
		return nil
	}
	id := a.ID
	return &id
}

func orderErr(err error) error {
	if errors.Is(err, errs.ErrNotFound) {
		return errOrderNotFound
	}
	return err
}
