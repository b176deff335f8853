package model

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/and161185/cosmetics-shop/internal/errs"
)

// OrderStatus is the linear order state.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusReturned   OrderStatus = "returned"
)

// ValidOrderStatus reports whether s is a known status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusReturned:
		return true
	}
	return false
}

// PaymentMethod is how the customer pays.
type PaymentMethod string

const (
	PayCreditCard     PaymentMethod = "credit-card"
	PayDebitCard      PaymentMethod = "debit-card"
	PayPayPal         PaymentMethod = "paypal"
	PayStripe         PaymentMethod = "stripe"
	PayCashOnDelivery PaymentMethod = "cash-on-delivery"
)

// ValidPaymentMethod reports whether m is a known method.
func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PayCreditCard, PayDebitCard, PayPayPal, PayStripe, PayCashOnDelivery:
		return true
	}
	return false
}

// PaymentStatus tracks settlement.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
)

// ShippingMethod selects carrier speed.
type ShippingMethod string

const (
	ShipStandard  ShippingMethod = "standard"
	ShipExpress   ShippingMethod = "express"
	ShipOvernight ShippingMethod = "overnight"
	ShipPickup    ShippingMethod = "pickup"
)

var transitDays = map[ShippingMethod]int{
	ShipStandard:  7,
	ShipExpress:   3,
	ShipOvernight: 1,
	ShipPickup:    0,
}

// ValidShippingMethod reports whether m is a known method.
func ValidShippingMethod(m ShippingMethod) bool {
	_, ok := transitDays[m]
	return ok
}

// EstimatedDelivery returns from plus the method's transit days.
func EstimatedDelivery(m ShippingMethod, from time.Time) time.Time {
	return from.AddDate(0, 0, transitDays[m])
}

// DiscountType classifies a discount code.
type DiscountType string

const (
	DiscountPercentage   DiscountType = "percentage"
	DiscountFixed        DiscountType = "fixed"
	DiscountFreeShipping DiscountType = "free-shipping"
)

// ValidDiscountType reports whether t is empty or a known type.
func ValidDiscountType(t DiscountType) bool {
	switch t {
	case "", DiscountPercentage, DiscountFixed, DiscountFreeShipping:
		return true
	}
	return false
}

// ItemSnapshot freezes product display data at order time.
type ItemSnapshot struct {
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Brand string `json:"brand"`
	Image *Image `json:"image,omitempty"`
}

// OrderItem is a single order line.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // unit price captured at order time
	Snapshot  ItemSnapshot    `json:"productSnapshot"`
}

// Tax is the tax component of the total.
type Tax struct {
	Amount decimal.Decimal `json:"amount"`
	Rate   decimal.Decimal `json:"rate"`
}

// Shipping is the shipping component of the total.
type Shipping struct {
	Cost              decimal.Decimal `json:"cost"`
	Method            ShippingMethod  `json:"method"`
	EstimatedDelivery *time.Time      `json:"estimatedDelivery,omitempty"`
}

// Discount is subtracted from the total.
type Discount struct {
	Amount decimal.Decimal `json:"amount"`
	Code   string          `json:"code,omitempty"`
	Type   DiscountType    `json:"type,omitempty"`
}

// Customer is contact data captured when the order is placed.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Address is a postal address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// Payment is the payment sub-record.
type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
	PaidAt        *time.Time    `json:"paidAt,omitempty"`
}

// Tracking is the shipment sub-record.
type Tracking struct {
	Carrier        string     `json:"carrier,omitempty"`
	TrackingNumber string     `json:"trackingNumber,omitempty"`
	TrackingURL    string     `json:"trackingUrl,omitempty"`
	ShippedAt      *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `json:"deliveredAt,omitempty"`
}

// StatusEntry is one append-only history record.
type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
	UpdatedBy *uuid.UUID  `json:"updatedBy,omitempty"`
}

// Order is the checkout aggregate.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"orderNumber"` // YYMMDD + 4-digit day sequence
	AccountID       uuid.UUID       `json:"user"`
	Items           []OrderItem     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             Tax             `json:"tax"`
	Shipping        Shipping        `json:"shipping"`
	Discount        Discount        `json:"discount"`
	Total           decimal.Decimal `json:"total"`
	Customer        Customer        `json:"customer"`
	BillingAddress  Address         `json:"billingAddress"`
	ShippingAddress Address         `json:"shippingAddress"`
	Status          OrderStatus     `json:"status"`
	StatusHistory   []StatusEntry   `json:"statusHistory"`
	Payment         Payment         `json:"payment"`
	Tracking        Tracking        `json:"tracking"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Recalculate derives subtotal and total from items and adjustments.
// The total is floored at zero.
func (o *Order) Recalculate() {
	sub := decimal.Zero
	for _, it := range o.Items {
		sub = sub.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	o.Subtotal = sub
	total := sub.Add(o.Tax.Amount).Add(o.Shipping.Cost).Sub(o.Discount.Amount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.Total = total
}

// UpdateStatus appends a history entry unconditionally and stamps first-time
// shipped/delivered timestamps. It reports whether the status changed.
func (o *Order) UpdateStatus(s OrderStatus, note string, actor *uuid.UUID, now time.Time) bool {
	prev := o.Status
	o.Status = s
	o.StatusHistory = append(o.StatusHistory, StatusEntry{
		Status:    s,
		Timestamp: now,
		Note:      note,
		UpdatedBy: actor,
	})
	if s == StatusShipped && o.Tracking.ShippedAt == nil {
		t := now
		o.Tracking.ShippedAt = &t
	}
	if s == StatusDelivered && o.Tracking.DeliveredAt == nil {
		t := now
		o.Tracking.DeliveredAt = &t
	}
	o.UpdatedAt = now
	return prev != s
}

// AddTracking records shipment details; a processing order becomes shipped.
func (o *Order) AddTracking(carrier, number, url string, actor *uuid.UUID, now time.Time) bool {
	o.Tracking.Carrier = carrier
	o.Tracking.TrackingNumber = number
	o.Tracking.TrackingURL = url
	o.UpdatedAt = now
	if o.Status == StatusProcessing {
		return o.UpdateStatus(StatusShipped, "Tracking information added", actor, now)
	}
	return false
}

// ProcessPayment completes payment; a pending order becomes confirmed.
func (o *Order) ProcessPayment(txID string, method PaymentMethod, actor *uuid.UUID, now time.Time) bool {
	o.Payment.Status = PaymentCompleted
	o.Payment.TransactionID = txID
	t := now
	o.Payment.PaidAt = &t
	if method != "" {
		o.Payment.Method = method
	}
	o.UpdatedAt = now
	if o.Status == StatusPending {
		return o.UpdateStatus(StatusConfirmed, "Payment processed successfully", actor, now)
	}
	return false
}

// MaxDailySequence bounds the 4-digit order number suffix.
const MaxDailySequence = 9999

// FormatOrderNumber renders YYMMDD followed by the zero-padded day sequence.
func FormatOrderNumber(day time.Time, seq int) (string, error) {
	if seq < 1 || seq > MaxDailySequence {
		return "", fmt.Errorf("sequence %d: %w", seq, errs.ErrSequenceExhausted)
	}
	return fmt.Sprintf("%s%04d", day.Format("060102"), seq), nil
}

// CanView reports whether acc may read the order.
func (o *Order) CanView(acc *Account) bool {
	return acc != nil && (acc.IsAdmin() || acc.ID == o.AccountID)
}

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status    OrderStatus
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
}
