package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// ProductNotification is a back-in-stock request, unique per (account, product).
type ProductNotification struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"user"`
	ProductID  uuid.UUID  `json:"product"`
	Email      string     `json:"email"`
	Active     bool       `json:"isActive"`
	NotifiedAt *time.Time `json:"notifiedAt,omitempty"` // nil until a fan-out send
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// NotificationView pairs a subscription with product display data.
type NotificationView struct {
	ProductNotification
	Product ProductSummary `json:"productDetails"`
}

// EmailKind tags an outgoing message for templates and metrics.
type EmailKind string

const (
	EmailOrderConfirmation    EmailKind = "order-confirmation"
	EmailStatusUpdate         EmailKind = "status-update"
	EmailWelcome              EmailKind = "welcome"
	EmailVerification         EmailKind = "email-verification"
	EmailPasswordReset        EmailKind = "password-reset"
	EmailDeliveryInstructions EmailKind = "delivery-instructions"
	EmailProductAvailability  EmailKind = "product-availability"
	EmailContactBusiness      EmailKind = "contact-business"
	EmailContactAutoReply     EmailKind = "contact-auto-reply"
)

// Email is a rendered message ready for a transport.
type Email struct {
	Kind    EmailKind
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
}

// OutboxStatus is the delivery state of a queued email.
type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSending OutboxStatus = "sending"
	OutboxSent    OutboxStatus = "sent"
	OutboxDead    OutboxStatus = "dead"
)

// OutboxEntry is a persisted email awaiting delivery.
type OutboxEntry struct {
	ID        uuid.UUID
	Email     Email
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}
