package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/and161185/cosmetics-shop/internal/model"
)

const layout = `
{{define "head"}}<!DOCTYPE html><html><head><meta charset="utf-8"><title>{{.App}}</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">{{end}}
{{define "foot"}}<p style="color: #666; font-size: 12px;">{{.App}}</p></body></html>{{end}}

{{define "order-confirmation"}}{{template "head" .}}
<h2>Thank you for your order, {{.Order.Customer.Name}}!</h2>
<p>Order number: <strong>{{.Order.OrderNumber}}</strong></p>
<table>
{{range .Order.Items}}<tr><td>{{.Snapshot.Name}}</td><td>x{{.Quantity}}</td><td>{{money .Price}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Order.Subtotal}}<br>Tax: {{money .Order.Tax.Amount}}<br>
Shipping: {{money .Order.Shipping.Cost}}<br>Discount: {{money .Order.Discount.Amount}}<br>
<strong>Total: {{money .Order.Total}}</strong></p>
{{with .Order.Shipping.EstimatedDelivery}}<p>Estimated delivery: {{date .}}</p>{{end}}
<p><a href="{{.Frontend}}/orders/{{.Order.ID}}">View your order</a></p>
{{template "foot" .}}{{end}}

{{define "status-update"}}{{template "head" .}}
<h2>Your order {{.Order.OrderNumber}} is now {{.Order.Status}}</h2>
{{with .Order.Tracking}}{{if .TrackingNumber}}<p>Carrier: {{.Carrier}}<br>Tracking number: {{.TrackingNumber}}
{{if .TrackingURL}}<br><a href="{{.TrackingURL}}">Track your package</a>{{end}}</p>{{end}}{{end}}
<p><a href="{{.Frontend}}/orders/{{.Order.ID}}">View your order</a></p>
{{template "foot" .}}{{end}}

{{define "welcome"}}{{template "head" .}}
<h2>Welcome to {{.App}}, {{.Name}}!</h2>
<p>Your account is ready. <a href="{{.Frontend}}/products">Start shopping</a>.</p>
{{template "foot" .}}{{end}}

{{define "email-verification"}}{{template "head" .}}
<h2>Confirm your email</h2>
<p>Hello {{.Name}}, please confirm your address:</p>
<p><a href="{{.Link}}">Verify email</a></p>
{{template "foot" .}}{{end}}

{{define "password-reset"}}{{template "head" .}}
<h2>Password reset</h2>
<p>Hello {{.Name}}, use the link below to choose a new password. It expires in one hour.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not request a reset, ignore this email.</p>
{{template "foot" .}}{{end}}

{{define "delivery-instructions"}}{{template "head" .}}
<h2>Delivery instructions for order #{{.Order.OrderNumber}}</h2>
<p>Ship to: {{.Order.ShippingAddress.Street}}, {{.Order.ShippingAddress.City}}, {{.Order.ShippingAddress.State}}
{{.Order.ShippingAddress.ZipCode}}, {{.Order.ShippingAddress.Country}}</p>
{{if .Text}}<p>{{.Text}}</p>{{end}}
{{template "foot" .}}{{end}}

{{define "product-availability"}}{{template "head" .}}
<h2>{{.Product.Name}} is back in stock!</h2>
<p>{{.Product.Brand}} · {{money .Product.Price}}</p>
<p><a href="{{.Frontend}}/products/{{.Product.ID}}">Get it now</a></p>
{{template "foot" .}}{{end}}

{{define "contact-business"}}{{template "head" .}}
<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Contact.Name}}<br><strong>Email:</strong> {{.Contact.Email}}
{{if .Contact.Subject}}<br><strong>Subject:</strong> {{.Contact.Subject}}{{end}}</p>
<p>{{lines .Contact.Message}}</p>
{{template "foot" .}}{{end}}

{{define "contact-auto-reply"}}{{template "head" .}}
<h2>Thank you for your message!</h2>
<p>Dear {{.Contact.Name}},</p>
<p>We have received your message and will get back to you within 24 hours.</p>
<blockquote>{{lines .Contact.Message}}</blockquote>
{{template "foot" .}}{{end}}
`

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "$" + d.StringFixed(2) },
	"date":  func(t *time.Time) string { return t.Format("January 2, 2006") },
	"lines": func(s string) template.HTML {
		return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
	},
}

// Renderer turns domain events into ready-to-send messages.
type Renderer struct {
	app      string
	frontend string
	business string
	t        *template.Template
}

// NewRenderer parses the built-in templates.
func NewRenderer(app, frontendURL, businessEmail string) *Renderer {
	return &Renderer{
		app:      app,
		frontend: strings.TrimRight(frontendURL, "/"),
		business: businessEmail,
		t:        template.Must(template.New("mail").Funcs(funcs).Parse(layout)),
	}
}

type view struct {
	App      string
	Frontend string
	Name     string
	Link     string
	Text     string
	Order    *model.Order
	Product  *model.Product
	Contact  model.ContactMessage
}

func (r *Renderer) render(kind model.EmailKind, to, subject string, v view) (Message, error) {
	v.App, v.Frontend = r.app, r.frontend
	var buf bytes.Buffer
	if err := r.t.ExecuteTemplate(&buf, string(kind), v); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Message{Kind: kind, To: to, Subject: subject, HTML: buf.String()}, nil
}

// OrderConfirmation is sent to the customer after checkout.
func (r *Renderer) OrderConfirmation(o *model.Order) (Message, error) {
	return r.render(model.EmailOrderConfirmation, o.Customer.Email,
		"Order Confirmation - "+r.app, view{Order: o})
}

// StatusUpdate announces the order's current status.
func (r *Renderer) StatusUpdate(o *model.Order) (Message, error) {
	return r.render(model.EmailStatusUpdate, o.Customer.Email,
		fmt.Sprintf("Order Update - %s - %s", o.OrderNumber, r.app), view{Order: o})
}

// DeliveryInstructions sends shipping details with an optional free-text note.
func (r *Renderer) DeliveryInstructions(o *model.Order, note string) (Message, error) {
	return r.render(model.EmailDeliveryInstructions, o.Customer.Email,
		fmt.Sprintf("Delivery Instructions - Order #%s - %s", o.OrderNumber, r.app), view{Order: o, Text: note})
}

// Welcome greets a newly registered account.
func (r *Renderer) Welcome(acc *model.Account) (Message, error) {
	return r.render(model.EmailWelcome, acc.Email, "Welcome to "+r.app+"!", view{Name: acc.Name})
}

// Verification carries the email verification link.
func (r *Renderer) Verification(acc *model.Account, token string) (Message, error) {
	return r.render(model.EmailVerification, acc.Email, "Verify your email - "+r.app,
		view{Name: acc.Name, Link: r.frontend + "/verify-email?token=" + token})
}

// PasswordReset carries the reset link.
func (r *Renderer) PasswordReset(acc *model.Account, token string) (Message, error) {
	return r.render(model.EmailPasswordReset, acc.Email, "Password Reset - "+r.app,
		view{Name: acc.Name, Link: r.frontend + "/reset-password?token=" + token})
}

// ProductAvailability tells a subscriber the product is back in stock.
func (r *Renderer) ProductAvailability(p *model.Product, to string) (Message, error) {
	return r.render(model.EmailProductAvailability, to,
		fmt.Sprintf("%s is now available! - %s", p.Name, r.app), view{Product: p})
}

// ContactBusiness forwards a contact form to the business inbox.
func (r *Renderer) ContactBusiness(c model.ContactMessage) (Message, error) {
	m, err := r.render(model.EmailContactBusiness, r.business,
		"New Contact Form Submission from "+c.Name, view{Contact: c})
	m.ReplyTo = c.Email
	return m, err
}

// ContactAutoReply acknowledges a contact form to its sender.
func (r *Renderer) ContactAutoReply(c model.ContactMessage) (Message, error) {
	return r.render(model.EmailContactAutoReply, c.Email, "Thank you for contacting "+r.app, view{Contact: c})
}
