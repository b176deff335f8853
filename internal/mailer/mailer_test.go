package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/cosmetics-shop/internal/model"
)

type stubTransport struct {
	name  string
	err   error
	calls int
}

func (s *stubTransport) Send(context.Context, Message) error { s.calls++; return s.err }
func (s *stubTransport) Name() string                        { return s.name }

var _ Transport = (*stubTransport)(nil)

func TestFailover_PrimaryOK(t *testing.T) {
	p, b := &stubTransport{name: "primary"}, &stubTransport{name: "backup"}
	f := NewFailover(p, b, zaptest.NewLogger(t))

	require.NoError(t, f.Send(context.Background(), Message{To: "a@x.com"}))
	require.Equal(t, 1, p.calls)
	require.Zero(t, b.calls)
}

func TestFailover_BackupRescues(t *testing.T) {
	p := &stubTransport{name: "primary", err: errors.New("conn refused")}
	b := &stubTransport{name: "backup"}
	f := NewFailover(p, b, zaptest.NewLogger(t))

	require.NoError(t, f.Send(context.Background(), Message{To: "a@x.com"}))
	require.Equal(t, 1, b.calls)
}

func TestFailover_BothFailCombinesErrors(t *testing.T) {
	e1, e2 := errors.New("primary down"), errors.New("backup down")
	f := NewFailover(&stubTransport{name: "primary", err: e1}, &stubTransport{name: "backup", err: e2}, zaptest.NewLogger(t))

	err := f.Send(context.Background(), Message{To: "a@x.com"})
	require.Error(t, err)
	require.ErrorIs(t, err, e1)
	require.ErrorIs(t, err, e2)
	require.Contains(t, err.Error(), "primary")
	require.Contains(t, err.Error(), "backup")
}

func TestFailover_NoTransportLogsOnly(t *testing.T) {
	f := NewFailover(nil, nil, zaptest.NewLogger(t))
	require.Equal(t, "log", f.Primary.Name())
	require.NoError(t, f.Send(context.Background(), Message{Kind: model.EmailWelcome, To: "a@x.com"}))
}

func TestFailover_BackupOnlyBecomesPrimary(t *testing.T) {
	b := &stubTransport{name: "backup"}
	f := NewFailover(nil, b, zaptest.NewLogger(t))
	require.Equal(t, "backup", f.Primary.Name())
	require.Nil(t, f.Backup)
}

func TestSMTPConfig(t *testing.T) {
	require.False(t, SMTPConfig{Host: "smtp.example.com"}.Configured())
	require.True(t, SMTPConfig{Host: "smtp.example.com", User: "u"}.Configured())

	s := NewSMTP("primary", SMTPConfig{Host: "smtp.example.com", User: "u@example.com"})
	require.Equal(t, 587, s.cfg.Port)
	require.Equal(t, "u@example.com", s.cfg.From)

	_, err := s.message(Message{To: "not an address"})
	require.Error(t, err)
	msg, err := s.message(Message{To: "a@x.com", ReplyTo: "b@x.com", Subject: "Hi", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)
	require.NotNil(t, msg)
}

func sampleOrder() *model.Order {
	return &model.Order{
		ID:          uuid.Must(uuid.NewV4()),
		OrderNumber: "2603140007",
		Customer:    model.Customer{Name: "Ann <Lee>", Email: "a@x.com"},
		Items: []model.OrderItem{{
			Quantity: 2,
			Price:    decimal.RequireFromString("10"),
			Snapshot: model.ItemSnapshot{Name: "Lip Balm"},
		}},
		Subtotal: decimal.RequireFromString("20"),
		Total:    decimal.RequireFromString("25"),
		Status:   model.StatusShipped,
		Tracking: model.Tracking{Carrier: "UPS", TrackingNumber: "1Z999"},
	}
}

func TestRenderer_OrderMails(t *testing.T) {
	r := NewRenderer("Cosmetic Shop", "http://localhost:3000/", "hello@shop.test")
	o := sampleOrder()

	m, err := r.OrderConfirmation(o)
	require.NoError(t, err)
	require.Equal(t, model.EmailOrderConfirmation, m.Kind)
	require.Equal(t, "a@x.com", m.To)
	require.Equal(t, "Order Confirmation - Cosmetic Shop", m.Subject)
	require.Contains(t, m.HTML, "2603140007")
	require.Contains(t, m.HTML, "$25.00")
	require.Contains(t, m.HTML, "Ann &lt;Lee&gt;")
	require.Contains(t, m.HTML, "http://localhost:3000/orders/"+o.ID.String())

	m, err = r.StatusUpdate(o)
	require.NoError(t, err)
	require.Equal(t, "Order Update - 2603140007 - Cosmetic Shop", m.Subject)
	require.Contains(t, m.HTML, "1Z999")

	m, err = r.DeliveryInstructions(o, "Leave at the door")
	require.NoError(t, err)
	require.Equal(t, "Delivery Instructions - Order #2603140007 - Cosmetic Shop", m.Subject)
	require.Contains(t, m.HTML, "Leave at the door")
}

func TestRenderer_AccountMails(t *testing.T) {
	r := NewRenderer("Cosmetic Shop", "http://localhost:3000", "hello@shop.test")
	acc := &model.Account{Name: "Ann", Email: "a@x.com"}

	m, err := r.Welcome(acc)
	require.NoError(t, err)
	require.Equal(t, "Welcome to Cosmetic Shop!", m.Subject)

	m, err = r.PasswordReset(acc, "tok.en")
	require.NoError(t, err)
	require.Equal(t, model.EmailPasswordReset, m.Kind)
	require.Contains(t, m.HTML, "http://localhost:3000/reset-password?token=tok.en")

	m, err = r.Verification(acc, "v.tok")
	require.NoError(t, err)
	require.Contains(t, m.HTML, "/verify-email?token=v.tok")
}

func TestRenderer_ContactAndAvailability(t *testing.T) {
	r := NewRenderer("Cosmetic Shop", "http://localhost:3000", "hello@shop.test")
	c := model.ContactMessage{Name: "Bob", Email: "bob@x.com", Message: "line one\n<b>line two</b>"}

	m, err := r.ContactBusiness(c)
	require.NoError(t, err)
	require.Equal(t, "hello@shop.test", m.To)
	require.Equal(t, "bob@x.com", m.ReplyTo)
	require.Equal(t, "New Contact Form Submission from Bob", m.Subject)
	require.True(t, strings.Contains(m.HTML, "line one<br>&lt;b&gt;line two&lt;/b&gt;"))

	m, err = r.ContactAutoReply(c)
	require.NoError(t, err)
	require.Equal(t, "bob@x.com", m.To)

	p := &model.Product{ID: uuid.Must(uuid.NewV4()), Name: "Glow Serum", Brand: "Lumi", Price: decimal.RequireFromString("30")}
	m, err = r.ProductAvailability(p, "sub@x.com")
	require.NoError(t, err)
	require.Equal(t, "Glow Serum is now available! - Cosmetic Shop", m.Subject)
	require.Contains(t, m.HTML, "$30.00")
}
