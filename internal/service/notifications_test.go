package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

type subKey struct{ account, product uuid.UUID }

type fakeSubs struct {
	mu   sync.Mutex
	rows map[subKey]*model.ProductNotification
}

var _ repository.NotificationRepository = (*fakeSubs)(nil)

func newFakeSubs() *fakeSubs { return &fakeSubs{rows: map[subKey]*model.ProductNotification{}} }

func (f *fakeSubs) Upsert(_ context.Context, n *model.ProductNotification) (*model.ProductNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := subKey{n.AccountID, n.ProductID}
	if cur, ok := f.rows[k]; ok {
		cur.Email, cur.Active, cur.NotifiedAt = n.Email, true, nil
		c := *cur
		return &c, nil
	}
	c := *n
	c.Active, c.NotifiedAt = true, nil
	f.rows[k] = &c
	out := c
	return &out, nil
}

func (f *fakeSubs) Deactivate(_ context.Context, accountID, productID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[subKey{accountID, productID}]
	if !ok {
		return errs.ErrNotFound
	}
	r.Active = false
	return nil
}

func (f *fakeSubs) ListPending(_ context.Context, productID uuid.UUID) ([]model.ProductNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ProductNotification
	for k, r := range f.rows {
		if k.product == productID && r.Active && r.NotifiedAt == nil {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeSubs) MarkNotified(_ context.Context, ids []uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		for _, r := range f.rows {
			if r.ID == id {
				r.Active, r.NotifiedAt = false, &at
			}
		}
	}
	return nil
}

func (f *fakeSubs) ListActiveByAccount(_ context.Context, accountID uuid.UUID) ([]model.NotificationView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.NotificationView
	for k, r := range f.rows {
		if k.account == accountID && r.Active {
			out = append(out, model.NotificationView{ProductNotification: *r})
		}
	}
	return out, nil
}

func (f *fakeSubs) ListByProduct(_ context.Context, productID uuid.UUID, includeInactive bool) ([]model.ProductNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ProductNotification
	for k, r := range f.rows {
		if k.product == productID && (r.Active || includeInactive) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// pickyQueue rejects mail to chosen recipients.
type pickyQueue struct {
	fakeQueue
	reject string
}

func (q *pickyQueue) Enqueue(ctx context.Context, m mailer.Message) error {
	if strings.HasPrefix(m.To, q.reject) {
		return errors.New("outbox down")
	}
	return q.fakeQueue.Enqueue(ctx, m)
}

func account(email string) *model.Account {
	return &model.Account{ID: uuid.Must(uuid.NewV4()), Email: email, Role: model.RoleUser, State: model.LifecycleActive}
}

func TestNotifications_RequestAndCancel(t *testing.T) {
	t.Parallel()
	soldOut := product("Sold Out", model.LifecycleActive)
	soldOut.Inventory.Quantity = 0
	stocked := product("Stocked", model.LifecycleActive)
	subs := newFakeSubs()
	s := NewNotificationService(subs, newFakeProducts(soldOut, stocked), testRenderer(), &fakeQueue{}, zaptest.NewLogger(t))
	ctx := context.Background()
	acc := account("Ann@X.com")

	if _, err := s.Request(ctx, acc, stocked.ID); publicMsg(t, err) != "Product is currently in stock" {
		t.Fatalf("in stock: %v", err)
	}
	if _, err := s.Request(ctx, acc, uuid.Must(uuid.NewV4())); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing product: %v", err)
	}

	n, err := s.Request(ctx, acc, soldOut.ID)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if !n.Active || n.Email != "ann@x.com" {
		t.Fatalf("subscription %+v", n)
	}
	if _, err := s.Request(ctx, acc, soldOut.ID); err != nil {
		t.Fatalf("repeat Request should be idempotent: %v", err)
	}
	if len(subs.rows) != 1 {
		t.Fatalf("want one row, got %d", len(subs.rows))
	}

	if err := s.Cancel(ctx, acc.ID, soldOut.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if mine, _ := s.ListMine(ctx, acc.ID); len(mine) != 0 {
		t.Fatalf("cancelled subscription still listed")
	}
	if all, _ := s.ListForProduct(ctx, soldOut.ID, true); len(all) != 1 {
		t.Fatalf("inactive row should remain")
	}
	if err := s.Cancel(ctx, acc.ID, uuid.Must(uuid.NewV4())); publicMsg(t, err) != "Notification request not found" {
		t.Fatalf("cancel missing: %v", err)
	}
}

func TestNotifications_Trigger(t *testing.T) {
	t.Parallel()
	p := product("Back Again", model.LifecycleActive)
	subs := newFakeSubs()
	q := &pickyQueue{reject: "bad"}
	s := NewNotificationService(subs, newFakeProducts(p), testRenderer(), q, zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := s.Trigger(ctx, p.ID)
	if err != nil || res.Sent != 0 {
		t.Fatalf("empty trigger: %v %+v", err, res)
	}

	for _, e := range []string{"a@x.com", "b@x.com", "bad@x.com"} {
		if _, err := s.Subscribe(ctx, uuid.Must(uuid.NewV4()), p.ID, e); err != nil {
			t.Fatalf("Subscribe: %v", err)
		}
	}
	res, err = s.Trigger(ctx, p.ID)
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 {
		t.Fatalf("result %+v", res)
	}
	for _, k := range q.kinds() {
		if k != model.EmailProductAvailability {
			t.Fatalf("kind %s", k)
		}
	}
	if pending, _ := subs.ListPending(ctx, p.ID); len(pending) != 0 {
		t.Fatalf("rows not marked notified: %d", len(pending))
	}

	again, _ := s.Trigger(ctx, p.ID)
	if again.Sent != 0 {
		t.Fatalf("second trigger re-sent %d", again.Sent)
	}
	if _, err := s.Trigger(ctx, uuid.Must(uuid.NewV4())); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("missing product: %v", err)
	}
}
