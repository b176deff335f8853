package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

// Partial in-memory repositories: the embedded interface panics on anything the HTTP tests do not reach.

type memAccounts struct {
	repository.AccountRepository
	mu   sync.Mutex
	byID map[uuid.UUID]model.Account
}

var _ repository.AccountRepository = (*memAccounts)(nil)

func (m *memAccounts) Create(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.byID {
		if x.Email == a.Email {
			return errs.ErrAlreadyExists
		}
	}
	m.byID[a.ID] = *a
	return nil
}

func (m *memAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.byID[id]
	if !found {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

func (m *memAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (m *memAccounts) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byID[id]
	a.LastLoginAt = &at
	m.byID[id] = a
	return nil
}

func (m *memAccounts) BumpTokenVersion(_ context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.byID[id]
	a.TokenVersion++
	m.byID[id] = a
	return a.TokenVersion, nil
}

func (m *memAccounts) SetState(_ context.Context, id uuid.UUID, state model.Lifecycle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, found := m.byID[id]
	if !found {
		return errs.ErrNotFound
	}
	a.State = state
	m.byID[id] = a
	return nil
}

type memProducts struct {
	repository.ProductRepository
	byID map[uuid.UUID]model.Product
}

var _ repository.ProductRepository = (*memProducts)(nil)

func (m *memProducts) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	p, found := m.byID[id]
	if !found {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	out := make(map[uuid.UUID]*model.Product, len(ids))
	for _, id := range ids {
		if p, found := m.byID[id]; found {
			out[id] = &p
		}
	}
	return out, nil
}

type memOrders struct {
	repository.OrderRepository
	mu   sync.Mutex
	seq  map[time.Time]int
	byID map[uuid.UUID]model.Order
}

var _ repository.OrderRepository = (*memOrders)(nil)

func (m *memOrders) NextSequence(_ context.Context, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq[day]++
	return m.seq[day], nil
}

func (m *memOrders) Create(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[o.ID] = *o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, found := m.byID[id]
	if !found {
		return nil, errs.ErrNotFound
	}
	return &o, nil
}

// List applies the date bounds and ignores paging.
func (m *memOrders) List(_ context.Context, f model.OrderFilter, _ model.Page) ([]model.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.byID {
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			continue
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

type sinkQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

var _ outbox.Enqueuer = (*sinkQueue)(nil)

func (q *sinkQueue) Enqueue(_ context.Context, m mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, m)
	return nil
}
