package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cosmetics-shop/internal/errs"
	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/outbox"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

type fakeAccounts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Account

	createErr error
}

var _ repository.AccountRepository = (*fakeAccounts)(nil)

func newFakeAccounts(accs ...*model.Account) *fakeAccounts {
	f := &fakeAccounts{byID: map[uuid.UUID]*model.Account{}}
	for _, a := range accs {
		f.byID[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) Create(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, x := range f.byID {
		if x.Email == a.Email {
			return errs.ErrAlreadyExists
		}
	}
	c := *a
	f.byID[a.ID] = &c
	return nil
}

func (f *fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f *fakeAccounts) GetByEmail(_ context.Context, email string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.byID {
		if a.Email == email {
			c := *a
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeAccounts) with(id uuid.UUID, fn func(a *model.Account)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	fn(a)
	return nil
}

func (f *fakeAccounts) UpdateProfile(ctx context.Context, id uuid.UUID, name, phone string) (*model.Account, error) {
	if err := f.with(id, func(a *model.Account) { a.Name, a.Phone = name, phone }); err != nil {
		return nil, err
	}
	return f.GetByID(ctx, id)
}

func (f *fakeAccounts) SetPassword(_ context.Context, id uuid.UUID, hash, salt []byte, bump bool) error {
	return f.with(id, func(a *model.Account) {
		a.PwdHash, a.PwdSalt = hash, salt
		a.ResetTokenHash, a.ResetExpiresAt = "", nil
		if bump {
			a.TokenVersion++
		}
	})
}

func (f *fakeAccounts) TouchLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	return f.with(id, func(a *model.Account) { a.LastLoginAt = &at })
}

func (f *fakeAccounts) BumpTokenVersion(_ context.Context, id uuid.UUID) (int64, error) {
	var v int64
	err := f.with(id, func(a *model.Account) { a.TokenVersion++; v = a.TokenVersion })
	return v, err
}

func (f *fakeAccounts) SetResetToken(_ context.Context, id uuid.UUID, digest string, expires *time.Time) error {
	return f.with(id, func(a *model.Account) { a.ResetTokenHash, a.ResetExpiresAt = digest, expires })
}

func (f *fakeAccounts) MarkEmailVerified(_ context.Context, id uuid.UUID) error {
	return f.with(id, func(a *model.Account) { a.EmailVerified = true })
}

func (f *fakeAccounts) SetState(_ context.Context, id uuid.UUID, state model.Lifecycle) error {
	return f.with(id, func(a *model.Account) { a.State = state })
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []mailer.Message
	err  error
}

var _ outbox.Enqueuer = (*fakeQueue)(nil)

func (q *fakeQueue) Enqueue(_ context.Context, m mailer.Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, m)
	return nil
}

func (q *fakeQueue) kinds() []model.EmailKind {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.EmailKind, 0, len(q.msgs))
	for _, m := range q.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type fakeProducts struct {
	mu   sync.Mutex
	byID map[uuid.UUID]*model.Product

	lastFilter repository.ProductFilter
	lastPage   model.Page
}

var _ repository.ProductRepository = (*fakeProducts)(nil)

func newFakeProducts(ps ...*model.Product) *fakeProducts {
	f := &fakeProducts{byID: map[uuid.UUID]*model.Product{}}
	for _, p := range ps {
		f.byID[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Create(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.SKU == p.SKU {
			return errs.ErrAlreadyExists
		}
	}
	c := *p
	f.byID[p.ID] = &c
	return nil
}

func (f *fakeProducts) Update(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[p.ID]; !ok {
		return errs.ErrNotFound
	}
	for _, x := range f.byID {
		if x.ID != p.ID && x.SKU == p.SKU {
			return errs.ErrAlreadyExists
		}
	}
	c := *p
	f.byID[p.ID] = &c
	return nil
}

func (f *fakeProducts) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeProducts) GetBySlug(_ context.Context, slug string) (*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.byID {
		if p.Slug == slug {
			c := *p
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f *fakeProducts) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[uuid.UUID]*model.Product{}
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			c := *p
			out[id] = &c
		}
	}
	return out, nil
}

func (f *fakeProducts) List(_ context.Context, flt repository.ProductFilter, page model.Page) ([]model.Product, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter, f.lastPage = flt, page
	var out []model.Product
	for _, p := range f.byID {
		for _, s := range flt.States {
			if p.State == s {
				out = append(out, *p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (f *fakeProducts) SetState(_ context.Context, id uuid.UUID, state model.Lifecycle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return errs.ErrNotFound
	}
	p.State = state
	return nil
}

func (f *fakeProducts) UpsertBySKU(_ context.Context, p *model.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, x := range f.byID {
		if x.SKU == p.SKU {
			p.ID = id
		}
	}
	c := *p
	f.byID[p.ID] = &c
	return nil
}
