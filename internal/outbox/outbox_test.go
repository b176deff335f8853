package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

type fakeOutbox struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*model.OutboxEntry
	order   []uuid.UUID
	claimed int
}

var _ repository.OutboxRepository = (*fakeOutbox)(nil)

func newFakeOutbox() *fakeOutbox { return &fakeOutbox{rows: map[uuid.UUID]*model.OutboxEntry{}} }

func (f *fakeOutbox) Enqueue(_ context.Context, e model.Email) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.Must(uuid.NewV4())
	f.rows[id] = &model.OutboxEntry{ID: id, Email: e, Status: model.OutboxPending}
	f.order = append(f.order, id)
	return id, nil
}

func (f *fakeOutbox) Claim(_ context.Context, limit int, _ time.Time, _ time.Duration) ([]model.OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.OutboxEntry
	for _, id := range f.order {
		r := f.rows[id]
		if r.Status != model.OutboxPending || len(out) == limit {
			continue
		}
		r.Status = model.OutboxSending
		out = append(out, *r)
	}
	f.claimed += len(out)
	return out, nil
}

func (f *fakeOutbox) MarkSent(_ context.Context, id uuid.UUID, attempts int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rows[id]
	r.Status, r.Attempts, r.SentAt = model.OutboxSent, attempts, &at
	return nil
}

func (f *fakeOutbox) MarkDead(_ context.Context, id uuid.UUID, attempts int, lastErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.rows[id]
	r.Status, r.Attempts, r.LastError = model.OutboxDead, attempts, lastErr
	return nil
}

func (f *fakeOutbox) PurgeSent(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeOutbox) get(id uuid.UUID) model.OutboxEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

// flaky fails the first n sends per recipient.
type flaky struct {
	mu    sync.Mutex
	fails map[string]int
	sent  []string
}

func (f *flaky) Send(_ context.Context, m mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails[m.To] > 0 {
		f.fails[m.To]--
		return errors.New("421 try later")
	}
	f.sent = append(f.sent, m.To)
	return nil
}

func (f *flaky) Name() string { return "flaky" }

func testConfig() Config {
	return Config{Interval: 10 * time.Millisecond, Batch: 10, Retries: 2, BaseDelay: time.Millisecond}
}

func TestQueue_Enqueue(t *testing.T) {
	repo := newFakeOutbox()
	q := NewQueue(repo)
	require.NoError(t, q.Enqueue(context.Background(), mailer.Message{Kind: model.EmailWelcome, To: "a@x.com"}))
	require.Len(t, repo.rows, 1)
}

func TestWorker_Drain_RetriesThenSends(t *testing.T) {
	repo := newFakeOutbox()
	id, _ := repo.Enqueue(context.Background(), model.Email{Kind: model.EmailWelcome, To: "a@x.com"})
	tr := &flaky{fails: map[string]int{"a@x.com": 2}}

	w := NewWorker(repo, tr, zaptest.NewLogger(t), testConfig())
	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	row := repo.get(id)
	require.Equal(t, model.OutboxSent, row.Status)
	require.Equal(t, 3, row.Attempts)
	require.NotNil(t, row.SentAt)
}

func TestWorker_Drain_DeadLetters(t *testing.T) {
	repo := newFakeOutbox()
	ok, _ := repo.Enqueue(context.Background(), model.Email{Kind: model.EmailWelcome, To: "ok@x.com"})
	bad, _ := repo.Enqueue(context.Background(), model.Email{Kind: model.EmailWelcome, To: "bad@x.com"})
	tr := &flaky{fails: map[string]int{"bad@x.com": 100}}

	w := NewWorker(repo, tr, zaptest.NewLogger(t), testConfig())
	sent, err := w.Drain(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	require.Equal(t, model.OutboxSent, repo.get(ok).Status)
	dead := repo.get(bad)
	require.Equal(t, model.OutboxDead, dead.Status)
	require.Equal(t, 3, dead.Attempts)
	require.Equal(t, "421 try later", dead.LastError)
}

func TestWorker_Run_StopsOnCancel(t *testing.T) {
	repo := newFakeOutbox()
	_, _ = repo.Enqueue(context.Background(), model.Email{Kind: model.EmailWelcome, To: "a@x.com"})
	tr := &flaky{fails: map[string]int{}}
	w := NewWorker(repo, tr, zaptest.NewLogger(t), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		tr.mu.Lock()
		defer tr.mu.Unlock()
		return len(tr.sent) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
