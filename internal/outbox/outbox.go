// Package outbox queues emails in the database and delivers them in the background.
package outbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/mailer"
	"github.com/and161185/cosmetics-shop/internal/metrics"
	"github.com/and161185/cosmetics-shop/internal/model"
	"github.com/and161185/cosmetics-shop/internal/repository"
)

// Enqueuer accepts messages for later delivery.
type Enqueuer interface {
	Enqueue(ctx context.Context, m mailer.Message) error
}

// Queue writes messages to the outbox table.
type Queue struct {
	repo repository.OutboxRepository
}

// NewQueue returns a Queue backed by repo.
func NewQueue(repo repository.OutboxRepository) *Queue { return &Queue{repo: repo} }

// Enqueue stores m as pending.
func (q *Queue) Enqueue(ctx context.Context, m mailer.Message) error {
	if _, err := q.repo.Enqueue(ctx, m); err != nil {
		return err
	}
	metrics.Email(string(m.Kind), "enqueued")
	return nil
}

// Config tunes the worker.
type Config struct {
	Interval  time.Duration // poll period
	Batch     int
	Retries   uint64 // retries after the first attempt
	BaseDelay time.Duration
	Lease     time.Duration // how long a claimed row stays invisible to other workers
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 20
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.Lease <= 0 {
		c.Lease = 5 * time.Minute
	}
	return c
}

// Worker drains the outbox through a transport.
type Worker struct {
	repo repository.OutboxRepository
	tr   mailer.Transport
	log  *zap.Logger
	cfg  Config
	now  func() time.Time
}

// NewWorker builds a worker.
func NewWorker(repo repository.OutboxRepository, tr mailer.Transport, log *zap.Logger, cfg Config) *Worker {
	return &Worker{repo: repo, tr: tr, log: log, cfg: cfg.withDefaults(), now: time.Now}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.cfg.Interval)
	defer t.Stop()
	w.log.Info("outbox worker started", zap.Duration("interval", w.cfg.Interval), zap.Int("batch", w.cfg.Batch))
	for {
		if _, err := w.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.log.Error("outbox drain", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			w.log.Info("outbox worker stopped")
			return nil
		case <-t.C:
		}
	}
}

// Drain claims one batch and delivers it concurrently; it returns the number of messages sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	batch, err := w.repo.Claim(ctx, w.cfg.Batch, w.now(), w.cfg.Lease)
	if err != nil {
		return 0, err
	}
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		sent int
	)
	for _, e := range batch {
		wg.Add(1)
		go func(e model.OutboxEntry) {
			defer wg.Done()
			if w.deliver(ctx, e) {
				mu.Lock()
				sent++
				mu.Unlock()
			}
		}(e)
	}
	wg.Wait()
	return sent, nil
}

func (w *Worker) deliver(ctx context.Context, e model.OutboxEntry) bool {
	kind := string(e.Email.Kind)
	b := retry.WithMaxRetries(w.cfg.Retries, retry.NewExponential(w.cfg.BaseDelay))

	attempts := e.Attempts
	var last error
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempts++
		if err := w.tr.Send(ctx, e.Email); err != nil {
			last = err
			metrics.Email(kind, "attempt_failed")
			return retry.RetryableError(err)
		}
		return nil
	})

	if err != nil && ctx.Err() != nil {
		// shutting down; the lease expires and another poll picks the row up
		return false
	}

	// the row state is written even when the poll context is gone
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err == nil {
		if err := w.repo.MarkSent(wctx, e.ID, attempts, w.now()); err != nil {
			w.log.Error("outbox mark sent", zap.String("id", e.ID.String()), zap.Error(err))
		}
		metrics.Email(kind, "sent")
		return true
	}

	if last == nil {
		last = err
	}
	w.log.Warn("email dead-lettered",
		zap.String("id", e.ID.String()),
		zap.String("kind", kind),
		zap.Int("attempts", attempts),
		zap.Error(last),
	)
	if err := w.repo.MarkDead(wctx, e.ID, attempts, last.Error()); err != nil {
		w.log.Error("outbox mark dead", zap.String("id", e.ID.String()), zap.Error(err))
	}
	metrics.Email(kind, "dead")
	return false
}
