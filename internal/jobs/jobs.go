// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/metrics"
)

// Job is a named task with a cron spec.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) (int64, error) // returns affected rows
}

// Scheduler owns the cron instance.
type Scheduler struct {
	c   *cron.Cron
	log *zap.Logger
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// New registers jobs. Overlapping runs of one job are skipped and panics are recovered.
func New(ctx context.Context, log *zap.Logger, jobs ...Job) (*Scheduler, error) {
	cl := cronLogger{s: log.Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	s := &Scheduler{c: c, log: log}
	for _, j := range jobs {
		if _, err := c.AddFunc(j.Spec, func() { s.run(ctx, j) }); err != nil {
			return nil, fmt.Errorf("schedule %s: %w", j.Name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) run(ctx context.Context, j Job) {
	start := time.Now()
	n, err := j.Run(ctx)
	metrics.JobRun(j.Name, err == nil)
	if err != nil {
		s.log.Error("job failed", zap.String("job", j.Name), zap.Error(err))
		return
	}
	s.log.Info("job done", zap.String("job", j.Name), zap.Int64("rows", n), zap.Duration("dur", time.Since(start)))
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() { s.c.Start() }

// Stop stops scheduling and waits for running jobs or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.c.Stop().Done():
	case <-ctx.Done():
	}
}

// Pruner deletes expired attempt windows.
type Pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Purger deletes delivered mail.
type Purger interface {
	PurgeSent(ctx context.Context, cutoff time.Time) (int64, error)
}

// PruneRateLimits drops windows older than window every ten minutes.
func PruneRateLimits(p Pruner, window time.Duration, now func() time.Time) Job {
	return Job{
		Name: "prune_rate_limits",
		Spec: "@every 10m",
		Run: func(ctx context.Context) (int64, error) {
			return p.Prune(ctx, now().Add(-window))
		},
	}
}

// PurgeOutbox removes sent mail older than age once a day.
func PurgeOutbox(p Purger, age time.Duration, now func() time.Time) Job {
	return Job{
		Name: "purge_outbox",
		Spec: "@daily",
		Run: func(ctx context.Context) (int64, error) {
			return p.PurgeSent(ctx, now().Add(-age))
		},
	}
}
