// Package mailer renders transactional emails and hands them to SMTP transports.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/and161185/cosmetics-shop/internal/model"
)

// Message is a rendered email.
type Message = model.Email

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, m Message) error
	Name() string
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct{ Log *zap.Logger }

// Send logs the envelope; the body is never logged.
func (t LogTransport) Send(_ context.Context, m Message) error {
	t.Log.Info("email logged (no transport configured)",
		zap.String("kind", string(m.Kind)),
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
	)
	return nil
}

// Name implements Transport.
func (LogTransport) Name() string { return "log" }

// Failover tries Primary and falls back to Backup.
type Failover struct {
	Primary Transport
	Backup  Transport
	Log     *zap.Logger
}

// NewFailover wires the transports; a nil primary means log-only delivery.
func NewFailover(primary, backup Transport, log *zap.Logger) *Failover {
	if primary == nil {
		primary, backup = backup, nil
	}
	if primary == nil {
		primary = LogTransport{Log: log}
	}
	return &Failover{Primary: primary, Backup: backup, Log: log}
}

// Send delivers m through the primary transport, then the backup.
// When both fail the returned error carries both causes.
func (f *Failover) Send(ctx context.Context, m Message) error {
	err := f.Primary.Send(ctx, m)
	if err == nil {
		return nil
	}
	f.Log.Warn("primary transport failed",
		zap.String("transport", f.Primary.Name()),
		zap.String("kind", string(m.Kind)),
		zap.Error(err),
	)
	if f.Backup == nil {
		return fmt.Errorf("%s: %w", f.Primary.Name(), err)
	}
	berr := f.Backup.Send(ctx, m)
	if berr == nil {
		f.Log.Info("email sent via backup transport", zap.String("transport", f.Backup.Name()))
		return nil
	}
	return multierr.Combine(
		fmt.Errorf("%s: %w", f.Primary.Name(), err),
		fmt.Errorf("%s: %w", f.Backup.Name(), berr),
	)
}

// Name implements Transport.
func (f *Failover) Name() string { return "failover" }
