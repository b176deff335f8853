package limiter

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

/************ fake pgx ************/
type fakeRow struct{ scan func(dest ...any) error }

func (r fakeRow) Scan(dest ...any) error { return r.scan(dest...) }

type fakePool struct {
	qrErr   error
	hits    int
	started time.Time
	args    []any

	lastExecSQL string
	execErr     error
	execRows    int64
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastExecSQL = sql
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("DELETE " + strconv.FormatInt(f.execRows, 10)), nil
}

func (f *fakePool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if !strings.Contains(sql, "RETURNING hits, window_start") {
		return fakeRow{scan: func(dest ...any) error { return errors.New("unexpected query") }}
	}
	f.args = args
	return fakeRow{scan: func(dest ...any) error {
		if f.qrErr != nil {
			return f.qrErr
		}
		*(dest[0].(*int)) = f.hits
		*(dest[1].(*time.Time)) = f.started
		return nil
	}}
}

func TestPGHit_WithinLimit(t *testing.T) {
	now := time.Now()
	fp := &fakePool{hits: 3, started: now}
	l := NewPGWithQuerier(fp)
	l.now = func() time.Time { return now }

	d, err := l.Hit(context.Background(), "ip:email", 5, 15*time.Minute)
	if err != nil || !d.Allowed {
		t.Fatalf("Hit within limit: d=%+v err=%v", d, err)
	}
	if len(fp.args) != 3 {
		t.Fatalf("want 3 args, got %d", len(fp.args))
	}
	if string(fp.args[0].([]byte)) != string(HashKey("ip:email")) {
		t.Fatalf("key must be hashed")
	}
	if fp.args[2].(time.Duration) != 15*time.Minute {
		t.Fatalf("window arg: %v", fp.args[2])
	}
}

func TestPGHit_OverLimit(t *testing.T) {
	now := time.Now()
	fp := &fakePool{hits: 6, started: now.Add(-5 * time.Minute)}
	l := NewPGWithQuerier(fp)
	l.now = func() time.Time { return now }

	d, err := l.Hit(context.Background(), "k", 5, 15*time.Minute)
	if err != nil || d.Allowed || d.RetryAfter != 10*time.Minute {
		t.Fatalf("Hit over limit: d=%+v err=%v", d, err)
	}
}

func TestPGHit_DBError_Propagates(t *testing.T) {
	fp := &fakePool{qrErr: errors.New("db boom")}
	l := NewPGWithQuerier(fp)

	d, err := l.Hit(context.Background(), "k", 5, time.Minute)
	if err == nil || d.Allowed {
		t.Fatalf("want error propagate, got d=%+v err=%v", d, err)
	}
}

func TestPGPrune(t *testing.T) {
	fp := &fakePool{execRows: 4}
	l := NewPGWithQuerier(fp)

	n, err := l.Prune(context.Background(), time.Now())
	if err != nil || n != 4 {
		t.Fatalf("prune: n=%d err=%v", n, err)
	}
	if !strings.Contains(fp.lastExecSQL, "DELETE FROM rate_limits") {
		t.Fatalf("unexpected exec: %s", fp.lastExecSQL)
	}

	fp.execErr = errors.New("exec fail")
	if _, err := l.Prune(context.Background(), time.Now()); err == nil {
		t.Fatalf("want exec error")
	}
}
