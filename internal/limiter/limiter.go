// Package limiter counts attempts per key inside a fixed window anchored at
// the first attempt, behind a pluggable store.
package limiter

import (
	"context"
	"crypto/sha256"
	"math"
	"time"
)

// Decision is the outcome of a single Hit.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // zero when allowed
}

// RetryMinutes rounds RetryAfter up to whole minutes, at least one.
func (d Decision) RetryMinutes() int {
	m := int(math.Ceil(d.RetryAfter.Minutes()))
	if m < 1 {
		m = 1
	}
	return m
}

// Store records attempts. Implementations must be safe for concurrent use.
type Store interface {
	// Hit counts one attempt for key and reports whether it is within limit per window.
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// HashKey returns a stable digest for a limiter key to avoid storing raw addresses.
func HashKey(key string) []byte {
	h := sha256.Sum256([]byte(key))
	return h[:]
}
