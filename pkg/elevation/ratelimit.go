package elevation

import (
	"context"
	"time"

	"github.com/openreach/openreach/pkg/storage"
)

const (
	// RateLimitWindow is the attempt-counting window per client address.
	RateLimitWindow = 60 * time.Second

	rateLimitPrefix = "superadmin:ratelimit:"
)

// AttemptLimiter caps elevation attempts per client address using the shared
// Redis store, so the limit holds across all server instances. The counter
// is incremented atomically with its expiry started on the first increment
// of a window; budget is consumed by every attempt, valid secret or not.
type AttemptLimiter struct {
	store *storage.RedisClient
	limit int
}

// NewAttemptLimiter creates a limiter allowing limit attempts per window.
func NewAttemptLimiter(store *storage.RedisClient, limit int) *AttemptLimiter {
	return &AttemptLimiter{store: store, limit: limit}
}

// Consume spends one attempt for clientAddr and reports whether the attempt
// is within budget. An error means the shared store is unreachable; the
// caller decides the fail-open policy.
func (l *AttemptLimiter) Consume(ctx context.Context, clientAddr string) (bool, error) {
	count, err := l.store.IncrWithWindow(ctx, rateLimitPrefix+clientAddr, RateLimitWindow)
	if err != nil {
		return false, err
	}
	return count <= int64(l.limit), nil
}
