package elevation

import (
	"context"
	"time"

	"github.com/openreach/openreach/pkg/storage"
)

const (
	// JTIRetention is how long a consumed token stays marked. After the
	// window the token may be forgotten; upstream token issuance bounds a
	// token's usable lifetime to less than this.
	JTIRetention = 5 * time.Minute

	jtiPrefix = "superadmin:jti:"
)

// ReplayGuard marks single-use tokens as consumed in the shared store. The
// check-and-mark is one atomic SETNX: two concurrent requests racing on the
// same token can never both pass.
type ReplayGuard struct {
	store *storage.RedisClient
}

// NewReplayGuard creates a replay guard on the shared store.
func NewReplayGuard(store *storage.RedisClient) *ReplayGuard {
	return &ReplayGuard{store: store}
}

// Consume atomically marks jti as used. It returns true when the token was
// fresh, false when it had already been consumed. An error means the shared
// store is unreachable; the caller decides the fail-open policy.
func (g *ReplayGuard) Consume(ctx context.Context, jti string) (bool, error) {
	return g.store.SetNX(ctx, jtiPrefix+jti, 1, JTIRetention)
}
