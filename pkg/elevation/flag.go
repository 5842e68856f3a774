package elevation

import (
	"context"
	"sync/atomic"

	"github.com/openreach/openreach/pkg/contextkeys"
)

// Flag is the request-scoped elevation marker. It is installed into the
// request context at the start of a request and discarded with it: elevation
// can never leak into another request or be served from a cached user
// object. The atomic bool tolerates handler chains that fan out within one
// request.
type Flag struct {
	elevated atomic.Bool
}

// NewFlag returns an unelevated flag.
func NewFlag() *Flag {
	return &Flag{}
}

// Set marks the request as elevated.
func (f *Flag) Set() {
	f.elevated.Store(true)
}

// Elevated reports whether the request is elevated.
func (f *Flag) Elevated() bool {
	return f.elevated.Load()
}

// WithFlag installs a fresh elevation flag into ctx and returns both.
func WithFlag(ctx context.Context) (context.Context, *Flag) {
	f := NewFlag()
	return contextkeys.WithElevation(ctx, f), f
}

// flagFrom extracts the elevation flag from ctx, or nil when the request
// carries none.
func flagFrom(ctx context.Context) *Flag {
	f, ok := ctx.Value(contextkeys.ElevationKey).(*Flag)
	if !ok {
		return nil
	}
	return f
}

// IsElevated reports whether ctx carries a granted elevation. A context
// without a flag is never elevated.
func IsElevated(ctx context.Context) bool {
	f := flagFrom(ctx)
	return f != nil && f.Elevated()
}
