package middleware

import (
	"net/http"

	"github.com/openreach/openreach/pkg/contextkeys"
	"github.com/openreach/openreach/pkg/elevation"
)

// Headers carrying elevation credentials.
const (
	SecretHeader = "X-SuperAdmin-Secret"
	JTIHeader    = "X-SuperAdmin-JTI"
)

// ElevationMiddleware installs a fresh request-scoped elevation flag and
// runs the elevation protocol once per request. Whatever the outcome, the
// request continues: a protocol denial just means the ordinary evaluators
// decide.
type ElevationMiddleware struct {
	protocol *elevation.Protocol
}

// NewElevationMiddleware creates the elevation middleware.
func NewElevationMiddleware(protocol *elevation.Protocol) *ElevationMiddleware {
	return &ElevationMiddleware{protocol: protocol}
}

// Handler wraps an HTTP handler with the elevation protocol.
func (m *ElevationMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, _ := elevation.WithFlag(r.Context())
		r = r.WithContext(ctx)

		m.protocol.Attempt(ctx, &elevation.Request{
			User:       GetActor(r),
			Secret:     r.Header.Get(SecretHeader),
			JTI:        r.Header.Get(JTIHeader),
			ClientAddr: contextkeys.GetClientIP(ctx),
			Action:     r.Method + " " + r.URL.Path,
			Method:     r.Method,
			Path:       r.URL.Path,
		})

		next.ServeHTTP(w, r)
	})
}
