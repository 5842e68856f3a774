package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/openreach/openreach/pkg/api"
	"github.com/openreach/openreach/pkg/contextkeys"
	"github.com/openreach/openreach/pkg/storage"
)

// RequestIDMiddleware assigns each request a UUID, honoring an upstream
// X-Request-ID when present.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := contextkeys.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityMiddleware resolves the pre-authenticated acting user (identity
// verification happens upstream; this layer only loads the user record) and
// records the client address. Requests without an identity header continue
// anonymously; each guard decides whether that is acceptable.
type IdentityMiddleware struct {
	repo storage.Repository
}

// NewIdentityMiddleware creates the identity middleware.
func NewIdentityMiddleware(repo storage.Repository) *IdentityMiddleware {
	return &IdentityMiddleware{repo: repo}
}

// Handler wraps an HTTP handler with identity resolution.
func (m *IdentityMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := contextkeys.WithClientIP(r.Context(), getClientIP(r))

		header := r.Header.Get("X-User-ID")
		if header == "" {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			unauthorizedResponse(w, "invalid user identity")
			return
		}

		user, err := m.repo.GetUser(ctx, userID)
		if errors.Is(err, api.ErrNotFound) {
			unauthorizedResponse(w, "unknown user")
			return
		}
		if err != nil {
			internalErrorResponse(w)
			return
		}

		ctx = contextkeys.WithActor(ctx, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetActor extracts the acting user from the request, or nil when the
// request is anonymous.
func GetActor(r *http.Request) *api.User {
	user, ok := r.Context().Value(contextkeys.ActorKey).(*api.User)
	if !ok {
		return nil
	}
	return user
}

// getClientIP extracts the client address from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
