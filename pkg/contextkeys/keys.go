// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// ActorKey contains *api.User: the pre-authenticated acting user
	// Set by: middleware.IdentityMiddleware (pkg/middleware/identity.go)
	// Required by: all evaluators and the elevation protocol
	ActorKey Key = "actor"

	// ElevationKey contains *elevation.Flag: the request-scoped elevation state
	// Set by: middleware.ElevationMiddleware (pkg/middleware/elevation.go)
	// Required by: elevation protocol, all guard middlewares
	// Never persisted; lives exactly as long as one request
	ElevationKey Key = "elevation"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestIDMiddleware
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// ClientIPKey contains the client network address string
	// Set by: middleware.IdentityMiddleware
	// Used by: elevation rate limiter, audit trail
	ClientIPKey Key = "client_ip"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	LoggerKey Key = "logger"
)

// WithActor adds the acting user to the context
func WithActor(ctx context.Context, user interface{}) context.Context {
	return context.WithValue(ctx, ActorKey, user)
}

// WithElevation adds the request-scoped elevation state to the context
func WithElevation(ctx context.Context, flag interface{}) context.Context {
	return context.WithValue(ctx, ElevationKey, flag)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithClientIP adds the client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetClientIP retrieves the client address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}
