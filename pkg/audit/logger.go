package audit

import (
	"context"
)

// Logger is the interface for durable audit sinks.
type Logger interface {
	// Log appends one audit event.
	Log(ctx context.Context, event *Event) error

	// Close closes the logger and flushes any buffered events.
	Close() error
}

// NopLogger discards every event. Used when no sink is configured.
type NopLogger struct{}

// Log implements Logger.
func (NopLogger) Log(ctx context.Context, event *Event) error { return nil }

// Close implements Logger.
func (NopLogger) Close() error { return nil }
