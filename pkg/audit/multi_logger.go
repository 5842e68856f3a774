package audit

import (
	"context"
	"sync"
)

// MultiLogger fans one event out to multiple audit sinks. In async mode
// each sink write runs in its own goroutine; sink errors land on Errors()
// rather than the request path.
type MultiLogger struct {
	loggers []Logger
	async   bool
	wg      sync.WaitGroup
	errChan chan error
}

// NewMultiLogger creates a multi-logger writing to every given sink.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{
		loggers: loggers,
		async:   true,
		errChan: make(chan error, len(loggers)*4),
	}
}

// SetAsync sets whether logging should be asynchronous
func (m *MultiLogger) SetAsync(async bool) {
	m.async = async
}

// Errors exposes sink failures for the operational log.
func (m *MultiLogger) Errors() <-chan error {
	return m.errChan
}

// Log logs an audit event to all configured sinks
func (m *MultiLogger) Log(ctx context.Context, event *Event) error {
	if len(m.loggers) == 0 {
		return nil
	}

	if m.async {
		return m.logAsync(ctx, event)
	}
	return m.logSync(ctx, event)
}

func (m *MultiLogger) logSync(ctx context.Context, event *Event) error {
	var firstErr error

	for _, logger := range m.loggers {
		if err := logger.Log(ctx, event); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			// Continue to the remaining sinks even if one fails.
		}
	}

	return firstErr
}

func (m *MultiLogger) logAsync(ctx context.Context, event *Event) error {
	// The caller's context may be cancelled the moment Log returns; sink
	// writes run detached from its lifetime or they would abort mid-flight.
	writeCtx := context.WithoutCancel(ctx)

	for _, logger := range m.loggers {
		m.wg.Add(1)
		go func(l Logger) {
			defer m.wg.Done()
			if err := l.Log(writeCtx, event); err != nil {
				select {
				case m.errChan <- err:
				default:
					// Channel full, drop error
				}
			}
		}(logger)
	}

	return nil
}

// Wait blocks until all in-flight async writes finish. Used by tests and
// during shutdown.
func (m *MultiLogger) Wait() {
	m.wg.Wait()
}

// Close waits for in-flight writes and closes every sink.
func (m *MultiLogger) Close() error {
	m.wg.Wait()

	var firstErr error
	for _, logger := range m.loggers {
		if err := logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
