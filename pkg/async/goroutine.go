package async

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/openreach/openreach/pkg/observability"
)

// SafeGo executes fn in a detached goroutine with panic recovery and a
// timeout. The goroutine is started before SafeGo returns, so a caller that
// must guarantee a task was launched (not silently dropped) before
// responding can rely on it.
//
// The task runs on its own context derived from parentCtx, so it survives
// the end of a request when parentCtx is context.Background().
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": r,
					"stack": string(debug.Stack()),
				}).Error("panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("background task failed")
		}
	}()
}
