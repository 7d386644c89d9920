package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/membergate/discourse-on-ghost/pkg/observability"
)

// SafeGo executes fn in a goroutine with panic recovery, a bounded timeout,
// and error logging. Use this instead of a bare `go func()` for
// fire-and-forget work so a panicking job cannot take down the process.
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, logger *observability.Logger, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(parentCtx, timeout)
		defer cancel()

		defer func() {
			if r := recover(); r != nil {
				logger.WithFields(map[string]interface{}{
					"task":  taskName,
					"panic": fmt.Sprintf("%v", r),
					"stack": string(debug.Stack()),
				}).Error("Recovered panic in background task")
			}
		}()

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Error("Background task failed")
		}
	}()
}
