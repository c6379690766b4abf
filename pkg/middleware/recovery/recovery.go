// Package recovery turns handler panics into 500 responses.
package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/server/router"
)

// Recovery recovers from panics, logs them with the stack trace and writes
// the standard internal error body when nothing was written yet.
func Recovery(log logger.Logger) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				ctx := c.Request().Context()
				log.WithContext(ctx).Error("panic recovered",
					"panic", fmt.Sprint(r),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"stack", string(debug.Stack()),
				)

				if c.Response().Written() {
					err = nil
					return
				}
				err = controller.Error(c, controller.NewInternalError("", fmt.Errorf("panic: %v", r)))
			}()

			return next(c)
		}
	}
}
