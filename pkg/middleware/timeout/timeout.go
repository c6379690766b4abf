// Package timeout bounds request handling time.
package timeout

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/server/router"
)

// Config configures the request deadline.
type Config struct {
	// Timeout is the per-request deadline; non-positive disables the middleware.
	Timeout time.Duration
	// ExcludedPathPrefixes run without a deadline.
	ExcludedPathPrefixes []string
}

// Middleware attaches a deadline to the request context. When the handler
// fails with an expired deadline and nothing was written, it answers 504.
func Middleware(cfg Config) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if cfg.Timeout <= 0 || excluded(c.Request().URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), cfg.Timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return err
			}
			if c.Response().Written() {
				return nil
			}
			return controller.Error(c, &controller.AppError{
				Code:       controller.CodeTimeout,
				Message:    "request timed out",
				HTTPStatus: http.StatusGatewayTimeout,
				Cause:      err,
			})
		}
	}
}

func excluded(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
