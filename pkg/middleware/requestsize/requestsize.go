// Package requestsize caps request bodies.
package requestsize

import (
	"errors"
	"net/http"

	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/server/router"
)

// Middleware rejects bodies larger than maxBytes with 413. A declared
// Content-Length is checked up front; streamed bodies are cut off while read.
// A non-positive maxBytes disables the middleware.
func Middleware(maxBytes int64) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if maxBytes <= 0 || req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > maxBytes {
				return controller.Error(c, controller.NewPayloadTooLargeError(maxBytes))
			}

			req.Body = http.MaxBytesReader(c.Response(), req.Body, maxBytes)
			c.SetRequest(req)

			err := next(c)
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) && !c.Response().Written() {
				return controller.Error(c, controller.NewPayloadTooLargeError(maxBytes))
			}
			return err
		}
	}
}
