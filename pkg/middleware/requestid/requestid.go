// Package requestid tags every request with a correlation identifier.
package requestid

import (
	"context"

	"github.com/google/uuid"

	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/server/router"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

// maxLength bounds client-supplied IDs; longer values are replaced.
const maxLength = 128

// ContextKey is the router.Context key holding the request ID.
const ContextKey = "request_id"

// RequestID reuses a sane inbound X-Request-ID or generates a UUID, echoes it
// on the response and stores it in the request context for the logger.
func RequestID() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			id := c.Request().Header.Get(Header)
			if !valid(id) {
				id = uuid.NewString()
			}

			c.Set(ContextKey, id)
			c.Response().Header().Set(Header, id)
			ctx := logger.ContextWithRequestID(c.Request().Context(), id)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// FromContext returns the request ID stored by RequestID, or "".
func FromContext(ctx context.Context) string {
	return logger.RequestIDFromContext(ctx)
}

func valid(id string) bool {
	if id == "" || len(id) > maxLength {
		return false
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return false
		}
	}
	return true
}
