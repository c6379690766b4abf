// Package metrics records request metrics into a metrics.Registry.
package metrics

import (
	"time"

	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/server/router"
)

// unmatchedRoute labels requests that matched no route.
const unmatchedRoute = "unmatched"

// Metrics tracks in-flight requests and records duration and count by
// method, route pattern and status.
func Metrics(reg *metrics.Registry) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			done := reg.RequestStarted()
			defer done()

			start := time.Now()
			err := next(c)

			route := c.Route()
			if route == "" {
				route = unmatchedRoute
			}
			reg.ObserveHTTP(c.Request().Method, route, c.Response().Status(), time.Since(start))
			return err
		}
	}
}
