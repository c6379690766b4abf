// Package cors answers CORS preflights and decorates cross-origin responses.
package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/movies/pkg/server/router"
)

// Config configures CORS.
type Config struct {
	Enabled bool
	// AllowOrigins lists exact origins; "*" allows any origin.
	AllowOrigins []string
	AllowMethods []string
	// AllowHeaders defaults to echoing Access-Control-Request-Headers.
	AllowHeaders  []string
	ExposeHeaders []string
	MaxAge        time.Duration
}

// DefaultConfig allows every origin with the methods the API serves.
func DefaultConfig() Config {
	return Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
}

// Middleware returns the CORS middleware. Preflights from allowed origins
// get 204, from other origins 403; simple requests always reach the handler.
func Middleware(cfg Config) router.MiddlewareFunc {
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = DefaultConfig().AllowMethods
	}
	anyOrigin := false
	for _, o := range cfg.AllowOrigins {
		if strings.TrimSpace(o) == "*" {
			anyOrigin = true
		}
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			origin := req.Header.Get("Origin")
			if !cfg.Enabled || origin == "" {
				return next(c)
			}

			preflight := req.Method == http.MethodOptions && req.Header.Get("Access-Control-Request-Method") != ""
			if !anyOrigin && !allowed(cfg.AllowOrigins, origin) {
				if preflight {
					c.Response().WriteHeader(http.StatusForbidden)
					return nil
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Add("Vary", "Origin")
			if anyOrigin {
				h.Set("Access-Control-Allow-Origin", "*")
			} else {
				h.Set("Access-Control-Allow-Origin", origin)
			}
			if len(cfg.ExposeHeaders) > 0 {
				h.Set("Access-Control-Expose-Headers", strings.Join(cfg.ExposeHeaders, ", "))
			}

			if !preflight {
				return next(c)
			}

			h.Set("Access-Control-Allow-Methods", strings.Join(cfg.AllowMethods, ", "))
			if len(cfg.AllowHeaders) > 0 {
				h.Set("Access-Control-Allow-Headers", strings.Join(cfg.AllowHeaders, ", "))
			} else if requested := req.Header.Get("Access-Control-Request-Headers"); requested != "" {
				h.Set("Access-Control-Allow-Headers", requested)
			}
			if cfg.MaxAge > 0 {
				h.Set("Access-Control-Max-Age", strconv.Itoa(int(cfg.MaxAge/time.Second)))
			}
			c.Response().WriteHeader(http.StatusNoContent)
			return nil
		}
	}
}

func allowed(origins []string, origin string) bool {
	for _, o := range origins {
		if strings.EqualFold(strings.TrimSpace(o), origin) {
			return true
		}
	}
	return false
}
