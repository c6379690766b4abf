// Package logging writes one structured access-log entry per request.
package logging

import (
	"net/http"
	"strings"
	"time"

	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/server/router"
)

// Mode selects how much is logged for a request.
type Mode string

const (
	ModeOff     Mode = "off"
	ModeMinimal Mode = "minimal"
	ModeFull    Mode = "full"
)

// Config configures the access log.
type Config struct {
	Mode Mode
	// ExcludedPathPrefixes are never logged.
	ExcludedPathPrefixes []string
}

// DefaultConfig logs every request in minimal mode.
func DefaultConfig() Config {
	return Config{Mode: ModeMinimal}
}

// WithConfig creates the access-log middleware. Responses with status >= 500
// or a handler error are logged at error level, 4xx at warn, the rest at info.
func WithConfig(log logger.Logger, cfg Config) router.MiddlewareFunc {
	mode := parseMode(cfg.Mode)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			req := c.Request()
			if mode == ModeOff || excluded(req.URL.Path, cfg.ExcludedPathPrefixes) {
				return next(c)
			}

			start := time.Now()
			err := next(c)
			status := c.Response().Status()

			fields := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if mode == ModeFull {
				fields = append(fields,
					"route", c.Route(),
					"query", req.URL.RawQuery,
					"remote_addr", req.RemoteAddr,
					"user_agent", req.UserAgent(),
					"request_length", req.ContentLength,
				)
			}
			if err != nil {
				fields = append(fields, "error", err.Error())
			}

			entry := log.WithContext(c.Request().Context())
			switch {
			case err != nil || status >= http.StatusInternalServerError:
				entry.Error("request failed", fields...)
			case status >= http.StatusBadRequest:
				entry.Warn("request completed", fields...)
			default:
				entry.Info("request completed", fields...)
			}
			return err
		}
	}
}

func parseMode(mode Mode) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(string(mode)))) {
	case ModeOff:
		return ModeOff
	case ModeFull:
		return ModeFull
	default:
		return ModeMinimal
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
