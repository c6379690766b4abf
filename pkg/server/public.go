package server

import (
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/middleware/compression"
	"github.com/nimburion/movies/pkg/middleware/cors"
	"github.com/nimburion/movies/pkg/middleware/logging"
	metricsmw "github.com/nimburion/movies/pkg/middleware/metrics"
	"github.com/nimburion/movies/pkg/middleware/ratelimit"
	"github.com/nimburion/movies/pkg/middleware/recovery"
	"github.com/nimburion/movies/pkg/middleware/requestid"
	"github.com/nimburion/movies/pkg/middleware/requestsize"
	timeoutmw "github.com/nimburion/movies/pkg/middleware/timeout"
	tracingmw "github.com/nimburion/movies/pkg/middleware/tracing"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/server/openapi"
	"github.com/nimburion/movies/pkg/server/router"
)

// notFoundRouter is implemented by routers that accept a fallback handler.
type notFoundRouter interface {
	NotFound(h router.HandlerFunc)
}

// PublicAPIServer serves application traffic.
type PublicAPIServer struct {
	*Server
	middleware []string
}

type namedMiddleware struct {
	name string
	fn   router.MiddlewareFunc
}

// NewPublicAPIServer installs the middleware stack on r and wraps it in a
// server. Routes must be registered on r afterwards. The stack, outermost
// first:
//
//	request_id, recovery, logging, tracing (when enabled), metrics, timeout,
//	rate_limit (when enabled), cors, compression, request_size
func NewPublicAPIServer(cfg *config.Config, r router.Router, log logger.Logger, reg *metrics.Registry) *PublicAPIServer {
	docsPrefixes := []string{openapi.DocsPath}

	stack := []namedMiddleware{
		{name: "request_id", fn: requestid.RequestID()},
		{name: "recovery", fn: recovery.Recovery(log)},
		{name: "logging", fn: logging.WithConfig(log, logging.Config{Mode: logging.ModeMinimal, ExcludedPathPrefixes: docsPrefixes})},
	}
	if cfg.Observability.TracingEnabled {
		stack = append(stack, namedMiddleware{name: "tracing", fn: tracingmw.Tracing(tracingmw.Config{
			TracerName:           cfg.Service.Name,
			ExcludedPathPrefixes: docsPrefixes,
		})})
	}
	if reg != nil {
		stack = append(stack, namedMiddleware{name: "metrics", fn: metricsmw.Metrics(reg)})
	}
	stack = append(stack, namedMiddleware{name: "timeout", fn: timeoutmw.Middleware(timeoutmw.Config{
		Timeout: cfg.Observability.RequestTimeout,
	})})
	if rl := cfg.HTTP.RateLimit; rl.Enabled {
		limiter := ratelimit.NewTokenBucketLimiter(rl.RequestsPerSecond, rl.Burst)
		stack = append(stack, namedMiddleware{name: "rate_limit", fn: ratelimit.RateLimit(limiter, nil)})
	}

	corsCfg := cors.DefaultConfig()
	corsCfg.Enabled = cfg.HTTP.CORS.Enabled
	corsCfg.AllowOrigins = cfg.HTTP.CORS.AllowOrigins
	compressionCfg := compression.DefaultConfig()
	compressionCfg.Enabled = cfg.HTTP.Compression.Enabled
	compressionCfg.MinSize = cfg.HTTP.Compression.MinSize
	stack = append(stack,
		namedMiddleware{name: "cors", fn: cors.Middleware(corsCfg)},
		namedMiddleware{name: "compression", fn: compression.Middleware(compressionCfg)},
		namedMiddleware{name: "request_size", fn: requestsize.Middleware(cfg.HTTP.MaxRequestSize)},
	)

	names := make([]string, 0, len(stack))
	fns := make([]router.MiddlewareFunc, 0, len(stack))
	for _, m := range stack {
		names = append(names, m.name)
		fns = append(fns, m.fn)
	}
	log.Debug("active middleware stack", "middlewares", strings.Join(names, ", "))
	r.Use(fns...)

	if nf, ok := r.(notFoundRouter); ok {
		nf.NotFound(func(c router.Context) error {
			return controller.Error(c, controller.NewNotFoundError("route not found"))
		})
	}

	return &PublicAPIServer{
		Server: NewServer("public", Config{
			Port:         cfg.HTTP.Port,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}, r, log),
		middleware: names,
	}
}

// Middleware lists the installed middleware, outermost first.
func (s *PublicAPIServer) Middleware() []string {
	return append([]string(nil), s.middleware...)
}

// MountDocs serves Swagger UI and the OpenAPI document on the public router.
func (s *PublicAPIServer) MountDocs(doc *openapi3.T) error {
	h, err := openapi.NewHandler(doc)
	if err != nil {
		return err
	}
	h.RegisterRoutes(s.router)
	return nil
}
