package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/health"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/observability/tracing"
	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
	"github.com/nimburion/movies/pkg/version"
)

// LifecycleHook defines a named startup/shutdown action.
type LifecycleHook struct {
	Name string
	Fn   func(context.Context) error
}

// Options are the inputs for building and running the HTTP servers.
type Options struct {
	Config *config.Config
	Logger logger.Logger

	// PublicRouter and ManagementRouter default to gin routers.
	PublicRouter     router.Router
	ManagementRouter router.Router

	HealthRegistry  *health.Registry
	MetricsRegistry *metrics.Registry

	// Register mounts the application routes on the public router.
	Register func(r router.Router)
	// Docs builds the API document from the registered routes. It is only
	// called when swagger is enabled.
	Docs func(routes []router.Route) *openapi3.T

	StartupHooks        []LifecycleHook
	ShutdownHooks       []LifecycleHook
	ShutdownHookTimeout time.Duration
}

// HTTPServers groups the runtime public/management servers.
type HTTPServers struct {
	Public     *PublicAPIServer
	Management *ManagementServer
}

// BuildHTTPServers constructs the servers described by opts. Missing
// optional inputs are filled in on opts.
func BuildHTTPServers(opts *Options) (*HTTPServers, error) {
	if opts.Config == nil {
		opts.Config = config.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	if opts.PublicRouter == nil {
		opts.PublicRouter = ginrouter.NewRouter()
	}
	if opts.MetricsRegistry == nil {
		opts.MetricsRegistry = metrics.NewRegistry(MetricsNamespace(opts.Config))
	}
	if opts.HealthRegistry == nil {
		opts.HealthRegistry = health.NewRegistry()
	}

	public := NewPublicAPIServer(opts.Config, opts.PublicRouter, opts.Logger, opts.MetricsRegistry)
	if opts.Register != nil {
		opts.Register(opts.PublicRouter)
	}
	if opts.Config.Swagger.Enabled && opts.Docs != nil {
		if err := public.MountDocs(opts.Docs(opts.PublicRouter.Routes())); err != nil {
			return nil, fmt.Errorf("mount api docs: %w", err)
		}
	}

	servers := &HTTPServers{Public: public}
	if !opts.Config.Management.Enabled {
		return servers, nil
	}

	if opts.ManagementRouter == nil {
		opts.ManagementRouter = ginrouter.NewRouter()
	}
	servers.Management = NewManagementServer(
		opts.Config.Management,
		opts.ManagementRouter,
		opts.Logger,
		opts.HealthRegistry,
		opts.MetricsRegistry,
		version.Current(serviceName(opts.Config)),
	)
	return servers, nil
}

// RunHTTPServers starts the servers and blocks until ctx is cancelled or a
// server fails. Tracing is initialized first and flushed last; startup hooks
// run before listening and shutdown hooks after the servers drained.
func RunHTTPServers(ctx context.Context, servers *HTTPServers, opts *Options) error {
	if servers == nil || servers.Public == nil {
		return errors.New("servers and public server are required")
	}
	if opts.Logger == nil {
		return errors.New("logger is required")
	}
	if opts.Config == nil {
		return errors.New("config is required")
	}

	info := version.Current(serviceName(opts.Config))
	opts.Logger.Info("application version metadata",
		"service", info.Service,
		"version", info.Version,
		"commit", info.Commit,
		"build_time", info.BuildTime,
	)

	shutdownTracing, err := InitTracing(ctx, opts.Config, info, opts.Logger)
	if err != nil {
		return fmt.Errorf("initialize tracing provider: %w", err)
	}
	defer shutdownTracing()

	if err := runStartupHooks(ctx, opts); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := runShutdownHooks(opts); shutdownErr != nil {
			opts.Logger.Error("shutdown hooks completed with errors", "error", shutdownErr)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverCount := 1
	if servers.Management != nil {
		serverCount = 2
	}

	errCh := make(chan error, serverCount)
	go func() { errCh <- servers.Public.Start(runCtx) }()
	if servers.Management != nil {
		go func() { errCh <- servers.Management.Start(runCtx) }()
	}

	var firstErr error
	for idx := 0; idx < serverCount; idx++ {
		currentErr := <-errCh
		if currentErr != nil && firstErr == nil {
			firstErr = currentErr
			cancel()
		}
	}
	return firstErr
}

// InitTracing installs the tracer provider described by cfg.Observability.
// The returned function flushes and stops it.
func InitTracing(ctx context.Context, cfg *config.Config, info version.Info, log logger.Logger) (func(), error) {
	provider, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    info.Service,
		ServiceVersion: info.Version,
		Environment:    normalizeEnvironment(cfg.Service.Environment),
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, err
	}
	if provider.Enabled() {
		log.Info("tracing enabled", "endpoint", cfg.Observability.TracingEndpoint)
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to shutdown tracing provider", "error", err)
		}
	}, nil
}

func normalizeEnvironment(env string) string {
	trimmed := strings.TrimSpace(env)
	if trimmed == "" {
		return version.Unknown
	}
	return trimmed
}

func serviceName(cfg *config.Config) string {
	if cfg != nil {
		if trimmed := strings.TrimSpace(cfg.Service.Name); trimmed != "" {
			return trimmed
		}
	}
	return version.Unknown
}

// MetricsNamespace turns the service name into a Prometheus-safe prefix.
func MetricsNamespace(cfg *config.Config) string {
	name := serviceName(cfg)
	if name == version.Unknown {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func runStartupHooks(ctx context.Context, opts *Options) error {
	for _, hook := range opts.StartupHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("startup hook start", "hook", name)
		if err := hook.Fn(ctx); err != nil {
			opts.Logger.Error("startup hook failed", "hook", name, "error", err)
			return fmt.Errorf("startup hook %q failed: %w", name, err)
		}
		opts.Logger.Info("startup hook complete", "hook", name)
	}
	return nil
}

func runShutdownHooks(opts *Options) error {
	timeout := opts.ShutdownHookTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var errs []error
	for _, hook := range opts.ShutdownHooks {
		if hook.Fn == nil {
			continue
		}
		name := hookName(hook)
		opts.Logger.Info("shutdown hook start", "hook", name)

		hookCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := hook.Fn(hookCtx)
		cancel()

		if err != nil {
			opts.Logger.Error("shutdown hook failed", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("shutdown hook %q failed: %w", name, err))
			continue
		}
		opts.Logger.Info("shutdown hook complete", "hook", name)
	}
	return errors.Join(errs...)
}

func hookName(hook LifecycleHook) string {
	if name := strings.TrimSpace(hook.Name); name != "" {
		return name
	}
	return "unnamed"
}
