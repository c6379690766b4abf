package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/health"
	"github.com/nimburion/movies/pkg/movie"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/server"
	"github.com/nimburion/movies/pkg/server/openapi"
	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
	"github.com/nimburion/movies/pkg/store"
	"github.com/nimburion/movies/pkg/version"
)

const readyProbeTimeout = 5 * time.Second

// runServer serves the public API and the management endpoints until
// SIGINT or SIGTERM.
func runServer(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, adapter, err := openService(cfg, log)
	if err != nil {
		return err
	}

	healthRegistry := health.NewRegistry()
	healthRegistry.Register(health.NewStoreChecker("store", adapter))

	info := version.Current(cfg.Service.Name)
	opts := &server.Options{
		Config:         cfg,
		Logger:         log,
		HealthRegistry: healthRegistry,
		Register:       movie.NewHandler(svc, log).Register,
		Docs: func(routes []router.Route) *openapi3.T {
			return apiDocument(info.APIVersion(), routes)
		},
		ShutdownHooks: []server.LifecycleHook{{
			Name: "close store",
			Fn:   func(context.Context) error { return adapter.Close() },
		}},
	}

	servers, err := server.BuildHTTPServers(opts)
	if err != nil {
		_ = adapter.Close()
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.RunHTTPServers(ctx, servers, opts)
}

// openService connects to the record store and builds the movie service.
// The caller owns the returned adapter.
func openService(cfg *config.Config, log logger.Logger) (*movie.Service, store.Adapter, error) {
	repo, adapter, err := store.OpenRepository[movie.Movie](cfg.Database, log, movie.IndexedFields()...)
	if err != nil {
		return nil, nil, fmt.Errorf("open movie store: %w", err)
	}
	policy, err := queryPolicy(cfg.Query)
	if err != nil {
		_ = adapter.Close()
		return nil, nil, err
	}
	svc, err := movie.NewService(repo, policy, log)
	if err != nil {
		_ = adapter.Close()
		return nil, nil, err
	}
	return svc, adapter, nil
}

func queryPolicy(cfg config.QueryConfig) (movie.QueryPolicy, error) {
	mode, err := movie.ParseMode(cfg.Mode)
	if err != nil {
		return movie.QueryPolicy{}, err
	}
	policy := movie.DefaultQueryPolicy()
	policy.Mode = mode
	if cfg.DefaultLimit > 0 {
		policy.DefaultLimit = cfg.DefaultLimit
	}
	policy.MaxLimit = cfg.MaxLimit
	return policy, nil
}

func apiDocument(ver string, routes []router.Route) *openapi3.T {
	return openapi.BuildSpec(movie.APIInfo(ver), routes, movie.APIAnnotations(), movie.APISchemas())
}

// buildDocument collects the movie routes on a throwaway router backed by
// the in-memory store, so generating the document needs no database.
func buildDocument(cfg *config.Config) (*openapi3.T, error) {
	log := logger.NewNop()
	memCfg := cfg.Database
	memCfg.Type = config.DatabaseTypeMemory
	repo, _, err := store.OpenRepository[movie.Movie](memCfg, log)
	if err != nil {
		return nil, err
	}
	svc, err := movie.NewService(repo, movie.DefaultQueryPolicy(), log)
	if err != nil {
		return nil, err
	}

	r := ginrouter.NewRouter()
	movie.NewHandler(svc, log).Register(r)
	return apiDocument(version.Current(cfg.Service.Name).APIVersion(), r.Routes()), nil
}

// checkReady probes the management readiness endpoint of a running instance.
func checkReady(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	if !cfg.Management.Enabled {
		return fmt.Errorf("management server is disabled, nothing to probe")
	}
	url := fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Management.Port, server.ReadyPath)
	if err := probe(ctx, url); err != nil {
		return err
	}
	log.Info("service is ready", "url", url)
	return nil
}

func probe(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build readiness request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("readiness probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service not ready: %s", resp.Status)
	}
	return nil
}
