package server

import (
	"net/http"
	"time"

	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/health"
	"github.com/nimburion/movies/pkg/middleware/logging"
	"github.com/nimburion/movies/pkg/middleware/recovery"
	"github.com/nimburion/movies/pkg/middleware/requestid"
	"github.com/nimburion/movies/pkg/observability/logger"
	"github.com/nimburion/movies/pkg/observability/metrics"
	"github.com/nimburion/movies/pkg/server/router"
	"github.com/nimburion/movies/pkg/version"
)

// Management endpoint paths.
const (
	HealthPath  = "/health"
	ReadyPath   = "/ready"
	MetricsPath = "/metrics"
	VersionPath = "/version"
)

// ManagementServer serves health, readiness, metrics and version endpoints
// on a port separate from the public API.
type ManagementServer struct {
	*Server
	healthRegistry  *health.Registry
	metricsRegistry *metrics.Registry
	info            version.Info
}

// NewManagementServer mounts the management endpoints on r:
//   - /health: liveness, always 200
//   - /ready: readiness, 503 when a registered check is unhealthy
//   - /metrics: Prometheus exposition
//   - /version: build metadata
func NewManagementServer(
	cfg config.ManagementConfig,
	r router.Router,
	log logger.Logger,
	healthRegistry *health.Registry,
	metricsRegistry *metrics.Registry,
	info version.Info,
) *ManagementServer {
	r.Use(
		requestid.RequestID(),
		recovery.Recovery(log),
		logging.WithConfig(log, logging.Config{
			Mode:                 logging.ModeMinimal,
			ExcludedPathPrefixes: []string{HealthPath, ReadyPath, MetricsPath},
		}),
	)

	s := &ManagementServer{
		Server: NewServer("management", Config{
			Port:         cfg.Port,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		}, r, log),
		healthRegistry:  healthRegistry,
		metricsRegistry: metricsRegistry,
		info:            info,
	}

	r.GET(HealthPath, s.handleHealth)
	r.GET(ReadyPath, s.handleReady)
	r.GET(MetricsPath, s.handleMetrics)
	r.GET(VersionPath, s.handleVersion)
	return s
}

func (s *ManagementServer) handleHealth(c router.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": health.StatusHealthy,
	})
}

func (s *ManagementServer) handleReady(c router.Context) error {
	result := s.healthRegistry.Check(c.Request().Context())
	if !result.IsHealthy() {
		return c.JSON(http.StatusServiceUnavailable, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *ManagementServer) handleMetrics(c router.Context) error {
	s.metricsRegistry.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

func (s *ManagementServer) handleVersion(c router.Context) error {
	return c.JSON(http.StatusOK, s.info)
}
