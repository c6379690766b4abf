package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/movies/pkg/config"
	"github.com/nimburion/movies/pkg/health"
	"github.com/nimburion/movies/pkg/observability/metrics"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
	"github.com/nimburion/movies/pkg/testutil"
	"github.com/nimburion/movies/pkg/version"
)

func newTestManagement(t *testing.T, checks ...health.Checker) *ManagementServer {
	t.Helper()
	reg := health.NewRegistry()
	for _, c := range checks {
		reg.Register(c)
	}
	return NewManagementServer(
		config.DefaultConfig().Management,
		ginrouter.NewRouter(),
		&testutil.MockLogger{},
		reg,
		metrics.NewRegistry("movies"),
		version.Info{Service: "movies", Version: "v1.2.3", Commit: "abc", BuildTime: version.Unknown},
	)
}

func get(s *ManagementServer, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestManagementHealthIsAlwaysOK(t *testing.T) {
	s := newTestManagement(t, health.NewStoreChecker("store", health.CheckableFunc(func(context.Context) error {
		return errors.New("down")
	})))

	rec := get(s, HealthPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"healthy"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestManagementReady(t *testing.T) {
	tests := []struct {
		name       string
		check      error
		wantStatus int
		wantState  health.Status
	}{
		{name: "store reachable", wantStatus: http.StatusOK, wantState: health.StatusHealthy},
		{name: "store unreachable", check: errors.New("connection refused"), wantStatus: http.StatusServiceUnavailable, wantState: health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestManagement(t, health.NewStoreChecker("store", health.CheckableFunc(func(context.Context) error {
				return tt.check
			})))

			rec := get(s, ReadyPath)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var result health.AggregatedResult
			if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if result.Status != tt.wantState {
				t.Errorf("status field = %q, want %q", result.Status, tt.wantState)
			}
		})
	}
}

func TestManagementMetrics(t *testing.T) {
	rec := get(newTestManagement(t), MetricsPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("runtime collectors missing from exposition")
	}
}

func TestManagementVersion(t *testing.T) {
	rec := get(newTestManagement(t), VersionPath)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var info version.Info
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Version != "v1.2.3" || info.Service != "movies" {
		t.Errorf("info = %+v", info)
	}
}
