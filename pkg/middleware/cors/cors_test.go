package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
)

func newRouter(cfg Config) *ginrouter.GinRouter {
	r := ginrouter.NewRouter()
	r.Use(Middleware(cfg))
	r.GET("/movies", func(c router.Context) error { return c.String(http.StatusOK, "ok") })
	r.NotFound(func(c router.Context) error { return c.String(http.StatusNotFound, "not found") })
	return r
}

func preflight(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/movies", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCORS_SimpleRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	r := newRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Expose-Headers"); got != "X-Request-ID" {
		t.Errorf("unexpected expose headers %q", got)
	}
}

func TestCORS_ExplicitOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.AllowOrigins = []string{"https://app.example.com"}
	r := newRouter(cfg)

	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("expected origin echo, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("expected plain response without CORS headers")
	}
}

func TestCORS_Disabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	newRouter(DefaultConfig()).ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers when disabled")
	}
}

func TestCORS_Preflight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.AllowOrigins = []string{"https://app.example.com"}
	r := newRouter(cfg)

	rec := preflight(r, "https://app.example.com")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("expected requested headers echoed, got %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "43200" {
		t.Errorf("unexpected max age %q", got)
	}
	if got := rec.Header().Get("Vary"); got != "Origin" {
		t.Errorf("expected Vary: Origin, got %q", got)
	}

	rec = preflight(r, "https://evil.example.com")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unknown origin, got %d", rec.Code)
	}
}

func TestAllowed(t *testing.T) {
	origins := []string{"https://a.example.com", " https://B.example.com "}
	if !allowed(origins, "https://b.example.com") {
		t.Error("expected case-insensitive trimmed match")
	}
	if allowed(origins, "https://c.example.com") {
		t.Error("expected unknown origin to be rejected")
	}
}
