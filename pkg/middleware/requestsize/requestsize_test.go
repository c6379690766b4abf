package requestsize

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
)

func newRouter(limit int64) *ginrouter.GinRouter {
	r := ginrouter.NewRouter()
	r.Use(Middleware(limit))
	r.POST("/movies", func(c router.Context) error {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return err
		}
		return c.String(http.StatusCreated, string(body))
	})
	return r
}

func TestRequestSize(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		body     string
		chunked  bool
		wantCode int
	}{
		{"under limit", 16, `{"title":"x"}`, false, http.StatusCreated},
		{"declared over limit", 8, `{"title":"too long"}`, false, http.StatusRequestEntityTooLarge},
		{"streamed over limit", 8, `{"title":"too long"}`, true, http.StatusRequestEntityTooLarge},
		{"disabled", 0, strings.Repeat("x", 4096), false, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/movies", strings.NewReader(tt.body))
			if tt.chunked {
				req.ContentLength = -1
			}
			rec := httptest.NewRecorder()
			newRouter(tt.limit).ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantCode == http.StatusRequestEntityTooLarge && !strings.Contains(rec.Body.String(), "request_too_large") {
				t.Errorf("unexpected body %s", rec.Body.String())
			}
		})
	}
}
