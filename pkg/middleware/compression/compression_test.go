package compression

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
)

var largeBody = `{"data":"` + strings.Repeat("inception ", 300) + `"}`

func newRouter(cfg Config) *ginrouter.GinRouter {
	r := ginrouter.NewRouter()
	r.Use(Middleware(cfg))
	r.GET("/movies", func(c router.Context) error {
		c.Response().Header().Set("Content-Type", "application/json")
		c.Response().WriteHeader(http.StatusOK)
		_, err := c.Response().Write([]byte(largeBody))
		return err
	})
	r.GET("/small", func(c router.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "hi"})
	})
	r.GET("/metrics", func(c router.Context) error {
		return c.String(http.StatusOK, largeBody)
	})
	r.GET("/empty", func(c router.Context) error {
		c.Response().WriteHeader(http.StatusNoContent)
		return nil
	})
	return r
}

func get(r http.Handler, path, acceptEncoding string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if acceptEncoding != "" {
		req.Header.Set("Accept-Encoding", acceptEncoding)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCompression_Gzip(t *testing.T) {
	rec := get(newRouter(DefaultConfig()), "/movies", "gzip")

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != largeBody {
		t.Error("decompressed body mismatch")
	}
}

func TestCompression_BrotliPreferred(t *testing.T) {
	rec := get(newRouter(DefaultConfig()), "/movies", "gzip, br")

	if rec.Header().Get("Content-Encoding") != "br" {
		t.Fatalf("expected br encoding, got %q", rec.Header().Get("Content-Encoding"))
	}
	body, err := io.ReadAll(brotli.NewReader(rec.Body))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != largeBody {
		t.Error("decompressed body mismatch")
	}
	if rec.Header().Get("Vary") != "Accept-Encoding" {
		t.Errorf("expected Vary header, got %q", rec.Header().Get("Vary"))
	}
}

func TestCompression_PassThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ExcludedPathPrefixes = []string{"/metrics"}
	r := newRouter(cfg)

	tests := []struct {
		name     string
		path     string
		encoding string
		wantCode int
	}{
		{"below min size", "/small", "gzip", http.StatusOK},
		{"no accept-encoding", "/movies", "", http.StatusOK},
		{"identity only", "/movies", "identity, gzip;q=0", http.StatusOK},
		{"excluded path", "/metrics", "gzip", http.StatusOK},
		{"no content", "/empty", "gzip", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(r, tt.path, tt.encoding)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if got := rec.Header().Get("Content-Encoding"); got != "" {
				t.Errorf("expected no encoding, got %q", got)
			}
		})
	}
}

func TestNegotiate(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"gzip", "gzip"},
		{"br", "br"},
		{"gzip, br", "br"},
		{"br;q=0, gzip", "gzip"},
		{"*", "br"},
		{"*, br;q=0", "gzip"},
		{"deflate", ""},
	}

	for _, tt := range tests {
		if got := negotiate(tt.header); got != tt.want {
			t.Errorf("negotiate(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
