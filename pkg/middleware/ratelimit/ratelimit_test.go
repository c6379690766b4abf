package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/nimburion/movies/pkg/server/router"
	ginrouter "github.com/nimburion/movies/pkg/server/router/gin"
)

func newRouter(limiter *TokenBucketLimiter) *ginrouter.GinRouter {
	r := ginrouter.NewRouter()
	r.Use(RateLimit(limiter, nil))
	r.GET("/movies", func(c router.Context) error { return c.String(http.StatusOK, "ok") })
	return r
}

func request(r http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/movies", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	r := newRouter(NewTokenBucketLimiter(0.001, 3))

	for i := 0; i < 3; i++ {
		if rec := request(r, "10.0.0.1:1234"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
	rec := request(r, "10.0.0.1:1234")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}

	if rec := request(r, "10.0.0.2:1234"); rec.Code != http.StatusOK {
		t.Errorf("expected other clients to be unaffected, got %d", rec.Code)
	}
}

func TestTokenBucketLimiter_Concurrent(t *testing.T) {
	limiter := NewTokenBucketLimiter(0.001, 10)
	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("same-client") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 10 {
		t.Errorf("expected exactly the burst to pass, got %d", got)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded for", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"}, "10.0.0.1:80", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "10.0.0.1:80", "198.51.100.2"},
		{"remote addr", nil, "192.0.2.9:5555", "192.0.2.9"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestProperty_NeverMoreThanBurst(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a fresh key admits at most burst requests at once", prop.ForAll(
		func(burst, attempts int) bool {
			limiter := NewTokenBucketLimiter(0.0001, burst)
			allowed := 0
			for i := 0; i < attempts; i++ {
				if limiter.Allow("k") {
					allowed++
				}
			}
			return allowed <= burst && allowed == min(burst, attempts)
		},
		gen.IntRange(1, 50),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}
