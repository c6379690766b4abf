// Package ratelimit throttles clients with a per-key token bucket.
package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/nimburion/movies/pkg/controller"
	"github.com/nimburion/movies/pkg/server/router"
)

// TokenBucketLimiter keeps one token bucket per key.
// TODO: evict buckets of clients that have been idle for a while.
type TokenBucketLimiter struct {
	limiters sync.Map // key -> *rate.Limiter
	rate     rate.Limit
	burst    int
}

// NewTokenBucketLimiter allows requestsPerSecond on average per key with
// bursts of up to burst requests.
func NewTokenBucketLimiter(requestsPerSecond float64, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{rate: rate.Limit(requestsPerSecond), burst: burst}
}

// Allow consumes one token from key's bucket.
func (l *TokenBucketLimiter) Allow(key string) bool {
	v, _ := l.limiters.LoadOrStore(key, rate.NewLimiter(l.rate, l.burst))
	return v.(*rate.Limiter).Allow()
}

// retryAfter is the Retry-After value in seconds for rejected requests.
func (l *TokenBucketLimiter) retryAfter() int {
	if l.rate <= 0 {
		return 1
	}
	seconds := int(1/float64(l.rate) + 0.5)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// KeyFunc extracts the throttling key from a request.
type KeyFunc func(router.Context) string

// RateLimit rejects requests over the limit with 429 and a Retry-After header.
// A nil keyFunc throttles by client IP.
func RateLimit(limiter *TokenBucketLimiter, keyFunc KeyFunc) router.MiddlewareFunc {
	if keyFunc == nil {
		keyFunc = func(c router.Context) string { return ClientIP(c.Request()) }
	}
	retry := strconv.Itoa(limiter.retryAfter())

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if limiter.Allow(keyFunc(c)) {
				return next(c)
			}
			c.Response().Header().Set("Retry-After", retry)
			return controller.Error(c, &controller.AppError{
				Code:       controller.CodeRateLimit,
				Message:    "rate limit exceeded",
				HTTPStatus: http.StatusTooManyRequests,
			})
		}
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
