package middleware

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/khojghar/khojghar-api/internal/http/response"
	"github.com/redis/go-redis/v9"
)

// counter is the slice of the redis client the limiter needs.
type counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
}

// RateLimiter is a fixed-window per-IP limiter backed by redis, used on
// the credential endpoints (register, verify, login). On redis failure
// it fails open.
type RateLimiter struct {
	counter  counter
	requests int
	window   time.Duration
}

func NewRateLimiter(client *redis.Client, requests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{requests: requests, window: window}
	if client != nil {
		rl.counter = client
	}
	return rl
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.counter == nil {
			next.ServeHTTP(w, r)
			return
		}

		// Hash the key for privacy.
		key := fmt.Sprintf("ratelimit:%x", sha256.Sum256([]byte(clientIP(r))))

		count, err := rl.counter.Incr(r.Context(), key).Result()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			rl.counter.Expire(r.Context(), key, rl.window)
		}

		if count > int64(rl.requests) {
			response.RateLimit(w, "too many requests, try again later")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
