// Package ratelimit provides per-IP token bucket rate limiting middleware.
package ratelimit

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/pendergraft/matchforge/internal/middleware/realip"
)

// Config holds the configuration for rate limiting.
type Config struct {
	// Enabled enables rate limiting.
	Enabled bool
	// RequestsPerMin is the number of requests allowed per minute per IP.
	RequestsPerMin int
	// BurstSize is the maximum burst size.
	BurstSize int
	// CleanupMinutes is how often stale entries are evicted.
	CleanupMinutes int
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages per-IP limiters with periodic eviction.
type RateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	rate    rate.Limit
	burst   int
	evict   time.Duration
	stopCh  chan struct{}
}

// New creates a RateLimiter and starts its eviction loop.
func New(cfg Config) *RateLimiter {
	evict := time.Duration(cfg.CleanupMinutes) * time.Minute
	if evict <= 0 {
		evict = 10 * time.Minute
	}

	rl := &RateLimiter{
		entries: make(map[string]*entry),
		rate:    rate.Limit(float64(cfg.RequestsPerMin) / 60.0),
		burst:   cfg.BurstSize,
		evict:   evict,
		stopCh:  make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Stop ends the eviction loop.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(rl.evict)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-rl.evict)
	for ip, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, ip)
		}
	}
}

func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if e, ok := rl.entries[ip]; ok {
		e.lastSeen = time.Now()
		return e.limiter
	}
	e := &entry{limiter: rate.NewLimiter(rl.rate, rl.burst), lastSeen: time.Now()}
	rl.entries[ip] = e
	return e.limiter
}

// exemptPaths bypass rate limiting so orchestrators never get throttled.
var exemptPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
	"/metrics": true,
}

// Middleware returns the rate limiting HTTP middleware for this limiter.
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exemptPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			if !rl.limiterFor(realip.GetClientIP(r)).Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "60")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]any{
						"code":    "RATE_LIMIT_EXCEEDED",
						"message": "Too many requests. Please try again later.",
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Middleware creates a RateLimiter from cfg and returns its middleware. The
// eviction goroutine runs for the lifetime of the process.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return New(cfg).Middleware()
}
