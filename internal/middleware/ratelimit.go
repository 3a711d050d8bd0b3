package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/forgo/sipmate/api/internal/model"
)

// RateLimiter is a per-key token bucket. Each key starts with Rate+Burst
// tokens and refills Rate tokens per Window.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	rate     int
	window   time.Duration
	burst    int
	cleanup  time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	tokens    int
	lastReset time.Time
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	Rate    int           // Requests per window (default 10)
	Window  time.Duration // Time window (default 1 minute)
	Burst   int           // Extra requests allowed up front (default 5)
	Cleanup time.Duration // Cleanup interval (default 5 minutes)
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Burst < 0 {
		cfg.Burst = 0
	} else if cfg.Burst == 0 {
		cfg.Burst = 5
	}
	if cfg.Cleanup <= 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     cfg.Rate,
		window:   cfg.Window,
		burst:    cfg.Burst,
		cleanup:  cfg.Cleanup,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopChan) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupExpired()
		case <-rl.stopChan:
			return
		}
	}
}

func (rl *RateLimiter) cleanupExpired() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * rl.window)
	for key, b := range rl.buckets {
		if b.lastReset.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// Allow takes a token for key if one is available
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetTime time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	capacity := rl.rate + rl.burst

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, lastReset: now}
		rl.buckets[key] = b
	} else if elapsed := now.Sub(b.lastReset); elapsed >= rl.window {
		b.tokens = capacity
		b.lastReset = now
	} else if refill := int(float64(rl.rate) * float64(elapsed) / float64(rl.window)); refill > 0 {
		b.tokens = min(capacity, b.tokens+refill)
		b.lastReset = now
	}

	resetTime = b.lastReset.Add(rl.window)
	if b.tokens == 0 {
		return false, 0, resetTime
	}
	b.tokens--
	return true, b.tokens, resetTime
}

// ClientKey identifies the caller by address. The first X-Forwarded-For hop
// wins over the connection's remote address.
func ClientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimit limits requests per signed-in user, or per client address for
// anonymous requests
func RateLimit(limiter *RateLimiter) Middleware {
	return RateLimitBy(limiter, func(r *http.Request) string {
		if id := GetUserID(r.Context()); id != "" {
			return id
		}
		return ClientKey(r)
	})
}

// RateLimitBy limits requests using the bucket chosen by key
func RateLimitBy(limiter *RateLimiter, key func(*http.Request) string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, resetTime := limiter.Allow(key(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.rate))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

			if !allowed {
				retryAfter := max(1, int(resetTime.Sub(limiter.now()).Seconds()))
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
