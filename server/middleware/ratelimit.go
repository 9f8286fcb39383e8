package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"

	apperrors "github.com/kbukum/runkit/errors"
	"github.com/kbukum/runkit/resilience"
)

// maxClients bounds the per-client bucket map before idle buckets are dropped.
const maxClients = 4096

// RateLimitConfig limits requests per client IP.
//
//	rate_limit:
//	  rate: 20
//	  burst: 40
type RateLimitConfig struct {
	// Rate is the requests per second admitted per client. 0 disables it.
	Rate float64 `yaml:"rate" mapstructure:"rate" validate:"gte=0"`
	// Burst defaults to Rate rounded up.
	Burst int `yaml:"burst" mapstructure:"burst" validate:"gte=0"`
	// SkipPaths are path prefixes that are never limited.
	SkipPaths []string `yaml:"skip_paths" mapstructure:"skip_paths"`
}

// Enabled reports whether a rate is configured.
func (c *RateLimitConfig) Enabled() bool { return c.Rate > 0 }

// ApplyDefaults exempts the health and version endpoints.
func (c *RateLimitConfig) ApplyDefaults() {
	if c.SkipPaths == nil {
		c.SkipPaths = []string{"/health", "/version"}
	}
}

// RateLimit answers 429 RATE_LIMITED once a client IP runs out of tokens.
// It returns nil when cfg is disabled.
func RateLimit(cfg *RateLimitConfig) Middleware {
	if !cfg.Enabled() {
		return nil
	}
	clients := &clientBuckets{cfg: *cfg, buckets: make(map[string]*resilience.RateLimiter)}
	retryAfter := strconv.Itoa(max(1, int(math.Ceil(1/cfg.Rate))))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped(r.URL.Path, cfg.SkipPaths) {
				next.ServeHTTP(w, r)
				return
			}
			key := clientIP(r)
			if !clients.get(key).Allow() {
				w.Header().Set("Retry-After", retryAfter)
				reject(w, apperrors.RateLimited().WithDetail("client", key))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type clientBuckets struct {
	cfg     RateLimitConfig
	mu      sync.Mutex
	buckets map[string]*resilience.RateLimiter
}

func (c *clientBuckets) get(key string) *resilience.RateLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rl, ok := c.buckets[key]; ok {
		return rl
	}
	if len(c.buckets) >= maxClients {
		c.evictFull()
	}
	rl := resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:  key,
		Rate:  c.cfg.Rate,
		Burst: c.cfg.Burst,
	})
	c.buckets[key] = rl
	return rl
}

// evictFull drops buckets that have refilled completely; a new bucket for
// the same client starts full, so nothing is lost.
func (c *clientBuckets) evictFull() {
	burst := float64(c.cfg.Burst)
	if c.cfg.Burst <= 0 {
		burst = math.Max(1, math.Ceil(c.cfg.Rate))
	}
	for key, rl := range c.buckets {
		if rl.Tokens() >= burst {
			delete(c.buckets, key)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
