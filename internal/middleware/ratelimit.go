package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines a fixed-window limit. Both fields must be > 0.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Validate returns an error if RequestsPerWindow <= 0 or WindowDuration <= 0.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultClockLimit is the default limit for clock submissions: 10 per minute per principal.
func DefaultClockLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
}

// RateLimitStore holds rate limit state.
type RateLimitStore interface {
	// Allow reports whether a request for key fits in the current window,
	// how many requests remain, and the seconds until the window resets when
	// the request was rejected.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int)
}

type bucket struct {
	count     int
	windowEnd time.Time
}

// InMemoryRateLimitStore is a fixed-window counter kept in process memory.
// Thread-safe.
type InMemoryRateLimitStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewInMemoryRateLimitStore creates a new in-memory rate limit store.
func NewInMemoryRateLimitStore() *InMemoryRateLimitStore {
	return &InMemoryRateLimitStore{
		buckets: make(map[string]*bucket),
	}
}

// Allow implements RateLimitStore.
func (s *InMemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	b, exists := s.buckets[key]
	if !exists || now.After(b.windowEnd) {
		s.buckets[key] = &bucket{count: 1, windowEnd: now.Add(config.WindowDuration)}
		return true, config.RequestsPerWindow - 1, 0
	}

	if b.count < config.RequestsPerWindow {
		b.count++
		return true, config.RequestsPerWindow - b.count, 0
	}

	retryAfter := int(b.windowEnd.Sub(now).Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// Cleanup removes expired buckets. Call periodically.
func (s *InMemoryRateLimitStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, b := range s.buckets {
		if now.After(b.windowEnd) {
			delete(s.buckets, key)
		}
	}
}

// RedisRateLimitStore keeps fixed-window counters in Redis so limits hold
// across API replicas.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics makes the store count Redis failures.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow implements RateLimitStore. Redis errors fail open: a broken limiter
// must not block clock-ins.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, config.WindowDuration)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.WarnContext(ctx, "rate limit store unavailable, allowing request", "error", err)
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		return true, config.RequestsPerWindow, 0
	}

	count := int(incr.Val())
	if count <= config.RequestsPerWindow {
		return true, config.RequestsPerWindow - count, 0
	}

	retryAfter := int(ttl.Val().Seconds())
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// PrincipalKeyFunc keys by authenticated principal, falling back to client IP.
func PrincipalKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		if p, ok := GetPrincipal(r.Context()); ok && p.ID != "" {
			return "principal:" + p.ID
		}
		ip := GetClientIP(r.Context())
		if ip == "" {
			ip = ExtractClientIP(r, false)
		}
		return "ip:" + ip
	}
}

// RateLimiter returns 429 Too Many Requests once the limit for a key is exhausted.
// endpoint labels the metrics; m may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, endpoint string, m *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			keyType, _, ok := strings.Cut(key, ":")
			if !ok {
				keyType = "unknown"
			}
			if m != nil {
				m.IncRateLimitRequests(endpoint, keyType)
			}

			allowed, remaining, retryAfter := store.Allow(r.Context(), key, config)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if m != nil {
					m.IncRateLimitBlocked(endpoint, keyType)
				}
				r = r.WithContext(SetErrorCode(r.Context(), "rate_limited"))
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				resetTime := time.Now().Add(time.Duration(retryAfter) * time.Second).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
