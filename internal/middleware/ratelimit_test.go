package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/onnwee/timeguard/internal/access"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	if err := DefaultClockLimit().Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if err := (RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Second}).Validate(); err == nil {
		t.Error("expected error for zero requests")
	}
	if err := (RateLimitConfig{RequestsPerWindow: 1}).Validate(); err == nil {
		t.Error("expected error for zero window")
	}
}

func TestInMemoryRateLimitStore_Allow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, remaining, _ := store.Allow(ctx, "k", cfg)
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if remaining != 2-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 2-i)
		}
	}

	allowed, _, retryAfter := store.Allow(ctx, "k", cfg)
	if allowed {
		t.Error("4th request should be blocked")
	}
	if retryAfter < 1 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}

	if allowed, _, _ := store.Allow(ctx, "other", cfg); !allowed {
		t.Error("independent key should be allowed")
	}
}

func TestInMemoryRateLimitStore_WindowExpiry(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond}
	ctx := context.Background()

	store.Allow(ctx, "k", cfg)
	if allowed, _, _ := store.Allow(ctx, "k", cfg); allowed {
		t.Fatal("second request in window should be blocked")
	}
	time.Sleep(20 * time.Millisecond)
	store.Cleanup()
	if allowed, _, _ := store.Allow(ctx, "k", cfg); !allowed {
		t.Error("request after window should be allowed")
	}
}

func TestRateLimiter_Middleware(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	m := NewMetrics()
	if err := m.Register(prometheus.NewRegistry()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	handler := RateLimiter(store, cfg, PrincipalKeyFunc(), "/clock-events", m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/clock-events", nil)
		return req.WithContext(SetPrincipal(req.Context(), access.Principal{ID: "emp-1", Role: access.RoleEmployee}))
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newReq())
	if rr.Code != http.StatusCreated {
		t.Fatalf("first request status = %d, want 201", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newReq())
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rr.Code)
	}
	if _, err := strconv.Atoi(rr.Header().Get("Retry-After")); err != nil {
		t.Errorf("Retry-After should be an integer, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestPrincipalKeyFunc_FallsBackToIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "1.2.3.4:80"
	if got := PrincipalKeyFunc()(req); got != "ip:1.2.3.4" {
		t.Errorf("key = %q, want ip:1.2.3.4", got)
	}
}

// TestRedisRateLimitStore_Allow requires Redis on localhost:6379 and is
// skipped otherwise.
func TestRedisRateLimitStore_Allow(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	store := NewRedisRateLimitStore(client)
	cfg := RateLimitConfig{RequestsPerWindow: 5, WindowDuration: time.Minute}
	key := "test-redis-key-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	ctx = context.Background()
	defer client.Del(ctx, "ratelimit:"+key)

	for i := 0; i < 5; i++ {
		allowed, remaining, _ := store.Allow(ctx, key, cfg)
		if !allowed {
			t.Errorf("request %d should be allowed", i+1)
		}
		if remaining != 4-i {
			t.Errorf("request %d: remaining = %d, want %d", i+1, remaining, 4-i)
		}
	}
	allowed, _, retryAfter := store.Allow(ctx, key, cfg)
	if allowed {
		t.Error("6th request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 60 {
		t.Errorf("retryAfter = %d, want 1..60", retryAfter)
	}
}

func TestRedisRateLimitStore_FailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	m := NewMetrics()
	store := NewRedisRateLimitStore(client).WithMetrics(m)
	allowed, _, _ := store.Allow(context.Background(), "k", DefaultClockLimit())
	if !allowed {
		t.Error("unreachable Redis should fail open")
	}
}
