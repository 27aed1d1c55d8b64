package idempotency

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// exerciseRepository runs the Repository contract against repo.
func exerciseRepository(t *testing.T, repo Repository, key string) {
	t.Helper()
	ctx := context.Background()

	if _, err := repo.Get(ctx, key); err != ErrKeyNotFound {
		t.Fatalf("Get() on empty repo = %v, want ErrKeyNotFound", err)
	}

	rec := &Record{Key: key, Method: "POST", Route: "/clock-events", Status: StatusProcessing}
	if err := repo.Reserve(ctx, rec); err != nil {
		t.Fatalf("Reserve() error = %v", err)
	}
	if err := repo.Reserve(ctx, &Record{Key: key, Status: StatusProcessing}); err != ErrKeyExists {
		t.Fatalf("second Reserve() = %v, want ErrKeyExists", err)
	}

	got, err := repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusProcessing || got.CreatedAt.IsZero() {
		t.Errorf("unexpected reserved record: %+v", got)
	}

	body := `{"id":"evt-1"}`
	done := *rec
	done.Status = StatusCompleted
	done.StatusCode = 201
	done.ContentType = "application/json"
	done.Body = body
	done.ResponseHash = ComputeResponseHash(body)
	if err := repo.Complete(ctx, &done); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, err = repo.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after Complete error = %v", err)
	}
	if got.Status != StatusCompleted || got.StatusCode != 201 || got.Body != body {
		t.Errorf("unexpected completed record: %+v", got)
	}

	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := repo.Get(ctx, key); err != ErrKeyNotFound {
		t.Errorf("Get() after Release = %v, want ErrKeyNotFound", err)
	}
	if err := repo.Complete(ctx, &done); err != ErrKeyNotFound {
		t.Errorf("Complete() after Release = %v, want ErrKeyNotFound", err)
	}
}

func TestInMemoryRepository(t *testing.T) {
	exerciseRepository(t, NewInMemoryRepository(), "user-1:key-1")
}

func TestInMemoryRepository_RejectsInvalidKey(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Reserve(context.Background(), &Record{Key: ""}); err != ErrInvalidKey {
		t.Errorf("Reserve() = %v, want ErrInvalidKey", err)
	}
}

func TestInMemoryRepository_ConcurrentReserve(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Reserve(ctx, &Record{Key: "same", Status: StatusProcessing}); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 1 {
		t.Errorf("expected exactly one successful reservation, got %d", won)
	}
}

func TestCleanupOldKeys(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	if err := repo.Reserve(ctx, &Record{Key: "old", CreatedAt: now.Add(-25 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Reserve(ctx, &Record{Key: "recent", CreatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatal(err)
	}

	deleted, err := CleanupOldKeys(ctx, repo, DefaultExpiry)
	if err != nil {
		t.Fatalf("CleanupOldKeys() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get(ctx, "old"); err != ErrKeyNotFound {
		t.Errorf("old key should be gone, got %v", err)
	}
	if _, err := repo.Get(ctx, "recent"); err != nil {
		t.Errorf("recent key should remain, got %v", err)
	}
}

// TestRedisRepository requires Redis on localhost:6379 and is skipped otherwise.
func TestRedisRepository(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	key := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(context.Background(), redisKeyPrefix+key)

	exerciseRepository(t, NewRedisRepository(client, time.Minute), key)
}

func TestRedisRepository_Unreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	repo := NewRedisRepository(client, 0)
	if _, err := repo.Get(context.Background(), "k"); err == nil || err == ErrKeyNotFound {
		t.Errorf("Get() = %v, want connection error", err)
	}
	if err := repo.Reserve(context.Background(), &Record{Key: "k"}); err == nil || err == ErrKeyExists {
		t.Errorf("Reserve() = %v, want connection error", err)
	}
}
