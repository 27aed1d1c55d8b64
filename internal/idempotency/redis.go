package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "idempotency:"

// RedisRepository stores records in Redis. Keys expire after ttl, so no
// cleanup job is needed.
type RedisRepository struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisRepository creates a Redis-backed repository. A ttl of zero uses DefaultExpiry.
func NewRedisRepository(client redis.UniversalClient, ttl time.Duration) *RedisRepository {
	if ttl <= 0 {
		ttl = DefaultExpiry
	}
	return &RedisRepository{client: client, ttl: ttl, now: time.Now}
}

// Get implements Repository.
func (r *RedisRepository) Get(ctx context.Context, key string) (*Record, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &rec, nil
}

// Reserve implements Repository with SET NX.
func (r *RedisRepository) Reserve(ctx context.Context, rec *Record) error {
	if err := ValidateKey(rec.Key); err != nil {
		return err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+rec.Key, data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("reserve idempotency key: %w", err)
	}
	if !ok {
		return ErrKeyExists
	}
	return nil
}

// Complete implements Repository. The original expiry is kept.
func (r *RedisRepository) Complete(ctx context.Context, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}
	ok, err := r.client.SetXX(ctx, redisKeyPrefix+rec.Key, data, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if !ok {
		return ErrKeyNotFound
	}
	return nil
}

// Release implements Repository.
func (r *RedisRepository) Release(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
