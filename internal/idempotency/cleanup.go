package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is a repository whose records must be expired explicitly.
type Sweeper interface {
	DeleteOlderThan(ctx context.Context, d time.Duration) (int64, error)
}

// CleanupOldKeys removes records older than expiry. It is run periodically as
// a background job for the in-memory repository.
func CleanupOldKeys(ctx context.Context, repo Sweeper, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(ctx, expiry)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}
