package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrChainBroken is returned by CheckChain when verification fails.
var ErrChainBroken = errors.New("audit chain broken")

// CheckChain verifies the whole stored chain. It is the body of the periodic
// verification job.
func CheckChain(ctx context.Context, repo Repository) (VerifyResult, error) {
	res, err := VerifyStored(ctx, repo, VerifyPageSize)
	if err != nil {
		return VerifyResult{}, err
	}
	if !res.Valid {
		slog.ErrorContext(ctx, "audit chain verification failed",
			"bad_seq", res.BadSeq,
			"reason", res.Reason,
			"checked", res.Checked)
		return res, fmt.Errorf("%w at seq %d: %s", ErrChainBroken, res.BadSeq, res.Reason)
	}
	slog.DebugContext(ctx, "audit chain verified", "checked", res.Checked)
	return res, nil
}

// ArchivePreviousDay archives the UTC day before now.
func (a *Archiver) ArchivePreviousDay(ctx context.Context, repo Repository) (*ArchiveResult, error) {
	res, err := a.ArchiveDay(ctx, repo, a.now().UTC().AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "audit log archived",
		"bucket", res.Bucket,
		"key", res.Key,
		"records", res.Records)
	return res, nil
}
