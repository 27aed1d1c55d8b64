package audit

import (
	"context"
	"fmt"
)

// VerifyPageSize is the number of records VerifyStored loads per query.
const VerifyPageSize = 500

// VerifyResult describes the outcome of a chain check.
type VerifyResult struct {
	Valid   bool   `json:"valid"`
	Checked int    `json:"checked"`
	BadSeq  int64  `json:"bad_seq,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Head    string `json:"head,omitempty"`
}

type chainState struct {
	prevHash string
	prevSeq  int64
	checked  int
}

// check validates r against the records seen so far. ok is false when r
// breaks the chain, with res describing the break.
func (s *chainState) check(r *Record) (res VerifyResult, ok bool) {
	fail := func(reason string) (VerifyResult, bool) {
		return VerifyResult{Checked: s.checked, BadSeq: r.Seq, Reason: reason}, false
	}
	if r.Seq != s.prevSeq+1 {
		return fail("sequence gap")
	}
	if r.PrevHash != s.prevHash {
		return fail("previous hash mismatch")
	}
	want, err := computeHash(r)
	if err != nil {
		return fail("unreadable snapshot")
	}
	if want != r.Hash {
		return fail("content hash mismatch")
	}
	s.prevHash = r.Hash
	s.prevSeq = r.Seq
	s.checked++
	return VerifyResult{}, true
}

func (s *chainState) valid() VerifyResult {
	return VerifyResult{Valid: true, Checked: s.checked, Head: s.prevHash}
}

// VerifyChain checks records, which must be in ascending Seq order, for
// gaps, broken links and altered content.
func VerifyChain(records []*Record) VerifyResult {
	var s chainState
	for _, r := range records {
		if res, ok := s.check(r); !ok {
			return res
		}
	}
	return s.valid()
}

// VerifyStored walks the chain stored in repo pageSize records at a time.
// A pageSize of zero or less uses VerifyPageSize.
func VerifyStored(ctx context.Context, repo Repository, pageSize int) (VerifyResult, error) {
	if pageSize <= 0 {
		pageSize = VerifyPageSize
	}
	var s chainState
	for {
		if err := ctx.Err(); err != nil {
			return VerifyResult{}, err
		}
		page, err := repo.ChainPage(ctx, s.prevSeq, pageSize)
		if err != nil {
			return VerifyResult{}, fmt.Errorf("failed to load audit chain after seq %d: %w", s.prevSeq, err)
		}
		for _, r := range page {
			if res, ok := s.check(r); !ok {
				return res, nil
			}
		}
		if len(page) < pageSize {
			return s.valid(), nil
		}
	}
}
