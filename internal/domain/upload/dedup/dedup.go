// Package dedup checks candidate booking keys against every key already in
// storage. The scan is exhaustive: a sampled comparison would silently
// accept true duplicates.
package dedup

import (
	"context"
	"fmt"
)

// DefaultPageSize is the fixed page size for the existing-key scan
const DefaultPageSize = 1000

// KeySource provides paged access to persisted confirmation numbers
type KeySource interface {
	ConfirmationNumbersPage(ctx context.Context, offset, limit int) ([]int64, error)
}

// Result of a duplicate check
type Result struct {
	// Duplicates holds each candidate key that already exists, in candidate
	// order, repeated if the candidate list repeats it.
	Duplicates []int64
	// UniqueKeys is the deduplicated set of colliding key values
	UniqueKeys map[int64]struct{}
}

// HasDuplicates reports whether any candidate collided
func (r Result) HasDuplicates() bool {
	return len(r.Duplicates) > 0
}

// Detector finds which candidate keys already exist in storage
type Detector struct {
	source   KeySource
	pageSize int
}

// New creates a detector. pageSize <= 0 selects DefaultPageSize.
func New(source KeySource, pageSize int) *Detector {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Detector{source: source, pageSize: pageSize}
}

// Detect pages through all persisted keys, builds a membership set, and
// returns the candidates found to already exist. The context is checked
// between pages so a cancelled import stops scanning promptly.
func (d *Detector) Detect(ctx context.Context, candidates []int64) (Result, error) {
	existing := make(map[int64]struct{})
	for offset := 0; ; offset += d.pageSize {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		page, err := d.source.ConfirmationNumbersPage(ctx, offset, d.pageSize)
		if err != nil {
			return Result{}, fmt.Errorf("failed to scan existing keys at offset %d: %w", offset, err)
		}
		for _, key := range page {
			existing[key] = struct{}{}
		}
		if len(page) < d.pageSize {
			break
		}
	}

	result := Result{UniqueKeys: make(map[int64]struct{})}
	for _, key := range candidates {
		if _, ok := existing[key]; ok {
			result.Duplicates = append(result.Duplicates, key)
			result.UniqueKeys[key] = struct{}{}
		}
	}
	return result, nil
}
