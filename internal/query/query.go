// Package query implements the query engine: a composable filter set
// executed over the fact store in three deterministic steps — candidate
// selection, in-memory refinement, and truncation.
package query

import (
	"fmt"

	"github.com/liminalqa/liminal/internal/entity"
	"github.com/liminalqa/liminal/internal/errs"
	"github.com/liminalqa/liminal/internal/ids"
	"github.com/liminalqa/liminal/internal/temporal"
)

// candidateSource is the subset of the fact store's read surface the
// query engine depends on, kept separate from the write-side ingest
// store.
type candidateSource interface {
	ScanFacts() ([]entity.Fact, error)
	ScanFactsByEntities(entityIDs []ids.ID) ([]entity.Fact, error)
	ScanFactsByValidTime(startMs int64, endMs *int64) ([]entity.Fact, error)
}

// Builder accumulates the filter set of a single query. The zero value
// (no filters set) matches every fact.
type Builder struct {
	entityIDs      []ids.ID
	validTimeRange *temporal.Range
	txTimeRange    *temporal.Range
	timeshift      *temporal.Timeshift
	limit          *int
}

// New starts an empty Builder.
func New() *Builder {
	return &Builder{}
}

// ForEntities restricts candidate selection to facts on the given entities.
func (b *Builder) ForEntities(ids ...ids.ID) *Builder {
	b.entityIDs = ids

	return b
}

// WithValidTimeRange filters to facts whose valid_time falls in range.
func (b *Builder) WithValidTimeRange(r temporal.Range) *Builder {
	b.validTimeRange = &r

	return b
}

// WithTxTimeRange filters to facts whose tx_time falls in range.
func (b *Builder) WithTxTimeRange(r temporal.Range) *Builder {
	b.txTimeRange = &r

	return b
}

// WithTimeshift restricts results to facts visible as of ts.
func (b *Builder) WithTimeshift(ts temporal.Timeshift) *Builder {
	b.timeshift = &ts

	return b
}

// WithLimit truncates the result after refinement.
func (b *Builder) WithLimit(n int) *Builder {
	b.limit = &n

	return b
}

// Result is a snapshot of the facts a query matched.
type Result struct {
	Facts []entity.Fact
	Total int
}

// Execute runs the query against src in three steps:
//
//  1. Candidate selection — entity_ids set → scan-by-entities; else
//     valid_time_range set → scan-by-valid-time; else full scan.
//  2. Refinement — residual predicates applied in memory.
//  3. Truncation — limit applied after refinement, in store-scan order.
func (b *Builder) Execute(src candidateSource) (*Result, error) {
	facts, err := b.selectCandidates(src)
	if err != nil {
		return nil, errs.Storage(fmt.Errorf("query: candidate selection: %w", err))
	}

	facts = b.refine(facts)

	if b.limit != nil && len(facts) > *b.limit {
		facts = facts[:*b.limit]
	}

	return &Result{Facts: facts, Total: len(facts)}, nil
}

func (b *Builder) selectCandidates(src candidateSource) ([]entity.Fact, error) {
	switch {
	case len(b.entityIDs) > 0:
		return src.ScanFactsByEntities(b.entityIDs)
	case b.validTimeRange != nil:
		var endMs *int64

		if b.validTimeRange.End != nil {
			ms := b.validTimeRange.End.UnixMilli()
			endMs = &ms
		}

		return src.ScanFactsByValidTime(b.validTimeRange.Start.UnixMilli(), endMs)
	default:
		return src.ScanFacts()
	}
}

func (b *Builder) refine(facts []entity.Fact) []entity.Fact {
	out := facts[:0:0] //nolint:gocritic // explicit empty-slice-with-capacity for the filtered copy

	for _, f := range facts {
		if b.validTimeRange != nil && !b.validTimeRange.Contains(f.Time.ValidTime) {
			continue
		}

		if b.txTimeRange != nil && !b.txTimeRange.Contains(f.Time.TxTime) {
			continue
		}

		if b.timeshift != nil && !b.timeshift.Satisfies(f.Time) {
			continue
		}

		out = append(out, f)
	}

	return out
}
