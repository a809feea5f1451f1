package feed

import (
	"context"
	"slices"
)

// Synthetic is a source whose records are generated locally. Its results are
// never cached and are always tagged SourceSynthetic so callers cannot mistake
// them for upstream data.
type Synthetic[T any] struct {
	name     string
	generate func() []T
	sortFn   func(a, b T) int
	opts     options
}

// NewSynthetic creates a synthetic source. sortFn may be nil.
func NewSynthetic[T any](name string, generate func() []T, sortFn func(a, b T) int, opts ...Option) *Synthetic[T] {
	return &Synthetic[T]{
		name:     name,
		generate: generate,
		sortFn:   sortFn,
		opts:     buildOptions(opts),
	}
}

// Name returns the source name.
func (s *Synthetic[T]) Name() string { return s.name }

// Fetch generates a fresh set of records.
func (s *Synthetic[T]) Fetch(_ context.Context, _ Params) Result[T] {
	records := s.generate()
	if s.sortFn != nil {
		records = slices.Clone(records)
		slices.SortStableFunc(records, s.sortFn)
	}
	s.opts.metrics.FetchResult(s.name, string(SourceSynthetic))
	return Result[T]{
		Feed:      s.name,
		Records:   records,
		Source:    SourceSynthetic,
		Total:     len(records),
		FetchedAt: s.opts.now(),
	}
}

// Refresh regenerates the records and reports their status.
func (s *Synthetic[T]) Refresh(ctx context.Context) Status {
	return s.Fetch(ctx, nil).Status()
}
