// Package feed implements the read-through pattern every MinutoDash data
// source follows: look up a canonical key in a TTL store, fetch and project
// the upstream document on a miss, and hand back a static fallback when the
// upstream cannot be used. Every result says where its records came from.
package feed

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/fetch"
)

// Source is the provenance of a result.
type Source string

const (
	// SourceLive records were decoded from the upstream, now or within the TTL.
	SourceLive Source = "live"
	// SourceFallback records are the feed's static fallback dataset.
	SourceFallback Source = "fallback"
	// SourceSynthetic records were generated locally and are not authoritative.
	SourceSynthetic Source = "synthetic"
)

// Params are the caller-supplied query options that select a cache entry.
type Params map[string]string

// Key returns the canonical cache key for name and params. Parameter order
// does not matter; keys and values are escaped so distinct params never
// collide.
func Key(name string, params Params) string {
	v := make(url.Values, len(params))
	for k, val := range params {
		v.Set(k, val)
	}
	return name + "::" + v.Encode()
}

// Batch is a decoded upstream document.
type Batch[T any] struct {
	Records []T
	// Total is the upstream-reported number of matching items, which may
	// exceed len(Records). Zero means "not reported".
	Total int
}

// Definition describes one feed.
type Definition[T any] struct {
	Name string
	TTL  time.Duration

	// Request builds the upstream call for params.
	Request func(Params) (fetch.Request, error)

	// Decode turns the raw upstream body into records.
	Decode func(json.RawMessage) (Batch[T], error)

	// Filter keeps records for which it returns true. Nil keeps everything.
	Filter func(T) bool

	// Sort orders the filtered records (stable). Nil keeps upstream order.
	Sort func(a, b T) int

	// Limit caps the number of records kept. Zero means no cap.
	Limit int

	// Fallback returns the static dataset served when the upstream fails.
	Fallback func() []T
}

// Result is what a feed hands to its callers. Live records are shared with
// the cache and must be treated as read-only.
type Result[T any] struct {
	Feed      string
	Records   []T
	Source    Source
	Total     int
	Cached    bool
	FetchedAt time.Time

	// Err is the failure that caused a fallback. Nil for live results.
	Err error
}

// Status summarises a Result without its records.
type Status struct {
	Feed      string    `json:"feed"`
	Source    Source    `json:"source"`
	Records   int       `json:"records"`
	Total     int       `json:"total,omitempty"`
	Cached    bool      `json:"cached"`
	FetchedAt time.Time `json:"fetched_at"`
	Error     string    `json:"error,omitempty"`
}

// Status returns the summary of r.
func (r Result[T]) Status() Status {
	s := Status{
		Feed:      r.Feed,
		Source:    r.Source,
		Records:   len(r.Records),
		Total:     r.Total,
		Cached:    r.Cached,
		FetchedAt: r.FetchedAt,
	}
	if r.Err != nil {
		s.Error = fetch.KindOf(r.Err)
	}
	return s
}

// Refresher is implemented by everything the scheduler can keep fresh.
type Refresher interface {
	Name() string
	Refresh(ctx context.Context) Status
}

// Inspector exposes a feed's cache contents for debugging endpoints.
type Inspector interface {
	Name() string
	CacheSnapshot() []cache.EntryInfo
}
