package feed

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/contextx"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/logging"
	"github.com/Keksclan/minutodash/metrics"
)

var errNoRequest = errors.New("feed: definition has no Request builder")

type options struct {
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	maxEntries int
}

// Option configures a Client or a Synthetic source.
type Option func(*options)

// WithLogger sets the logger used for fetch failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records cache and fetch outcomes in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock replaces time.Now for both the client and its store.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMaxEntries bounds the client's store.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, maxEntries: cache.DefaultMaxEntries}
	for _, fn := range opts {
		fn(&o)
	}
	o.logger = logging.OrNop(o.logger)
	return o
}

// snapshot is what a Client keeps in its store.
type snapshot[T any] struct {
	records   []T
	total     int
	fetchedAt time.Time
}

// Client is a cached, fallback-protected reader for one feed. It never
// returns an error: failures surface as SourceFallback results.
type Client[T any] struct {
	def   Definition[T]
	doer  fetch.Doer
	opts  options
	store *cache.Store[snapshot[T]]
	loads singleflight.Group
}

// NewClient creates a Client for def that fetches through doer.
func NewClient[T any](def Definition[T], doer fetch.Doer, opts ...Option) *Client[T] {
	o := buildOptions(opts)
	name := def.Name
	return &Client[T]{
		def:  def,
		doer: doer,
		opts: o,
		store: cache.NewStore[snapshot[T]](
			cache.WithClock(o.now),
			cache.WithMaxEntries(o.maxEntries),
			cache.WithEvictHook(func(string) { o.metrics.CacheEviction(name) }),
		),
	}
}

// Name returns the feed name.
func (c *Client[T]) Name() string { return c.def.Name }

// TTL returns how long a successful fetch is served from cache.
func (c *Client[T]) TTL() time.Duration { return c.def.TTL }

// Fetch returns the records for params: from cache when a fresh entry
// exists, otherwise from the upstream, otherwise from the fallback dataset.
// A failed fetch leaves the cache untouched.
func (c *Client[T]) Fetch(ctx context.Context, params Params) Result[T] {
	key := Key(c.def.Name, params)

	if snap, ok := c.store.Get(key); ok {
		c.opts.metrics.CacheHit(c.def.Name)
		c.opts.metrics.FetchResult(c.def.Name, string(SourceLive))
		return c.liveResult(snap, true)
	}
	c.opts.metrics.CacheMiss(c.def.Name)

	// The shared load outlives any single caller; the fetch timeout bounds it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.loads.DoChan(key, func() (v any, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("feed %s: load panicked: %v", c.def.Name, p)
			}
		}()
		return c.load(loadCtx, key, params)
	})

	var (
		v   any
		err error
	)
	select {
	case r := <-ch:
		v, err = r.Val, r.Err
	case <-ctx.Done():
		err = &fetch.Error{Reason: fetch.ReasonNetwork, Err: ctx.Err()}
	}
	if err != nil {
		c.opts.metrics.FetchResult(c.def.Name, string(SourceFallback))
		return c.fallbackResult(err)
	}
	c.opts.metrics.FetchResult(c.def.Name, string(SourceLive))
	return c.liveResult(v.(snapshot[T]), false)
}

// Refresh fetches the feed's default (empty) params. A fresh cache entry
// satisfies it without a network call.
func (c *Client[T]) Refresh(ctx context.Context) Status {
	return c.Fetch(ctx, nil).Status()
}

// CacheSnapshot lists the entries in the client's store.
func (c *Client[T]) CacheSnapshot() []cache.EntryInfo {
	return c.store.Snapshot()
}

func (c *Client[T]) load(ctx context.Context, key string, params Params) (snapshot[T], error) {
	ctx = contextx.WithFeed(ctx, c.def.Name)
	log := logging.FromContext(ctx, c.opts.logger).With(zap.String("key", key))

	snap, err := c.fetchAndProject(ctx, params)
	if err != nil {
		reason := fetch.KindOf(err)
		c.opts.metrics.FetchError(c.def.Name, reason)
		log.Warn("feed fetch failed, serving fallback",
			zap.String("reason", reason),
			zap.Error(err),
		)
		return snapshot[T]{}, err
	}

	c.store.Set(key, snap, c.def.TTL)
	log.Debug("feed refreshed", zap.Int("records", len(snap.records)), zap.Int("total", snap.total))
	return snap, nil
}

func (c *Client[T]) fetchAndProject(ctx context.Context, params Params) (snapshot[T], error) {
	if c.def.Request == nil {
		return snapshot[T]{}, errNoRequest
	}
	req, err := c.def.Request(params)
	if err != nil {
		return snapshot[T]{}, err
	}

	start := c.opts.now()
	raw, err := c.doer.Do(ctx, req)
	c.opts.metrics.ObserveFetch(c.def.Name, c.opts.now().Sub(start))
	if err != nil {
		return snapshot[T]{}, err
	}

	batch, err := c.def.Decode(raw)
	if err != nil {
		var fe *fetch.Error
		if !errors.As(err, &fe) {
			err = &fetch.Error{Reason: fetch.ReasonDecode, URL: req.URL, Err: err}
		}
		return snapshot[T]{}, err
	}

	total := batch.Total
	if total == 0 {
		total = len(batch.Records)
	}
	return snapshot[T]{
		records:   Project(batch.Records, c.def.Filter, c.def.Sort, c.def.Limit),
		total:     total,
		fetchedAt: c.opts.now(),
	}, nil
}

func (c *Client[T]) liveResult(s snapshot[T], cached bool) Result[T] {
	return Result[T]{
		Feed:      c.def.Name,
		Records:   s.records,
		Source:    SourceLive,
		Total:     s.total,
		Cached:    cached,
		FetchedAt: s.fetchedAt,
	}
}

func (c *Client[T]) fallbackResult(err error) Result[T] {
	var records []T
	if c.def.Fallback != nil {
		records = slices.Clone(c.def.Fallback())
	}
	return Result[T]{
		Feed:      c.def.Name,
		Records:   records,
		Source:    SourceFallback,
		Total:     len(records),
		FetchedAt: c.opts.now(),
		Err:       err,
	}
}

// Project filters records (keeping their relative order), sorts the survivors
// when sortFn is set, and truncates to limit when it is positive. The input
// slice is not modified.
func Project[T any](records []T, keep func(T) bool, sortFn func(a, b T) int, limit int) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		if keep == nil || keep(r) {
			out = append(out, r)
		}
	}
	if sortFn != nil {
		slices.SortStableFunc(out, sortFn)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
