// Package metrics defines the Prometheus collectors exported by MinutoDash.
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "minutodash"

// Metrics groups every collector.
type Metrics struct {
	FeedFetches     *prometheus.CounterVec
	FeedErrors      *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec
	CacheMisses     *prometheus.CounterVec
	CacheEvictions  *prometheus.CounterVec
	FetchDuration   *prometheus.HistogramVec
	SchedulerRuns   *prometheus.CounterVec
	SchedulerSkips  *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	RateLimitDenied prometheus.Counter
}

// New registers all collectors with reg. A nil reg uses a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		FeedFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_total",
			Help:      "Feed results handed out, by provenance.",
		}, []string{"feed", "source"}),
		FeedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetch_errors_total",
			Help:      "Failed upstream fetches, by failure reason.",
		}, []string{"feed", "reason"}),
		CacheHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Feed cache hits.",
		}, []string{"feed"}),
		CacheMisses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Feed cache misses.",
		}, []string{"feed"}),
		CacheEvictions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_evictions_total",
			Help:      "Entries dropped to keep a feed cache within its bound.",
		}, []string{"feed"}),
		FetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		}, []string{"feed"}),
		SchedulerRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_runs_total",
			Help:      "Refresh runs started by the scheduler.",
		}, []string{"task"}),
		SchedulerSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skipped_total",
			Help:      "Ticks skipped because the previous run was still in flight.",
		}, []string{"task"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Backend HTTP requests, by route and status code.",
		}, []string{"route", "code"}),
		RateLimitDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_denied_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}
}

func (m *Metrics) CacheHit(feed string) {
	if m != nil {
		m.CacheHits.WithLabelValues(feed).Inc()
	}
}

func (m *Metrics) CacheMiss(feed string) {
	if m != nil {
		m.CacheMisses.WithLabelValues(feed).Inc()
	}
}

func (m *Metrics) CacheEviction(feed string) {
	if m != nil {
		m.CacheEvictions.WithLabelValues(feed).Inc()
	}
}

// FetchResult counts a result handed to a caller with the given provenance.
func (m *Metrics) FetchResult(feed, source string) {
	if m != nil {
		m.FeedFetches.WithLabelValues(feed, source).Inc()
	}
}

// FetchError counts a failed upstream call; reason is a fetch error kind.
func (m *Metrics) FetchError(feed, reason string) {
	if m != nil {
		m.FeedErrors.WithLabelValues(feed, reason).Inc()
	}
}

func (m *Metrics) ObserveFetch(feed string, d time.Duration) {
	if m != nil {
		m.FetchDuration.WithLabelValues(feed).Observe(d.Seconds())
	}
}

func (m *Metrics) SchedulerRun(task string) {
	if m != nil {
		m.SchedulerRuns.WithLabelValues(task).Inc()
	}
}

func (m *Metrics) SchedulerSkip(task string) {
	if m != nil {
		m.SchedulerSkips.WithLabelValues(task).Inc()
	}
}

func (m *Metrics) HTTPRequest(route string, code int) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, statusLabel(code)).Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.RateLimitDenied.Inc()
	}
}

func statusLabel(code int) string {
	if code < 100 || code > 999 {
		return "unknown"
	}
	return strconv.Itoa(code)
}
