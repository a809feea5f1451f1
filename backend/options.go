package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/metrics"
	"github.com/Keksclan/minutodash/ratelimit"
	"github.com/Keksclan/minutodash/tracing"
)

type config struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	tracing  *tracing.Config
	limiter  *ratelimit.Keyed
	now      func() time.Time

	mode       Mode
	feeds      Feeds
	sim        *Simulator
	responses  cache.Cache
	ttl        time.Duration
	maxEntries int64

	docker    fetch.Doer
	dockerURL string
}

// Option configures a Server.
type Option func(*config)

// WithLogger sets the access and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records request and rate-limit counters in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithGatherer selects what /metrics exposes. Without it the default
// Prometheus registry is served.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) { c.gatherer = g }
}

// WithTracing opens a server span per request.
func WithTracing(t *tracing.Config) Option {
	return func(c *config) { c.tracing = t }
}

// WithRateLimit limits each client IP to rps requests per second with burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		if rps > 0 && burst > 0 {
			c.limiter = ratelimit.NewKeyed(rps, burst)
		}
	}
}

// WithClock replaces time.Now for /health, /cache and generated records.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMode selects simulated or upstream data.
func WithMode(m Mode) Option {
	return func(c *config) { c.mode = m }
}

// WithFeeds supplies the upstream feeds. Required in ModeUpstream; in
// ModeSimulate it only feeds the /health report.
func WithFeeds(f Feeds) Option {
	return func(c *config) { c.feeds = f }
}

// WithSimulator replaces the record generator.
func WithSimulator(s *Simulator) Option {
	return func(c *config) { c.sim = s }
}

// WithResponseCache stores rendered responses in rc instead of a private L1.
func WithResponseCache(rc cache.Cache) Option {
	return func(c *config) { c.responses = rc }
}

// WithResponseTTL sets how long a rendered response is reused.
func WithResponseTTL(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithMaxEntries bounds the private L1 response cache.
func WithMaxEntries(n int64) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithDockerStatus sets how the Docker Hub status page is fetched.
func WithDockerStatus(d fetch.Doer, url string) Option {
	return func(c *config) {
		c.docker = d
		if url != "" {
			c.dockerURL = url
		}
	}
}
