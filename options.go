package minutodash

import (
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/fetch"
	"github.com/Keksclan/minutodash/metrics"
	"github.com/Keksclan/minutodash/tracing"
)

// config holds the internal configuration assembled via functional options.
type config struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracing *tracing.Config
	now     func() time.Time

	doer         fetch.Doer
	httpClient   *http.Client
	fetchTimeout time.Duration
	userAgent    string

	relayURL     string
	relayTimeout time.Duration
	nvdViaRelay  bool

	settings   feeds.Settings
	services   []feeds.Service
	backendURL string
	outageSrc  rand.Source
	maxEntries int
}

// Option configures a Dashboard.
type Option func(*config)

// WithLogger sets the logger shared by every feed and the scheduler.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records feed, cache and scheduler activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithRegistry is WithMetrics with collectors registered on reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(c *config) { c.metrics = metrics.New(reg) }
}

// WithTracing wraps outgoing requests in client spans. Ignored when WithDoer
// is used.
func WithTracing(t *tracing.Config) Option {
	return func(c *config) { c.tracing = t }
}

// WithClock replaces time.Now in caches, results and NVD date ranges.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDoer replaces the HTTP fetcher entirely.
func WithDoer(d fetch.Doer) Option {
	return func(c *config) { c.doer = d }
}

// WithHTTPClient sets the http.Client behind the default fetcher.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) { c.httpClient = hc }
}

// WithFetchTimeout sets the default per-request budget.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *config) { c.fetchTimeout = d }
}

// WithUserAgent sets the User-Agent of outgoing requests.
func WithUserAgent(ua string) Option {
	return func(c *config) { c.userAgent = ua }
}

// WithRelayURL sets the CORS relay used for relayed feeds.
func WithRelayURL(u string) Option {
	return func(c *config) { c.relayURL = u }
}

// WithRelayTimeout sets the budget for relayed requests.
func WithRelayTimeout(d time.Duration) Option {
	return func(c *config) { c.relayTimeout = d }
}

// WithNVDViaRelay routes the NVD feed through the relay.
func WithNVDViaRelay(on bool) Option {
	return func(c *config) { c.nvdViaRelay = on }
}

// WithSettings parameterises the feed definitions.
func WithSettings(s feeds.Settings) Option {
	return func(c *config) { c.settings = s }
}

// WithServices replaces the status pages on the infrastructure board.
func WithServices(s []feeds.Service) Option {
	return func(c *config) { c.services = s }
}

// WithBackendURL enables the backend proxy feeds against base.
func WithBackendURL(base string) Option {
	return func(c *config) { c.backendURL = base }
}

// WithOutageSource seeds the synthetic outage generator.
func WithOutageSource(src rand.Source) Option {
	return func(c *config) { c.outageSrc = src }
}

// WithMaxEntries bounds every feed's cache.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}
