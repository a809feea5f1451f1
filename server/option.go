package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/Keksclan/minutodash/metrics"
	"github.com/Keksclan/minutodash/ratelimit"
	"github.com/Keksclan/minutodash/tracing"
)

type config struct {
	logger  *zap.Logger
	metrics *metrics.Metrics
	tracing *tracing.Config
	limiter *ratelimit.Keyed
	extra   []orderedInterceptor
}

type orderedInterceptor struct {
	order int
	ic    grpc.UnaryServerInterceptor
}

// Option configures a Server.
type Option func(*config)

// WithLogger sets the logger for panics and access logs.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithMetrics records rate-limit rejections in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithTracing opens a server span per call.
func WithTracing(t *tracing.Config) Option {
	return func(c *config) { c.tracing = t }
}

// WithRateLimit limits each caller IP to rps calls per second with burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *config) {
		if rps > 0 && burst > 0 {
			c.limiter = ratelimit.NewKeyed(rps, burst)
		}
	}
}

// WithUnaryInterceptor adds ic at the given priority (see internal/core).
func WithUnaryInterceptor(order int, ic grpc.UnaryServerInterceptor) Option {
	return func(c *config) {
		c.extra = append(c.extra, orderedInterceptor{order: order, ic: ic})
	}
}
