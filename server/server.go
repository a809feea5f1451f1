// Package server builds the gRPC server that exposes the minutodash.Health
// service behind recovery, request-ID, tracing, logging and rate-limit
// interceptors.
package server

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/Keksclan/minutodash/health"
	"github.com/Keksclan/minutodash/interceptors"
	"github.com/Keksclan/minutodash/internal/core"
	"github.com/Keksclan/minutodash/tracing"
)

// Server wraps a *grpc.Server with a fixed interceptor order.
type Server struct {
	grpcServer *grpc.Server
}

// New creates a Server. Interceptor order is fixed by priority, not by the
// order options are passed.
func New(opts ...Option) *Server {
	var cfg config
	for _, o := range opts {
		o(&cfg)
	}

	var chain core.MiddlewareBuilder[grpc.UnaryServerInterceptor]
	chain.Add(core.OrderRecovery, interceptors.RecoveryUnary(cfg.logger))
	chain.Add(core.OrderRequestID, interceptors.RequestIDUnary())
	if cfg.tracing != nil {
		chain.Add(core.OrderTracing, tracing.UnaryServerInterceptor(cfg.tracing))
	}
	chain.Add(core.OrderLogging, interceptors.LoggingUnary(cfg.logger))
	if cfg.limiter != nil {
		chain.Add(core.OrderRateLimit, interceptors.RateLimitUnary(cfg.limiter, cfg.metrics))
	}
	for _, e := range cfg.extra {
		chain.Add(e.order, e.ic)
	}

	return &Server{
		grpcServer: grpc.NewServer(grpc.ChainUnaryInterceptor(chain.Build()...)),
	}
}

// GRPC returns the underlying server so further services can be registered.
func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// RegisterHealth registers the minutodash.Health service.
func (s *Server) RegisterHealth(h health.Handler) {
	health.Register(s.grpcServer, h)
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Shutdown stops accepting calls and waits for in-flight ones, falling back
// to a hard stop when ctx ends first.
func (s *Server) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}
}
