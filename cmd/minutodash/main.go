// Command minutodash runs the feed core, the backend HTTP proxy and, when
// grpc.addr is set, the gRPC health service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/Keksclan/minutodash"
	"github.com/Keksclan/minutodash/backend"
	"github.com/Keksclan/minutodash/cache"
	"github.com/Keksclan/minutodash/config"
	"github.com/Keksclan/minutodash/feeds"
	"github.com/Keksclan/minutodash/health"
	"github.com/Keksclan/minutodash/logging"
	"github.com/Keksclan/minutodash/metrics"
	"github.com/Keksclan/minutodash/server"
	"github.com/Keksclan/minutodash/tracing"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "minutodash:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var tc *tracing.Config
	if cfg.Tracing.Enabled {
		var shutdownTracing func(context.Context) error
		tc, shutdownTracing, err = tracing.NewStdout(cfg.Tracing.Pretty)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			_ = shutdownTracing(sctx)
		}()
	}

	backendURL := feeds.ResolveBackendURL(cfg.Backend.Host, cfg.Backend.URL)
	dash := minutodash.New(append(minutodash.DefaultOptions(),
		minutodash.WithLogger(logger),
		minutodash.WithMetrics(m),
		minutodash.WithTracing(tc),
		minutodash.WithFetchTimeout(cfg.Fetch.Timeout),
		minutodash.WithUserAgent(cfg.Fetch.UserAgent),
		minutodash.WithRelayURL(cfg.Relay.URL),
		minutodash.WithRelayTimeout(cfg.Fetch.RelayTimeout),
		minutodash.WithNVDViaRelay(cfg.Feeds.NVDViaRelay),
		minutodash.WithMaxEntries(cfg.Cache.MaxEntries),
		minutodash.WithBackendURL(backendURL),
		minutodash.WithSettings(feeds.Settings{
			AuthKey:         cfg.Feeds.AuthKey,
			NVDMinScore:     cfg.Feeds.NVDMinScore,
			NVDWindow:       cfg.Feeds.NVDWindow,
			CountrySuffixes: cfg.Feeds.CountrySuffixes,
		}),
	)...)
	defer dash.Close()

	responses, err := responseCache(ctx, cfg.Cache, logger)
	if err != nil {
		return err
	}
	proxy, err := backend.New(
		backend.WithLogger(logger.Named("backend")),
		backend.WithMetrics(m),
		backend.WithGatherer(reg),
		backend.WithTracing(tc),
		backend.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		backend.WithMode(backend.Mode(cfg.Backend.Mode)),
		backend.WithFeeds(dash),
		backend.WithResponseCache(responses),
		backend.WithResponseTTL(cfg.Cache.ResponseTTL),
	)
	if err != nil {
		_ = responses.Close()
		return err
	}
	defer func() { _ = proxy.Close() }()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           proxy.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	httpLis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	errc := make(chan error, 2)
	go func() {
		logger.Info("backend listening", zap.String("addr", httpLis.Addr().String()), zap.String("mode", cfg.Backend.Mode))
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv *server.Server
	if cfg.GRPC.Addr != "" {
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = server.New(
			server.WithLogger(logger.Named("grpc")),
			server.WithMetrics(m),
			server.WithTracing(tc),
			server.WithRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		)
		label, _ := backend.ModeLabel(backend.Mode(cfg.Backend.Mode))
		grpcSrv.RegisterHealth(health.NewHandler(dash, label, nil))
		go func() {
			logger.Info("grpc listening", zap.String("addr", cfg.GRPC.Addr))
			if err := grpcSrv.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	dash.Initialize(ctx)
	if err := dash.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
		logger.Error("server failed", zap.Error(err))
	}

	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.Shutdown(sctx)
	}
	if shutdownErr := httpSrv.Shutdown(sctx); shutdownErr != nil {
		logger.Warn("http shutdown", zap.Error(shutdownErr))
	}
	return err
}

// responseCache is ristretto alone, or ristretto in front of Redis when
// cache.redis_addr is set. An unreachable Redis is logged and kept: L2 is
// fail-soft.
func responseCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger) (cache.Cache, error) {
	l1, err := cache.NewL1(int64(cfg.MaxEntries))
	if err != nil {
		return nil, err
	}
	if cfg.RedisAddr == "" {
		return l1, nil
	}
	l2 := cache.NewL2(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := l2.Ping(pctx); err != nil {
		logger.Warn("redis unreachable, responses stay in process until it returns",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	return cache.NewTiered(l1, l2), nil
}
