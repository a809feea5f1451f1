package interceptors

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/Keksclan/minutodash/metrics"
	"github.com/Keksclan/minutodash/ratelimit"
)

var errRateLimited = status.Error(codes.ResourceExhausted, "rate limit exceeded")

// peerKey is the caller's IP, or its full address when that has no port.
func peerKey(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// RateLimitUnary rejects a call with ResourceExhausted once its caller has
// used up its bucket in l.
func RateLimitUnary(l *ratelimit.Keyed, m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if !l.Allow(peerKey(ctx)) {
			m.RateLimited()
			return nil, errRateLimited
		}
		return handler(ctx, req)
	}
}
