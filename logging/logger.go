// Package logging builds the zap loggers used across MinutoDash. Loggers are
// passed explicitly; nothing here installs a global.
package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Keksclan/minutodash/contextx"
)

// Config selects the log level and encoding.
type Config struct {
	Level       string // debug, info, warn, error
	Development bool   // console encoding, colored levels
}

// New builds a logger from cfg. An empty or unknown level means info.
func New(cfg Config) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.Level != "" {
		level, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		zc.Level.SetLevel(level)
	}

	zc.EncoderConfig.CallerKey = "caller"
	zc.EncoderConfig.StacktraceKey = "stacktrace"
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zc.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// FromContext decorates l with the request ID and feed name carried by ctx.
func FromContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	l = OrNop(l)
	if id := contextx.RequestIDFromContext(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if feed := contextx.FeedFromContext(ctx); feed != "" {
		l = l.With(zap.String("feed", feed))
	}
	return l
}
