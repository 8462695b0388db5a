package observability

import (
	"context"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
)

// NewLogger builds the process logger. LOG_LEVEL picks the level (default info); LOG_FORMAT=console
// switches from Cloud Logging JSON to a human-readable encoder for local runs.
func NewLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		_ = level.UnmarshalText([]byte(strings.ToLower(raw)))
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.EncoderConfig = zapcore.EncoderConfig{
		MessageKey:     "message",
		TimeKey:        "timestamp",
		LevelKey:       "severity",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		NameKey:        "logger",
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "console") {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg.Build()
}

// WithLogger stores logger on ctx for code that runs outside a request.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return requestctx.WithLogger(ctx, logger)
}

// EventLogger adapts zap to the func(ctx, event, fields) hook that services take in their deps.
// Events go to the request logger when ctx carries one, otherwise to fallback, at debug level.
func EventLogger(fallback *zap.Logger) func(context.Context, string, map[string]any) {
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = fallback
		}
		if ce := logger.Check(zapcore.DebugLevel, event); ce != nil {
			keys := make([]string, 0, len(fields))
			for key := range fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			zf := make([]zap.Field, 0, len(keys)+1)
			zf = append(zf, zap.String("event", event))
			for _, key := range keys {
				zf = append(zf, zap.Any(key, fields[key]))
			}
			ce.Write(zf...)
		}
	}
}
