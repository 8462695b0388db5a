// Package requestctx carries per-request values (logger, trace, shopper session) through context.
package requestctx

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	traceKey
	sessionKey
	sessionHolderKey
)

var noopLogger = zap.NewNop()

// TraceInfo identifies the request span for logs and error envelopes.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// WithLogger stores logger on ctx. A nil logger stores the no-op logger.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return context.WithValue(orBackground(ctx), loggerKey, logger)
}

// Logger returns the request logger or the shared no-op logger.
func Logger(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok && logger != nil {
			return logger
		}
	}
	return noopLogger
}

// NoopLogger is the logger Logger falls back to; compare against it to detect "no logger set".
func NoopLogger() *zap.Logger { return noopLogger }

func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return context.WithValue(orBackground(ctx), traceKey, info)
}

func Trace(ctx context.Context) (TraceInfo, bool) {
	if ctx == nil {
		return TraceInfo{}, false
	}
	info, ok := ctx.Value(traceKey).(TraceInfo)
	return info, ok
}

func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// sessionHolder lets outer middleware observe a session id resolved by inner route-group middleware.
type sessionHolder struct {
	mu sync.Mutex
	id string
}

// WithSessionHolder prepares ctx so that a later WithSessionID on a derived context is visible
// through SessionHolderID on this one.
func WithSessionHolder(ctx context.Context) context.Context {
	return context.WithValue(orBackground(ctx), sessionHolderKey, &sessionHolder{})
}

// SessionHolderID returns the id recorded in the holder installed by WithSessionHolder.
func SessionHolderID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	holder, ok := ctx.Value(sessionHolderKey).(*sessionHolder)
	if !ok {
		return ""
	}
	holder.mu.Lock()
	defer holder.mu.Unlock()
	return holder.id
}

// WithSessionID stores the shopper session id resolved from the session cookie.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	ctx = orBackground(ctx)
	if holder, ok := ctx.Value(sessionHolderKey).(*sessionHolder); ok {
		holder.mu.Lock()
		holder.id = sessionID
		holder.mu.Unlock()
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionID returns the shopper session id, or "" outside a session.
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey).(string)
	return id
}
