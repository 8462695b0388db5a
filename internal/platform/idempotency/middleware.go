package idempotency

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/httpx"
	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	maxKeyLength      = 255
	anonymousScope    = "anonymous"
)

// guard holds the middleware settings. Options mutate it before the first request.
type guard struct {
	store      Store
	headerName string
	ttl        time.Duration
	methods    map[string]bool
	now        func() time.Time
	requireKey bool
}

type MiddlewareOption func(*guard)

// WithHeader reads the key from name instead of Idempotency-Key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.headerName = name
		}
	}
}

// WithTTL sets how long completed responses are replayed.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods replaces the guarded methods. POST is guarded by default.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		guarded := map[string]bool{}
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				guarded[m] = true
			}
		}
		if len(guarded) > 0 {
			g.methods = guarded
		}
	}
}

// WithRequiredKey answers 400 when a guarded request has no key. By default such requests pass through.
func WithRequiredKey() MiddlewareOption {
	return func(g *guard) { g.requireKey = true }
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// Middleware replays the stored response when a shopper retries a request with the same key.
// Keys are scoped to the session the session middleware put in the context.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	g := &guard{
		store:      store,
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods:    map[string]bool{http.MethodPost: true},
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(next, w, r)
		})
	}
}

func (g *guard) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	if !g.methods[r.Method] {
		next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(g.headerName))
	switch {
	case key == "" && g.requireKey:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+g.headerName+" header", http.StatusBadRequest))
		return
	case key == "":
		next.ServeHTTP(w, r)
		return
	case len(key) > maxKeyLength:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", "idempotency key is too long", http.StatusBadRequest))
		return
	}

	body, err := bufferBody(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
		return
	}

	session := requestctx.SessionID(ctx)
	fingerprint := requestFingerprint(r, body, session)
	scoped := scopedKey(key, session)
	logger := requestctx.Logger(ctx).With(zap.String("idempotency_key", digest([]byte(scoped))[:12]))

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.now().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		logger.Error("idempotency reserve failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_store_error", "unable to process idempotency key", http.StatusInternalServerError))
		return
	case reservation.State == ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case reservation.State == ReservationStatePending:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
		return
	}

	rec := newResponseRecorder(w)
	g.runHandler(next, rec, r, scoped, fingerprint, logger)

	// Failures release the key so the shopper can fix the request and retry it.
	keep := rec.Status() < http.StatusBadRequest
	if keep {
		resp := Response{Status: rec.Status(), Headers: rec.header, Body: rec.Body()}
		if err := g.store.SaveResponse(ctx, scoped, fingerprint, resp, g.now().UTC(), g.ttl); err != nil {
			logger.Error("idempotency save failed", zap.Error(err))
			keep = false
		}
	}
	if !keep {
		if err := g.store.Release(ctx, scoped, fingerprint); err != nil {
			logger.Warn("idempotency release failed", zap.Error(err))
		}
	}
	if err := rec.Commit(); err != nil {
		logger.Warn("idempotency flush failed", zap.Error(err))
	}
}

// runHandler releases the reservation when next panics and re-panics so the recovery middleware
// still answers. Without the release every retry would see idempotency_in_progress until the TTL.
func (g *guard) runHandler(next http.Handler, rec *responseRecorder, r *http.Request, scoped, fingerprint string, logger *zap.Logger) {
	defer func() {
		p := recover()
		if p == nil {
			return
		}
		if err := g.store.Release(context.WithoutCancel(r.Context()), scoped, fingerprint); err != nil {
			logger.Warn("idempotency release after panic failed", zap.Error(err))
		}
		panic(p)
	}()
	next.ServeHTTP(rec, r)
}

// bufferBody reads the body for fingerprinting and puts a fresh reader back for the handler.
func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// requestFingerprint binds a key to method, path, query, session and body.
func requestFingerprint(r *http.Request, body []byte, sessionID string) string {
	h := sha256.New()
	for _, part := range []string{strings.ToUpper(r.Method), r.URL.Path, r.URL.RawQuery, sessionID} {
		io.WriteString(h, part)
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func scopedKey(key, sessionID string) string {
	scope := strings.TrimSpace(sessionID)
	if scope == "" {
		scope = anonymousScope
	}
	return scope + "|" + strings.TrimSpace(key)
}

func replay(w http.ResponseWriter, record Record) {
	dst := w.Header()
	for name, values := range record.headers() {
		dst[name] = values
	}
	dst.Set(replayHeaderName, "true")

	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// responseRecorder holds the handler output until the outcome is stored.
type responseRecorder struct {
	parent http.ResponseWriter
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseRecorder(parent http.ResponseWriter) *responseRecorder {
	return &responseRecorder{parent: parent, header: parent.Header().Clone()}
}

func (r *responseRecorder) Header() http.Header { return r.header }

func (r *responseRecorder) WriteHeader(status int) {
	if r.status == 0 && status > 0 {
		r.status = status
	}
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(data)
}

func (r *responseRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *responseRecorder) Body() []byte {
	if r.body.Len() == 0 {
		return nil
	}
	return r.body.Bytes()
}

func (r *responseRecorder) Commit() error {
	dst := r.parent.Header()
	for name, values := range r.header {
		dst[name] = values
	}
	r.parent.WriteHeader(r.Status())
	if r.body.Len() == 0 {
		return nil
	}
	_, err := r.parent.Write(r.body.Bytes())
	return err
}
