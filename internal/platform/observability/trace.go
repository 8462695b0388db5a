package observability

import (
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/areebabashir/intrnecommerceproj1/internal/platform/requestctx"
)

// cloudTraceHeader is set by Google front ends as TRACE_ID/SPAN_ID;o=OPTIONS with a decimal span id.
const cloudTraceHeader = "X-Cloud-Trace-Context"

var (
	tracer     = otel.Tracer("github.com/areebabashir/intrnecommerceproj1/internal/platform/observability")
	w3cContext = propagation.TraceContext{}
)

// TraceMiddleware starts a server span per request. The parent comes from X-Cloud-Trace-Context when
// present, else from a W3C traceparent header. Trace ids are stored in requestctx for logs and errors.
func TraceMiddleware(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, parent, ok := parseCloudTraceContext(r.Header.Get(cloudTraceHeader)); ok {
				ctx = trace.ContextWithRemoteSpanContext(ctx, parent)
			} else {
				ctx = w3cContext.Extract(ctx, propagation.HeaderCarrier(r.Header))
			}

			ctx, span := tracer.Start(ctx, r.Method+" "+pathOrRoot(r),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(requestAttributes(r)...),
			)
			defer span.End()

			sc := span.SpanContext()
			info := requestctx.TraceInfo{
				TraceID:   sc.TraceID().String(),
				SpanID:    sc.SpanID().String(),
				Sampled:   sc.IsSampled(),
				ProjectID: projectID,
			}
			if sc.IsValid() {
				w.Header().Set(cloudTraceHeader, formatCloudTraceHeader(sc))
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithTrace(ctx, info)))
		})
	}
}

func parseCloudTraceContext(header string) (requestctx.TraceInfo, trace.SpanContext, bool) {
	traceHex, rest, ok := strings.Cut(strings.TrimSpace(header), "/")
	if !ok {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	traceID, err := trace.TraceIDFromHex(strings.TrimSpace(traceHex))
	if err != nil {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}
	spanPart, options, _ := strings.Cut(rest, ";")
	spanID, ok := parseSpanID(spanPart)
	if !ok {
		return requestctx.TraceInfo{}, trace.SpanContext{}, false
	}

	var flags trace.TraceFlags
	sampled := strings.TrimSpace(options) == "o=1"
	if sampled {
		flags = trace.FlagsSampled
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: flags,
		Remote:     true,
	})
	return requestctx.TraceInfo{TraceID: traceID.String(), SpanID: spanID.String(), Sampled: sampled}, sc, true
}

// parseSpanID accepts the documented decimal form and, for older proxies, 16 hex digits.
func parseSpanID(raw string) (trace.SpanID, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseUint(raw, 10, 64); err == nil && n != 0 {
		var id trace.SpanID
		for i := 7; i >= 0; i-- {
			id[i] = byte(n)
			n >>= 8
		}
		return id, true
	}
	if len(raw) == 16 {
		if id, err := trace.SpanIDFromHex(raw); err == nil {
			return id, true
		}
	}
	return trace.SpanID{}, false
}

func formatCloudTraceHeader(sc trace.SpanContext) string {
	sid := sc.SpanID()
	var n uint64
	for _, b := range sid {
		n = n<<8 | uint64(b)
	}
	opt := "0"
	if sc.IsSampled() {
		opt = "1"
	}
	return sc.TraceID().String() + "/" + strconv.FormatUint(n, 10) + ";o=" + opt
}

func pathOrRoot(r *http.Request) string {
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}

func requestAttributes(r *http.Request) []attribute.KeyValue {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	attrs := []attribute.KeyValue{
		semconv.HTTPRequestMethodKey.String(r.Method),
		semconv.URLScheme(scheme),
		semconv.URLPath(pathOrRoot(r)),
	}
	if r.Host != "" {
		attrs = append(attrs, semconv.ServerAddress(r.Host))
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, semconv.UserAgentOriginal(ua))
	}
	return attrs
}
