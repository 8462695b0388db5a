package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	meterName = "github.com/areebabashir/intrnecommerceproj1/internal/platform/secrets"

	sourceCache  = "cache"
	sourceRemote = "secret_manager"
	sourceLocal  = "local_file"
	sourceError  = "error"
)

// ErrNotFound reports a secret that exists neither in Secret Manager nor in the local file.
var ErrNotFound = errors.New("secrets: secret not found")

// VersionAccessor is the slice of the Secret Manager client the fetcher needs.
type VersionAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

var newSecretManagerClient = func(ctx context.Context, opts ...option.ClientOption) (VersionAccessor, error) {
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Fetcher resolves secret:// references. Secret Manager is authoritative; the local file is consulted
// when no project is configured or the remote call fails for credential or availability reasons.
type Fetcher struct {
	logger *zap.Logger
	now    func() time.Time

	remote     VersionAccessor
	ownsRemote bool
	clientOpts []option.ClientOption
	meter      metric.Meter

	env            string
	defaultProject string
	projects       map[string]string
	pins           map[string]string
	local          *localFile
	ttl            time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cachedSecret

	resolutions metric.Int64Counter
	duration    metric.Float64Histogram
}

type cachedSecret struct {
	value    string
	storedAt time.Time
}

type resolved struct {
	value  string
	source string
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithEnvironment picks the entry of the project map used for lookups, e.g. "prod".
func WithEnvironment(env string) Option {
	return func(f *Fetcher) {
		if env = strings.ToLower(strings.TrimSpace(env)); env != "" {
			f.env = env
		}
	}
}

// WithDefaultProject is used when the project map has no entry for the environment.
func WithDefaultProject(projectID string) Option {
	return func(f *Fetcher) { f.defaultProject = strings.TrimSpace(projectID) }
}

// WithProjectMap maps environment names to Google Cloud project ids.
func WithProjectMap(projects map[string]string) Option {
	return func(f *Fetcher) {
		for env, project := range projects {
			f.projects[strings.ToLower(strings.TrimSpace(env))] = strings.TrimSpace(project)
		}
	}
}

// WithVersionPins pins canonical references to versions. Keys may be prefixed "env:" to scope a pin.
func WithVersionPins(pins map[string]string) Option {
	return func(f *Fetcher) {
		for key, version := range pins {
			f.pins[strings.TrimSpace(key)] = strings.TrimSpace(version)
		}
	}
}

// WithFallbackFile sets the local secrets file. An empty path disables it.
func WithFallbackFile(path string) Option {
	return func(f *Fetcher) { f.local = newLocalFile(path) }
}

// WithCacheTTL bounds how long a resolved value is reused. Zero caches for the fetcher's lifetime.
func WithCacheTTL(ttl time.Duration) Option {
	return func(f *Fetcher) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

// WithMeter records fetch metrics on m instead of the global provider.
func WithMeter(m metric.Meter) Option {
	return func(f *Fetcher) { f.meter = m }
}

// WithAccessor injects the Secret Manager client. The fetcher does not close injected clients.
func WithAccessor(accessor VersionAccessor) Option {
	return func(f *Fetcher) { f.remote = accessor }
}

// WithClientOptions is forwarded to the Secret Manager client the fetcher dials itself.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(f *Fetcher) { f.clientOpts = append(f.clientOpts, opts...) }
}

// NewFetcher builds a Fetcher. When the Secret Manager client cannot be created the fetcher
// still works from the local file, so local development needs no credentials.
func NewFetcher(ctx context.Context, opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		logger:   zap.NewNop(),
		now:      time.Now,
		env:      "local",
		projects: map[string]string{},
		pins:     map[string]string{},
		local:    newLocalFile(".secrets.local"),
		cache:    map[string]cachedSecret{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	meter := f.meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(meterName)
	}
	var err error
	if f.resolutions, err = meter.Int64Counter("storefront.secrets.resolutions",
		metric.WithDescription("Secret resolutions by source")); err != nil {
		f.logger.Warn("secrets: resolution counter unavailable", zap.Error(err))
	}
	if f.duration, err = meter.Float64Histogram("storefront.secrets.resolve.duration",
		metric.WithUnit("ms"), metric.WithDescription("Secret resolution latency")); err != nil {
		f.logger.Warn("secrets: duration histogram unavailable", zap.Error(err))
	}

	if f.remote == nil && f.project(Ref{}) != "" {
		client, err := newSecretManagerClient(ctx, f.clientOpts...)
		if err != nil {
			f.logger.Warn("secrets: secret manager unavailable, using local file only", zap.Error(err))
		} else {
			f.remote = client
			f.ownsRemote = true
		}
	}
	return f, nil
}

// Close releases the Secret Manager client when the fetcher created it.
func (f *Fetcher) Close() error {
	if f == nil || !f.ownsRemote || f.remote == nil {
		return nil
	}
	return f.remote.Close()
}

// Resolve returns the value behind raw. Concurrent resolutions of the same reference share one fetch.
func (f *Fetcher) Resolve(ctx context.Context, raw string) (string, error) {
	start := f.now()
	ref, err := ParseRef(raw)
	if err != nil {
		return "", err
	}
	version := f.version(ref)
	key := versionedKey(ref.Canonical(), version) + "#" + f.project(ref)

	if value, ok := f.cached(key); ok {
		f.observe(ctx, sourceCache, start)
		return value, nil
	}

	out, err, _ := f.group.Do(key, func() (any, error) {
		res, err := f.fetch(ctx, ref, version)
		if err != nil {
			return resolved{}, err
		}
		f.mu.Lock()
		f.cache[key] = cachedSecret{value: res.value, storedAt: f.now()}
		f.mu.Unlock()
		return res, nil
	})
	if err != nil {
		f.observe(ctx, sourceError, start)
		return "", err
	}
	res := out.(resolved)
	f.observe(ctx, res.source, start)
	return res.value, nil
}

// ResolveSecret lets the fetcher serve as the config package's secret resolver.
func (f *Fetcher) ResolveSecret(ctx context.Context, raw string) (string, error) {
	return f.Resolve(ctx, raw)
}

// Invalidate drops every cached version of raw.
func (f *Fetcher) Invalidate(raw string) {
	ref, err := ParseRef(raw)
	if err != nil {
		return
	}
	prefix := ref.Canonical() + "@"
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.cache {
		if strings.HasPrefix(key, prefix) {
			delete(f.cache, key)
		}
	}
}

func (f *Fetcher) cached(key string) (string, bool) {
	f.mu.RLock()
	entry, ok := f.cache[key]
	f.mu.RUnlock()
	if !ok {
		return "", false
	}
	if f.ttl > 0 && f.now().Sub(entry.storedAt) >= f.ttl {
		return "", false
	}
	return entry.value, true
}

func (f *Fetcher) fetch(ctx context.Context, ref Ref, version string) (resolved, error) {
	if project := f.project(ref); project != "" && f.remote != nil {
		value, err := f.access(ctx, ref.resourceName(project, version))
		if err == nil {
			return resolved{value: value, source: sourceRemote}, nil
		}
		if status.Code(err) == codes.NotFound {
			return resolved{}, fmt.Errorf("%w: %s (version %s)", ErrNotFound, ref.Canonical(), version)
		}
		if !localFallbackAllowed(err) {
			return resolved{}, fmt.Errorf("secrets: access %s: %w", ref.Canonical(), err)
		}
		f.logger.Debug("secrets: secret manager refused, trying local file",
			zap.String("secret", ref.Canonical()), zap.Error(err))
	}

	value, err := f.local.lookup(ref)
	if err != nil {
		return resolved{}, err
	}
	return resolved{value: value, source: sourceLocal}, nil
}

func (f *Fetcher) access(ctx context.Context, name string) (string, error) {
	resp, err := f.remote.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", err
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("secrets: empty payload for %s", name)
	}
	return string(resp.GetPayload().GetData()), nil
}

func (f *Fetcher) project(ref Ref) string {
	if ref.Project != "" {
		return ref.Project
	}
	if project := f.projects[f.env]; project != "" {
		return project
	}
	return f.defaultProject
}

// version picks the query override, then an environment-scoped pin, then a global pin.
func (f *Fetcher) version(ref Ref) string {
	if ref.Version != "" {
		return ref.Version
	}
	for _, key := range []string{f.env + ":" + ref.Canonical(), ref.Canonical()} {
		if pin := f.pins[key]; pin != "" {
			return pin
		}
	}
	return latestVersion
}

func (f *Fetcher) observe(ctx context.Context, source string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	if f.resolutions != nil {
		f.resolutions.Add(ctx, 1, attrs)
	}
	if f.duration != nil {
		f.duration.Record(ctx, float64(f.now().Sub(start))/float64(time.Millisecond), attrs)
	}
}

// localFallbackAllowed lists the codes that mean "this process cannot reach the secret", not "the secret is wrong".
func localFallbackAllowed(err error) bool {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated, codes.Unavailable, codes.DeadlineExceeded:
		return true
	}
	return false
}
