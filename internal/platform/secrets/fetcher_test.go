package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const signingKeyLatest = "projects/shop-prod/secrets/session_signing_key/versions/latest"

func TestFetcherCachesRemoteValue(t *testing.T) {
	remote := newFakeAccessor()
	remote.set(signingKeyLatest, "remote-key")

	f := newTestFetcher(t, WithAccessor(remote), WithDefaultProject("shop-prod"))

	for range 3 {
		got, err := f.Resolve(context.Background(), "secret://session_signing_key")
		require.NoError(t, err)
		assert.Equal(t, "remote-key", got)
	}
	assert.Equal(t, 1, remote.calls(signingKeyLatest))
}

func TestFetcherUsesEnvironmentProject(t *testing.T) {
	remote := newFakeAccessor()
	remote.set("projects/shop-stg/secrets/catalog_token/versions/latest", "stg-token")

	f := newTestFetcher(t,
		WithAccessor(remote),
		WithEnvironment("STG"),
		WithDefaultProject("shop-prod"),
		WithProjectMap(map[string]string{"stg": "shop-stg"}),
	)

	got, err := f.Resolve(context.Background(), "secret://catalog_token")
	require.NoError(t, err)
	assert.Equal(t, "stg-token", got)

	remote.set("projects/other/secrets/catalog_token/versions/latest", "override")
	got, err = f.Resolve(context.Background(), "secret://catalog_token?project=other")
	require.NoError(t, err)
	assert.Equal(t, "override", got)
}

func TestFetcherFallsBackWhenRemoteRefuses(t *testing.T) {
	remote := newFakeAccessor()
	remote.fail(signingKeyLatest, status.Error(codes.PermissionDenied, "denied"))

	f := newTestFetcher(t,
		WithAccessor(remote),
		WithDefaultProject("shop-prod"),
		WithFallbackFile(writeLocalFile(t, "secret://session_signing_key=local-key\n")),
	)

	got, err := f.Resolve(context.Background(), "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "local-key", got)
}

func TestFetcherNotFoundSkipsLocalFile(t *testing.T) {
	remote := newFakeAccessor()
	f := newTestFetcher(t,
		WithAccessor(remote),
		WithDefaultProject("shop-prod"),
		WithFallbackFile(writeLocalFile(t, "secret://session_signing_key=local-key\n")),
	)

	_, err := f.Resolve(context.Background(), "secret://session_signing_key")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetcherPropagatesUnexpectedRemoteErrors(t *testing.T) {
	remote := newFakeAccessor()
	remote.fail(signingKeyLatest, status.Error(codes.InvalidArgument, "bad name"))
	f := newTestFetcher(t, WithAccessor(remote), WithDefaultProject("shop-prod"))

	_, err := f.Resolve(context.Background(), "secret://session_signing_key")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFetcherVersionPrecedence(t *testing.T) {
	remote := newFakeAccessor()
	remote.set("projects/shop-prod/secrets/session_signing_key/versions/4", "v4")
	remote.set("projects/shop-prod/secrets/session_signing_key/versions/7", "v7")
	remote.set("projects/shop-prod/secrets/session_signing_key/versions/9", "v9")

	f := newTestFetcher(t,
		WithAccessor(remote),
		WithEnvironment("prod"),
		WithDefaultProject("shop-prod"),
		WithVersionPins(map[string]string{
			"secret://session_signing_key":      "4",
			"prod:secret://session_signing_key": "7",
		}),
	)

	got, err := f.Resolve(context.Background(), "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "v7", got, "environment pin wins over global pin")

	got, err = f.Resolve(context.Background(), "secret://session_signing_key?version=9")
	require.NoError(t, err)
	assert.Equal(t, "v9", got, "explicit version wins over pins")
}

func TestFetcherCacheTTL(t *testing.T) {
	remote := newFakeAccessor()
	remote.set(signingKeyLatest, "first")
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	f := newTestFetcher(t,
		WithAccessor(remote),
		WithDefaultProject("shop-prod"),
		WithCacheTTL(time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_, err := f.Resolve(ctx, "secret://session_signing_key")
	require.NoError(t, err)

	remote.set(signingKeyLatest, "rotated")
	now = now.Add(30 * time.Second)
	got, err := f.Resolve(ctx, "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	now = now.Add(time.Minute)
	got, err = f.Resolve(ctx, "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)
	assert.Equal(t, 2, remote.calls(signingKeyLatest))
}

func TestFetcherInvalidate(t *testing.T) {
	remote := newFakeAccessor()
	remote.set(signingKeyLatest, "first")
	f := newTestFetcher(t, WithAccessor(remote), WithDefaultProject("shop-prod"))
	ctx := context.Background()

	_, err := f.ResolveSecret(ctx, "secret://session_signing_key")
	require.NoError(t, err)

	remote.set(signingKeyLatest, "rotated")
	f.Invalidate("sm://session_signing_key")

	got, err := f.Resolve(ctx, "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "rotated", got)
}

func TestNewFetcherSkipsDialWithoutProject(t *testing.T) {
	swapClientFactory(t, func(context.Context, ...option.ClientOption) (VersionAccessor, error) {
		t.Fatalf("secret manager should not be dialled without a project")
		return nil, nil
	})

	f := newTestFetcher(t, WithFallbackFile(writeLocalFile(t, "session_signing_key=local-key\n")))
	got, err := f.Resolve(context.Background(), "secret://session_signing_key")
	require.NoError(t, err)
	assert.Equal(t, "local-key", got)
}

func TestNewFetcherSurvivesDialFailure(t *testing.T) {
	swapClientFactory(t, func(context.Context, ...option.ClientOption) (VersionAccessor, error) {
		return nil, errors.New("no credentials")
	})

	f := newTestFetcher(t,
		WithDefaultProject("shop-prod"),
		WithFallbackFile(writeLocalFile(t, "secret://catalog_token=local-token\n")),
	)
	got, err := f.Resolve(context.Background(), "secret://catalog_token")
	require.NoError(t, err)
	assert.Equal(t, "local-token", got)
	require.NoError(t, f.Close())
}

func TestFetcherClosesOwnedClientOnly(t *testing.T) {
	owned := newFakeAccessor()
	swapClientFactory(t, func(context.Context, ...option.ClientOption) (VersionAccessor, error) {
		return owned, nil
	})
	f, err := NewFetcher(context.Background(), WithDefaultProject("shop-prod"), WithFallbackFile(""))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.True(t, owned.closed)

	injected := newFakeAccessor()
	f, err = NewFetcher(context.Background(), WithAccessor(injected), WithFallbackFile(""))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.False(t, injected.closed)
}

func newTestFetcher(t *testing.T, opts ...Option) *Fetcher {
	t.Helper()
	opts = append([]Option{WithFallbackFile("")}, opts...)
	f, err := NewFetcher(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func writeLocalFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func swapClientFactory(t *testing.T, factory func(context.Context, ...option.ClientOption) (VersionAccessor, error)) {
	t.Helper()
	original := newSecretManagerClient
	newSecretManagerClient = factory
	t.Cleanup(func() { newSecretManagerClient = original })
}

type fakeAccessor struct {
	mu     sync.Mutex
	values map[string]string
	errs   map[string]error
	hits   map[string]int
	closed bool
}

func newFakeAccessor() *fakeAccessor {
	return &fakeAccessor{values: map[string]string{}, errs: map[string]error{}, hits: map[string]int{}}
}

func (f *fakeAccessor) set(name, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[name] = value
}

func (f *fakeAccessor) fail(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[name] = err
}

func (f *fakeAccessor) calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[name]
}

func (f *fakeAccessor) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[req.GetName()]++
	if err := f.errs[req.GetName()]; err != nil {
		return nil, err
	}
	value, ok := f.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret version not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeAccessor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
