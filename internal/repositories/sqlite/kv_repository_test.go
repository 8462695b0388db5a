package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

func openTestRepository(t *testing.T) *KeyValueRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "storefront.db")
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	repo, err := Open(context.Background(), path, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestKeyValueRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	require.NoError(t, repo.Ping(ctx))

	_, err := repo.Get(ctx, "sessions/s1/productCart")
	require.True(t, repositories.IsNotFound(err), "expected not found, got %v", err)

	require.NoError(t, repo.Put(ctx, "sessions/s1/productCart", []byte(`{"version":1,"items":[]}`)))
	require.NoError(t, repo.Put(ctx, "sessions/s1/productCart", []byte(`{"version":1,"items":[{"id":1}]}`)))

	got, err := repo.Get(ctx, "sessions/s1/productCart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"items":[{"id":1}]}`, string(got))

	require.NoError(t, repo.Delete(ctx, "sessions/s1/productCart"))
	_, err = repo.Get(ctx, "sessions/s1/productCart")
	assert.True(t, repositories.IsNotFound(err))
}

func TestKeyValueRepositoryKeysEscapesLikePatterns(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepository(t)

	require.NoError(t, repo.Put(ctx, "sessions/a_1/productCart", []byte(`[]`)))
	require.NoError(t, repo.Put(ctx, "sessions/ab1/productCart", []byte(`[]`)))
	require.NoError(t, repo.Put(ctx, "sessions/a_1/wishlistItems", []byte(`[]`)))

	keys, err := repo.Keys(ctx, "sessions/a_1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"sessions/a_1/productCart", "sessions/a_1/wishlistItems"}, keys)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}
