package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areebabashir/intrnecommerceproj1/internal/repositories"
)

func TestKeyValueRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewKeyValueRepository()

	_, err := repo.Get(ctx, "sessions/a/productCart")
	require.True(t, repositories.IsNotFound(err))

	value := []byte(`{"version":1}`)
	require.NoError(t, repo.Put(ctx, "sessions/a/productCart", value))
	value[0] = 'x'

	got, err := repo.Get(ctx, "sessions/a/productCart")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(got), "stored value must be copied")

	require.NoError(t, repo.Put(ctx, "sessions/a/wishlistItems", []byte(`[]`)))
	require.NoError(t, repo.Put(ctx, "sessions/b/productCart", []byte(`[]`)))
	assert.Equal(t, []string{"sessions/a/productCart", "sessions/a/wishlistItems"}, repo.Keys("sessions/a/"))

	require.NoError(t, repo.Delete(ctx, "sessions/a/productCart"))
	require.NoError(t, repo.Delete(ctx, "sessions/a/productCart"))
	_, err = repo.Get(ctx, "sessions/a/productCart")
	assert.True(t, repositories.IsNotFound(err))
}

func TestKeyValueRepositoryHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewKeyValueRepository()
	assert.ErrorIs(t, repo.Put(ctx, "k", []byte("v")), context.Canceled)
}
