package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestEmbeddingCache(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestClient(t)

	t.Run("Miss", func(t *testing.T) {
		_, found, err := c.GetEmbedding(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Round trip with TTL", func(t *testing.T) {
		require.NoError(t, c.SetEmbedding(ctx, "k1", []float32{0.25, -1}, time.Minute))

		got, found, err := c.GetEmbedding(ctx, "k1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []float32{0.25, -1}, got)

		mr.FastForward(2 * time.Minute)
		_, found, err = c.GetEmbedding(ctx, "k1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Invalidate", func(t *testing.T) {
		require.NoError(t, c.SetEmbedding(ctx, "a", []float32{1}, 0))
		require.NoError(t, c.SetEmbedding(ctx, "b", []float32{2}, 0))
		require.NoError(t, mr.Set("unrelated", "x"))

		deleted, err := c.InvalidateEmbeddings(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, deleted)
		assert.True(t, mr.Exists("unrelated"))
	})

	t.Run("Unreachable server", func(t *testing.T) {
		_, err := NewClient(ctx, "127.0.0.1:1", "", 0)
		assert.Error(t, err)
	})
}
