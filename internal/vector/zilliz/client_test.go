package zilliz

import (
	"errors"
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitsFromResults(t *testing.T) {
	t.Run("Maps ids and scores", func(t *testing.T) {
		hits, err := hitsFromResults([]client.SearchResult{{
			ResultCount: 2,
			Fields:      client.ResultSet{entity.NewColumnVarChar(fieldChunkID, []string{"c1", "c2"})},
			Scores:      []float32{0.9, 0.5},
		}})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "c1", hits[0].ChunkID)
		assert.InDelta(t, 0.9, hits[0].Similarity, 1e-6)
		assert.Equal(t, "c2", hits[1].ChunkID)
	})

	t.Run("Missing id column", func(t *testing.T) {
		_, err := hitsFromResults([]client.SearchResult{{ResultCount: 1, Scores: []float32{0.3}}})
		assert.Error(t, err)
	})

	t.Run("Per-query error", func(t *testing.T) {
		_, err := hitsFromResults([]client.SearchResult{{Err: errors.New("collection not loaded")}})
		assert.ErrorContains(t, err, "collection not loaded")
	})

	t.Run("No results", func(t *testing.T) {
		hits, err := hitsFromResults(nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}
