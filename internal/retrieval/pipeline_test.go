package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingIndex struct{}

func (failingIndex) Search(context.Context, []float32, int) ([]Hit, error) {
	return nil, errors.New("connection refused")
}

// cancellingIndex expires the caller's context while serving the search.
type cancellingIndex struct {
	inner  SemanticIndex
	cancel context.CancelFunc
}

func (c cancellingIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	hits, err := c.inner.Search(ctx, vector, k)
	c.cancel()
	return hits, err
}

func testCorpus() *MemoryCorpus {
	return NewMemoryCorpus([]Chunk{
		{ID: "fw-1", SourceID: "network-policy", Text: "Firewall rules must deny inbound traffic by default."},
		{ID: "pw-1", SourceID: "identity-policy", Text: "Passwords rotate every ninety days."},
		{ID: "bk-1", SourceID: "backup-policy", Text: "Backups are encrypted and stored offsite."},
		{ID: "iso-1", SourceID: "iso", Text: "The organization maintains an information security management system."},
	})
}

func testIndex() *MemoryIndex {
	idx := NewMemoryIndex()
	idx.Upsert("fw-1", []float32{1, 0, 0})
	idx.Upsert("pw-1", []float32{0, 1, 0})
	idx.Upsert("bk-1", []float32{0, 0, 1})
	idx.Upsert("iso-1", []float32{0.5, 0.5, 0})
	return idx
}

func TestPipelineRetrieve(t *testing.T) {
	ctx := context.Background()
	queryVector := []float32{1, 0.1, 0}

	t.Run("Hybrid ranking", func(t *testing.T) {
		p := NewPipeline(testIndex(), testCorpus(), nil)
		res, err := p.Retrieve(ctx, "firewall rules", queryVector, DefaultConfig())
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, []string{"fw-1", "iso-1"}, ids(res.Candidates))
		assert.InDelta(t, 1.0, res.Candidates[0].LexicalScore, 1e-9)
	})

	t.Run("Index failure degrades to lexical ranking", func(t *testing.T) {
		p := NewPipeline(failingIndex{}, testCorpus(), nil)
		res, err := p.Retrieve(ctx, "passwords rotate", queryVector, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Equal(t, []string{"pw-1"}, ids(res.Candidates))
		assert.Zero(t, res.Candidates[0].SemanticScore)
	})

	t.Run("Missing index or vector degrades", func(t *testing.T) {
		res, err := NewPipeline(nil, testCorpus(), nil).Retrieve(ctx, "backups", nil, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, res.Degraded)
		assert.Equal(t, []string{"bk-1"}, ids(res.Candidates))

		res, err = NewPipeline(testIndex(), testCorpus(), nil).Retrieve(ctx, "backups", nil, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, res.Degraded)
	})

	t.Run("Empty index is not degraded", func(t *testing.T) {
		res, err := NewPipeline(NewMemoryIndex(), testCorpus(), nil).Retrieve(ctx, "backups", queryVector, DefaultConfig())
		require.NoError(t, err)
		assert.False(t, res.Degraded)
		assert.Equal(t, []string{"bk-1"}, ids(res.Candidates))
	})

	t.Run("Nothing clears a strict threshold", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.SimilarityThreshold = 0.99
		res, err := NewPipeline(testIndex(), testCorpus(), nil).Retrieve(ctx, "quarterly revenue", queryVector, cfg)
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.NotNil(t, res.Candidates)
	})

	t.Run("Blank query without vector", func(t *testing.T) {
		res, err := NewPipeline(testIndex(), testCorpus(), nil).Retrieve(ctx, "   ", nil, DefaultConfig())
		require.NoError(t, err)
		assert.True(t, res.Empty())
		assert.False(t, res.Degraded)
	})

	t.Run("Reranked results carry rerank scores", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RerankEnabled = true
		p := NewPipeline(testIndex(), testCorpus(), NewReranker(PhraseScorer{}))
		res, err := p.Retrieve(ctx, "firewall rules", queryVector, cfg)
		require.NoError(t, err)
		require.True(t, res.Reranked)
		require.NotEmpty(t, res.Candidates)
		assert.Equal(t, "fw-1", res.Candidates[0].Chunk.ID)
		for _, c := range res.Candidates {
			assert.NotNil(t, c.RerankScore)
		}
	})
}

func TestPipelineConfigErrors(t *testing.T) {
	p := NewPipeline(testIndex(), testCorpus(), nil)

	cases := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"Zero top_k", func(c *Config) { c.TopK = 0 }, "top_k"},
		{"Zero diversity cap", func(c *Config) { c.DiversityCap = 0 }, "diversity_cap"},
		{"Negative weight", func(c *Config) { c.LexicalWeight = -0.1 }, "lexical_weight"},
		{"Both weights zero", func(c *Config) { c.SemanticWeight, c.LexicalWeight = 0, 0 }, "semantic_weight"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.edit(&cfg)

			_, err := p.Retrieve(context.Background(), "firewall", nil, cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestPipelineDeadline(t *testing.T) {
	t.Run("Expired context fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := NewPipeline(testIndex(), testCorpus(), nil).Retrieve(ctx, "firewall", nil, DefaultConfig())
		assert.ErrorIs(t, err, ErrDeadlineExceeded)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Expired context with best effort is partial", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := DefaultConfig()
		cfg.BestEffort = true
		res, err := NewPipeline(testIndex(), testCorpus(), nil).Retrieve(ctx, "firewall", nil, cfg)
		require.NoError(t, err)
		assert.True(t, res.Partial)
		assert.Empty(t, res.Candidates)
	})

	t.Run("Deadline mid-call keeps ranked stage", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := DefaultConfig()
		cfg.BestEffort = true
		cfg.RerankEnabled = true
		idx := cancellingIndex{inner: testIndex(), cancel: cancel}
		res, err := NewPipeline(idx, testCorpus(), NewReranker(PhraseScorer{})).Retrieve(ctx, "firewall rules", []float32{1, 0.1, 0}, cfg)
		require.NoError(t, err)
		assert.True(t, res.Partial)
		assert.False(t, res.Reranked)
		assert.Equal(t, "fw-1", res.Candidates[0].Chunk.ID)
	})

	t.Run("Deadline mid-call without best effort fails", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		idx := cancellingIndex{inner: testIndex(), cancel: cancel}
		_, err := NewPipeline(idx, testCorpus(), nil).Retrieve(ctx, "firewall rules", []float32{1, 0.1, 0}, DefaultConfig())
		assert.ErrorIs(t, err, ErrDeadlineExceeded)
	})
}

func TestPipelineConcurrentQueries(t *testing.T) {
	p := NewPipeline(testIndex(), testCorpus(), NewReranker(PhraseScorer{}))
	cfg := DefaultConfig()
	cfg.RerankEnabled = true

	want, err := p.Retrieve(context.Background(), "firewall rules", []float32{1, 0.1, 0}, cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]*Result, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = p.Retrieve(context.Background(), "firewall rules", []float32{1, 0.1, 0}, cfg)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		require.NotNil(t, got)
		assert.Equal(t, ids(want.Candidates), ids(got.Candidates))
	}
}

func TestMemoryIndexSearch(t *testing.T) {
	idx := testIndex()
	idx.Upsert("short", []float32{1, 0})

	hits, err := idx.Search(context.Background(), []float32{0, 1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "pw-1", hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 1e-9)
	assert.Equal(t, "iso-1", hits[1].ChunkID)
	assert.Equal(t, 5, idx.Len())

	none, err := idx.Search(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryIndexRetain(t *testing.T) {
	idx := NewMemoryIndex()
	idx.Upsert("a", []float32{1, 0})
	idx.Upsert("b", []float32{0, 1})
	idx.Upsert("c", []float32{1, 1})

	removed := idx.Retain(map[string]struct{}{"a": {}, "c": {}})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.Search(context.Background(), []float32{0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.NotEqual(t, "b", h.ChunkID)
	}

	idx.Upsert("b", []float32{0, 1})
	assert.Equal(t, 3, idx.Len())
}

func TestMemoryCorpusReplace(t *testing.T) {
	c := NewMemoryCorpus([]Chunk{{ID: "a"}})
	first := c.Chunks()
	c.Replace([]Chunk{{ID: "b"}, {ID: "c"}})

	assert.Equal(t, "a", first[0].ID)
	assert.Len(t, c.Chunks(), 2)
}
