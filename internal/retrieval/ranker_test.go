package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidate(id, source string, semantic, lexical float64, position int) Candidate {
	return Candidate{
		Chunk:         Chunk{ID: id, SourceID: source, Text: id},
		SemanticScore: semantic,
		LexicalScore:  lexical,
		Position:      position,
	}
}

func ids(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Chunk.ID
	}
	return out
}

func params(topK, diversityCap int, threshold float64) RankParams {
	return RankParams{
		SemanticWeight:      0.7,
		LexicalWeight:       0.3,
		SimilarityThreshold: threshold,
		DiversityCap:        diversityCap,
		TopK:                topK,
	}
}

func TestRank(t *testing.T) {
	t.Run("Combines weighted scores", func(t *testing.T) {
		out := Rank([]Candidate{candidate("a", "d1", 0.5, 1.0, 0)}, params(5, 2, 0))
		require.Len(t, out, 1)
		assert.InDelta(t, 0.65, out[0].CombinedScore, 1e-9)
	})

	t.Run("Drops candidates below threshold", func(t *testing.T) {
		out := Rank([]Candidate{
			candidate("a", "d1", 0.9, 0.9, 0),
			candidate("b", "d2", 0.1, 0.1, 1),
		}, params(5, 2, 0.5))
		assert.Equal(t, []string{"a"}, ids(out))
	})

	t.Run("Strict threshold returns empty result", func(t *testing.T) {
		out := Rank([]Candidate{
			candidate("a", "d1", 0.8, 0.8, 0),
			candidate("b", "d2", 0.6, 0.9, 1),
		}, params(5, 2, 0.99))
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("Ties broken by semantic score then corpus order", func(t *testing.T) {
		p := RankParams{SemanticWeight: 1, LexicalWeight: 1, DiversityCap: 5, TopK: 5}
		out := Rank([]Candidate{
			candidate("late", "d1", 0.25, 0.75, 3),
			candidate("lexical", "d2", 0.125, 0.875, 1),
			candidate("early", "d3", 0.25, 0.75, 2),
		}, p)
		assert.Equal(t, []string{"early", "late", "lexical"}, ids(out))
	})

	t.Run("Diversity cap limits a dominant source", func(t *testing.T) {
		out := Rank([]Candidate{
			candidate("a1", "a", 0.95, 0.9, 0),
			candidate("a2", "a", 0.94, 0.9, 1),
			candidate("a3", "a", 0.93, 0.9, 2),
			candidate("b1", "b", 0.60, 0.5, 3),
			candidate("c1", "c", 0.50, 0.5, 4),
		}, params(4, 2, 0))
		assert.Equal(t, []string{"a1", "a2", "b1", "c1"}, ids(out))
	})

	t.Run("Cap relaxes only when diverse candidates run out", func(t *testing.T) {
		out := Rank([]Candidate{
			candidate("a1", "a", 0.95, 0.9, 0),
			candidate("a2", "a", 0.94, 0.9, 1),
			candidate("a3", "a", 0.93, 0.9, 2),
			candidate("a4", "a", 0.92, 0.9, 3),
			candidate("b1", "b", 0.60, 0.5, 4),
		}, params(4, 2, 0))
		assert.Equal(t, []string{"a1", "a2", "a3", "b1"}, ids(out))
	})

	t.Run("Output is monotonic and within top_k", func(t *testing.T) {
		var cands []Candidate
		sources := []string{"x", "y", "x", "z", "x", "y", "x", "x"}
		for i, s := range sources {
			cands = append(cands, candidate(s+string(rune('0'+i)), s, float64(i%3)/3, float64(i%4)/4, i))
		}
		out := Rank(cands, params(5, 1, 0))
		require.LessOrEqual(t, len(out), 5)
		for i := 1; i < len(out); i++ {
			assert.GreaterOrEqual(t, out[i-1].CombinedScore, out[i].CombinedScore)
		}
	})

	t.Run("Cap never exceeded when enough diverse candidates", func(t *testing.T) {
		var cands []Candidate
		for i := 0; i < 12; i++ {
			source := []string{"a", "b", "c", "d"}[i%4]
			cands = append(cands, candidate(source+string(rune('a'+i)), source, 1-float64(i)/20, 0.5, i))
		}
		out := Rank(cands, params(6, 2, 0))
		require.Len(t, out, 6)
		counts := map[string]int{}
		for _, c := range out {
			counts[c.Chunk.SourceID]++
		}
		for source, n := range counts {
			assert.LessOrEqual(t, n, 2, "source %s over cap", source)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		cands := []Candidate{
			candidate("a", "d1", 0.3, 0.2, 0),
			candidate("b", "d1", 0.9, 0.1, 1),
			candidate("c", "d2", 0.5, 0.7, 2),
		}
		p := params(2, 1, 0.1)
		assert.Equal(t, Rank(cands, p), Rank(cands, p))
	})

	t.Run("Empty input", func(t *testing.T) {
		assert.Empty(t, Rank(nil, params(5, 2, 0)))
	})
}
