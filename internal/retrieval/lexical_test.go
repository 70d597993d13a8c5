package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLexicalScorer(t *testing.T) {
	t.Run("Normalized by query token count", func(t *testing.T) {
		s := LexicalScorer{}
		score := s.Score("access management controls", "Controls include ACCESS reviews")
		assert.InDelta(t, 2.0/3.0, score, 1e-9)
	})

	t.Run("Stopwords optionally excluded", func(t *testing.T) {
		with := LexicalScorer{}.Score("the controls", "controls")
		without := LexicalScorer{ExcludeStopwords: true}.Score("the controls", "controls")
		assert.InDelta(t, 0.5, with, 1e-9)
		assert.InDelta(t, 1.0, without, 1e-9)
	})

	t.Run("Repeated query tokens count once", func(t *testing.T) {
		score := LexicalScorer{}.Score("iso iso iso 27001", "iso standard")
		assert.InDelta(t, 0.5, score, 1e-9)
	})

	t.Run("Empty inputs score zero", func(t *testing.T) {
		s := LexicalScorer{ExcludeStopwords: true}
		assert.Zero(t, s.Score("", "passage"))
		assert.Zero(t, s.Score("query", ""))
		assert.Zero(t, s.Score("the of and", "the of and"))
	})

	t.Run("Bounded to unit interval", func(t *testing.T) {
		score := LexicalScorer{}.Score("firewall", "firewall firewall firewall")
		assert.Equal(t, 1.0, score)
	})
}
