package retrieval

import (
	"github.com/hybrid-rag/backend/internal/textutil"
)

// LexicalScorer measures query token coverage of a passage.
type LexicalScorer struct {
	ExcludeStopwords bool
}

// Score returns the share of distinct query tokens present in passage, in [0,1].
func (s LexicalScorer) Score(query, passage string) float64 {
	queryTokens := textutil.Unique(s.tokens(query))
	if len(queryTokens) == 0 {
		return 0
	}
	passageTokens := s.tokens(passage)
	if len(passageTokens) == 0 {
		return 0
	}
	return overlapRatio(queryTokens, textutil.TokenSet(passageTokens))
}

func (s LexicalScorer) tokens(text string) []string {
	if s.ExcludeStopwords {
		return textutil.ContentTokens(text)
	}
	return textutil.Tokenize(text)
}

func overlapRatio(query []string, passage map[string]struct{}) float64 {
	if len(query) == 0 || len(passage) == 0 {
		return 0
	}
	matches := 0
	for _, token := range query {
		if _, ok := passage[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}
