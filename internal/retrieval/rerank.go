package retrieval

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/textutil"
	"github.com/hybrid-rag/backend/pkg/logger"
)

// Scorer rates how relevant passage is to query; higher is better.
type Scorer interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

type ScorerFunc func(ctx context.Context, query, passage string) (float64, error)

func (f ScorerFunc) Score(ctx context.Context, query, passage string) (float64, error) {
	return f(ctx, query, passage)
}

type RerankOptions struct {
	Enabled       bool
	CitationBoost bool
	BoostAmount   float64
}

type Reranker struct {
	scorer Scorer
}

// NewReranker accepts a nil scorer; reranking then passes the shortlist through.
func NewReranker(scorer Scorer) *Reranker {
	return &Reranker{scorer: scorer}
}

// Rerank reorders shortlist by scorer relevance and applies the citation
// boost. The second return value reports whether rerank scores were attached.
// A missing or failing scorer leaves the hybrid order untouched.
func (r *Reranker) Rerank(ctx context.Context, query string, shortlist []Candidate, opts RerankOptions) ([]Candidate, bool) {
	if len(shortlist) == 0 || (!opts.Enabled && !opts.CitationBoost) {
		return shortlist, false
	}

	out := make([]Candidate, len(shortlist))
	copy(out, shortlist)
	scores := make([]float64, len(out))
	for i := range out {
		scores[i] = out[i].CombinedScore
	}

	scored := false
	if opts.Enabled && r != nil && r.scorer != nil {
		scored = r.scoreAll(ctx, query, out, scores)
		if scored {
			sortByScores(out, scores)
		}
	}

	boosted := 0
	if opts.CitationBoost {
		boosted = applyCitationBoost(out, scores, opts.BoostAmount)
	}

	if !scored && boosted == 0 {
		return shortlist, false
	}

	for i := range out {
		s := scores[i]
		out[i].RerankScore = &s
	}
	return out, true
}

func (r *Reranker) scoreAll(ctx context.Context, query string, cands []Candidate, scores []float64) bool {
	fresh := make([]float64, len(cands))
	for i, c := range cands {
		s, err := r.scorer.Score(ctx, query, c.Chunk.Text)
		if err != nil || math.IsNaN(s) {
			logger.Warn("Reranker unavailable, keeping hybrid order",
				zap.String("chunk_id", c.Chunk.ID),
				zap.Error(err),
			)
			return false
		}
		fresh[i] = s
	}
	copy(scores, fresh)
	return true
}

func sortByScores(cands []Candidate, scores []float64) {
	idx := make([]int, len(cands))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	sortedCands := make([]Candidate, len(cands))
	sortedScores := make([]float64, len(scores))
	for k, i := range idx {
		sortedCands[k] = cands[i]
		sortedScores[k] = scores[i]
	}
	copy(cands, sortedCands)
	copy(scores, sortedScores)
}

// applyCitationBoost adds amount to every candidate whose label is mentioned
// by another shortlisted passage. A boosted score stays strictly below the
// score two positions up, so each application moves a candidate at most one
// place. Every candidate is boosted at most once. cands and scores must be
// sorted by descending score and are updated in place.
func applyCitationBoost(cands []Candidate, scores []float64, amount float64) int {
	if amount <= 0 || len(cands) < 2 {
		return 0
	}

	cited := make(map[string]bool)
	for i, c := range cands {
		pattern := citationPattern(c.Chunk)
		if pattern == nil {
			continue
		}
		for j, other := range cands {
			if i != j && pattern.MatchString(other.Chunk.Text) {
				cited[c.Chunk.ID] = true
				break
			}
		}
	}
	if len(cited) == 0 {
		return 0
	}

	order := make([]string, len(cands))
	for i, c := range cands {
		order[i] = c.Chunk.ID
	}

	boosted := 0
	for _, id := range order {
		if !cited[id] {
			continue
		}
		pos := indexOf(cands, id)
		next := scores[pos] + amount
		if pos >= 2 {
			ceiling := math.Nextafter(scores[pos-2], math.Inf(-1))
			if next > ceiling {
				next = ceiling
			}
		}
		if next <= scores[pos] {
			continue
		}
		scores[pos] = next
		boosted++

		if pos >= 1 && scores[pos] > scores[pos-1] {
			cands[pos], cands[pos-1] = cands[pos-1], cands[pos]
			scores[pos], scores[pos-1] = scores[pos-1], scores[pos]
		}
	}
	return boosted
}

func citationPattern(c Chunk) *regexp.Regexp {
	label := strings.TrimSpace(c.Identifier)
	if label == "" {
		label = strings.TrimSpace(c.ID)
	}
	if len(textutil.Tokenize(label)) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}])` + regexp.QuoteMeta(label) + `($|[^\p{L}\p{N}])`)
}

func indexOf(cands []Candidate, id string) int {
	for i, c := range cands {
		if c.Chunk.ID == id {
			return i
		}
	}
	return -1
}

// PhraseScorer is a dependency-free Scorer weighing single-token and
// adjacent-pair overlap equally, so passages keeping the query's word order
// outrank bag-of-words matches.
type PhraseScorer struct{}

func (PhraseScorer) Score(_ context.Context, query, passage string) (float64, error) {
	queryTokens := textutil.ContentTokens(query)
	passageTokens := textutil.ContentTokens(passage)
	if len(queryTokens) == 0 || len(passageTokens) == 0 {
		return 0, nil
	}

	unigram := overlapRatio(textutil.Unique(queryTokens), textutil.TokenSet(passageTokens))
	if len(queryTokens) < 2 {
		return unigram, nil
	}

	queryPairs := textutil.Unique(textutil.NGrams(queryTokens, 2))
	passagePairs := textutil.TokenSet(textutil.NGrams(passageTokens, 2))
	bigram := overlapRatio(queryPairs, passagePairs)

	return 0.5*unigram + 0.5*bigram, nil
}
