package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/pkg/logger"
)

// Pipeline runs semantic search, lexical scoring, hybrid ranking and the
// optional rerank stage for one query. It keeps no per-call state, so one
// Pipeline serves concurrent queries.
type Pipeline struct {
	index    SemanticIndex
	corpus   Corpus
	reranker *Reranker
}

// NewPipeline accepts a nil index (lexical-only) and a nil reranker (passthrough).
func NewPipeline(index SemanticIndex, corpus Corpus, reranker *Reranker) *Pipeline {
	if reranker == nil {
		reranker = NewReranker(nil)
	}
	return &Pipeline{
		index:    index,
		corpus:   corpus,
		reranker: reranker,
	}
}

func (p *Pipeline) Retrieve(ctx context.Context, queryText string, queryVector []float32, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{Candidates: []Candidate{}}
	if ctx.Err() != nil {
		return deadline(ctx, result, cfg)
	}
	if strings.TrimSpace(queryText) == "" && len(queryVector) == 0 {
		return result, nil
	}

	hits, degraded := p.semanticSearch(ctx, queryVector, cfg.candidatePool())
	result.Degraded = degraded

	candidates := p.scoreCorpus(queryText, hits, cfg.ExcludeStopwords)
	result.Candidates = Rank(candidates, cfg.rankParams())
	if ctx.Err() != nil {
		return deadline(ctx, result, cfg)
	}

	if len(result.Candidates) > 0 {
		result.Candidates, result.Reranked = p.reranker.Rerank(ctx, queryText, result.Candidates, RerankOptions{
			Enabled:       cfg.RerankEnabled,
			CitationBoost: cfg.CitationBoostEnabled,
			BoostAmount:   cfg.CitationBoost,
		})
	}

	logger.Debug("Retrieval completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(result.Candidates)),
		zap.Bool("degraded", result.Degraded),
		zap.Bool("reranked", result.Reranked),
	)

	return result, nil
}

// semanticSearch reports degraded when the semantic signal could not be
// obtained. An empty index is not degraded; it simply has no hits.
func (p *Pipeline) semanticSearch(ctx context.Context, vector []float32, k int) (map[string]float64, bool) {
	if p.index == nil || len(vector) == 0 {
		return nil, true
	}

	hits, err := p.index.Search(ctx, vector, k)
	if err != nil {
		logger.Warn("Semantic index search failed, falling back to lexical ranking", zap.Error(err))
		return nil, true
	}

	scores := make(map[string]float64, len(hits))
	for _, h := range hits {
		if _, seen := scores[h.ChunkID]; !seen {
			scores[h.ChunkID] = h.Similarity
		}
	}
	return scores, false
}

func (p *Pipeline) scoreCorpus(queryText string, semantic map[string]float64, excludeStopwords bool) []Candidate {
	if p.corpus == nil {
		return nil
	}

	scorer := LexicalScorer{ExcludeStopwords: excludeStopwords}
	chunks := p.corpus.Chunks()
	seen := make(map[string]struct{}, len(chunks))
	candidates := make([]Candidate, 0, len(chunks))

	for i, chunk := range chunks {
		if _, dup := seen[chunk.ID]; dup {
			continue
		}
		seen[chunk.ID] = struct{}{}

		candidates = append(candidates, Candidate{
			Chunk:         chunk,
			SemanticScore: semantic[chunk.ID],
			LexicalScore:  scorer.Score(queryText, chunk.Text),
			Position:      i,
		})
	}

	for id := range semantic {
		if _, ok := seen[id]; !ok {
			logger.Debug("Semantic hit missing from corpus", zap.String("chunk_id", id))
		}
	}

	return candidates
}

func deadline(ctx context.Context, partial *Result, cfg Config) (*Result, error) {
	if cfg.BestEffort {
		partial.Partial = true
		logger.Warn("Retrieval deadline exceeded, returning partial result",
			zap.Int("candidates", len(partial.Candidates)),
		)
		return partial, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrDeadlineExceeded, ctx.Err())
}
