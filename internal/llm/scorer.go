package llm

import (
	"context"
	"fmt"

	"github.com/hybrid-rag/backend/internal/retrieval"
)

type Embedder interface {
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingScorer reranks by cosine similarity between query and passage
// embeddings. It is a bi-encoder stand-in for a cross-encoder model.
type EmbeddingScorer struct {
	embedder Embedder
}

var _ retrieval.Scorer = (*EmbeddingScorer)(nil)

func NewEmbeddingScorer(embedder Embedder) *EmbeddingScorer {
	return &EmbeddingScorer{embedder: embedder}
}

func (s *EmbeddingScorer) Score(ctx context.Context, query, passage string) (float64, error) {
	vectors, err := s.embedder.GenerateBatchEmbeddings(ctx, []string{query, passage})
	if err != nil {
		return 0, fmt.Errorf("failed to embed rerank pair: %w", err)
	}
	if len(vectors) != 2 {
		return 0, fmt.Errorf("failed to embed rerank pair: %w", ErrEmptyResponse)
	}
	return retrieval.CosineSimilarity(vectors[0], vectors[1]), nil
}
