// Package cache holds the embedding caches the query engine consults before
// calling the embedding model. Keys are content fingerprints, so the same
// text always maps to the same entry.
package cache

import (
	"context"
	"time"

	"github.com/hybrid-rag/backend/pkg/utils"
)

type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, embedding []float32, ttl time.Duration) error
}

// EmbeddingKey scopes the text fingerprint by model so switching models
// never serves stale vectors.
func EmbeddingKey(model, text string) string {
	return model + ":" + utils.Fingerprint(text)
}
