package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is an in-process SemanticIndex doing exact cosine search.
// Upsert belongs to the index owner; Search is safe for concurrent readers.
type MemoryIndex struct {
	mu      sync.RWMutex
	ids     []string
	vectors map[string][]float32
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string][]float32)}
}

func (m *MemoryIndex) Upsert(chunkID string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.vectors[chunkID]; !ok {
		m.ids = append(m.ids, chunkID)
	}
	stored := make([]float32, len(vector))
	copy(stored, vector)
	m.vectors[chunkID] = stored
}

// Retain drops every vector whose chunk id is not in keep and returns how
// many were removed.
func (m *MemoryIndex) Retain(keep map[string]struct{}) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.ids[:0]
	removed := 0
	for _, id := range m.ids {
		if _, ok := keep[id]; ok {
			ids = append(ids, id)
			continue
		}
		delete(m.vectors, id)
		removed++
	}
	m.ids = ids
	return removed
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.ids))
	for _, id := range m.ids {
		stored := m.vectors[id]
		if len(stored) != len(vector) {
			continue
		}
		hits = append(hits, Hit{ChunkID: id, Similarity: CosineSimilarity(vector, stored)})
	}
	m.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// CosineSimilarity returns 0 for mismatched lengths or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
