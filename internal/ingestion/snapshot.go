package ingestion

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/pkg/logger"
)

type ChunkSource interface {
	LoadChunks() ([]models.Chunk, error)
}

// Snapshot is the in-process view retrieval runs over: the corpus in storage
// order plus an index of whichever chunks carry stored embeddings.
type Snapshot struct {
	Corpus *retrieval.MemoryCorpus
	Index  *retrieval.MemoryIndex
}

func LoadSnapshot(source ChunkSource) (*Snapshot, error) {
	rows, err := source.LoadChunks()
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus snapshot: %w", err)
	}

	s := &Snapshot{
		Corpus: retrieval.NewMemoryCorpus(nil),
		Index:  retrieval.NewMemoryIndex(),
	}
	s.apply(rows)
	return s, nil
}

func ToRetrievalChunk(c models.Chunk) retrieval.Chunk {
	return retrieval.Chunk{
		ID:         c.ID,
		SourceID:   c.SourceID,
		Text:       c.Text,
		Identifier: c.Identifier,
		Section:    c.Section,
		Page:       c.Page,
	}
}

// Refresh reloads the chunk table into the live corpus and index. In-flight
// retrievals keep the snapshot they started with.
func (s *Snapshot) Refresh(source ChunkSource) error {
	rows, err := source.LoadChunks()
	if err != nil {
		return fmt.Errorf("failed to refresh corpus snapshot: %w", err)
	}
	s.apply(rows)
	return nil
}

// apply indexes embeddings before publishing the corpus so a chunk is never
// visible lexically while its vector is still missing. Vectors of chunks
// that are gone, or no longer carry an embedding, are dropped.
func (s *Snapshot) apply(rows []models.Chunk) {
	chunks := make([]retrieval.Chunk, len(rows))
	embedded := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		chunks[i] = ToRetrievalChunk(row)
		if len(row.Embedding) > 0 {
			s.Index.Upsert(row.ID, row.Embedding)
			embedded[row.ID] = struct{}{}
		}
	}
	if removed := s.Index.Retain(embedded); removed > 0 {
		logger.Info("Dropped stale vectors from index", zap.Int("removed", removed))
	}
	s.Corpus.Replace(chunks)
}
