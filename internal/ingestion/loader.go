package ingestion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/internal/vector/zilliz"
	"github.com/hybrid-rag/backend/pkg/logger"
)

const defaultBatchSize = 256

var ErrInvalidChunk = errors.New("invalid chunk")

type ChunkStore interface {
	UpsertChunk(chunk *models.Chunk) error
}

type VectorWriter interface {
	Insert(ctx context.Context, records []zilliz.VectorRecord) error
}

// Loader writes pre-chunked, pre-embedded records into the chunk store and,
// when configured, the vector database. It performs no parsing or embedding.
type Loader struct {
	store     ChunkStore
	vectors   VectorWriter
	batchSize int
}

type Stats struct {
	Chunks   int `json:"chunks"`
	Embedded int `json:"embedded"`
	Indexed  int `json:"indexed"`
}

func NewLoader(store ChunkStore, vectors VectorWriter) *Loader {
	return &Loader{
		store:     store,
		vectors:   vectors,
		batchSize: defaultBatchSize,
	}
}

// ReadJSONL decodes one chunk per line. Blank lines are skipped; every chunk
// needs an id and text, and all embeddings must share one dimension.
func ReadJSONL(r io.Reader) ([]models.Chunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var chunks []models.Chunk
	seen := make(map[string]int)
	dim := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var chunk models.Chunk
		if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", line, ErrInvalidChunk, err)
		}
		if chunk.ID == "" || strings.TrimSpace(chunk.Text) == "" {
			return nil, fmt.Errorf("line %d: %w: id and text are required", line, ErrInvalidChunk)
		}
		if prev, ok := seen[chunk.ID]; ok {
			return nil, fmt.Errorf("line %d: %w: duplicate id %q (first on line %d)", line, ErrInvalidChunk, chunk.ID, prev)
		}
		seen[chunk.ID] = line

		if n := len(chunk.Embedding); n > 0 {
			if dim == 0 {
				dim = n
			} else if n != dim {
				return nil, fmt.Errorf("line %d: %w: embedding has %d dimensions, expected %d", line, ErrInvalidChunk, n, dim)
			}
		}

		chunks = append(chunks, chunk)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	return chunks, nil
}

func (l *Loader) Load(ctx context.Context, chunks []models.Chunk) (Stats, error) {
	var stats Stats
	batch := make([]zilliz.VectorRecord, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 || l.vectors == nil {
			batch = batch[:0]
			return nil
		}
		if err := l.vectors.Insert(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert vectors: %w", err)
		}
		stats.Indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	for i := range chunks {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		chunk := &chunks[i]
		if err := l.store.UpsertChunk(chunk); err != nil {
			return stats, err
		}
		stats.Chunks++

		if len(chunk.Embedding) == 0 {
			continue
		}
		stats.Embedded++
		batch = append(batch, zilliz.VectorRecord{
			ChunkID:   chunk.ID,
			SourceID:  chunk.SourceID,
			Embedding: chunk.Embedding,
		})
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	logger.Info("Chunks loaded",
		zap.Int("chunks", stats.Chunks),
		zap.Int("embedded", stats.Embedded),
		zap.Int("indexed", stats.Indexed),
	)

	return stats, nil
}
