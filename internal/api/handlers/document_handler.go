package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/ingestion"
	"github.com/hybrid-rag/backend/internal/metrics"
	"github.com/hybrid-rag/backend/internal/middleware/validation"
	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/pkg/logger"
)

type ChunkLoader interface {
	Load(ctx context.Context, chunks []models.Chunk) (ingestion.Stats, error)
}

type chunkInput struct {
	ID         string    `json:"id" validate:"required,max=128"`
	SourceID   string    `json:"source_id" validate:"max=256"`
	Text       string    `json:"text" validate:"required"`
	Identifier string    `json:"identifier" validate:"max=256"`
	Section    string    `json:"section"`
	Page       int       `json:"page" validate:"min=0"`
	Embedding  []float32 `json:"embedding"`
}

type UploadChunksRequest struct {
	Chunks []chunkInput `json:"chunks" validate:"required,min=1,max=1000,dive"`
}

// DocumentHandler accepts pre-chunked documents and publishes them to the
// live corpus. Chunking and embedding happen upstream.
type DocumentHandler struct {
	loader    ChunkLoader
	refresh   func() (int, error)
	validator *validation.Validator
}

// NewDocumentHandler takes refresh, which republishes the corpus after a load
// and returns the new chunk count.
func NewDocumentHandler(loader ChunkLoader, refresh func() (int, error), validator *validation.Validator) *DocumentHandler {
	return &DocumentHandler{
		loader:    loader,
		refresh:   refresh,
		validator: validator,
	}
}

func (h *DocumentHandler) UploadChunks(c *fiber.Ctx) error {
	var req UploadChunksRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return h.validator.Reject(c, err)
	}

	dim := 0
	chunks := make([]models.Chunk, len(req.Chunks))
	for i, in := range req.Chunks {
		if n := len(in.Embedding); n > 0 {
			if dim != 0 && n != dim {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "All embeddings must have the same dimension",
				})
			}
			dim = n
		}
		chunks[i] = models.Chunk{
			ID:         in.ID,
			SourceID:   in.SourceID,
			Text:       in.Text,
			Identifier: in.Identifier,
			Section:    in.Section,
			Page:       in.Page,
			Embedding:  in.Embedding,
		}
	}

	stats, err := h.loader.Load(c.UserContext(), chunks)
	if err != nil {
		logger.Error("Failed to load chunks", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load chunks",
		})
	}

	total, err := h.refresh()
	if err != nil {
		logger.Error("Failed to refresh corpus", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Chunks stored but corpus refresh failed",
		})
	}
	metrics.CorpusChunks.Set(float64(total))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Chunks loaded",
		"stats":         stats,
		"corpus_chunks": total,
	})
}
