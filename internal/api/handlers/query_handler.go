package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/middleware/validation"
	"github.com/hybrid-rag/backend/internal/query"
	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type QueryService interface {
	ProcessQuery(ctx context.Context, req query.Request) (*query.Response, error)
	ProcessQueryWithProgress(ctx context.Context, req query.Request, progress query.ProgressFunc) (*query.Response, error)
	Retrieve(ctx context.Context, queryText string, cfg *retrieval.Config) (*retrieval.Result, error)
	DefaultConfig() retrieval.Config
}

type HistoryStore interface {
	GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error)
}

// RetrievalOverrides are optional per-request changes to the server's
// retrieval defaults. Unset fields keep the default.
type RetrievalOverrides struct {
	TopK                 *int     `json:"top_k" validate:"omitempty,min=1,max=50"`
	SemanticWeight       *float64 `json:"semantic_weight" validate:"omitempty,min=0"`
	LexicalWeight        *float64 `json:"lexical_weight" validate:"omitempty,min=0"`
	SimilarityThreshold  *float64 `json:"similarity_threshold" validate:"omitempty,min=0"`
	DiversityCap         *int     `json:"diversity_cap" validate:"omitempty,min=1"`
	RerankEnabled        *bool    `json:"rerank_enabled"`
	CitationBoostEnabled *bool    `json:"citation_boost_enabled"`
	ExcludeStopwords     *bool    `json:"exclude_stopwords"`
	BestEffort           *bool    `json:"best_effort"`
}

func (o *RetrievalOverrides) apply(base retrieval.Config) *retrieval.Config {
	cfg := base
	if o == nil {
		return &cfg
	}
	if o.TopK != nil {
		cfg.TopK = *o.TopK
	}
	if o.SemanticWeight != nil {
		cfg.SemanticWeight = *o.SemanticWeight
	}
	if o.LexicalWeight != nil {
		cfg.LexicalWeight = *o.LexicalWeight
	}
	if o.SimilarityThreshold != nil {
		cfg.SimilarityThreshold = *o.SimilarityThreshold
	}
	if o.DiversityCap != nil {
		cfg.DiversityCap = *o.DiversityCap
	}
	if o.RerankEnabled != nil {
		cfg.RerankEnabled = *o.RerankEnabled
	}
	if o.CitationBoostEnabled != nil {
		cfg.CitationBoostEnabled = *o.CitationBoostEnabled
	}
	if o.ExcludeStopwords != nil {
		cfg.ExcludeStopwords = *o.ExcludeStopwords
	}
	if o.BestEffort != nil {
		cfg.BestEffort = *o.BestEffort
	}
	return &cfg
}

type QueryRequest struct {
	Query     string              `json:"query" validate:"querytext"`
	UserID    string              `json:"user_id" validate:"omitempty,max=128"`
	Reference *string             `json:"reference,omitempty"`
	Retrieval *RetrievalOverrides `json:"retrieval,omitempty"`
}

// RetrieveRequest accepts an empty query; retrieval then reports no context
// instead of failing.
type RetrieveRequest struct {
	Query     string              `json:"query" validate:"querybound"`
	Retrieval *RetrievalOverrides `json:"retrieval,omitempty"`
}

type QueryHandler struct {
	queryEngine QueryService
	history     HistoryStore
	validator   *validation.Validator
}

func NewQueryHandler(queryEngine QueryService, history HistoryStore, validator *validation.Validator) *QueryHandler {
	return &QueryHandler{
		queryEngine: queryEngine,
		history:     history,
		validator:   validator,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return h.validator.Reject(c, err)
	}

	response, err := h.queryEngine.ProcessQuery(c.UserContext(), query.Request{
		Query:     validation.SanitizeString(req.Query),
		UserID:    req.UserID,
		Reference: req.Reference,
		Config:    req.Retrieval.apply(h.queryEngine.DefaultConfig()),
	})
	if err != nil {
		return respondError(c, "Failed to process query", err)
	}

	return c.JSON(response)
}

// HandleRetrieve runs retrieval without generation or evaluation.
func (h *QueryHandler) HandleRetrieve(c *fiber.Ctx) error {
	var req RetrieveRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return h.validator.Reject(c, err)
	}

	result, err := h.queryEngine.Retrieve(
		c.UserContext(),
		validation.SanitizeString(req.Query),
		req.Retrieval.apply(h.queryEngine.DefaultConfig()),
	)
	if err != nil {
		return respondError(c, "Failed to retrieve context", err)
	}

	candidates := result.Candidates
	if candidates == nil {
		candidates = []retrieval.Candidate{}
	}

	return c.JSON(fiber.Map{
		"candidates": candidates,
		"no_context": result.Empty(),
		"degraded":   result.Degraded,
		"partial":    result.Partial,
		"reranked":   result.Reranked,
	})
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "user_id is required",
		})
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 || limit > maxHistoryLimit {
		limit = defaultHistoryLimit
	}

	history, err := h.history.GetQueryHistory(userID, limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err), zap.String("user_id", userID))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	return c.JSON(fiber.Map{
		"history": history,
	})
}

// respondError maps engine errors onto status codes. Invalid configuration is
// the caller's fault; a blown deadline is reported as a gateway timeout.
func respondError(c *fiber.Ctx, message string, err error) error {
	switch {
	case errors.Is(err, retrieval.ErrInvalidConfig):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, retrieval.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		logger.Warn(message, zap.Error(err))
		return c.Status(fiber.StatusGatewayTimeout).JSON(fiber.Map{
			"error": "Request timed out",
		})
	}

	logger.Error(message, zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}
