package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/metrics"
	"github.com/hybrid-rag/backend/internal/middleware/validation"
	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/internal/storage/sqlite"
	"github.com/hybrid-rag/backend/pkg/logger"
)

type FeedbackStore interface {
	StoreFeedback(feedback *models.Feedback) error
}

type FeedbackRequest struct {
	QueryID       string `json:"query_id" validate:"required,max=64"`
	Helpful       bool   `json:"helpful"`
	IssueCategory string `json:"issue_category" validate:"omitempty,oneof=irrelevant incomplete hallucination outdated other"`
	Comment       string `json:"comment" validate:"max=2000"`
}

type FeedbackHandler struct {
	store     FeedbackStore
	validator *validation.Validator
}

func NewFeedbackHandler(store FeedbackStore, validator *validation.Validator) *FeedbackHandler {
	return &FeedbackHandler{
		store:     store,
		validator: validator,
	}
}

func (h *FeedbackHandler) SubmitFeedback(c *fiber.Ctx) error {
	var req FeedbackRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return h.validator.Reject(c, err)
	}

	err := h.store.StoreFeedback(&models.Feedback{
		QueryID:       req.QueryID,
		Helpful:       req.Helpful,
		IssueCategory: req.IssueCategory,
		Comment:       validation.SanitizeString(req.Comment),
	})
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown query_id",
		})
	}
	if err != nil {
		logger.Error("Failed to store feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store feedback",
		})
	}

	metrics.UserFeedback.WithLabelValues(strconv.FormatBool(req.Helpful)).Inc()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Feedback recorded",
	})
}
