package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/hybrid-rag/backend/internal/evaluation"
	"github.com/hybrid-rag/backend/internal/metrics"
	"github.com/hybrid-rag/backend/internal/middleware/validation"
)

type EvaluateRequest struct {
	Query     string   `json:"query" validate:"querybound"`
	Contexts  []string `json:"contexts" validate:"max=50"`
	Answer    string   `json:"answer" validate:"max=20000"`
	Reference *string  `json:"reference,omitempty"`
}

// EvaluationHandler scores an externally produced answer against the
// contexts it was given.
type EvaluationHandler struct {
	evaluator *evaluation.Evaluator
	validator *validation.Validator
}

func NewEvaluationHandler(evaluator *evaluation.Evaluator, validator *validation.Validator) *EvaluationHandler {
	return &EvaluationHandler{
		evaluator: evaluator,
		validator: validator,
	}
}

func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req EvaluateRequest
	if err := h.validator.Bind(c, &req); err != nil {
		return h.validator.Reject(c, err)
	}

	record := h.evaluator.Evaluate(req.Query, req.Contexts, req.Answer, req.Reference)

	metrics.ObserveEvaluation(record)

	return c.JSON(record)
}
