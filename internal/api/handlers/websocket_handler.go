package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/middleware/validation"
	"github.com/hybrid-rag/backend/internal/query"
	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/pkg/logger"
)

type wsMessage struct {
	Type      string              `json:"type"`
	Content   string              `json:"content" validate:"querytext"`
	UserID    string              `json:"user_id" validate:"omitempty,max=128"`
	Reference *string             `json:"reference,omitempty"`
	Retrieval *RetrievalOverrides `json:"retrieval,omitempty"`
}

type WebSocketHandler struct {
	queryEngine  QueryService
	validator    *validation.Validator
	queryTimeout time.Duration
}

func NewWebSocketHandler(queryEngine QueryService, validator *validation.Validator, queryTimeout time.Duration) *WebSocketHandler {
	if queryTimeout <= 0 {
		queryTimeout = time.Minute
	}
	return &WebSocketHandler{
		queryEngine:  queryEngine,
		validator:    validator,
		queryTimeout: queryTimeout,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsMessage
		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" {
			continue
		}

		if err := h.validator.Struct(&msg); err != nil {
			h.sendError(c, err.Error())
			continue
		}

		logger.Info("Processing WebSocket query", zap.String("query", msg.Content))

		if err := h.streamResponse(c, msg); err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, errorMessage(err))
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, msg wsMessage) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.queryTimeout)
	defer cancel()

	req := query.Request{
		Query:     validation.SanitizeString(msg.Content),
		UserID:    msg.UserID,
		Reference: msg.Reference,
		Config:    msg.Retrieval.apply(h.queryEngine.DefaultConfig()),
	}

	response, err := h.queryEngine.ProcessQueryWithProgress(ctx, req, func(stage query.Stage, detail map[string]any) {
		h.sendStatus(c, stage, detail)
	})
	if err != nil {
		return err
	}

	words := splitIntoWords(response.Answer)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, response)
}

func (h *WebSocketHandler) sendStatus(c *websocket.Conn, stage query.Stage, detail map[string]any) {
	msg := map[string]interface{}{
		"type":  "status",
		"stage": stage,
	}
	if len(detail) > 0 {
		msg["detail"] = detail
	}
	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send status", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    "chunk",
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, response *query.Response) error {
	msg := map[string]interface{}{
		"type":       "complete",
		"message_id": response.ID,
		"no_context": response.NoContext,
		"degraded":   response.Degraded,
		"partial":    response.Partial,
		"sources":    response.Sources,
		"evaluation": response.Evaluation,
		"latency_ms": response.LatencyMS,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send error", zap.Error(err))
	}
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, retrieval.ErrInvalidConfig):
		return err.Error()
	case errors.Is(err, retrieval.ErrDeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	}
	return "Failed to process query"
}

// splitIntoWords keeps newlines as their own tokens so the client can
// rebuild paragraph breaks.
func splitIntoWords(text string) []string {
	words := []string{}
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			words = append(words, "\n")
		}
		words = append(words, strings.Fields(line)...)
	}
	return words
}
