package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/hybrid-rag/backend/internal/api/handlers"
	"github.com/hybrid-rag/backend/internal/metrics"
)

type Handlers struct {
	Query      *handlers.QueryHandler
	Evaluation *handlers.EvaluationHandler
	Feedback   *handlers.FeedbackHandler
	Health     *handlers.HealthHandler
	Documents  *handlers.DocumentHandler
	WebSocket  *handlers.WebSocketHandler
}

// RegisterRoutes mounts the HTTP and websocket surface. Middleware passed in
// guards the /api/v1 group only, so health probes and scrapes stay unthrottled.
func RegisterRoutes(app *fiber.App, h Handlers, middleware ...fiber.Handler) {
	app.Get("/metrics", metrics.MetricsHandler())

	api := app.Group("/api/v1")
	api.Get("/health", h.Health.HandleHealth)

	for _, m := range middleware {
		api.Use(m)
	}

	api.Post("/query", h.Query.HandleQuery)
	api.Get("/query/history", h.Query.GetQueryHistory)
	api.Post("/retrieve", h.Query.HandleRetrieve)
	api.Post("/evaluate", h.Evaluation.HandleEvaluate)
	api.Post("/feedback", h.Feedback.SubmitFeedback)
	api.Post("/chunks", h.Documents.UploadChunks)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.WebSocket.HandleConnection))
}
