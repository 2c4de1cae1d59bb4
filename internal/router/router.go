package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/nl2sql-api/internal/config"
	"github.com/noah-isme/nl2sql-api/internal/grammar"
	"github.com/noah-isme/nl2sql-api/internal/handler"
	"github.com/noah-isme/nl2sql-api/internal/middleware"
	"github.com/noah-isme/nl2sql-api/internal/observability"
	"github.com/noah-isme/nl2sql-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Grammar            grammar.Grammar
	Diagnostics        service.DiagnosticsService
	QueryHandler       *handler.QueryHandler
	EvaluationHandler  *handler.EvaluationHandler
	DiagnosticsHandler *handler.DiagnosticsHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Diagnostics))
	api.Get("/grammar", handler.GrammarDocument(deps.Grammar))

	// Both endpoints below spend generation tokens.
	limited := middleware.RateLimit("generation", cfg.RateLimitPerMinute, time.Minute)

	if deps.QueryHandler != nil {
		api.Use("/query", limited)
		deps.QueryHandler.Register(api)
	}

	if deps.EvaluationHandler != nil {
		api.Use("/evaluate", limited)
		deps.EvaluationHandler.Register(api)
	}

	if deps.DiagnosticsHandler != nil {
		deps.DiagnosticsHandler.Register(api.Group("/diagnostics"))
	}
}
