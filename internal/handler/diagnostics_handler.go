package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/service"
	"github.com/noah-isme/nl2sql-api/internal/utils"
)

// DiagnosticsHandler exposes reachability checks for the generation service and the database.
type DiagnosticsHandler struct {
	service service.DiagnosticsService
	logger  zerolog.Logger
}

// NewDiagnosticsHandler constructs a diagnostics handler.
func NewDiagnosticsHandler(service service.DiagnosticsService, logger zerolog.Logger) *DiagnosticsHandler {
	return &DiagnosticsHandler{
		service: service,
		logger:  logger.With().Str("component", "diagnostics_handler").Logger(),
	}
}

// Register binds the diagnostics routes.
func (h *DiagnosticsHandler) Register(router fiber.Router) {
	router.Post("/generator", h.generator)
	router.Post("/database", h.database)
}

func (h *DiagnosticsHandler) generator(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "generator connection test", h.service.Generator(requestContext(c)))
}

func (h *DiagnosticsHandler) database(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "database connection test", h.service.Database(requestContext(c)))
}
