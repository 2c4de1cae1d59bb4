package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/nl2sql-api/internal/config"
	"github.com/noah-isme/nl2sql-api/internal/service"
	"github.com/noah-isme/nl2sql-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status            string    `json:"status"`
	DatabaseConnected bool      `json:"database_connected"`
	Timestamp         time.Time `json:"timestamp"`
	Service           string    `json:"service"`
	Environment       string    `json:"environment"`
}

// HealthCheck returns a handler that reports application health and database reachability.
func HealthCheck(cfg config.Config, diagnostics service.DiagnosticsService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		connected := false
		if diagnostics != nil {
			ctx, cancel := context.WithTimeout(requestContext(c), 3*time.Second)
			connected = diagnostics.Database(ctx).Connected
			cancel()
		}

		status := "healthy"
		if !connected {
			status = "unhealthy"
		}

		payload := HealthResponse{
			Status:            status,
			DatabaseConnected: connected,
			Timestamp:         time.Now().UTC(),
			Service:           cfg.AppName,
			Environment:       cfg.AppEnv,
		}

		return utils.SendSuccess(c, "service "+status, payload)
	}
}
