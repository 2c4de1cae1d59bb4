package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/observability"
)

// generationRoutes call the generation service and are expected to take seconds, not milliseconds.
var generationRoutes = []string{"/api/v1/query", "/api/v1/evaluate"}

// Observability records request counters and latency for /api routes and writes one log line per
// request. Slow-request thresholds differ for routes that wait on the generation service.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start)

		if !strings.HasPrefix(c.Path(), "/api/") {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)

		observability.APIRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.APILatency().WithLabelValues(method, route).Observe(elapsed.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.APIErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		generating := isGenerationRoute(route)
		event := logger.Info()
		switch {
		case status >= fiber.StatusInternalServerError:
			event = logger.Error()
		case status >= fiber.StatusBadRequest, elapsed > slowThreshold(generating):
			event = logger.Warn()
		}
		event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Bool("generation", generating).
			Float64("latency_ms", float64(elapsed)/float64(time.Millisecond)).
			Msg("api request")

		return err
	}
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func isGenerationRoute(route string) bool {
	for _, prefix := range generationRoutes {
		if strings.HasPrefix(route, prefix) {
			return true
		}
	}
	return false
}

func slowThreshold(generating bool) time.Duration {
	if generating {
		return 30 * time.Second
	}
	return 500 * time.Millisecond
}
