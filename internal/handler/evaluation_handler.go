package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/service"
	"github.com/noah-isme/nl2sql-api/internal/utils"
)

// EvaluationHandler runs the evaluation corpus and serves the run history.
type EvaluationHandler struct {
	service   service.EvaluationService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewEvaluationHandler constructs an evaluation handler.
func NewEvaluationHandler(service service.EvaluationService, validate *validator.Validate, logger zerolog.Logger) *EvaluationHandler {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &EvaluationHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register binds the evaluation routes.
func (h *EvaluationHandler) Register(router fiber.Router) {
	router.Post("/evaluate", h.run)
	router.Post("/evaluate/stream", h.stream)

	router.Use("/evaluate/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	router.Get("/evaluate/ws", websocket.New(h.handleConnection))

	router.Get("/evaluations", h.list)
	router.Get("/evaluations/:id", h.get)
}

func (h *EvaluationHandler) run(c *fiber.Ctx) error {
	report := h.service.Run(requestContext(c), nil)
	if report.Error != "" {
		return utils.SendErrorWithData(c, fiber.StatusServiceUnavailable, report.Error, report)
	}
	return utils.SendSuccess(c, "evaluation complete", report)
}

func (h *EvaluationHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx, cancel := context.WithCancel(requestContext(c))
	logger := *requestLogger(h.logger, c)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		var writeErr error
		h.service.Run(ctx, func(event dto.EvaluationEvent) {
			if writeErr != nil {
				return
			}
			if writeErr = writeEvaluationEvent(w, event); writeErr != nil {
				logger.Debug().Err(writeErr).Msg("evaluation stream client went away")
				cancel()
			}
		})
	})

	return nil
}

func (h *EvaluationHandler) handleConnection(conn *websocket.Conn) {
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	// A client closing the socket is only observed through a failed read.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	h.logger.Info().Msg("evaluation websocket connected")
	var writeErr error
	h.service.Run(ctx, func(event dto.EvaluationEvent) {
		if writeErr != nil {
			return
		}
		if writeErr = conn.WriteJSON(event); writeErr != nil {
			h.logger.Debug().Err(writeErr).Msg("failed to write evaluation frame")
			cancel()
		}
	})

	if writeErr == nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "evaluation finished"))
	}
	_ = conn.Close()
	h.logger.Info().Msg("evaluation websocket disconnected")
}

func (h *EvaluationHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	req := dto.EvaluationListRequest{Page: page, PageSize: pageSize}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	runs, err := h.service.List(requestContext(c), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list evaluation runs")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list evaluation runs")
	}

	return utils.SendSuccess(c, "evaluation runs", runs)
}

func (h *EvaluationHandler) get(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if id == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "evaluation id required")
	}

	run, err := h.service.Get(requestContext(c), id)
	if err != nil {
		if errors.Is(err, service.ErrEvaluationNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, err.Error())
		}
		requestLogger(h.logger, c).Error().Err(err).Str("run_id", id).Msg("failed to load evaluation run")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load evaluation run")
	}

	return utils.SendSuccess(c, "evaluation run", run)
}

func writeEvaluationEvent(w *bufio.Writer, event dto.EvaluationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}
