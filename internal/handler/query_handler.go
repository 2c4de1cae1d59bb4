package handler

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nl2sql-api/internal/database"
	"github.com/noah-isme/nl2sql-api/internal/dto"
	"github.com/noah-isme/nl2sql-api/internal/service"
	"github.com/noah-isme/nl2sql-api/internal/utils"
)

// QueryHandler exposes natural-language query translation and execution.
type QueryHandler struct {
	service   service.QueryService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewQueryHandler constructs a query handler.
func NewQueryHandler(service service.QueryService, validate *validator.Validate, logger zerolog.Logger) *QueryHandler {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return &QueryHandler{
		service:   service,
		validator: validate,
		logger:    logger.With().Str("component", "query_handler").Logger(),
	}
}

// Register binds the query route.
func (h *QueryHandler) Register(router fiber.Router) {
	router.Post("/query", h.answer)
}

func (h *QueryHandler) answer(c *fiber.Ctx) error {
	var req dto.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	resp, err := h.service.Answer(requestContext(c), req)
	if err != nil {
		logger := requestLogger(h.logger, c)
		switch {
		case errors.Is(err, service.ErrQueryEmpty), isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrGenerationFailed):
			logger.Error().Err(err).Msg("query generation failed")
			return utils.SendErrorWithData(c, fiber.StatusBadGateway, err.Error(), resp)
		case errors.Is(err, database.ErrExecutorUnavailable):
			return utils.SendErrorWithData(c, fiber.StatusServiceUnavailable, err.Error(), resp)
		case errors.Is(err, database.ErrStatementRejected):
			return utils.SendErrorWithData(c, fiber.StatusUnprocessableEntity, err.Error(), resp)
		default:
			logger.Error().Err(err).Msg("query execution failed")
			return utils.SendErrorWithData(c, fiber.StatusInternalServerError, err.Error(), resp)
		}
	}

	c.Set("X-Cache-Hit", strconv.FormatBool(resp.CacheHit))
	return utils.SendSuccess(c, resp.Status, resp)
}
