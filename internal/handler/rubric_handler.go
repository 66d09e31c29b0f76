package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// RubricHandler serves rubric templates and score previews.
type RubricHandler struct {
	service service.RubricService
	logger  zerolog.Logger
}

// NewRubricHandler constructs the handler.
func NewRubricHandler(service service.RubricService, logger zerolog.Logger) *RubricHandler {
	return &RubricHandler{
		service: service,
		logger:  logger.With().Str("component", "rubric_handler").Logger(),
	}
}

// Register attaches rubric routes.
func (h *RubricHandler) Register(router fiber.Router) {
	router.Get("/:rubricId", h.get)
	router.Post("/:rubricId/score", h.preview)
}

func (h *RubricHandler) get(c *fiber.Ctx) error {
	rubricID, err := parseUintParam(c, "rubricId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	rubric, err := h.service.Get(requestContext(c), rubricID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to load rubric")
	}

	return utils.SendSuccess(c, "rubric", rubric)
}

func (h *RubricHandler) preview(c *fiber.Ctx) error {
	rubricID, err := parseUintParam(c, "rubricId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RubricScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	score, err := h.service.Preview(requestContext(c), rubricID, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to score rubric")
	}

	return utils.SendSuccess(c, "rubric score", score)
}
