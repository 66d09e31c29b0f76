package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// DisputeHandler exposes the dispute lifecycle.
type DisputeHandler struct {
	workflow   service.GradingWorkflowService
	logger     zerolog.Logger
	rateLimit  int
	rateWindow time.Duration
}

// NewDisputeHandler constructs the handler. Filing is limited to rateLimit requests
// per student and grade within rateWindow.
func NewDisputeHandler(workflow service.GradingWorkflowService, rateLimit int, rateWindow time.Duration, logger zerolog.Logger) *DisputeHandler {
	return &DisputeHandler{
		workflow:   workflow,
		logger:     logger.With().Str("component", "dispute_handler").Logger(),
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
	}
}

// Register attaches dispute routes to the /grading group.
func (h *DisputeHandler) Register(router fiber.Router) {
	instructor := middleware.InstructorOnly()

	router.Post("/grades/:gradeId/disputes",
		middleware.StudentOnly(),
		middleware.DisputeRateLimit(h.rateLimit, h.rateWindow),
		h.file,
	)
	router.Get("/courses/:courseId/disputes", instructor, middleware.RequireCourseInstructor("courseId"), h.list)
	router.Post("/disputes/:disputeId/resolve", instructor, h.resolve)
}

func (h *DisputeHandler) file(c *fiber.Ctx) error {
	gradeID, err := parseUintParam(c, "gradeId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.DisputeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.workflow.FileDispute(requestContext(c), activityActorFromContext(c), gradeID, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to file dispute")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "dispute filed", result)
}

func (h *DisputeHandler) list(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	disputes, err := h.workflow.ListDisputes(requestContext(c), activityActorFromContext(c), courseID, status)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to list disputes")
	}

	return utils.SendSuccess(c, "disputes", disputes)
}

func (h *DisputeHandler) resolve(c *fiber.Ctx) error {
	disputeID, err := parseUintParam(c, "disputeId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ResolveDisputeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.workflow.ResolveDispute(requestContext(c), activityActorFromContext(c), disputeID, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to resolve dispute")
	}

	return utils.SendSuccess(c, "dispute resolved", result)
}
