package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// GradebookHandler exposes the read-only gradebook views and course finalization.
type GradebookHandler struct {
	gradebook service.GradebookService
	workflow  service.GradingWorkflowService
	logger    zerolog.Logger
}

// NewGradebookHandler constructs the handler.
func NewGradebookHandler(gradebook service.GradebookService, workflow service.GradingWorkflowService, logger zerolog.Logger) *GradebookHandler {
	return &GradebookHandler{
		gradebook: gradebook,
		workflow:  workflow,
		logger:    logger.With().Str("component", "gradebook_handler").Logger(),
	}
}

// Register attaches gradebook routes to the /grading group.
func (h *GradebookHandler) Register(router fiber.Router) {
	instructor := middleware.InstructorOnly()
	ownsCourse := middleware.RequireCourseInstructor("courseId")

	router.Get("/summary", instructor, h.summary)
	router.Get("/courses/:courseId/gradebook", instructor, ownsCourse, h.matrix)
	router.Get("/courses/:courseId/items/:itemId/queue", instructor, ownsCourse, h.queue)
	router.Post("/courses/:courseId/finalize", instructor, ownsCourse, h.finalize)
}

func (h *GradebookHandler) summary(c *fiber.Ctx) error {
	actor := activityActorFromContext(c)
	instructorID := actor.ID

	requested, err := parseQueryInt(c, "instructor_id")
	if err != nil || requested < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid instructor_id")
	}
	if requested > 0 {
		instructorID = uint(requested)
	}

	summary, err := h.gradebook.GradingSummary(requestContext(c), actor, instructorID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to build grading summary")
	}

	return utils.SendSuccess(c, "grading summary", summary)
}

func (h *GradebookHandler) matrix(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	matrix, err := h.gradebook.CourseMatrix(requestContext(c), activityActorFromContext(c), courseID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to build gradebook")
	}

	return utils.SendSuccess(c, "gradebook", matrix)
}

func (h *GradebookHandler) queue(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	queue, err := h.gradebook.ItemQueue(requestContext(c), activityActorFromContext(c), courseID, itemID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to build grading queue")
	}

	return utils.SendSuccess(c, "grading queue", queue)
}

func (h *GradebookHandler) finalize(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.workflow.FinalizeCourse(requestContext(c), activityActorFromContext(c), courseID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to finalize course")
	}

	return utils.SendSuccess(c, "course finalized", result)
}
