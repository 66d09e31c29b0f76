package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/middleware"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

// GradingHandler exposes submissions and per-student grade endpoints.
type GradingHandler struct {
	ledger    service.GradeLedger
	workflow  service.GradingWorkflowService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGradingHandler constructs the handler.
func NewGradingHandler(ledger service.GradeLedger, workflow service.GradingWorkflowService, validate *validator.Validate, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		ledger:    ledger,
		workflow:  workflow,
		validator: validate,
		logger:    logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches grade routes to the /grading group.
func (h *GradingHandler) Register(router fiber.Router) {
	instructor := middleware.InstructorOnly()
	ownsCourse := middleware.RequireCourseInstructor("courseId")

	router.Post("/courses/:courseId/items/:itemId/submissions", middleware.RequireRole(models.RoleStudent, models.RoleAdmin), h.submit)

	grade := router.Group("/courses/:courseId/items/:itemId/students/:studentId")
	grade.Get("/grade", ownsCourse, h.get)
	grade.Put("/grade", instructor, ownsCourse, h.upsert)
	grade.Post("/rubric-grade", instructor, ownsCourse, h.gradeWithRubric)
	grade.Patch("/resubmission", instructor, ownsCourse, h.toggleResubmission)
	grade.Post("/pending-review", instructor, ownsCourse, h.pendingReview)

	router.Get("/students/:studentId/grades", h.listForStudent)
}

func (h *GradingHandler) itemParams(c *fiber.Ctx) (uint, uint, error) {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return 0, 0, err
	}
	itemID, err := parseUintParam(c, "itemId")
	if err != nil {
		return 0, 0, err
	}
	return courseID, itemID, nil
}

func (h *GradingHandler) target(c *fiber.Ctx) (service.GradeTarget, error) {
	courseID, itemID, err := h.itemParams(c)
	if err != nil {
		return service.GradeTarget{}, err
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return service.GradeTarget{}, err
	}
	return service.GradeTarget{CourseID: courseID, ContentItemID: itemID, StudentID: studentID}, nil
}

func (h *GradingHandler) submit(c *fiber.Ctx) error {
	courseID, itemID, err := h.itemParams(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.SubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor := activityActorFromContext(c)
	studentID := actor.ID
	// Admins may record a submission on behalf of a student.
	if actor.IsAdmin() {
		if onBehalf, err := parseQueryInt(c, "student_id"); err == nil && onBehalf > 0 {
			studentID = uint(onBehalf)
		}
	}

	target := service.GradeTarget{CourseID: courseID, ContentItemID: itemID, StudentID: studentID}
	result, err := h.workflow.RecordSubmission(requestContext(c), actor, target, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to record submission")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission recorded", result)
}

func (h *GradingHandler) get(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grade, err := h.ledger.GetGrade(requestContext(c), activityActorFromContext(c), target.StudentID, target.ContentItemID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to load grade")
	}
	if grade.CourseID != target.CourseID {
		return sendGradingError(c, h.logger, errGradeOutsideCourse, "failed to load grade")
	}

	return utils.SendSuccess(c, "grade", grade)
}

func (h *GradingHandler) upsert(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.UpsertScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grade, err := h.ledger.UpsertScore(requestContext(c), activityActorFromContext(c), target, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to save grade")
	}

	return utils.SendSuccess(c, "grade saved", grade)
}

func (h *GradingHandler) gradeWithRubric(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.RubricGradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grade, err := h.workflow.GradeWithRubric(requestContext(c), activityActorFromContext(c), target, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to grade with rubric")
	}

	return utils.SendSuccess(c, "grade saved", grade)
}

func (h *GradingHandler) toggleResubmission(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ResubmissionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	grade, err := h.ledger.ToggleResubmission(requestContext(c), activityActorFromContext(c), target, payload)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to update resubmission")
	}

	return utils.SendSuccess(c, "resubmission updated", grade)
}

func (h *GradingHandler) pendingReview(c *fiber.Ctx) error {
	target, err := h.target(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.PendingReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return sendGradingError(c, h.logger, err, "failed to reset grade")
	}

	grade, err := h.ledger.SetPendingReview(requestContext(c), activityActorFromContext(c), target, payload.SubmissionID, payload.OperationID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to reset grade")
	}

	return utils.SendSuccess(c, "grade pending review", grade)
}

func (h *GradingHandler) listForStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	grades, err := h.ledger.ListStudentGrades(requestContext(c), activityActorFromContext(c), studentID)
	if err != nil {
		return sendGradingError(c, h.logger, err, "failed to list grades")
	}

	return utils.SendSuccess(c, "grades", grades)
}
