package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/service"
	"github.com/noah-isme/gema-grading-api/internal/utils"
)

var errGradeOutsideCourse = fmt.Errorf("%w: grade belongs to another course", grading.ErrUnknownGrade)

// gradingStatus maps grading failures to HTTP status codes.
func gradingStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, grading.ErrLockedCourse):
		return fiber.StatusLocked, true
	case errors.Is(err, grading.ErrInvalidScore),
		errors.Is(err, grading.ErrSubmissionTypeMismatch),
		errors.Is(err, grading.ErrInvalidSubmission),
		errors.Is(err, grading.ErrInvalidRubricSelection):
		return fiber.StatusBadRequest, true
	case errors.Is(err, grading.ErrDuplicateDispute),
		errors.Is(err, grading.ErrInvalidTransition),
		errors.Is(err, grading.ErrDisputeAlreadyResolved),
		errors.Is(err, grading.ErrResubmissionNotAllowed),
		errors.Is(err, grading.ErrConcurrentModification),
		errors.Is(err, grading.ErrOperationConflict):
		return fiber.StatusConflict, true
	case errors.Is(err, grading.ErrUnknownGrade),
		errors.Is(err, grading.ErrUnknownDispute),
		errors.Is(err, grading.ErrUnknownCourse),
		errors.Is(err, grading.ErrUnknownContentItem),
		errors.Is(err, grading.ErrUnknownRubric):
		return fiber.StatusNotFound, true
	case errors.Is(err, grading.ErrNotEnrolled):
		return fiber.StatusUnprocessableEntity, true
	case errors.Is(err, grading.ErrNotCourseInstructor),
		errors.Is(err, grading.ErrNotGradeOwner):
		return fiber.StatusForbidden, true
	}
	return 0, false
}

// sendGradingError writes the error envelope for err. Unexpected errors are logged
// and reported with the fallback message only.
func sendGradingError(c *fiber.Ctx, logger zerolog.Logger, err error, fallback string) error {
	if status, ok := gradingStatus(err); ok {
		return utils.SendErrorWithCode(c, status, grading.Code(err), err.Error())
	}
	if isValidationError(err) {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if errors.Is(err, service.ErrEmptyDisputeReason) {
		return utils.SendErrorWithCode(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg(fallback)
	return utils.SendError(c, fiber.StatusInternalServerError, fallback)
}
