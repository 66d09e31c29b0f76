package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// GradeLedger owns the authoritative grade of every (student, content item) pair.
type GradeLedger interface {
	GetGrade(ctx context.Context, actor ActivityActor, studentID, contentItemID uint) (dto.GradeResponse, error)
	ListStudentGrades(ctx context.Context, actor ActivityActor, studentID uint) ([]dto.GradeResponse, error)
	UpsertScore(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.UpsertScoreRequest) (dto.GradeResponse, error)
	SetPendingReview(ctx context.Context, actor ActivityActor, target GradeTarget, submissionID uint, operationID string) (dto.GradeResponse, error)
	ToggleResubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.ResubmissionRequest) (dto.GradeResponse, error)
}

type gradeLedger struct {
	*gradingCore
	tracer trace.Tracer
}

// NewGradeLedger constructs the grade ledger service.
func NewGradeLedger(deps GradingDependencies) GradeLedger {
	return &gradeLedger{
		gradingCore: newGradingCore(deps, "grade_ledger"),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/grade_ledger"),
	}
}

func (s *gradeLedger) GetGrade(ctx context.Context, actor ActivityActor, studentID, contentItemID uint) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.get_grade", trace.WithAttributes(
		attribute.Int64("grading.student_id", int64(studentID)),
		attribute.Int64("grading.content_item_id", int64(contentItemID)),
	))
	defer span.End()

	if actor.IsStudent() && actor.ID != studentID {
		return dto.GradeResponse{}, grading.ErrNotGradeOwner
	}

	grade, err := s.deps.Grades.GetByStudentItem(ctx, studentID, contentItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradeResponse{}, grading.ErrUnknownGrade
		}
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	if !actor.IsStudent() {
		course, err := s.deps.Courses.GetByID(ctx, grade.CourseID)
		if err != nil {
			span.RecordError(err)
			return dto.GradeResponse{}, err
		}
		if err := ensureInstructor(actor, course); err != nil {
			return dto.GradeResponse{}, err
		}
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradeLedger) ListStudentGrades(ctx context.Context, actor ActivityActor, studentID uint) ([]dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.list_student_grades", trace.WithAttributes(
		attribute.Int64("grading.student_id", int64(studentID)),
	))
	defer span.End()

	if actor.IsStudent() && actor.ID != studentID {
		return nil, grading.ErrNotGradeOwner
	}

	grades, err := s.deps.Grades.ListByStudent(ctx, studentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if actor.IsStudent() || actor.IsAdmin() {
		return dto.NewGradeResponseSlice(grades), nil
	}

	// Teachers only see grades from the courses they teach.
	teaches := make(map[uint]bool)
	visible := make([]models.Grade, 0, len(grades))
	for _, grade := range grades {
		allowed, seen := teaches[grade.CourseID]
		if !seen {
			course, err := s.deps.Courses.GetByID(ctx, grade.CourseID)
			if err != nil {
				span.RecordError(err)
				return nil, err
			}
			allowed = ensureInstructor(actor, course) == nil
			teaches[grade.CourseID] = allowed
		}
		if allowed {
			visible = append(visible, grade)
		}
	}

	return dto.NewGradeResponseSlice(visible), nil
}

func (s *gradeLedger) UpsertScore(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.UpsertScoreRequest) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.upsert_score", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(target.CourseID)),
		attribute.Int64("grading.content_item_id", int64(target.ContentItemID)),
		attribute.Int64("grading.student_id", int64(target.StudentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	grade, replayed, err := s.upsertScore(ctx, actor, target, payload)
	s.observe(span, OperationUpsertScore, err)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	span.SetAttributes(attribute.Bool("grading.replayed", replayed))
	if !replayed {
		s.announceScore(ctx, actor, grade, OperationUpsertScore)
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradeLedger) upsertScore(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.UpsertScoreRequest) (models.Grade, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return models.Grade{}, false, err
	}

	score, err := grading.ValidateScore(*payload.Score)
	if err != nil {
		return models.Grade{}, false, err
	}

	if _, err := s.gradableItem(ctx, target.CourseID, target.ContentItemID); err != nil {
		return models.Grade{}, false, err
	}

	reason := s.clean(payload.Reason)
	if reason == "" {
		reason = manualGradedReason
	}

	gradeID, replayed, err := s.writeScore(ctx, actor, target, OperationUpsertScore, scoreChange{
		event:        grading.EventScore,
		score:        score,
		reason:       reason,
		modifierID:   actor.ID,
		modifierName: s.modifierName(ctx, actor),
		operationID:  payload.OperationID,
		feedback:     payload.Feedback,
	})
	if err != nil {
		return models.Grade{}, false, err
	}

	grade, err := s.loadGrade(ctx, gradeID)
	return grade, replayed, err
}

func (s *gradeLedger) SetPendingReview(ctx context.Context, actor ActivityActor, target GradeTarget, submissionID uint, operationID string) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.set_pending_review", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(target.CourseID)),
		attribute.Int64("grading.content_item_id", int64(target.ContentItemID)),
		attribute.Int64("grading.student_id", int64(target.StudentID)),
		attribute.Int64("grading.submission_id", int64(submissionID)),
	))
	defer span.End()

	grade, replayed, err := s.setPendingReview(ctx, actor, target, submissionID, operationID)
	s.observe(span, OperationSetPendingReview, err)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	if !replayed {
		s.recordActivity(ctx, actor, "grade.pending_review", "grade", grade.ID, grade.CourseID, map[string]interface{}{
			"student_id":      grade.StudentID,
			"content_item_id": grade.ContentItemID,
			"submission_id":   submissionID,
		})
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradeLedger) setPendingReview(ctx context.Context, actor ActivityActor, target GradeTarget, submissionID uint, operationID string) (models.Grade, bool, error) {
	if _, err := s.gradableItem(ctx, target.CourseID, target.ContentItemID); err != nil {
		return models.Grade{}, false, err
	}

	submission, err := s.deps.Submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Grade{}, false, fmt.Errorf("%w: submission %d not found", grading.ErrInvalidSubmission, submissionID)
		}
		return models.Grade{}, false, err
	}
	if submission.StudentID != target.StudentID || submission.ContentItemID != target.ContentItemID {
		return models.Grade{}, false, fmt.Errorf("%w: submission %d belongs to another grade", grading.ErrInvalidSubmission, submissionID)
	}

	var (
		gradeID  uint
		replayed bool
	)
	err = s.withinCourse(ctx, target.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		op, err := s.replay(tx, operationID, OperationSetPendingReview, course.ID, gradeTargetOf(target))
		if err != nil {
			return err
		}
		if op != nil && op.GradeID != nil {
			gradeID = *op.GradeID
			replayed = true
			return nil
		}

		if err := ensureUnlocked(course); err != nil {
			return err
		}
		if err := ensureInstructor(actor, course); err != nil {
			return err
		}
		if err := ensureEnrolled(tx, course.ID, target.StudentID); err != nil {
			return err
		}

		existing, err := tx.FindGrade(target.StudentID, target.ContentItemID)
		if err != nil {
			return err
		}
		grade, err := s.markPending(tx, existing, course.ID, target.StudentID, target.ContentItemID, uintPtr(submission.ID))
		if err != nil {
			return err
		}

		gradeID = grade.ID
		return s.recordOperation(tx, operationID, appliedOperation{
			kind:         OperationSetPendingReview,
			courseID:     course.ID,
			target:       gradeTargetOf(target),
			gradeID:      uintPtr(grade.ID),
			submissionID: uintPtr(submission.ID),
		})
	})
	if err != nil {
		return models.Grade{}, false, err
	}

	grade, err := s.loadGrade(ctx, gradeID)
	return grade, replayed, err
}

func (s *gradeLedger) ToggleResubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.ResubmissionRequest) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.toggle_resubmission", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(target.CourseID)),
		attribute.Int64("grading.content_item_id", int64(target.ContentItemID)),
		attribute.Int64("grading.student_id", int64(target.StudentID)),
	))
	defer span.End()

	grade, replayed, err := s.toggleResubmission(ctx, actor, target, payload)
	s.observe(span, OperationToggleResubmission, err)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	if !replayed {
		s.recordActivity(ctx, actor, "grade.resubmission_toggled", "grade", grade.ID, grade.CourseID, map[string]interface{}{
			"student_id":      grade.StudentID,
			"content_item_id": grade.ContentItemID,
			"can_resubmit":    grade.CanResubmit,
		})
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradeLedger) toggleResubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.ResubmissionRequest) (models.Grade, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return models.Grade{}, false, err
	}

	var (
		gradeID  uint
		replayed bool
	)
	err := s.withinCourse(ctx, target.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		op, err := s.replay(tx, payload.OperationID, OperationToggleResubmission, course.ID, gradeTargetOf(target))
		if err != nil {
			return err
		}
		if op != nil && op.GradeID != nil {
			gradeID = *op.GradeID
			replayed = true
			return nil
		}

		if err := ensureUnlocked(course); err != nil {
			return err
		}
		if err := ensureInstructor(actor, course); err != nil {
			return err
		}

		grade, err := tx.FindGrade(target.StudentID, target.ContentItemID)
		if err != nil {
			return err
		}
		if grade == nil || grade.CourseID != course.ID {
			return grading.ErrUnknownGrade
		}

		grade.CanResubmit = *payload.Allow
		if err := tx.UpdateGrade(grade); err != nil {
			return err
		}

		gradeID = grade.ID
		return s.recordOperation(tx, payload.OperationID, appliedOperation{
			kind:     OperationToggleResubmission,
			courseID: course.ID,
			target:   gradeTargetOf(target),
			gradeID:  uintPtr(grade.ID),
		})
	})
	if err != nil {
		return models.Grade{}, false, err
	}

	grade, err := s.loadGrade(ctx, gradeID)
	return grade, replayed, err
}
