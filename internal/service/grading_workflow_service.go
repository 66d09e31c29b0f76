package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// ErrEmptyDisputeReason indicates the dispute reason held nothing but markup.
var ErrEmptyDisputeReason = errors.New("dispute reason is empty after sanitization")

// GradingWorkflowService drives grades through submission, rubric grading,
// disputes and the finalize barrier.
type GradingWorkflowService interface {
	RecordSubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.SubmissionRequest) (dto.SubmissionResultResponse, error)
	GradeWithRubric(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.RubricGradeRequest) (dto.GradeResponse, error)
	FileDispute(ctx context.Context, actor ActivityActor, gradeID uint, payload dto.DisputeRequest) (dto.DisputeResultResponse, error)
	ResolveDispute(ctx context.Context, actor ActivityActor, disputeID uint, payload dto.ResolveDisputeRequest) (dto.DisputeResultResponse, error)
	ListDisputes(ctx context.Context, actor ActivityActor, courseID uint, status string) ([]dto.DisputeResponse, error)
	FinalizeCourse(ctx context.Context, actor ActivityActor, courseID uint) (dto.FinalizeResponse, error)
}

type gradingWorkflowService struct {
	*gradingCore
	tracer trace.Tracer
}

// NewGradingWorkflowService constructs the workflow engine.
func NewGradingWorkflowService(deps GradingDependencies) GradingWorkflowService {
	return &gradingWorkflowService{
		gradingCore: newGradingCore(deps, "grading_workflow"),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/grading_workflow"),
	}
}

func (s *gradingWorkflowService) RecordSubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.SubmissionRequest) (dto.SubmissionResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.record_submission", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(target.CourseID)),
		attribute.Int64("grading.content_item_id", int64(target.ContentItemID)),
		attribute.Int64("grading.student_id", int64(target.StudentID)),
	))
	defer span.End()

	result, replayed, err := s.recordSubmission(ctx, actor, target, payload)
	s.observe(span, OperationRecordSubmission, err)
	if err != nil {
		return dto.SubmissionResultResponse{}, err
	}

	span.SetAttributes(
		attribute.Bool("grading.replayed", replayed),
		attribute.Bool("grading.auto_graded", result.autoGraded),
	)

	if !replayed {
		s.recordActivity(ctx, actor, "submission.recorded", "submission", result.submission.ID, target.CourseID, map[string]interface{}{
			"student_id":      result.submission.StudentID,
			"content_item_id": result.submission.ContentItemID,
			"attempt":         result.submission.AttemptNumber,
			"auto_graded":     result.autoGraded,
		})
		if result.autoGraded {
			s.announceScore(ctx, ActivityActor{Role: "system"}, result.grade, OperationRecordSubmission)
		}
	}

	return dto.SubmissionResultResponse{
		Submission: dto.NewSubmissionResponse(result.submission),
		Grade:      dto.NewGradeResponse(result.grade),
		AutoGraded: result.autoGraded,
	}, nil
}

type submissionOutcome struct {
	submission models.Submission
	grade      models.Grade
	autoGraded bool
}

func (s *gradingWorkflowService) recordSubmission(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.SubmissionRequest) (submissionOutcome, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return submissionOutcome{}, false, err
	}

	if !actor.IsAdmin() && (!actor.IsStudent() || actor.ID != target.StudentID) {
		return submissionOutcome{}, false, grading.ErrNotGradeOwner
	}

	item, err := s.gradableItem(ctx, target.CourseID, target.ContentItemID)
	if err != nil {
		return submissionOutcome{}, false, err
	}

	work, err := submissionPayload(item, payload)
	if err != nil {
		return submissionOutcome{}, false, err
	}
	if err := work.Validate(); err != nil {
		return submissionOutcome{}, false, fmt.Errorf("%w: %v", grading.ErrInvalidSubmission, err)
	}

	var (
		autoGraded bool
		autoScore  grading.AutoScoreResult
	)
	if answers, ok := work.(grading.QuizAnswers); ok {
		questions, err := item.QuestionList()
		if err != nil {
			return submissionOutcome{}, false, err
		}
		autoScore, autoGraded = grading.AutoScore(questions, answers.Answers)
	}

	raw, err := json.Marshal(work)
	if err != nil {
		return submissionOutcome{}, false, err
	}

	var (
		gradeID      uint
		submissionID uint
		replayed     bool
	)
	err = s.withinCourse(ctx, target.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		op, err := s.replay(tx, payload.OperationID, OperationRecordSubmission, course.ID, gradeTargetOf(target))
		if err != nil {
			return err
		}
		if op != nil && op.GradeID != nil && op.SubmissionID != nil {
			gradeID = *op.GradeID
			submissionID = *op.SubmissionID
			replayed = true
			return nil
		}

		if err := ensureUnlocked(course); err != nil {
			return err
		}
		if err := ensureEnrolled(tx, course.ID, target.StudentID); err != nil {
			return err
		}

		existing, err := tx.FindGrade(target.StudentID, target.ContentItemID)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsDisputed {
			return fmt.Errorf("%w: grade is under dispute", grading.ErrInvalidTransition)
		}

		attempts, err := tx.CountAttempts(target.StudentID, target.ContentItemID)
		if err != nil {
			return err
		}
		if item.MaxAttempts > 0 && attempts >= int64(item.MaxAttempts) {
			if existing == nil || !existing.CanResubmit {
				return fmt.Errorf("%w: %d of %d attempts used", grading.ErrResubmissionNotAllowed, attempts, item.MaxAttempts)
			}
			existing.CanResubmit = false
		}

		kind, _ := item.Type.SubmissionKind()
		submission := models.Submission{
			Type:          kind,
			StudentID:     target.StudentID,
			CourseID:      course.ID,
			ContentItemID: item.ID,
			AttemptNumber: int(attempts) + 1,
			Payload:       raw,
			SubmittedAt:   s.now(),
		}
		if err := tx.CreateSubmission(&submission); err != nil {
			return err
		}

		var grade *models.Grade
		if autoGraded {
			grade, err = s.applyScore(tx, existing, scoreChange{
				courseID:      course.ID,
				studentID:     target.StudentID,
				contentItemID: item.ID,
				event:         grading.EventObjectiveSubmission,
				score:         autoScore.Percentage,
				reason:        autoGradedReason,
				modifierName:  systemModifierName,
				operationID:   payload.OperationID,
				submissionID:  uintPtr(submission.ID),
			})
		} else {
			grade, err = s.markPending(tx, existing, course.ID, target.StudentID, item.ID, uintPtr(submission.ID))
		}
		if err != nil {
			return err
		}

		gradeID = grade.ID
		submissionID = submission.ID
		return s.recordOperation(tx, payload.OperationID, appliedOperation{
			kind:         OperationRecordSubmission,
			courseID:     course.ID,
			target:       gradeTargetOf(target),
			gradeID:      uintPtr(grade.ID),
			submissionID: uintPtr(submission.ID),
		})
	})
	if err != nil {
		return submissionOutcome{}, false, err
	}

	submission, err := s.deps.Submissions.GetByID(ctx, submissionID)
	if err != nil {
		return submissionOutcome{}, false, err
	}
	grade, err := s.loadGrade(ctx, gradeID)
	if err != nil {
		return submissionOutcome{}, false, err
	}

	return submissionOutcome{submission: submission, grade: grade, autoGraded: autoGraded}, replayed, nil
}

// submissionPayload builds the typed payload accepted by the item.
func submissionPayload(item models.ContentItem, payload dto.SubmissionRequest) (grading.SubmissionPayload, error) {
	kind, ok := item.Type.SubmissionKind()
	if !ok {
		return nil, fmt.Errorf("%w: item %d does not accept submissions", grading.ErrUnknownContentItem, item.ID)
	}

	switch kind {
	case grading.SubmissionQuiz:
		if payload.File != nil || strings.TrimSpace(payload.TextContent) != "" {
			return nil, fmt.Errorf("%w: %s items take answers", grading.ErrSubmissionTypeMismatch, item.Type)
		}
		answers := payload.Answers
		if answers == nil {
			answers = map[string]json.RawMessage{}
		}
		return grading.QuizAnswers{Answers: answers}, nil
	case grading.SubmissionAssignment:
		if len(payload.Answers) > 0 {
			return nil, fmt.Errorf("%w: %s items take a file or text", grading.ErrSubmissionTypeMismatch, item.Type)
		}
		work := grading.AssignmentWork{TextContent: strings.TrimSpace(payload.TextContent)}
		if payload.File != nil {
			work.File = &grading.FileReference{
				Name: strings.TrimSpace(payload.File.Name),
				Size: payload.File.Size,
				URL:  strings.TrimSpace(payload.File.URL),
			}
		}
		return work, nil
	default:
		return nil, fmt.Errorf("%w: unsupported submission kind %q", grading.ErrSubmissionTypeMismatch, kind)
	}
}

func (s *gradingWorkflowService) GradeWithRubric(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.RubricGradeRequest) (dto.GradeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.rubric_grade", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(target.CourseID)),
		attribute.Int64("grading.content_item_id", int64(target.ContentItemID)),
		attribute.Int64("grading.student_id", int64(target.StudentID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	grade, replayed, err := s.gradeWithRubric(ctx, actor, target, payload)
	s.observe(span, OperationRubricGrade, err)
	if err != nil {
		return dto.GradeResponse{}, err
	}

	span.SetAttributes(attribute.Bool("grading.replayed", replayed))
	if !replayed {
		s.announceScore(ctx, actor, grade, OperationRubricGrade)
	}

	return dto.NewGradeResponse(grade), nil
}

func (s *gradingWorkflowService) gradeWithRubric(ctx context.Context, actor ActivityActor, target GradeTarget, payload dto.RubricGradeRequest) (models.Grade, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return models.Grade{}, false, err
	}

	item, err := s.gradableItem(ctx, target.CourseID, target.ContentItemID)
	if err != nil {
		return models.Grade{}, false, err
	}
	if item.RubricID == nil {
		return models.Grade{}, false, fmt.Errorf("%w: item %d has no rubric", grading.ErrUnknownRubric, item.ID)
	}

	rubric, err := s.deps.Rubrics.GetByID(ctx, *item.RubricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Grade{}, false, grading.ErrUnknownRubric
		}
		return models.Grade{}, false, err
	}
	def, err := rubric.Definition()
	if err != nil {
		return models.Grade{}, false, err
	}
	if err := def.ValidateSelections(payload.Selections); err != nil {
		return models.Grade{}, false, err
	}

	result := grading.ScoreFromRubric(def, payload.Selections)
	reason := s.clean(payload.Reason)
	if reason == "" {
		reason = fmt.Sprintf("Rubric grading (%s/%s points)", formatPoints(result.Points), formatPoints(result.MaxPoints))
	}

	gradeID, replayed, err := s.writeScore(ctx, actor, target, OperationRubricGrade, scoreChange{
		event:        grading.EventScore,
		score:        result.Percentage,
		reason:       reason,
		modifierID:   actor.ID,
		modifierName: s.modifierName(ctx, actor),
		operationID:  payload.OperationID,
		marks:        grading.Breakdown(def, payload.Selections),
		feedback:     payload.Feedback,
	})
	if err != nil {
		return models.Grade{}, false, err
	}

	grade, err := s.loadGrade(ctx, gradeID)
	return grade, replayed, err
}

func formatPoints(points float64) string {
	return strconv.FormatFloat(points, 'f', -1, 64)
}

func (s *gradingWorkflowService) FileDispute(ctx context.Context, actor ActivityActor, gradeID uint, payload dto.DisputeRequest) (dto.DisputeResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.file_dispute", trace.WithAttributes(
		attribute.Int64("grading.grade_id", int64(gradeID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	result, instructorID, replayed, err := s.fileDispute(ctx, actor, gradeID, payload)
	s.observe(span, OperationFileDispute, err)
	if err != nil {
		return dto.DisputeResultResponse{}, err
	}

	if !replayed {
		s.recordActivity(ctx, actor, "dispute.filed", "dispute", result.Dispute.ID, result.Dispute.CourseID, map[string]interface{}{
			"grade_id":   result.Grade.ID,
			"student_id": result.Dispute.StudentID,
		})
		s.notify(ctx, instructorID, NotificationDisputeFiled, "A student has disputed a grade.", map[string]interface{}{
			"dispute_id": result.Dispute.ID,
			"grade_id":   result.Grade.ID,
			"course_id":  result.Dispute.CourseID,
		})
	}

	return result, nil
}

func (s *gradingWorkflowService) fileDispute(ctx context.Context, actor ActivityActor, gradeID uint, payload dto.DisputeRequest) (dto.DisputeResultResponse, uint, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return dto.DisputeResultResponse{}, 0, false, err
	}
	reason := s.clean(payload.Reason)
	if reason == "" {
		return dto.DisputeResultResponse{}, 0, false, ErrEmptyDisputeReason
	}

	grade, err := s.loadGrade(ctx, gradeID)
	if err != nil {
		return dto.DisputeResultResponse{}, 0, false, err
	}
	if !actor.IsStudent() || actor.ID != grade.StudentID {
		return dto.DisputeResultResponse{}, 0, false, grading.ErrNotGradeOwner
	}

	var (
		disputeID    uint
		instructorID uint
		replayed     bool
	)
	err = s.withinCourse(ctx, grade.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		instructorID = course.InstructorID

		op, err := s.replay(tx, payload.OperationID, OperationFileDispute, course.ID, operationTarget{gradeID: gradeID})
		if err != nil {
			return err
		}
		if op != nil && op.DisputeID != nil {
			disputeID = *op.DisputeID
			replayed = true
			return nil
		}

		if err := ensureUnlocked(course); err != nil {
			return err
		}

		current, err := tx.FindGradeByID(gradeID)
		if err != nil {
			return err
		}
		if current == nil {
			return grading.ErrUnknownGrade
		}

		pending, err := tx.PendingDispute(current.ID)
		if err != nil {
			return err
		}
		if pending != nil || current.IsDisputed {
			return grading.ErrDuplicateDispute
		}
		if _, err := grading.Transition(current.State(), grading.EventFileDispute); err != nil {
			return err
		}

		dispute := models.GradeDispute{
			GradeID:       current.ID,
			CourseID:      course.ID,
			StudentID:     current.StudentID,
			StudentReason: reason,
			Status:        models.DisputeStatusPending,
		}
		if err := tx.CreateDispute(&dispute); err != nil {
			return err
		}

		current.IsDisputed = true
		current.DisputeID = uintPtr(dispute.ID)
		if err := tx.UpdateGrade(current); err != nil {
			return err
		}

		disputeID = dispute.ID
		return s.recordOperation(tx, payload.OperationID, appliedOperation{
			kind:      OperationFileDispute,
			courseID:  course.ID,
			target:    operationTarget{studentID: current.StudentID, contentItemID: current.ContentItemID},
			gradeID:   uintPtr(current.ID),
			disputeID: uintPtr(dispute.ID),
		})
	})
	if err != nil {
		return dto.DisputeResultResponse{}, 0, false, err
	}

	result, err := s.disputeResult(ctx, disputeID)
	return result, instructorID, replayed, err
}

func (s *gradingWorkflowService) ResolveDispute(ctx context.Context, actor ActivityActor, disputeID uint, payload dto.ResolveDisputeRequest) (dto.DisputeResultResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.resolve_dispute", trace.WithAttributes(
		attribute.Int64("grading.dispute_id", int64(disputeID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
		attribute.String("grading.decision", payload.Decision),
	))
	defer span.End()

	result, replayed, err := s.resolveDispute(ctx, actor, disputeID, payload)
	s.observe(span, OperationResolveDispute, err)
	if err != nil {
		return dto.DisputeResultResponse{}, err
	}

	if !replayed {
		action := "dispute.rejected"
		if result.Dispute.Status == string(models.DisputeStatusAccepted) {
			action = "dispute.accepted"
		}
		s.recordActivity(ctx, actor, action, "dispute", result.Dispute.ID, result.Dispute.CourseID, map[string]interface{}{
			"grade_id":       result.Grade.ID,
			"student_id":     result.Dispute.StudentID,
			"resolved_score": result.Dispute.ResolvedScore,
		})
		s.notify(ctx, result.Dispute.StudentID, NotificationDisputeResolved, fmt.Sprintf("Your grade dispute was %s.", result.Dispute.Status), map[string]interface{}{
			"dispute_id": result.Dispute.ID,
			"grade_id":   result.Grade.ID,
			"status":     result.Dispute.Status,
		})
	}

	return result, nil
}

func (s *gradingWorkflowService) resolveDispute(ctx context.Context, actor ActivityActor, disputeID uint, payload dto.ResolveDisputeRequest) (dto.DisputeResultResponse, bool, error) {
	if err := s.deps.Validator.Struct(payload); err != nil {
		return dto.DisputeResultResponse{}, false, err
	}

	accept := payload.Decision == dto.DisputeDecisionAccept
	var score int
	if accept {
		value, err := grading.ValidateScore(*payload.Score)
		if err != nil {
			return dto.DisputeResultResponse{}, false, err
		}
		score = value
	}
	comment := s.clean(payload.Comment)

	dispute, err := s.deps.Grades.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DisputeResultResponse{}, false, grading.ErrUnknownDispute
		}
		return dto.DisputeResultResponse{}, false, err
	}
	modifier := s.modifierName(ctx, actor)

	replayed := false
	err = s.withinCourse(ctx, dispute.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		op, err := s.replay(tx, payload.OperationID, OperationResolveDispute, course.ID, operationTarget{disputeID: disputeID})
		if err != nil {
			return err
		}
		if op != nil {
			replayed = true
			return nil
		}

		if err := ensureUnlocked(course); err != nil {
			return err
		}
		if err := ensureInstructor(actor, course); err != nil {
			return err
		}

		current, err := tx.FindDispute(disputeID)
		if err != nil {
			return err
		}
		if current == nil {
			return grading.ErrUnknownDispute
		}
		if current.Status != models.DisputeStatusPending {
			return fmt.Errorf("%w: dispute %d is %s", grading.ErrDisputeAlreadyResolved, current.ID, current.Status)
		}

		grade, err := tx.FindGradeByID(current.GradeID)
		if err != nil {
			return err
		}
		if grade == nil {
			return grading.ErrUnknownGrade
		}

		if accept {
			reason := fmt.Sprintf("Dispute #%d accepted", current.ID)
			if comment != "" {
				reason = fmt.Sprintf("%s: %s", reason, comment)
			}
			if _, err := s.applyScore(tx, grade, scoreChange{
				event:        grading.EventAcceptDispute,
				score:        score,
				reason:       reason,
				modifierID:   actor.ID,
				modifierName: modifier,
				operationID:  payload.OperationID,
			}); err != nil {
				return err
			}
			current.Status = models.DisputeStatusAccepted
			current.ResolvedScore = &score
		} else {
			if _, err := grading.Transition(grade.State(), grading.EventRejectDispute); err != nil {
				return err
			}
			grade.IsDisputed = false
			if err := tx.UpdateGrade(grade); err != nil {
				return err
			}
			current.Status = models.DisputeStatusRejected
		}

		resolvedAt := s.now()
		current.ResolutionComment = comment
		current.ResolvedBy = uintPtr(actor.ID)
		current.ResolvedAt = &resolvedAt
		if err := tx.UpdateDispute(current); err != nil {
			return err
		}

		return s.recordOperation(tx, payload.OperationID, appliedOperation{
			kind:      OperationResolveDispute,
			courseID:  course.ID,
			target:    operationTarget{studentID: grade.StudentID, contentItemID: grade.ContentItemID},
			gradeID:   uintPtr(grade.ID),
			disputeID: uintPtr(current.ID),
		})
	})
	if err != nil {
		return dto.DisputeResultResponse{}, false, err
	}

	result, err := s.disputeResult(ctx, disputeID)
	return result, replayed, err
}

func (s *gradingWorkflowService) disputeResult(ctx context.Context, disputeID uint) (dto.DisputeResultResponse, error) {
	dispute, err := s.deps.Grades.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.DisputeResultResponse{}, grading.ErrUnknownDispute
		}
		return dto.DisputeResultResponse{}, err
	}
	grade, err := s.loadGrade(ctx, dispute.GradeID)
	if err != nil {
		return dto.DisputeResultResponse{}, err
	}
	return dto.DisputeResultResponse{
		Dispute: dto.NewDisputeResponse(dispute),
		Grade:   dto.NewGradeResponse(grade),
	}, nil
}

func (s *gradingWorkflowService) ListDisputes(ctx context.Context, actor ActivityActor, courseID uint, status string) ([]dto.DisputeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.list_disputes", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(courseID)),
	))
	defer span.End()

	course, err := s.deps.Courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, grading.ErrUnknownCourse
		}
		span.RecordError(err)
		return nil, err
	}
	if err := ensureInstructor(actor, course); err != nil {
		return nil, err
	}

	disputes, err := s.deps.Grades.ListDisputes(ctx, repository.DisputeFilter{
		CourseID: courseID,
		Status:   strings.ToLower(strings.TrimSpace(status)),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return dto.NewDisputeResponseSlice(disputes), nil
}

func (s *gradingWorkflowService) FinalizeCourse(ctx context.Context, actor ActivityActor, courseID uint) (dto.FinalizeResponse, error) {
	ctx, span := s.tracer.Start(ctx, "grading.finalize_course", trace.WithAttributes(
		attribute.Int64("grading.course_id", int64(courseID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
	))
	defer span.End()

	var (
		response    dto.FinalizeResponse
		finalizedAt time.Time
	)
	err := s.withinCourse(ctx, courseID, func(tx repository.LedgerTx, course models.Course) error {
		if course.Status.IsLocked() {
			return fmt.Errorf("%w: course %d already %s", grading.ErrLockedCourse, course.ID, course.Status)
		}
		if err := ensureInstructor(actor, course); err != nil {
			return err
		}

		pending, err := tx.CountPendingDisputes(course.ID)
		if err != nil {
			return err
		}

		finalizedAt = s.now()
		if err := tx.FinalizeCourse(&course, finalizedAt); err != nil {
			return err
		}

		response = dto.FinalizeResponse{
			CourseID:        course.ID,
			Status:          string(course.Status),
			FinalizedAt:     finalizedAt,
			PendingDisputes: pending,
		}
		return nil
	})
	s.observe(span, OperationFinalizeCourse, err)
	if err != nil {
		return dto.FinalizeResponse{}, err
	}

	if response.PendingDisputes > 0 {
		s.logger.Warn().
			Uint("course_id", courseID).
			Int64("pending_disputes", response.PendingDisputes).
			Msg("course finalized with unresolved disputes")
	}

	s.recordActivity(ctx, actor, "course.finalized", "course", courseID, courseID, map[string]interface{}{
		"pending_disputes": response.PendingDisputes,
	})

	enrollments, err := s.deps.Enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		s.logger.Warn().Err(err).Uint("course_id", courseID).Msg("failed to load roster for finalize notifications")
		return response, nil
	}
	for _, enrollment := range enrollments {
		s.notify(ctx, enrollment.StudentID, NotificationGradebookFinalized, "Final grades for your course are now available.", map[string]interface{}{
			"course_id": courseID,
		})
	}

	return response, nil
}
