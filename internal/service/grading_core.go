package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/observability"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// Operation kinds recorded against client operation ids.
const (
	OperationUpsertScore        = "upsert_score"
	OperationRubricGrade        = "rubric_grade"
	OperationToggleResubmission = "toggle_resubmission"
	OperationRecordSubmission   = "record_submission"
	OperationSetPendingReview   = "set_pending_review"
	OperationFileDispute        = "file_dispute"
	OperationResolveDispute     = "resolve_dispute"
	OperationFinalizeCourse     = "finalize_course"
)

const (
	systemModifierName = "System"
	autoGradedReason   = "Auto-graded"
	manualGradedReason = "Graded by instructor"
)

// GradingDependencies wires the collaborators shared by the grading services.
type GradingDependencies struct {
	Ledger      repository.LedgerRepository
	Grades      repository.GradeRepository
	Courses     repository.CourseRepository
	Rubrics     repository.RubricRepository
	Users       repository.UserRepository
	Enrollments repository.EnrollmentRepository
	Submissions repository.SubmissionRepository
	Activity    ActivityRecorder
	Notifier    Notifier
	Validator   *validator.Validate
	Logger      zerolog.Logger
}

// gradingCore holds the write path every grade mutation goes through.
type gradingCore struct {
	deps      GradingDependencies
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

func newGradingCore(deps GradingDependencies, component string) *gradingCore {
	return &gradingCore{
		deps:      deps,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    deps.Logger.With().Str("component", component).Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// withinCourse runs fn under the course write lock and maps storage errors onto
// grading errors.
func (c *gradingCore) withinCourse(ctx context.Context, courseID uint, fn func(tx repository.LedgerTx, course models.Course) error) error {
	err := c.deps.Ledger.WithinCourse(ctx, courseID, fn)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return grading.ErrUnknownCourse
	case errors.Is(err, repository.ErrStaleRevision):
		return fmt.Errorf("%w: %v", grading.ErrConcurrentModification, err)
	default:
		return err
	}
}

// operationTarget identifies what a client operation id was applied to. Zero
// fields are not part of the target.
type operationTarget struct {
	studentID     uint
	contentItemID uint
	gradeID       uint
	disputeID     uint
}

func gradeTargetOf(target GradeTarget) operationTarget {
	return operationTarget{studentID: target.StudentID, contentItemID: target.ContentItemID}
}

func (t operationTarget) matches(op *models.GradeOperation) bool {
	if t.studentID != 0 && op.StudentID != t.studentID {
		return false
	}
	if t.contentItemID != 0 && op.ContentItemID != t.contentItemID {
		return false
	}
	if t.gradeID != 0 && (op.GradeID == nil || *op.GradeID != t.gradeID) {
		return false
	}
	if t.disputeID != 0 && (op.DisputeID == nil || *op.DisputeID != t.disputeID) {
		return false
	}
	return true
}

// replay returns the operation previously recorded under operationID, if any.
// An id reused for another kind, course or target is a conflict.
func (c *gradingCore) replay(tx repository.LedgerTx, operationID, kind string, courseID uint, target operationTarget) (*models.GradeOperation, error) {
	if operationID == "" {
		return nil, nil
	}
	op, err := tx.FindOperation(operationID)
	if err != nil || op == nil {
		return nil, err
	}
	if op.Kind != kind || op.CourseID != courseID {
		return nil, fmt.Errorf("%w: %s was used for %s", grading.ErrOperationConflict, operationID, op.Kind)
	}
	if !target.matches(op) {
		return nil, fmt.Errorf("%w: %s was applied to another target", grading.ErrOperationConflict, operationID)
	}
	return op, nil
}

// appliedOperation describes a write about to be recorded under a client operation id.
type appliedOperation struct {
	kind         string
	courseID     uint
	target       operationTarget
	gradeID      *uint
	disputeID    *uint
	submissionID *uint
}

func (c *gradingCore) recordOperation(tx repository.LedgerTx, operationID string, applied appliedOperation) error {
	if operationID == "" {
		return nil
	}
	return tx.RecordOperation(&models.GradeOperation{
		OperationID:   operationID,
		Kind:          applied.kind,
		CourseID:      applied.courseID,
		StudentID:     applied.target.studentID,
		ContentItemID: applied.target.contentItemID,
		GradeID:       applied.gradeID,
		DisputeID:     applied.disputeID,
		SubmissionID:  applied.submissionID,
		CreatedAt:     c.now(),
	})
}

func ensureUnlocked(course models.Course) error {
	if course.Status.IsLocked() {
		return fmt.Errorf("%w: course %d is %s", grading.ErrLockedCourse, course.ID, course.Status)
	}
	return nil
}

func ensureInstructor(actor ActivityActor, course models.Course) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.IsStudent() || actor.ID == 0 || actor.ID != course.InstructorID {
		return grading.ErrNotCourseInstructor
	}
	return nil
}

func ensureEnrolled(tx repository.LedgerTx, courseID, studentID uint) error {
	enrolled, err := tx.IsEnrolled(courseID, studentID)
	if err != nil {
		return err
	}
	if !enrolled {
		return fmt.Errorf("%w: student %d in course %d", grading.ErrNotEnrolled, studentID, courseID)
	}
	return nil
}

// gradableItem loads a gradable content item of the course.
func (c *gradingCore) gradableItem(ctx context.Context, courseID, itemID uint) (models.ContentItem, error) {
	item, err := c.deps.Courses.GetContentItem(ctx, courseID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ContentItem{}, grading.ErrUnknownContentItem
		}
		return models.ContentItem{}, err
	}
	if !item.Type.IsGradable() {
		return models.ContentItem{}, fmt.Errorf("%w: item %d is a %s", grading.ErrUnknownContentItem, item.ID, item.Type)
	}
	return item, nil
}

// modifierName resolves the display name written to grade history.
func (c *gradingCore) modifierName(ctx context.Context, actor ActivityActor) string {
	if actor.ID == 0 {
		return systemModifierName
	}
	user, err := c.deps.Users.GetByID(ctx, actor.ID)
	if err != nil || strings.TrimSpace(user.Name) == "" {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			c.logger.Warn().Err(err).Uint("user_id", actor.ID).Msg("failed to resolve modifier name")
		}
		return fmt.Sprintf("User #%d", actor.ID)
	}
	return user.Name
}

func (c *gradingCore) clean(value string) string {
	return strings.TrimSpace(c.sanitizer.Sanitize(value))
}

// scoreChange describes one scored transition of a grade.
type scoreChange struct {
	courseID      uint
	studentID     uint
	contentItemID uint
	event         grading.Event
	score         int
	reason        string
	modifierID    uint
	modifierName  string
	operationID   string
	submissionID  *uint
	marks         map[string]grading.CriterionMark
	feedback      *string
}

// applyScore moves a grade to graded with a new score and appends the matching
// history entry. existing is nil when no grade has been recorded yet.
func (c *gradingCore) applyScore(tx repository.LedgerTx, existing *models.Grade, change scoreChange) (*models.Grade, error) {
	from := grading.StateUngraded
	if existing != nil {
		from = existing.State()
	}
	next, err := grading.Transition(from, change.event)
	if err != nil {
		return nil, err
	}

	grade := existing
	var oldScore *int
	if grade == nil {
		grade = &models.Grade{
			StudentID:     change.studentID,
			ContentItemID: change.contentItemID,
			CourseID:      change.courseID,
		}
	} else if grade.Score != nil {
		previous := *grade.Score
		oldScore = &previous
	} else {
		// A new attempt reset the score; the chain continues from the last recorded one.
		last, err := tx.LastHistory(grade.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			previous := last.NewScore
			oldScore = &previous
		}
	}

	now := c.now()
	score := change.score
	grade.Score = &score
	grade.Status = models.GradeStatusGraded
	grade.GradedAt = &now
	grade.IsDisputed = next == grading.StateDisputed
	if change.submissionID != nil {
		grade.SubmissionID = change.submissionID
	}
	grade.SetRubricMarks(change.marks)
	if change.feedback != nil {
		grade.Feedback = c.clean(*change.feedback)
	}

	if grade.ID == 0 {
		err = tx.CreateGrade(grade)
	} else {
		err = tx.UpdateGrade(grade)
	}
	if err != nil {
		return nil, err
	}

	entry := models.GradeHistoryEntry{
		GradeID:      grade.ID,
		Timestamp:    now,
		ModifierID:   change.modifierID,
		ModifierName: change.modifierName,
		OldScore:     oldScore,
		NewScore:     score,
		Reason:       change.reason,
	}
	if change.operationID != "" {
		opID := change.operationID
		entry.OperationID = &opID
	}
	if err := tx.AppendHistory(&entry); err != nil {
		return nil, err
	}

	return grade, nil
}

// markPending creates or resets a grade to pending review for a new manual attempt.
// No history entry is written because no new score exists.
func (c *gradingCore) markPending(tx repository.LedgerTx, existing *models.Grade, courseID, studentID, itemID uint, submissionID *uint) (*models.Grade, error) {
	from := grading.StateUngraded
	if existing != nil {
		from = existing.State()
	}
	if _, err := grading.Transition(from, grading.EventManualSubmission); err != nil {
		return nil, err
	}

	if existing == nil {
		grade := &models.Grade{
			StudentID:     studentID,
			ContentItemID: itemID,
			CourseID:      courseID,
			Status:        models.GradeStatusPendingReview,
			SubmissionID:  submissionID,
		}
		if err := tx.CreateGrade(grade); err != nil {
			return nil, err
		}
		return grade, nil
	}

	existing.Score = nil
	existing.Status = models.GradeStatusPendingReview
	existing.GradedAt = nil
	existing.Feedback = ""
	existing.SetRubricMarks(nil)
	if submissionID != nil {
		existing.SubmissionID = submissionID
	}
	if err := tx.UpdateGrade(existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// loadGrade reads committed grade state with its ordered history.
func (c *gradingCore) loadGrade(ctx context.Context, gradeID uint) (models.Grade, error) {
	grade, err := c.deps.Grades.GetByID(ctx, gradeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Grade{}, grading.ErrUnknownGrade
		}
		return models.Grade{}, err
	}
	return grade, nil
}

// observe records metrics for a finished write and tags the span.
func (c *gradingCore) observe(span trace.Span, operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = grading.Code(err)
		if outcome == "" {
			outcome = "error"
		}
		if errors.Is(err, grading.ErrLockedCourse) {
			observability.GradingLockRejections().WithLabelValues(operation).Inc()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	observability.GradingMutations().WithLabelValues(operation, outcome).Inc()
}

func (c *gradingCore) recordActivity(ctx context.Context, actor ActivityActor, action, entityType string, entityID, courseID uint, metadata map[string]interface{}) {
	if c.deps.Activity == nil {
		return
	}
	if correlation := observability.CorrelationID(ctx); correlation != "" {
		if metadata == nil {
			metadata = map[string]interface{}{}
		}
		metadata["correlation_id"] = correlation
	}
	entity := entityID
	course := courseID
	if _, err := c.deps.Activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   &entity,
		CourseID:   &course,
		Metadata:   metadata,
	}); err != nil {
		c.logger.Warn().Err(err).Str("action", action).Msg("failed to record activity")
	}
}

func (c *gradingCore) notify(ctx context.Context, userID uint, kind, message string, payload map[string]interface{}) {
	if c.deps.Notifier == nil || userID == 0 {
		return
	}
	c.deps.Notifier.Notify(ctx, dto.NotificationCreateRequest{
		UserID:  userID,
		Type:    kind,
		Message: message,
		Payload: payload,
	})
}

func uintPtr(v uint) *uint {
	return &v
}

// GradeTarget addresses the grade of one student for one content item.
type GradeTarget struct {
	CourseID      uint
	ContentItemID uint
	StudentID     uint
}

// writeScore applies an instructor score to the target grade under the course lock.
// It reports whether the call replayed an already applied operation.
func (c *gradingCore) writeScore(ctx context.Context, actor ActivityActor, target GradeTarget, kind string, change scoreChange) (uint, bool, error) {
	var (
		gradeID  uint
		replayed bool
	)

	err := c.withinCourse(ctx, target.CourseID, func(tx repository.LedgerTx, course models.Course) error {
		op, err := c.replay(tx, change.operationID, kind, course.ID, gradeTargetOf(target))
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

		change.courseID = course.ID
		change.studentID = target.StudentID
		change.contentItemID = target.ContentItemID
		grade, err := c.applyScore(tx, existing, change)
		if err != nil {
			return err
		}

		gradeID = grade.ID
		return c.recordOperation(tx, change.operationID, appliedOperation{
			kind:         kind,
			courseID:     course.ID,
			target:       gradeTargetOf(target),
			gradeID:      uintPtr(grade.ID),
			submissionID: grade.SubmissionID,
		})
	})

	return gradeID, replayed, err
}

func (c *gradingCore) announceScore(ctx context.Context, actor ActivityActor, grade models.Grade, operation string) {
	score := 0
	if grade.Score != nil {
		score = *grade.Score
	}
	c.recordActivity(ctx, actor, "grade.scored", "grade", grade.ID, grade.CourseID, map[string]interface{}{
		"student_id":      grade.StudentID,
		"content_item_id": grade.ContentItemID,
		"score":           score,
		"operation":       operation,
	})
	c.notify(ctx, grade.StudentID, NotificationGradePosted, fmt.Sprintf("A new grade of %d has been posted.", score), map[string]interface{}{
		"grade_id":        grade.ID,
		"course_id":       grade.CourseID,
		"content_item_id": grade.ContentItemID,
		"score":           score,
	})
}
