package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// ErrStaleRevision is returned when a grade changed after it was read.
var ErrStaleRevision = errors.New("grade revision is stale")

// LedgerTx exposes the writes allowed while a course is held by WithinCourse.
// Every call runs on the enclosing transaction.
type LedgerTx interface {
	FindOperation(operationID string) (*models.GradeOperation, error)
	RecordOperation(op *models.GradeOperation) error

	IsEnrolled(courseID, studentID uint) (bool, error)

	FindGrade(studentID, contentItemID uint) (*models.Grade, error)
	FindGradeByID(id uint) (*models.Grade, error)
	CreateGrade(grade *models.Grade) error
	UpdateGrade(grade *models.Grade) error
	AppendHistory(entry *models.GradeHistoryEntry) error
	LastHistory(gradeID uint) (*models.GradeHistoryEntry, error)
	History(gradeID uint) ([]models.GradeHistoryEntry, error)

	CountAttempts(studentID, contentItemID uint) (int64, error)
	CreateSubmission(submission *models.Submission) error

	FindDispute(id uint) (*models.GradeDispute, error)
	PendingDispute(gradeID uint) (*models.GradeDispute, error)
	CreateDispute(dispute *models.GradeDispute) error
	UpdateDispute(dispute *models.GradeDispute) error
	CountPendingDisputes(courseID uint) (int64, error)

	FinalizeCourse(course *models.Course, at time.Time) error
}

// LedgerRepository serializes gradebook writes per course.
type LedgerRepository interface {
	// WithinCourse runs fn in a transaction holding the course row lock. The
	// course passed to fn is read under that lock, so its status is current.
	WithinCourse(ctx context.Context, courseID uint, fn func(tx LedgerTx, course models.Course) error) error
}

type ledgerRepository struct {
	db    *gorm.DB
	locks *courseLocks
}

// NewLedgerRepository constructs the ledger repository.
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db, locks: newCourseLocks()}
}

func (r *ledgerRepository) WithinCourse(ctx context.Context, courseID uint, fn func(tx LedgerTx, course models.Course) error) error {
	release := r.locks.acquire(courseID)
	defer release()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&course, courseID).Error; err != nil {
			return err
		}
		return fn(&ledgerTx{db: tx}, course)
	})
}

type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) FindOperation(operationID string) (*models.GradeOperation, error) {
	var op models.GradeOperation
	err := t.db.Where("operation_id = ?", operationID).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (t *ledgerTx) RecordOperation(op *models.GradeOperation) error {
	return t.db.Create(op).Error
}

func (t *ledgerTx) IsEnrolled(courseID, studentID uint) (bool, error) {
	var count int64
	if err := t.db.Model(&models.Enrollment{}).
		Where("course_id = ? AND student_id = ?", courseID, studentID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *ledgerTx) FindGrade(studentID, contentItemID uint) (*models.Grade, error) {
	var grade models.Grade
	err := t.db.Where("student_id = ? AND content_item_id = ?", studentID, contentItemID).First(&grade).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (t *ledgerTx) FindGradeByID(id uint) (*models.Grade, error) {
	var grade models.Grade
	err := t.db.First(&grade, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &grade, nil
}

func (t *ledgerTx) CreateGrade(grade *models.Grade) error {
	return t.db.Omit(clause.Associations).Create(grade).Error
}

// UpdateGrade writes the mutable grade columns if the stored revision still
// matches grade.Revision, then advances the revision.
func (t *ledgerTx) UpdateGrade(grade *models.Grade) error {
	result := t.db.Model(&models.Grade{}).
		Where("id = ? AND revision = ?", grade.ID, grade.Revision).
		Updates(map[string]any{
			"score":           grade.Score,
			"status":          grade.Status,
			"submission_id":   grade.SubmissionID,
			"feedback":        grade.Feedback,
			"rubric_feedback": grade.RubricFeedback,
			"is_disputed":     grade.IsDisputed,
			"dispute_id":      grade.DisputeID,
			"can_resubmit":    grade.CanResubmit,
			"graded_at":       grade.GradedAt,
			"revision":        grade.Revision + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleRevision
	}
	grade.Revision++
	return nil
}

func (t *ledgerTx) AppendHistory(entry *models.GradeHistoryEntry) error {
	return t.db.Create(entry).Error
}

func (t *ledgerTx) LastHistory(gradeID uint) (*models.GradeHistoryEntry, error) {
	var entry models.GradeHistoryEntry
	err := t.db.Where("grade_id = ?", gradeID).Order("timestamp DESC").Order("id DESC").First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (t *ledgerTx) History(gradeID uint) ([]models.GradeHistoryEntry, error) {
	var entries []models.GradeHistoryEntry
	if err := t.db.Where("grade_id = ?", gradeID).Order("timestamp ASC").Order("id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (t *ledgerTx) CountAttempts(studentID, contentItemID uint) (int64, error) {
	var count int64
	if err := t.db.Model(&models.Submission{}).
		Where("student_id = ? AND content_item_id = ?", studentID, contentItemID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (t *ledgerTx) CreateSubmission(submission *models.Submission) error {
	return t.db.Create(submission).Error
}

func (t *ledgerTx) FindDispute(id uint) (*models.GradeDispute, error) {
	var dispute models.GradeDispute
	err := t.db.First(&dispute, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (t *ledgerTx) PendingDispute(gradeID uint) (*models.GradeDispute, error) {
	var dispute models.GradeDispute
	err := t.db.Where("grade_id = ? AND status = ?", gradeID, models.DisputeStatusPending).First(&dispute).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (t *ledgerTx) CreateDispute(dispute *models.GradeDispute) error {
	return t.db.Create(dispute).Error
}

func (t *ledgerTx) UpdateDispute(dispute *models.GradeDispute) error {
	return t.db.Save(dispute).Error
}

func (t *ledgerTx) CountPendingDisputes(courseID uint) (int64, error) {
	var count int64
	if err := t.db.Model(&models.GradeDispute{}).
		Where("course_id = ? AND status = ?", courseID, models.DisputeStatusPending).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (t *ledgerTx) FinalizeCourse(course *models.Course, at time.Time) error {
	if err := t.db.Model(course).Updates(map[string]any{
		"status":       models.CourseStatusFinalized,
		"finalized_at": at,
	}).Error; err != nil {
		return err
	}
	course.Status = models.CourseStatusFinalized
	course.FinalizedAt = &at
	return nil
}

// courseLocks hands out one mutex per course, dropping it when unused.
type courseLocks struct {
	mu    sync.Mutex
	locks map[uint]*courseLock
}

type courseLock struct {
	sync.Mutex
	refs int
}

func newCourseLocks() *courseLocks {
	return &courseLocks{locks: make(map[uint]*courseLock)}
}

func (l *courseLocks) acquire(courseID uint) func() {
	l.mu.Lock()
	lock, ok := l.locks[courseID]
	if !ok {
		lock = &courseLock{}
		l.locks[courseID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.Lock()
	return func() {
		lock.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, courseID)
		}
		l.mu.Unlock()
	}
}
