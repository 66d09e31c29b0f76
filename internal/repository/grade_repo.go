package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// DisputeFilter narrows dispute queries.
type DisputeFilter struct {
	CourseID  uint
	StudentID *uint
	Status    string
}

// GradeRepository serves committed grade state to readers.
type GradeRepository interface {
	GetByStudentItem(ctx context.Context, studentID, contentItemID uint) (models.Grade, error)
	GetByID(ctx context.Context, id uint) (models.Grade, error)
	ListByCourse(ctx context.Context, courseID uint) ([]models.Grade, error)
	ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error)
	GetDispute(ctx context.Context, id uint) (models.GradeDispute, error)
	ListDisputes(ctx context.Context, filter DisputeFilter) ([]models.GradeDispute, error)
}

type gradeRepository struct {
	db *gorm.DB
}

// NewGradeRepository constructs the read side of the grade ledger.
func NewGradeRepository(db *gorm.DB) GradeRepository {
	return &gradeRepository{db: db}
}

func orderedHistory(tx *gorm.DB) *gorm.DB {
	return tx.Order("timestamp ASC").Order("id ASC")
}

// snapshot runs fn in one read-only transaction, so a grade row and its
// preloaded history always come from the same committed state.
func (r *gradeRepository) snapshot(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
}

func (r *gradeRepository) GetByStudentItem(ctx context.Context, studentID, contentItemID uint) (models.Grade, error) {
	var grade models.Grade
	err := r.snapshot(ctx, func(tx *gorm.DB) error {
		return tx.Preload("History", orderedHistory).
			Where("student_id = ? AND content_item_id = ?", studentID, contentItemID).
			First(&grade).Error
	})
	if err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) GetByID(ctx context.Context, id uint) (models.Grade, error) {
	var grade models.Grade
	err := r.snapshot(ctx, func(tx *gorm.DB) error {
		return tx.Preload("History", orderedHistory).First(&grade, id).Error
	})
	if err != nil {
		return models.Grade{}, err
	}
	return grade, nil
}

func (r *gradeRepository) ListByCourse(ctx context.Context, courseID uint) ([]models.Grade, error) {
	var grades []models.Grade
	if err := r.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&grades).Error; err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) ListByStudent(ctx context.Context, studentID uint) ([]models.Grade, error) {
	var grades []models.Grade
	err := r.snapshot(ctx, func(tx *gorm.DB) error {
		return tx.Preload("History", orderedHistory).
			Where("student_id = ?", studentID).
			Order("course_id ASC").
			Order("content_item_id ASC").
			Find(&grades).Error
	})
	if err != nil {
		return nil, err
	}
	return grades, nil
}

func (r *gradeRepository) GetDispute(ctx context.Context, id uint) (models.GradeDispute, error) {
	var dispute models.GradeDispute
	if err := r.db.WithContext(ctx).First(&dispute, id).Error; err != nil {
		return models.GradeDispute{}, err
	}
	return dispute, nil
}

func (r *gradeRepository) ListDisputes(ctx context.Context, filter DisputeFilter) ([]models.GradeDispute, error) {
	query := r.db.WithContext(ctx).Model(&models.GradeDispute{}).Where("course_id = ?", filter.CourseID)

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var disputes []models.GradeDispute
	if err := query.Order("created_at DESC").Order("id DESC").Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}
