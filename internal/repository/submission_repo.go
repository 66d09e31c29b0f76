package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// Submitter is one (item, student) pair with at least one submission.
type Submitter struct {
	ContentItemID uint
	StudentID     uint
}

// SubmissionRepository reads stored submission attempts. Writes go through the
// ledger so they share the course lock.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	ListAttempts(ctx context.Context, studentID, contentItemID uint) ([]models.Submission, error)
	ListSubmitters(ctx context.Context, courseID uint) ([]Submitter, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}
	return submission, nil
}

func (r *submissionRepository) ListAttempts(ctx context.Context, studentID, contentItemID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND content_item_id = ?", studentID, contentItemID).
		Order("attempt_number ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) ListSubmitters(ctx context.Context, courseID uint) ([]Submitter, error) {
	var rows []Submitter
	if err := r.db.WithContext(ctx).Model(&models.Submission{}).
		Distinct("content_item_id", "student_id").
		Where("course_id = ?", courseID).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
