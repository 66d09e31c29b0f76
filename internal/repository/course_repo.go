package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/models"
)

// CourseRepository reads the course catalog consumed by the gradebook.
type CourseRepository interface {
	GetByID(ctx context.Context, id uint) (models.Course, error)
	GetWithContent(ctx context.Context, id uint) (models.Course, error)
	ListByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error)
	GetContentItem(ctx context.Context, courseID, itemID uint) (models.ContentItem, error)
}

type courseRepository struct {
	db *gorm.DB
}

// NewCourseRepository constructs a course repository.
func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

// GetWithContent loads modules and items in display order.
func (r *courseRepository) GetWithContent(ctx context.Context, id uint) (models.Course, error) {
	var course models.Course
	if err := r.db.WithContext(ctx).
		Preload("Modules", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC").Order("id ASC")
		}).
		Preload("Modules.Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC").Order("id ASC")
		}).
		First(&course, id).Error; err != nil {
		return models.Course{}, err
	}
	return course, nil
}

func (r *courseRepository) ListByInstructor(ctx context.Context, instructorID uint) ([]models.Course, error) {
	var courses []models.Course
	if err := r.db.WithContext(ctx).
		Preload("Modules", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC").Order("id ASC")
		}).
		Preload("Modules.Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("position ASC").Order("id ASC")
		}).
		Where("instructor_id = ?", instructorID).
		Order("id ASC").
		Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

func (r *courseRepository) GetContentItem(ctx context.Context, courseID, itemID uint) (models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).
		Where("id = ? AND course_id = ?", itemID, courseID).
		First(&item).Error; err != nil {
		return models.ContentItem{}, err
	}
	return item, nil
}

// RubricRepository reads rubric templates.
type RubricRepository interface {
	GetByID(ctx context.Context, id uint) (models.Rubric, error)
}

type rubricRepository struct {
	db *gorm.DB
}

// NewRubricRepository constructs a rubric repository.
func NewRubricRepository(db *gorm.DB) RubricRepository {
	return &rubricRepository{db: db}
}

func (r *rubricRepository) GetByID(ctx context.Context, id uint) (models.Rubric, error) {
	var rubric models.Rubric
	if err := r.db.WithContext(ctx).First(&rubric, id).Error; err != nil {
		return models.Rubric{}, err
	}
	return rubric, nil
}
