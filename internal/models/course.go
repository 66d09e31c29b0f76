package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/gema-grading-api/internal/grading"
)

// CourseStatus is the publication state of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusFinalized CourseStatus = "finalized"
	CourseStatusArchived  CourseStatus = "archived"
)

// IsLocked reports whether grade writes are frozen for the course.
func (s CourseStatus) IsLocked() bool {
	return s == CourseStatusFinalized || s == CourseStatusArchived
}

// Course owns modules, the roster and the gradebook lock.
type Course struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	InstructorID uint           `gorm:"not null;index" json:"instructor_id"`
	Status       CourseStatus   `gorm:"size:16;not null;default:draft" json:"status"`
	FinalizedAt  *time.Time     `json:"finalized_at"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	Modules      []CourseModule `gorm:"foreignKey:CourseID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"modules,omitempty"`
}

// CourseModule groups content items in display order.
type CourseModule struct {
	ID       uint          `gorm:"primaryKey" json:"id"`
	CourseID uint          `gorm:"not null;index" json:"course_id"`
	Title    string        `gorm:"size:255;not null" json:"title"`
	Position int           `gorm:"not null;default:0" json:"position"`
	Items    []ContentItem `gorm:"foreignKey:ModuleID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"items,omitempty"`
}

// ContentItem is a lesson, quiz, assignment or examination inside a module.
type ContentItem struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CourseID    uint             `gorm:"not null;index" json:"course_id"`
	ModuleID    uint             `gorm:"not null;index" json:"module_id"`
	Title       string           `gorm:"size:255;not null" json:"title"`
	Type        grading.ItemType `gorm:"size:32;not null" json:"type"`
	Position    int              `gorm:"not null;default:0" json:"position"`
	RubricID    *uint            `json:"rubric_id"`
	MaxAttempts int              `gorm:"not null;default:0" json:"max_attempts"`
	Questions   datatypes.JSON   `gorm:"type:json" json:"-"`
}

// SetQuestions serializes the quiz questions into the JSON column.
func (c *ContentItem) SetQuestions(questions []grading.Question) error {
	if len(questions) == 0 {
		c.Questions = datatypes.JSON([]byte("[]"))
		return nil
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	c.Questions = datatypes.JSON(data)
	return nil
}

// QuestionList decodes the stored quiz questions.
func (c ContentItem) QuestionList() ([]grading.Question, error) {
	return grading.DecodeQuestions(c.Questions)
}
