package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
)

// ErrImmutableRecord is returned by hooks guarding append-only tables.
var ErrImmutableRecord = errors.New("record is immutable")

// Submission is one attempt by a student at a gradable content item.
type Submission struct {
	ID            uint                   `gorm:"primaryKey" json:"id"`
	Type          grading.SubmissionKind `gorm:"size:16;not null" json:"type"`
	StudentID     uint                   `gorm:"not null;uniqueIndex:idx_submissions_attempt" json:"student_id"`
	CourseID      uint                   `gorm:"not null;index" json:"course_id"`
	ContentItemID uint                   `gorm:"not null;uniqueIndex:idx_submissions_attempt" json:"content_item_id"`
	AttemptNumber int                    `gorm:"not null;uniqueIndex:idx_submissions_attempt" json:"attempt_number"`
	Payload       datatypes.JSON         `gorm:"type:json" json:"-"`
	SubmittedAt   time.Time              `gorm:"not null" json:"submitted_at"`
}

// BeforeUpdate keeps submissions immutable; a new attempt is a new row.
func (s *Submission) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// BeforeDelete keeps submissions permanent.
func (s *Submission) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// DecodePayload returns the typed quiz answers or assignment work.
func (s Submission) DecodePayload() (grading.SubmissionPayload, error) {
	return grading.DecodeSubmissionPayload(s.Type, s.Payload)
}
