package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
)

// GradeStatus is the persisted status of a grade record.
type GradeStatus string

const (
	GradeStatusPendingReview GradeStatus = "pending_review"
	GradeStatusGraded        GradeStatus = "graded"
)

// Grade is the authoritative mark for one (student, content item) pair.
type Grade struct {
	ID             uint                `gorm:"primaryKey" json:"id"`
	StudentID      uint                `gorm:"not null;uniqueIndex:idx_grades_student_item" json:"student_id"`
	ContentItemID  uint                `gorm:"not null;uniqueIndex:idx_grades_student_item" json:"content_item_id"`
	CourseID       uint                `gorm:"not null;index" json:"course_id"`
	Score          *int                `json:"score"`
	Status         GradeStatus         `gorm:"size:32;not null" json:"status"`
	SubmissionID   *uint               `json:"submission_id"`
	Feedback       string              `gorm:"type:text" json:"feedback"`
	RubricFeedback datatypes.JSON      `gorm:"type:json" json:"-"`
	IsDisputed     bool                `gorm:"not null;default:false" json:"is_disputed"`
	DisputeID      *uint               `json:"dispute_id"`
	CanResubmit    bool                `gorm:"not null;default:false" json:"can_resubmit"`
	Revision       uint                `gorm:"not null;default:0" json:"revision"`
	GradedAt       *time.Time          `json:"graded_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	History        []GradeHistoryEntry `gorm:"foreignKey:GradeID" json:"history,omitempty"`
}

// State maps the stored flags onto the grading lifecycle.
func (g Grade) State() grading.State {
	return grading.StateOf(g.ID != 0, g.Status == GradeStatusPendingReview, g.IsDisputed)
}

// SetRubricMarks snapshots the rubric breakdown used for the current score.
func (g *Grade) SetRubricMarks(marks map[string]grading.CriterionMark) {
	if len(marks) == 0 {
		g.RubricFeedback = nil
		return
	}
	data, err := json.Marshal(marks)
	if err != nil {
		g.RubricFeedback = nil
		return
	}
	g.RubricFeedback = datatypes.JSON(data)
}

// RubricMarks decodes the rubric snapshot, if any.
func (g Grade) RubricMarks() map[string]grading.CriterionMark {
	if len(g.RubricFeedback) == 0 {
		return nil
	}
	var marks map[string]grading.CriterionMark
	if err := json.Unmarshal(g.RubricFeedback, &marks); err != nil {
		return nil
	}
	return marks
}

// GradeHistoryEntry is one append-only audit record of a score change.
type GradeHistoryEntry struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	GradeID      uint      `gorm:"not null;index" json:"grade_id"`
	Timestamp    time.Time `gorm:"not null;index" json:"timestamp"`
	ModifierID   uint      `gorm:"not null" json:"modifier_id"`
	ModifierName string    `gorm:"size:255;not null" json:"modifier_name"`
	OldScore     *int      `json:"old_score"`
	NewScore     int       `gorm:"not null" json:"new_score"`
	Reason       string    `gorm:"type:text" json:"reason"`
	OperationID  *string   `gorm:"size:64" json:"operation_id,omitempty"`
}

// TableName pins the history table name.
func (GradeHistoryEntry) TableName() string {
	return "grade_history"
}

// BeforeUpdate rejects edits to recorded history.
func (h *GradeHistoryEntry) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// BeforeDelete rejects removal of recorded history.
func (h *GradeHistoryEntry) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableRecord
}

// DisputeStatus tracks a grade dispute through resolution.
type DisputeStatus string

const (
	DisputeStatusPending  DisputeStatus = "pending"
	DisputeStatusAccepted DisputeStatus = "accepted"
	DisputeStatusRejected DisputeStatus = "rejected"
)

// GradeDispute is a student appeal against a grade.
type GradeDispute struct {
	ID                uint          `gorm:"primaryKey" json:"id"`
	GradeID           uint          `gorm:"not null;index" json:"grade_id"`
	CourseID          uint          `gorm:"not null;index" json:"course_id"`
	StudentID         uint          `gorm:"not null;index" json:"student_id"`
	StudentReason     string        `gorm:"type:text;not null" json:"student_reason"`
	Status            DisputeStatus `gorm:"size:16;not null;index" json:"status"`
	ResolutionComment string        `gorm:"type:text" json:"resolution_comment"`
	ResolvedScore     *int          `json:"resolved_score"`
	ResolvedBy        *uint         `json:"resolved_by"`
	ResolvedAt        *time.Time    `json:"resolved_at"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

// GradeOperation remembers client operation ids already applied to the ledger,
// together with the grade target they were applied to.
type GradeOperation struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	OperationID   string    `gorm:"size:64;not null;uniqueIndex" json:"operation_id"`
	Kind          string    `gorm:"size:32;not null" json:"kind"`
	CourseID      uint      `gorm:"not null;index" json:"course_id"`
	StudentID     uint      `gorm:"not null;default:0" json:"student_id"`
	ContentItemID uint      `gorm:"not null;default:0" json:"content_item_id"`
	GradeID       *uint     `json:"grade_id"`
	DisputeID     *uint     `json:"dispute_id"`
	SubmissionID  *uint     `json:"submission_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// All lists every persisted model for migrations.
func All() []any {
	return []any{
		&User{},
		&Course{},
		&CourseModule{},
		&ContentItem{},
		&Enrollment{},
		&Rubric{},
		&Submission{},
		&Grade{},
		&GradeHistoryEntry{},
		&GradeDispute{},
		&GradeOperation{},
		&ActivityLog{},
		&Notification{},
	}
}
