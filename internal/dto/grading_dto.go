package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

// UpsertScoreRequest sets a grade directly from the gradebook.
type UpsertScoreRequest struct {
	Score       *float64 `json:"score" validate:"required"`
	Reason      string   `json:"reason" validate:"omitempty,max=1000"`
	Feedback    *string  `json:"feedback" validate:"omitempty,max=5000"`
	OperationID string   `json:"operation_id" validate:"omitempty,max=64"`
}

// RubricGradeRequest grades a submission by selecting one level per criterion.
type RubricGradeRequest struct {
	Selections  map[string]string `json:"selections" validate:"omitempty,dive,keys,required,endkeys,required"`
	Reason      string            `json:"reason" validate:"omitempty,max=1000"`
	Feedback    *string           `json:"feedback" validate:"omitempty,max=5000"`
	OperationID string            `json:"operation_id" validate:"omitempty,max=64"`
}

// ResubmissionRequest grants or revokes an extra attempt.
type ResubmissionRequest struct {
	Allow       *bool  `json:"allow" validate:"required"`
	OperationID string `json:"operation_id" validate:"omitempty,max=64"`
}

// PendingReviewRequest routes a submission back to manual review.
type PendingReviewRequest struct {
	SubmissionID uint   `json:"submission_id" validate:"required"`
	OperationID  string `json:"operation_id" validate:"omitempty,max=64"`
}

// FileReferenceRequest describes an already uploaded file.
type FileReferenceRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Size int64  `json:"size" validate:"gte=0"`
	URL  string `json:"url" validate:"required,url,max=512"`
}

// SubmissionRequest carries quiz answers or assignment work.
type SubmissionRequest struct {
	Answers     map[string]json.RawMessage `json:"answers"`
	File        *FileReferenceRequest      `json:"file" validate:"omitempty"`
	TextContent string                     `json:"text_content" validate:"omitempty,max=20000"`
	OperationID string                     `json:"operation_id" validate:"omitempty,max=64"`
}

// DisputeRequest is a student's appeal against a grade.
type DisputeRequest struct {
	Reason      string `json:"reason" validate:"required,min=3,max=2000"`
	OperationID string `json:"operation_id" validate:"omitempty,max=64"`
}

// Dispute decisions.
const (
	DisputeDecisionAccept = "accept"
	DisputeDecisionReject = "reject"
)

// ResolveDisputeRequest accepts a dispute with a new score or rejects it.
type ResolveDisputeRequest struct {
	Decision    string   `json:"decision" validate:"required,oneof=accept reject"`
	Score       *float64 `json:"score" validate:"required_if=Decision accept"`
	Comment     string   `json:"comment" validate:"required,max=2000"`
	OperationID string   `json:"operation_id" validate:"omitempty,max=64"`
}

// RubricScoreRequest previews a rubric score without writing anything.
type RubricScoreRequest struct {
	Selections map[string]string `json:"selections"`
}

// GradeHistoryResponse is one audit entry of a grade.
type GradeHistoryResponse struct {
	ID           uint      `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	ModifierID   uint      `json:"modifier_id"`
	ModifierName string    `json:"modifier_name"`
	OldScore     *int      `json:"old_score"`
	NewScore     int       `json:"new_score"`
	Reason       string    `json:"reason"`
}

// GradeResponse is the full view of a grade with its history.
type GradeResponse struct {
	ID             uint                             `json:"id"`
	StudentID      uint                             `json:"student_id"`
	CourseID       uint                             `json:"course_id"`
	ContentItemID  uint                             `json:"content_item_id"`
	Score          *int                             `json:"score"`
	Status         string                           `json:"status"`
	State          string                           `json:"state"`
	SubmissionID   *uint                            `json:"submission_id"`
	Feedback       string                           `json:"feedback"`
	RubricFeedback map[string]grading.CriterionMark `json:"rubric_feedback,omitempty"`
	IsDisputed     bool                             `json:"is_disputed"`
	DisputeID      *uint                            `json:"dispute_id"`
	CanResubmit    bool                             `json:"can_resubmit"`
	Revision       uint                             `json:"revision"`
	GradedAt       *time.Time                       `json:"graded_at"`
	UpdatedAt      time.Time                        `json:"updated_at"`
	History        []GradeHistoryResponse           `json:"history"`
}

// NewGradeResponse converts a grade model into its API form.
func NewGradeResponse(grade models.Grade) GradeResponse {
	history := make([]GradeHistoryResponse, 0, len(grade.History))
	for _, entry := range grade.History {
		history = append(history, GradeHistoryResponse{
			ID:           entry.ID,
			Timestamp:    entry.Timestamp,
			ModifierID:   entry.ModifierID,
			ModifierName: entry.ModifierName,
			OldScore:     entry.OldScore,
			NewScore:     entry.NewScore,
			Reason:       entry.Reason,
		})
	}

	return GradeResponse{
		ID:             grade.ID,
		StudentID:      grade.StudentID,
		CourseID:       grade.CourseID,
		ContentItemID:  grade.ContentItemID,
		Score:          grade.Score,
		Status:         string(grade.Status),
		State:          string(grade.State()),
		SubmissionID:   grade.SubmissionID,
		Feedback:       grade.Feedback,
		RubricFeedback: grade.RubricMarks(),
		IsDisputed:     grade.IsDisputed,
		DisputeID:      grade.DisputeID,
		CanResubmit:    grade.CanResubmit,
		Revision:       grade.Revision,
		GradedAt:       grade.GradedAt,
		UpdatedAt:      grade.UpdatedAt,
		History:        history,
	}
}

// NewGradeResponseSlice converts grade models.
func NewGradeResponseSlice(grades []models.Grade) []GradeResponse {
	out := make([]GradeResponse, 0, len(grades))
	for _, grade := range grades {
		out = append(out, NewGradeResponse(grade))
	}
	return out
}

// SubmissionResponse describes a stored attempt.
type SubmissionResponse struct {
	ID            uint      `json:"id"`
	Type          string    `json:"type"`
	StudentID     uint      `json:"student_id"`
	CourseID      uint      `json:"course_id"`
	ContentItemID uint      `json:"content_item_id"`
	AttemptNumber int       `json:"attempt_number"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// NewSubmissionResponse converts a submission model.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:            submission.ID,
		Type:          string(submission.Type),
		StudentID:     submission.StudentID,
		CourseID:      submission.CourseID,
		ContentItemID: submission.ContentItemID,
		AttemptNumber: submission.AttemptNumber,
		SubmittedAt:   submission.SubmittedAt,
	}
}

// SubmissionResultResponse reports the attempt and the grade it produced.
type SubmissionResultResponse struct {
	Submission SubmissionResponse `json:"submission"`
	Grade      GradeResponse      `json:"grade"`
	AutoGraded bool               `json:"auto_graded"`
}

// DisputeResponse describes a grade dispute.
type DisputeResponse struct {
	ID                uint       `json:"id"`
	GradeID           uint       `json:"grade_id"`
	CourseID          uint       `json:"course_id"`
	StudentID         uint       `json:"student_id"`
	StudentReason     string     `json:"student_reason"`
	Status            string     `json:"status"`
	ResolutionComment string     `json:"resolution_comment"`
	ResolvedScore     *int       `json:"resolved_score"`
	ResolvedBy        *uint      `json:"resolved_by"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	CreatedAt         time.Time  `json:"created_at"`
}

// NewDisputeResponse converts a dispute model.
func NewDisputeResponse(dispute models.GradeDispute) DisputeResponse {
	return DisputeResponse{
		ID:                dispute.ID,
		GradeID:           dispute.GradeID,
		CourseID:          dispute.CourseID,
		StudentID:         dispute.StudentID,
		StudentReason:     dispute.StudentReason,
		Status:            string(dispute.Status),
		ResolutionComment: dispute.ResolutionComment,
		ResolvedScore:     dispute.ResolvedScore,
		ResolvedBy:        dispute.ResolvedBy,
		ResolvedAt:        dispute.ResolvedAt,
		CreatedAt:         dispute.CreatedAt,
	}
}

// NewDisputeResponseSlice converts dispute models.
func NewDisputeResponseSlice(disputes []models.GradeDispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(disputes))
	for _, dispute := range disputes {
		out = append(out, NewDisputeResponse(dispute))
	}
	return out
}

// DisputeResultResponse pairs a dispute with the grade it concerns.
type DisputeResultResponse struct {
	Dispute DisputeResponse `json:"dispute"`
	Grade   GradeResponse   `json:"grade"`
}

// FinalizeResponse reports the locked gradebook.
type FinalizeResponse struct {
	CourseID        uint      `json:"course_id"`
	Status          string    `json:"status"`
	FinalizedAt     time.Time `json:"finalized_at"`
	PendingDisputes int64     `json:"pending_disputes"`
}

// RubricResponse exposes a rubric template.
type RubricResponse struct {
	ID           uint                      `json:"id"`
	InstructorID uint                      `json:"instructor_id"`
	Title        string                    `json:"title"`
	Levels       []grading.RubricLevel     `json:"levels"`
	Criteria     []grading.RubricCriterion `json:"criteria"`
	MaxPoints    float64                   `json:"max_points"`
}

// NewRubricResponse converts a rubric model and its decoded definition.
func NewRubricResponse(rubric models.Rubric, def grading.Rubric) RubricResponse {
	return RubricResponse{
		ID:           rubric.ID,
		InstructorID: rubric.InstructorID,
		Title:        rubric.Title,
		Levels:       def.Levels,
		Criteria:     def.Criteria,
		MaxPoints:    def.MaxPoints(),
	}
}

// RubricScoreResponse is a rubric evaluation with its per-criterion breakdown.
type RubricScoreResponse struct {
	Points     float64                          `json:"points"`
	MaxPoints  float64                          `json:"max_points"`
	Percentage int                              `json:"percentage"`
	Breakdown  map[string]grading.CriterionMark `json:"breakdown"`
}
