package dto

import "time"

// ContentItemRef identifies a gradable column of the gradebook.
type ContentItemRef struct {
	ID       uint   `json:"id"`
	ModuleID uint   `json:"module_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	RubricID *uint  `json:"rubric_id"`
}

// GradeCellResponse is a compact grade shown in a gradebook cell.
type GradeCellResponse struct {
	GradeID     uint   `json:"grade_id"`
	Score       *int   `json:"score"`
	Status      string `json:"status"`
	IsDisputed  bool   `json:"is_disputed"`
	CanResubmit bool   `json:"can_resubmit"`
}

// GradebookRow holds one enrolled student's cells keyed by content item id.
// A nil cell means the student has no grade for that item yet.
type GradebookRow struct {
	StudentID   uint                        `json:"student_id"`
	StudentName string                      `json:"student_name"`
	Cells       map[uint]*GradeCellResponse `json:"cells"`
}

// GradebookMatrixResponse is the course-wide gradebook.
type GradebookMatrixResponse struct {
	CourseID      uint             `json:"course_id"`
	CourseTitle   string           `json:"course_title"`
	CourseStatus  string           `json:"course_status"`
	GradableItems []ContentItemRef `json:"gradable_items"`
	Rows          []GradebookRow   `json:"rows"`
}

// ItemSummary counts grading progress for one content item.
type ItemSummary struct {
	ContentItemID     uint    `json:"content_item_id"`
	Title             string  `json:"title"`
	Type              string  `json:"type"`
	TotalEnrolled     int     `json:"total_enrolled"`
	SubmittedCount    int     `json:"submitted_count"`
	GradedCount       int     `json:"graded_count"`
	NeedsGradingCount int     `json:"needs_grading_count"`
	NotSubmittedCount int     `json:"not_submitted_count"`
	SubmissionRate    float64 `json:"submission_rate"`
}

// CourseSummary groups item summaries for a course.
type CourseSummary struct {
	CourseID      uint          `json:"course_id"`
	Title         string        `json:"title"`
	Status        string        `json:"status"`
	TotalEnrolled int           `json:"total_enrolled"`
	Items         []ItemSummary `json:"items"`
}

// GradingSummaryResponse covers every course taught by an instructor.
type GradingSummaryResponse struct {
	InstructorID uint            `json:"instructor_id"`
	Courses      []CourseSummary `json:"courses"`
}

// QueueEntry is a student in one bucket of an item's grading queue.
type QueueEntry struct {
	StudentID     uint       `json:"student_id"`
	StudentName   string     `json:"student_name"`
	GradeID       *uint      `json:"grade_id"`
	Score         *int       `json:"score"`
	Attempts      int        `json:"attempts"`
	LastSubmitted *time.Time `json:"last_submitted_at"`
}

// ItemQueueResponse partitions the roster for one item.
type ItemQueueResponse struct {
	CourseID      uint         `json:"course_id"`
	ContentItemID uint         `json:"content_item_id"`
	NotSubmitted  []QueueEntry `json:"not_submitted"`
	NeedsGrading  []QueueEntry `json:"needs_grading"`
	Graded        []QueueEntry `json:"graded"`
}
