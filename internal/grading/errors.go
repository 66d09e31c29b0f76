package grading

import "errors"

// Error is a grading failure the caller is expected to surface. Code is a stable
// machine-readable identifier returned to API clients.
type Error struct {
	Code    string
	Message string
	parent  *Error
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the broader error this one refines, if any.
func (e *Error) Unwrap() error {
	if e.parent == nil {
		return nil
	}
	return e.parent
}

var (
	// ErrLockedCourse rejects writes to a finalized or archived gradebook.
	ErrLockedCourse = &Error{Code: "locked_course", Message: "course gradebook is locked"}
	// ErrInvalidScore rejects scores outside 0..100 or with a fractional part.
	ErrInvalidScore = &Error{Code: "invalid_score", Message: "score must be an integer between 0 and 100"}
	// ErrDuplicateDispute rejects a second open dispute on the same grade.
	ErrDuplicateDispute = &Error{Code: "duplicate_dispute", Message: "grade already has a pending dispute"}
	// ErrUnknownGrade indicates the grade does not exist.
	ErrUnknownGrade = &Error{Code: "unknown_grade", Message: "grade not found"}
	// ErrUnknownDispute indicates the dispute does not exist. It matches
	// ErrUnknownGrade as well.
	ErrUnknownDispute = &Error{Code: "unknown_dispute", Message: "dispute not found", parent: ErrUnknownGrade}
	// ErrNotEnrolled rejects grading a student outside the course roster.
	ErrNotEnrolled = &Error{Code: "not_enrolled", Message: "student is not enrolled in the course"}

	// ErrUnknownCourse indicates the course does not exist.
	ErrUnknownCourse = &Error{Code: "unknown_course", Message: "course not found"}
	// ErrUnknownContentItem indicates the item is missing from the course or is not gradable.
	ErrUnknownContentItem = &Error{Code: "unknown_content_item", Message: "gradable content item not found in course"}
	// ErrUnknownRubric indicates the rubric does not exist or the item has none attached.
	ErrUnknownRubric = &Error{Code: "unknown_rubric", Message: "rubric not found"}
	// ErrInvalidTransition rejects an event the grade's current state does not accept.
	ErrInvalidTransition = &Error{Code: "invalid_transition", Message: "operation not allowed in the current grade state"}
	// ErrDisputeAlreadyResolved rejects resolving a dispute twice.
	ErrDisputeAlreadyResolved = &Error{Code: "dispute_resolved", Message: "dispute has already been resolved"}
	// ErrResubmissionNotAllowed rejects an attempt beyond the item's limit without a granted resubmission.
	ErrResubmissionNotAllowed = &Error{Code: "resubmission_not_allowed", Message: "no attempts remaining for this item"}
	// ErrSubmissionTypeMismatch rejects answers sent to an assignment or files sent to a quiz.
	ErrSubmissionTypeMismatch = &Error{Code: "submission_type_mismatch", Message: "submission type does not match the content item"}
	// ErrInvalidSubmission rejects an empty or foreign submission payload.
	ErrInvalidSubmission = &Error{Code: "invalid_submission", Message: "submission payload is incomplete"}
	// ErrInvalidRubricSelection rejects selections naming unknown criteria or levels.
	ErrInvalidRubricSelection = &Error{Code: "invalid_rubric_selection", Message: "rubric selection references an unknown criterion or level"}
	// ErrNotCourseInstructor rejects instructor operations from anyone but the course instructor or an admin.
	ErrNotCourseInstructor = &Error{Code: "not_course_instructor", Message: "only the course instructor may perform this operation"}
	// ErrNotGradeOwner rejects students acting on another student's grade.
	ErrNotGradeOwner = &Error{Code: "not_grade_owner", Message: "students may only act on their own grades"}
	// ErrConcurrentModification reports a grade revision that changed under the write.
	ErrConcurrentModification = &Error{Code: "concurrent_modification", Message: "grade was modified concurrently, retry the operation"}
	// ErrOperationConflict rejects an operation id reused for a different kind or target.
	ErrOperationConflict = &Error{Code: "operation_conflict", Message: "operation id was already used for a different request"}
)

// Code returns the machine code of the first grading error in err's chain, or an
// empty string when err carries none.
func Code(err error) string {
	var gradingErr *Error
	if errors.As(err, &gradingErr) {
		return gradingErr.Code
	}
	return ""
}
