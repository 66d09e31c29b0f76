package grading

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnknownDisputeRefinesUnknownGrade(t *testing.T) {
	err := fmt.Errorf("resolve: %w", ErrUnknownDispute)
	require.ErrorIs(t, err, ErrUnknownGrade)
	require.Equal(t, "unknown_dispute", Code(err))
	require.NotErrorIs(t, ErrUnknownGrade, ErrUnknownDispute)
}

func TestErrorCodesAreDistinct(t *testing.T) {
	all := []*Error{
		ErrLockedCourse, ErrInvalidScore, ErrDuplicateDispute, ErrUnknownGrade, ErrUnknownDispute, ErrNotEnrolled,
		ErrUnknownCourse, ErrUnknownContentItem, ErrUnknownRubric, ErrInvalidTransition, ErrDisputeAlreadyResolved,
		ErrResubmissionNotAllowed, ErrSubmissionTypeMismatch, ErrInvalidSubmission, ErrInvalidRubricSelection,
		ErrNotCourseInstructor, ErrNotGradeOwner, ErrConcurrentModification, ErrOperationConflict,
	}
	seen := make(map[string]bool, len(all))
	for _, err := range all {
		require.Regexp(t, `^[a-z_]+$`, err.Code)
		require.NotEmpty(t, err.Message, err.Code)
		require.False(t, seen[err.Code], err.Code)
		seen[err.Code] = true
	}
}
