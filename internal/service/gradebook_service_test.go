package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestScenarioDGradingSummary(t *testing.T) {
	f := setupGrading(t, 3)
	ctx := context.Background()

	_, err := f.workflow.RecordSubmission(ctx, f.student(0), f.target(f.assignment, 0), dto.SubmissionRequest{TextContent: "done"})
	require.NoError(t, err)
	_, err = f.workflow.RecordSubmission(ctx, f.student(1), f.target(f.assignment, 1), dto.SubmissionRequest{TextContent: "done too"})
	require.NoError(t, err)
	_, err = f.ledger.UpsertScore(ctx, f.instructor, f.target(f.assignment, 0), dto.UpsertScoreRequest{Score: scorePtr(90)})
	require.NoError(t, err)

	summary, err := f.gradebook.GradingSummary(ctx, f.instructor, f.instructor.ID)
	require.NoError(t, err)
	require.Len(t, summary.Courses, 1)

	course := summary.Courses[0]
	require.Equal(t, 3, course.TotalEnrolled)
	require.Len(t, course.Items, 2)

	var assignment dto.ItemSummary
	for _, item := range course.Items {
		if item.ContentItemID == f.assignment.ID {
			assignment = item
		}
	}
	require.Equal(t, 3, assignment.TotalEnrolled)
	require.Equal(t, 2, assignment.SubmittedCount)
	require.Equal(t, 1, assignment.GradedCount)
	require.Equal(t, 1, assignment.NeedsGradingCount)
	require.Equal(t, 1, assignment.NotSubmittedCount)
	require.InDelta(t, 2.0/3.0, assignment.SubmissionRate, 1e-9)

	queue, err := f.gradebook.ItemQueue(ctx, f.instructor, f.course.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Len(t, queue.NotSubmitted, 1)
	require.Equal(t, f.students[2].ID, queue.NotSubmitted[0].StudentID)
	require.Zero(t, queue.NotSubmitted[0].Attempts)
	require.Len(t, queue.NeedsGrading, 1)
	require.Equal(t, f.students[1].ID, queue.NeedsGrading[0].StudentID)
	require.NotNil(t, queue.NeedsGrading[0].LastSubmitted)
	require.Len(t, queue.Graded, 1)
	require.Equal(t, f.students[0].ID, queue.Graded[0].StudentID)
	require.Equal(t, 90, *queue.Graded[0].Score)
}

func TestGradeWithoutSubmissionCountsAsGraded(t *testing.T) {
	f := setupGrading(t, 1)
	ctx := context.Background()

	_, err := f.ledger.UpsertScore(ctx, f.instructor, f.target(f.assignment, 0), dto.UpsertScoreRequest{Score: scorePtr(80)})
	require.NoError(t, err)

	summary, err := f.gradebook.GradingSummary(ctx, f.instructor, f.instructor.ID)
	require.NoError(t, err)
	require.Len(t, summary.Courses, 1)

	var assignment dto.ItemSummary
	for _, item := range summary.Courses[0].Items {
		if item.ContentItemID == f.assignment.ID {
			assignment = item
		}
	}
	require.Equal(t, 1, assignment.TotalEnrolled)
	require.Equal(t, 1, assignment.GradedCount)
	require.Zero(t, assignment.SubmittedCount)
	require.Zero(t, assignment.NeedsGradingCount)
	require.Zero(t, assignment.NotSubmittedCount)
	require.Zero(t, assignment.SubmissionRate)

	queue, err := f.gradebook.ItemQueue(ctx, f.instructor, f.course.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Empty(t, queue.NotSubmitted)
	require.Empty(t, queue.NeedsGrading)
	require.Len(t, queue.Graded, 1)
	require.Equal(t, f.students[0].ID, queue.Graded[0].StudentID)
	require.Zero(t, queue.Graded[0].Attempts)
	require.Nil(t, queue.Graded[0].LastSubmitted)
	require.Equal(t, 80, *queue.Graded[0].Score)
}

func TestGradingSummaryAccessAndEmptyRoster(t *testing.T) {
	f := setupGrading(t, 0)
	ctx := context.Background()

	summary, err := f.gradebook.GradingSummary(ctx, f.admin, f.instructor.ID)
	require.NoError(t, err)
	require.Len(t, summary.Courses, 1)
	for _, item := range summary.Courses[0].Items {
		require.Zero(t, item.TotalEnrolled)
		require.Zero(t, item.SubmissionRate)
	}

	_, err = f.gradebook.GradingSummary(ctx, ActivityActor{ID: f.instructor.ID + 1, Role: models.RoleTeacher}, f.instructor.ID)
	require.ErrorIs(t, err, grading.ErrNotCourseInstructor)

	_, err = f.gradebook.GradingSummary(ctx, ActivityActor{ID: f.instructor.ID, Role: models.RoleStudent}, f.instructor.ID)
	require.ErrorIs(t, err, grading.ErrNotCourseInstructor)
}

func TestCourseMatrixOrdersItemsAndRows(t *testing.T) {
	f := setupGrading(t, 2)
	ctx := context.Background()

	_, err := f.ledger.UpsertScore(ctx, f.instructor, f.target(f.assignment, 1), dto.UpsertScoreRequest{Score: scorePtr(70)})
	require.NoError(t, err)

	matrix, err := f.gradebook.CourseMatrix(ctx, f.instructor, f.course.ID)
	require.NoError(t, err)
	require.Equal(t, string(models.CourseStatusPublished), matrix.CourseStatus)

	require.Len(t, matrix.GradableItems, 2)
	require.Equal(t, f.quiz.ID, matrix.GradableItems[0].ID)
	require.Equal(t, f.assignment.ID, matrix.GradableItems[1].ID)
	require.Equal(t, &f.rubric.ID, matrix.GradableItems[1].RubricID)

	require.Len(t, matrix.Rows, 2)
	require.Equal(t, f.students[0].ID, matrix.Rows[0].StudentID)
	require.Equal(t, "Student A", matrix.Rows[0].StudentName)
	require.Nil(t, matrix.Rows[0].Cells[f.assignment.ID])
	require.Contains(t, matrix.Rows[0].Cells, f.quiz.ID)

	cell := matrix.Rows[1].Cells[f.assignment.ID]
	require.NotNil(t, cell)
	require.Equal(t, 70, *cell.Score)
	require.Equal(t, string(models.GradeStatusGraded), cell.Status)

	_, err = f.gradebook.CourseMatrix(ctx, f.student(0), f.course.ID)
	require.ErrorIs(t, err, grading.ErrNotCourseInstructor)

	_, err = f.gradebook.CourseMatrix(ctx, f.admin, 31337)
	require.ErrorIs(t, err, grading.ErrUnknownCourse)

	_, err = f.gradebook.ItemQueue(ctx, f.instructor, f.course.ID, f.lesson.ID)
	require.ErrorIs(t, err, grading.ErrUnknownContentItem)
}
