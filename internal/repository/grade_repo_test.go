package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func TestEnrollmentRepositoryListsInEnrollmentOrder(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedCourse(t, db, 3)
	repo := NewEnrollmentRepository(db)

	enrollments, err := repo.ListByCourse(context.Background(), fixture.course.ID)
	require.NoError(t, err)
	require.Len(t, enrollments, 3)
	for i, enrollment := range enrollments {
		require.Equal(t, fixture.students[i].ID, enrollment.StudentID)
		require.Equal(t, fixture.students[i].Name, enrollment.Student.Name)
	}

	enrolled, err := repo.IsEnrolled(context.Background(), fixture.course.ID, fixture.students[1].ID)
	require.NoError(t, err)
	require.True(t, enrolled)

	enrolled, err = repo.IsEnrolled(context.Background(), fixture.course.ID, 9999)
	require.NoError(t, err)
	require.False(t, enrolled)
}

func TestCourseRepositoryLoadsContentInOrder(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedCourse(t, db, 0)
	repo := NewCourseRepository(db)

	course, err := repo.GetWithContent(context.Background(), fixture.course.ID)
	require.NoError(t, err)
	require.Len(t, course.Modules, 1)
	require.Len(t, course.Modules[0].Items, 2)
	require.Equal(t, grading.ItemQuiz, course.Modules[0].Items[0].Type)

	courses, err := repo.ListByInstructor(context.Background(), fixture.course.InstructorID)
	require.NoError(t, err)
	require.Len(t, courses, 1)

	_, err = repo.GetContentItem(context.Background(), fixture.course.ID+1, fixture.quiz.ID)
	require.Error(t, err)
}

func TestGradeRepositoryReadsHistoryAndDisputes(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedCourse(t, db, 2)
	repo := NewGradeRepository(db)
	student := fixture.students[0]

	score := 82
	grade := models.Grade{StudentID: student.ID, ContentItemID: fixture.assignment.ID, CourseID: fixture.course.ID, Status: models.GradeStatusGraded, Score: &score}
	require.NoError(t, db.Create(&grade).Error)

	now := time.Now()
	old := 75
	require.NoError(t, db.Create(&models.GradeHistoryEntry{GradeID: grade.ID, Timestamp: now.Add(time.Second), ModifierName: "Ibu Sari", OldScore: &old, NewScore: 82}).Error)
	require.NoError(t, db.Create(&models.GradeHistoryEntry{GradeID: grade.ID, Timestamp: now, ModifierName: "Ibu Sari", NewScore: 75}).Error)

	loaded, err := repo.GetByStudentItem(context.Background(), student.ID, fixture.assignment.ID)
	require.NoError(t, err)
	require.Len(t, loaded.History, 2)
	require.Equal(t, 75, loaded.History[0].NewScore, "history is chronological")
	require.Equal(t, 82, loaded.History[1].NewScore)

	require.NoError(t, db.Create(&models.GradeDispute{GradeID: grade.ID, CourseID: fixture.course.ID, StudentID: student.ID, StudentReason: "part 3", Status: models.DisputeStatusAccepted}).Error)
	require.NoError(t, db.Create(&models.GradeDispute{GradeID: grade.ID, CourseID: fixture.course.ID, StudentID: student.ID, StudentReason: "again", Status: models.DisputeStatusPending}).Error)

	pending, err := repo.ListDisputes(context.Background(), DisputeFilter{CourseID: fixture.course.ID, Status: string(models.DisputeStatusPending)})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "again", pending[0].StudentReason)

	all, err := repo.ListDisputes(context.Background(), DisputeFilter{CourseID: fixture.course.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestGradeRepositoryReadsGradeAndHistoryFromOneSnapshot(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedCourse(t, db, 1)
	repo := NewGradeRepository(db)
	ledger := NewLedgerRepository(db)
	student := fixture.students[0]

	first := 75
	grade := models.Grade{StudentID: student.ID, ContentItemID: fixture.assignment.ID, CourseID: fixture.course.ID, Status: models.GradeStatusGraded, Score: &first}
	require.NoError(t, db.Create(&grade).Error)
	require.NoError(t, db.Create(&models.GradeHistoryEntry{GradeID: grade.ID, Timestamp: time.Now(), ModifierName: "Ibu Sari", NewScore: first}).Error)

	// A regrade tries to commit between the grade row read and the history read.
	regraded := make(chan error, 1)
	var once sync.Once
	require.NoError(t, db.Callback().Query().After("gorm:query").Before("gorm:preload").Register("test:regrade_between_reads", func(tx *gorm.DB) {
		if tx.Statement.Table != "grades" {
			return
		}
		once.Do(func() {
			go func() {
				regraded <- ledger.WithinCourse(context.Background(), fixture.course.ID, func(ltx LedgerTx, course models.Course) error {
					current, err := ltx.FindGrade(student.ID, fixture.assignment.ID)
					if err != nil {
						return err
					}
					next := 82
					previous := *current.Score
					current.Score = &next
					if err := ltx.UpdateGrade(current); err != nil {
						return err
					}
					return ltx.AppendHistory(&models.GradeHistoryEntry{GradeID: current.ID, Timestamp: time.Now().Add(time.Second), ModifierName: "Ibu Sari", OldScore: &previous, NewScore: next})
				})
			}()
			select {
			case err := <-regraded:
				regraded <- err
			case <-time.After(150 * time.Millisecond):
			}
		})
	}))

	loaded, err := repo.GetByID(context.Background(), grade.ID)
	require.NoError(t, err)
	require.NoError(t, <-regraded)

	require.NotEmpty(t, loaded.History)
	last := loaded.History[len(loaded.History)-1]
	require.Equal(t, *loaded.Score, last.NewScore, "score and history must describe the same committed state")
	require.Equal(t, 75, *loaded.Score)
	require.Len(t, loaded.History, 1)

	latest, err := repo.GetByID(context.Background(), grade.ID)
	require.NoError(t, err)
	require.Equal(t, 82, *latest.Score)
	require.Len(t, latest.History, 2)
}

func TestSubmissionRepositoryListsDistinctSubmitters(t *testing.T) {
	db := setupTestDB(t)
	fixture := seedCourse(t, db, 2)
	repo := NewSubmissionRepository(db)
	student := fixture.students[0]

	for attempt := 1; attempt <= 2; attempt++ {
		require.NoError(t, db.Create(&models.Submission{
			Type:          grading.SubmissionQuiz,
			StudentID:     student.ID,
			CourseID:      fixture.course.ID,
			ContentItemID: fixture.quiz.ID,
			AttemptNumber: attempt,
			SubmittedAt:   time.Now(),
		}).Error)
	}

	submitters, err := repo.ListSubmitters(context.Background(), fixture.course.ID)
	require.NoError(t, err)
	require.Equal(t, []Submitter{{ContentItemID: fixture.quiz.ID, StudentID: student.ID}}, submitters)

	attempts, err := repo.ListAttempts(context.Background(), student.ID, fixture.quiz.ID)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	require.Equal(t, 2, attempts[1].AttemptNumber)

	attempts[0].AttemptNumber = 5
	require.ErrorIs(t, db.Save(&attempts[0]).Error, models.ErrImmutableRecord)
}
