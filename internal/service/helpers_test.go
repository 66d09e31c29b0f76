package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []dto.NotificationCreateRequest
}

func (n *recordingNotifier) Notify(ctx context.Context, notification dto.NotificationCreateRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *recordingNotifier) ofType(kind string) []dto.NotificationCreateRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []dto.NotificationCreateRequest
	for _, item := range n.sent {
		if item.Type == kind {
			out = append(out, item)
		}
	}
	return out
}

type gradingFixture struct {
	db         *gorm.DB
	course     models.Course
	instructor ActivityActor
	admin      ActivityActor
	assignment models.ContentItem
	quiz       models.ContentItem
	lesson     models.ContentItem
	students   []models.User
	rubric     models.Rubric

	ledger    GradeLedger
	workflow  GradingWorkflowService
	gradebook GradebookService
	notifier  *recordingNotifier
}

func (f gradingFixture) student(i int) ActivityActor {
	return ActivityActor{ID: f.students[i].ID, Role: models.RoleStudent}
}

func (f gradingFixture) target(item models.ContentItem, i int) GradeTarget {
	return GradeTarget{CourseID: f.course.ID, ContentItemID: item.ID, StudentID: f.students[i].ID}
}

// scenarioRubric has three criteria worth four points each.
func scenarioRubric() grading.Rubric {
	return grading.Rubric{
		Levels: []grading.RubricLevel{
			{ID: "excellent", Name: "Excellent", Points: 4},
			{ID: "good", Name: "Good", Points: 3},
			{ID: "fair", Name: "Fair", Points: 2},
			{ID: "poor", Name: "Poor", Points: 1},
		},
		Criteria: []grading.RubricCriterion{
			{ID: "part1", Description: "Analysis", Points: 4},
			{ID: "part2", Description: "Structure", Points: 4},
			{ID: "part3", Description: "Calculation", Points: 4},
		},
	}
}

func scenarioQuestions() []grading.Question {
	return []grading.Question{
		grading.MultipleChoiceQuestion{ID: "q1", Prompt: "Pick b", Options: []grading.QuestionOption{{ID: "a", Text: "A"}, {ID: "b", Text: "B"}}, CorrectOptionID: "b"},
		grading.TrueFalseQuestion{ID: "q2", Prompt: "Go has goroutines", Answer: true},
		grading.ShortAnswerQuestion{ID: "q3", Prompt: "Language name", AcceptedAnswers: []string{"Go", "Golang"}},
	}
}

func setupGrading(t *testing.T, studentCount int) gradingFixture {
	t.Helper()
	db := setupServiceDB(t)

	instructor := models.User{Name: "Ibu Sari", Email: uuid.NewString() + "@school.test", Role: models.RoleTeacher}
	admin := models.User{Name: "Admin", Email: uuid.NewString() + "@school.test", Role: models.RoleAdmin}
	require.NoError(t, db.Create(&instructor).Error)
	require.NoError(t, db.Create(&admin).Error)

	rubric := models.Rubric{InstructorID: instructor.ID, Title: "Lab report"}
	require.NoError(t, rubric.SetDefinition(scenarioRubric()))
	require.NoError(t, db.Create(&rubric).Error)

	course := models.Course{Title: "Informatika X", InstructorID: instructor.ID, Status: models.CourseStatusPublished}
	require.NoError(t, db.Create(&course).Error)

	module := models.CourseModule{CourseID: course.ID, Title: "Week 1", Position: 1}
	require.NoError(t, db.Create(&module).Error)

	lesson := models.ContentItem{CourseID: course.ID, ModuleID: module.ID, Title: "Reading", Type: grading.ItemLesson, Position: 1}
	quiz := models.ContentItem{CourseID: course.ID, ModuleID: module.ID, Title: "Quiz 1", Type: grading.ItemQuiz, Position: 2}
	require.NoError(t, quiz.SetQuestions(scenarioQuestions()))
	assignment := models.ContentItem{CourseID: course.ID, ModuleID: module.ID, Title: "Lab report", Type: grading.ItemAssignment, Position: 3, RubricID: &rubric.ID}
	for _, item := range []*models.ContentItem{&lesson, &quiz, &assignment} {
		require.NoError(t, db.Create(item).Error)
	}

	fixture := gradingFixture{
		db:         db,
		course:     course,
		instructor: ActivityActor{ID: instructor.ID, Role: models.RoleTeacher},
		admin:      ActivityActor{ID: admin.ID, Role: models.RoleAdmin},
		assignment: assignment,
		quiz:       quiz,
		lesson:     lesson,
		rubric:     rubric,
		notifier:   &recordingNotifier{},
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < studentCount; i++ {
		student := models.User{Name: "Student " + string(rune('A'+i)), Email: uuid.NewString() + "@school.test", Role: models.RoleStudent}
		require.NoError(t, db.Create(&student).Error)
		require.NoError(t, db.Create(&models.Enrollment{CourseID: course.ID, StudentID: student.ID, EnrolledAt: base.Add(time.Duration(i) * time.Minute)}).Error)
		fixture.students = append(fixture.students, student)
	}

	deps := GradingDependencies{
		Ledger:      repository.NewLedgerRepository(db),
		Grades:      repository.NewGradeRepository(db),
		Courses:     repository.NewCourseRepository(db),
		Rubrics:     repository.NewRubricRepository(db),
		Users:       repository.NewUserRepository(db),
		Enrollments: repository.NewEnrollmentRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
		Activity:    NewActivityService(repository.NewActivityLogRepository(db), testLogger()),
		Notifier:    fixture.notifier,
		Validator:   validator.New(validator.WithRequiredStructEnabled()),
		Logger:      testLogger(),
	}
	fixture.ledger = NewGradeLedger(deps)
	fixture.workflow = NewGradingWorkflowService(deps)
	fixture.gradebook = NewGradebookService(deps)
	return fixture
}

func scorePtr(v float64) *float64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func boolPtr(v bool) *bool {
	return &v
}
