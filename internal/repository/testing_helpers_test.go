package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
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

type courseFixture struct {
	course     models.Course
	assignment models.ContentItem
	quiz       models.ContentItem
	students   []models.User
}

func seedCourse(t *testing.T, db *gorm.DB, studentCount int) courseFixture {
	t.Helper()

	instructor := models.User{Name: "Ibu Sari", Email: uuid.NewString() + "@school.test", Role: models.RoleTeacher}
	require.NoError(t, db.Create(&instructor).Error)

	course := models.Course{Title: "Informatika X", InstructorID: instructor.ID, Status: models.CourseStatusPublished}
	require.NoError(t, db.Create(&course).Error)

	module := models.CourseModule{CourseID: course.ID, Title: "Week 1", Position: 1}
	require.NoError(t, db.Create(&module).Error)

	assignment := models.ContentItem{CourseID: course.ID, ModuleID: module.ID, Title: "Essay", Type: grading.ItemAssignment, Position: 2}
	quiz := models.ContentItem{CourseID: course.ID, ModuleID: module.ID, Title: "Quiz", Type: grading.ItemQuiz, Position: 1}
	require.NoError(t, db.Create(&assignment).Error)
	require.NoError(t, db.Create(&quiz).Error)

	fixture := courseFixture{course: course, assignment: assignment, quiz: quiz}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < studentCount; i++ {
		student := models.User{Name: "Student " + string(rune('A'+i)), Email: uuid.NewString() + "@school.test", Role: models.RoleStudent}
		require.NoError(t, db.Create(&student).Error)
		require.NoError(t, db.Create(&models.Enrollment{CourseID: course.ID, StudentID: student.ID, EnrolledAt: base.Add(time.Duration(i) * time.Minute)}).Error)
		fixture.students = append(fixture.students, student)
	}
	return fixture
}
