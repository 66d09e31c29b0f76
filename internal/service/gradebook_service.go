package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
)

// GradebookService builds read-only gradebook views from committed ledger state.
type GradebookService interface {
	CourseMatrix(ctx context.Context, actor ActivityActor, courseID uint) (dto.GradebookMatrixResponse, error)
	GradingSummary(ctx context.Context, actor ActivityActor, instructorID uint) (dto.GradingSummaryResponse, error)
	ItemQueue(ctx context.Context, actor ActivityActor, courseID, itemID uint) (dto.ItemQueueResponse, error)
}

type gradebookService struct {
	*gradingCore
	tracer trace.Tracer
}

// NewGradebookService constructs the gradebook aggregator.
func NewGradebookService(deps GradingDependencies) GradebookService {
	return &gradebookService{
		gradingCore: newGradingCore(deps, "gradebook_service"),
		tracer:      otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/gradebook"),
	}
}

type gradeKey struct {
	studentID uint
	itemID    uint
}

func indexGrades(grades []models.Grade) map[gradeKey]models.Grade {
	index := make(map[gradeKey]models.Grade, len(grades))
	for _, grade := range grades {
		index[gradeKey{studentID: grade.StudentID, itemID: grade.ContentItemID}] = grade
	}
	return index
}

// gradableItems lists quiz, assignment and examination items in module order.
func gradableItems(course models.Course) []models.ContentItem {
	items := make([]models.ContentItem, 0)
	for _, module := range course.Modules {
		for _, item := range module.Items {
			if item.Type.IsGradable() {
				items = append(items, item)
			}
		}
	}
	return items
}

func (s *gradebookService) CourseMatrix(ctx context.Context, actor ActivityActor, courseID uint) (dto.GradebookMatrixResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gradebook.matrix", trace.WithAttributes(
		attribute.Int64("gradebook.course_id", int64(courseID)),
	))
	defer span.End()

	course, err := s.deps.Courses.GetWithContent(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GradebookMatrixResponse{}, grading.ErrUnknownCourse
		}
		span.RecordError(err)
		return dto.GradebookMatrixResponse{}, err
	}
	if err := ensureInstructor(actor, course); err != nil {
		return dto.GradebookMatrixResponse{}, err
	}

	enrollments, err := s.deps.Enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.GradebookMatrixResponse{}, err
	}
	grades, err := s.deps.Grades.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.GradebookMatrixResponse{}, err
	}

	items := gradableItems(course)
	refs := make([]dto.ContentItemRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, dto.ContentItemRef{
			ID:       item.ID,
			ModuleID: item.ModuleID,
			Title:    item.Title,
			Type:     string(item.Type),
			RubricID: item.RubricID,
		})
	}

	index := indexGrades(grades)
	rows := make([]dto.GradebookRow, 0, len(enrollments))
	for _, enrollment := range enrollments {
		cells := make(map[uint]*dto.GradeCellResponse, len(items))
		for _, item := range items {
			grade, ok := index[gradeKey{studentID: enrollment.StudentID, itemID: item.ID}]
			if !ok {
				cells[item.ID] = nil
				continue
			}
			cells[item.ID] = &dto.GradeCellResponse{
				GradeID:     grade.ID,
				Score:       grade.Score,
				Status:      string(grade.Status),
				IsDisputed:  grade.IsDisputed,
				CanResubmit: grade.CanResubmit,
			}
		}
		rows = append(rows, dto.GradebookRow{
			StudentID:   enrollment.StudentID,
			StudentName: enrollment.Student.Name,
			Cells:       cells,
		})
	}

	span.SetAttributes(
		attribute.Int("gradebook.items", len(refs)),
		attribute.Int("gradebook.rows", len(rows)),
	)

	return dto.GradebookMatrixResponse{
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		CourseStatus:  string(course.Status),
		GradableItems: refs,
		Rows:          rows,
	}, nil
}

func (s *gradebookService) GradingSummary(ctx context.Context, actor ActivityActor, instructorID uint) (dto.GradingSummaryResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gradebook.summary", trace.WithAttributes(
		attribute.Int64("gradebook.instructor_id", int64(instructorID)),
	))
	defer span.End()

	if !actor.IsAdmin() && (actor.IsStudent() || actor.ID != instructorID) {
		return dto.GradingSummaryResponse{}, grading.ErrNotCourseInstructor
	}

	courses, err := s.deps.Courses.ListByInstructor(ctx, instructorID)
	if err != nil {
		span.RecordError(err)
		return dto.GradingSummaryResponse{}, err
	}

	summaries := make([]dto.CourseSummary, 0, len(courses))
	for _, course := range courses {
		summary, err := s.courseSummary(ctx, course)
		if err != nil {
			span.RecordError(err)
			return dto.GradingSummaryResponse{}, err
		}
		summaries = append(summaries, summary)
	}

	return dto.GradingSummaryResponse{
		InstructorID: instructorID,
		Courses:      summaries,
	}, nil
}

func (s *gradebookService) courseSummary(ctx context.Context, course models.Course) (dto.CourseSummary, error) {
	enrollments, err := s.deps.Enrollments.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.CourseSummary{}, fmt.Errorf("list enrollments for course %d: %w", course.ID, err)
	}
	grades, err := s.deps.Grades.ListByCourse(ctx, course.ID)
	if err != nil {
		return dto.CourseSummary{}, fmt.Errorf("list grades for course %d: %w", course.ID, err)
	}
	submitters, err := s.deps.Submissions.ListSubmitters(ctx, course.ID)
	if err != nil {
		return dto.CourseSummary{}, fmt.Errorf("list submitters for course %d: %w", course.ID, err)
	}

	submitted := make(map[gradeKey]bool, len(submitters))
	for _, submitter := range submitters {
		submitted[gradeKey{studentID: submitter.StudentID, itemID: submitter.ContentItemID}] = true
	}
	index := indexGrades(grades)
	total := len(enrollments)

	items := gradableItems(course)
	out := make([]dto.ItemSummary, 0, len(items))
	for _, item := range items {
		summary := dto.ItemSummary{
			ContentItemID: item.ID,
			Title:         item.Title,
			Type:          string(item.Type),
			TotalEnrolled: total,
		}
		for _, enrollment := range enrollments {
			key := gradeKey{studentID: enrollment.StudentID, itemID: item.ID}
			hasSubmission := submitted[key]
			if hasSubmission {
				summary.SubmittedCount++
			}
			grade, hasGrade := index[key]
			switch queueBucket(hasSubmission, hasGrade, grade) {
			case bucketGraded:
				summary.GradedCount++
			case bucketNeedsGrading:
				summary.NeedsGradingCount++
			default:
				summary.NotSubmittedCount++
			}
		}
		if total > 0 {
			summary.SubmissionRate = float64(summary.SubmittedCount) / float64(total)
		}
		out = append(out, summary)
	}

	return dto.CourseSummary{
		CourseID:      course.ID,
		Title:         course.Title,
		Status:        string(course.Status),
		TotalEnrolled: total,
		Items:         out,
	}, nil
}

type bucket int

const (
	bucketNotSubmitted bucket = iota
	bucketNeedsGrading
	bucketGraded
)

// queueBucket places a student in the triage partition. A graded grade wins even
// without a submission.
func queueBucket(hasSubmission, hasGrade bool, grade models.Grade) bucket {
	switch {
	case hasGrade && grade.Status == models.GradeStatusGraded:
		return bucketGraded
	case hasSubmission:
		return bucketNeedsGrading
	default:
		return bucketNotSubmitted
	}
}

func (s *gradebookService) ItemQueue(ctx context.Context, actor ActivityActor, courseID, itemID uint) (dto.ItemQueueResponse, error) {
	ctx, span := s.tracer.Start(ctx, "gradebook.item_queue", trace.WithAttributes(
		attribute.Int64("gradebook.course_id", int64(courseID)),
		attribute.Int64("gradebook.content_item_id", int64(itemID)),
	))
	defer span.End()

	course, err := s.deps.Courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ItemQueueResponse{}, grading.ErrUnknownCourse
		}
		span.RecordError(err)
		return dto.ItemQueueResponse{}, err
	}
	if err := ensureInstructor(actor, course); err != nil {
		return dto.ItemQueueResponse{}, err
	}
	item, err := s.gradableItem(ctx, courseID, itemID)
	if err != nil {
		return dto.ItemQueueResponse{}, err
	}

	enrollments, err := s.deps.Enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.ItemQueueResponse{}, err
	}
	grades, err := s.deps.Grades.ListByCourse(ctx, courseID)
	if err != nil {
		span.RecordError(err)
		return dto.ItemQueueResponse{}, err
	}
	index := indexGrades(grades)

	response := dto.ItemQueueResponse{
		CourseID:      courseID,
		ContentItemID: item.ID,
		NotSubmitted:  []dto.QueueEntry{},
		NeedsGrading:  []dto.QueueEntry{},
		Graded:        []dto.QueueEntry{},
	}

	for _, enrollment := range enrollments {
		attempts, err := s.deps.Submissions.ListAttempts(ctx, enrollment.StudentID, item.ID)
		if err != nil {
			span.RecordError(err)
			return dto.ItemQueueResponse{}, err
		}

		entry := dto.QueueEntry{
			StudentID:   enrollment.StudentID,
			StudentName: enrollment.Student.Name,
			Attempts:    len(attempts),
		}
		if len(attempts) > 0 {
			last := attempts[len(attempts)-1].SubmittedAt
			entry.LastSubmitted = timePtr(last)
		}
		grade, hasGrade := index[gradeKey{studentID: enrollment.StudentID, itemID: item.ID}]
		if hasGrade {
			entry.GradeID = uintPtr(grade.ID)
			entry.Score = grade.Score
		}

		switch queueBucket(len(attempts) > 0, hasGrade, grade) {
		case bucketGraded:
			response.Graded = append(response.Graded, entry)
		case bucketNeedsGrading:
			response.NeedsGrading = append(response.NeedsGrading, entry)
		default:
			response.NotSubmitted = append(response.NotSubmitted, entry)
		}
	}

	return response, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}
