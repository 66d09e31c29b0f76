package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-grading-api/internal/dto"
	"github.com/noah-isme/gema-grading-api/internal/grading"
	"github.com/noah-isme/gema-grading-api/internal/models"
	"github.com/noah-isme/gema-grading-api/internal/repository"
)

// RubricService exposes rubric templates and side-effect free score previews.
type RubricService interface {
	Get(ctx context.Context, rubricID uint) (dto.RubricResponse, error)
	Preview(ctx context.Context, rubricID uint, payload dto.RubricScoreRequest) (dto.RubricScoreResponse, error)
}

type rubricService struct {
	repo   repository.RubricRepository
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewRubricService constructs the rubric service.
func NewRubricService(repo repository.RubricRepository, logger zerolog.Logger) RubricService {
	return &rubricService{
		repo:   repo,
		logger: logger.With().Str("component", "rubric_service").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/gema-grading-api/internal/service/rubric"),
	}
}

func (s *rubricService) load(ctx context.Context, rubricID uint) (models.Rubric, grading.Rubric, error) {
	rubric, err := s.repo.GetByID(ctx, rubricID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Rubric{}, grading.Rubric{}, grading.ErrUnknownRubric
		}
		return models.Rubric{}, grading.Rubric{}, err
	}
	def, err := rubric.Definition()
	if err != nil {
		s.logger.Error().Err(err).Uint("rubric_id", rubricID).Msg("stored rubric is malformed")
		return models.Rubric{}, grading.Rubric{}, err
	}
	return rubric, def, nil
}

func (s *rubricService) Get(ctx context.Context, rubricID uint) (dto.RubricResponse, error) {
	ctx, span := s.tracer.Start(ctx, "rubric.get", trace.WithAttributes(
		attribute.Int64("rubric.id", int64(rubricID)),
	))
	defer span.End()

	rubric, def, err := s.load(ctx, rubricID)
	if err != nil {
		span.RecordError(err)
		return dto.RubricResponse{}, err
	}
	return dto.NewRubricResponse(rubric, def), nil
}

func (s *rubricService) Preview(ctx context.Context, rubricID uint, payload dto.RubricScoreRequest) (dto.RubricScoreResponse, error) {
	ctx, span := s.tracer.Start(ctx, "rubric.preview", trace.WithAttributes(
		attribute.Int64("rubric.id", int64(rubricID)),
		attribute.Int("rubric.selections", len(payload.Selections)),
	))
	defer span.End()

	_, def, err := s.load(ctx, rubricID)
	if err != nil {
		span.RecordError(err)
		return dto.RubricScoreResponse{}, err
	}
	if err := def.ValidateSelections(payload.Selections); err != nil {
		return dto.RubricScoreResponse{}, err
	}

	score := grading.ScoreFromRubric(def, payload.Selections)
	return dto.RubricScoreResponse{
		Points:     score.Points,
		MaxPoints:  score.MaxPoints,
		Percentage: score.Percentage,
		Breakdown:  grading.Breakdown(def, payload.Selections),
	}, nil
}
