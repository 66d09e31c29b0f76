package grading

import (
	"fmt"
	"strings"
)

// defaultRubricMax stands in for the denominator of a rubric without criteria.
const defaultRubricMax = 100.0

// RubricLevel is a performance level shared by all criteria of a rubric.
type RubricLevel struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Points float64 `json:"points"`
}

// RubricCriterion is one scored dimension of a rubric.
type RubricCriterion struct {
	ID                string            `json:"id"`
	Description       string            `json:"description"`
	LongDescription   string            `json:"long_description,omitempty"`
	Points            float64           `json:"points"`
	LevelDescriptions map[string]string `json:"level_descriptions,omitempty"`
}

// Rubric is a scoring template.
type Rubric struct {
	Levels   []RubricLevel     `json:"levels"`
	Criteria []RubricCriterion `json:"criteria"`
}

// RubricScore is the outcome of evaluating a set of level selections.
type RubricScore struct {
	Points     float64 `json:"points"`
	MaxPoints  float64 `json:"max_points"`
	Percentage int     `json:"percentage"`
}

// CriterionMark is the per-criterion snapshot stored with a grade.
type CriterionMark struct {
	LevelID string  `json:"level_id"`
	Points  float64 `json:"points"`
}

// MaxPoints sums the criterion maxima.
func (r Rubric) MaxPoints() float64 {
	total := 0.0
	for _, criterion := range r.Criteria {
		total += criterion.Points
	}
	return total
}

// Validate checks that a rubric definition is internally consistent.
func (r Rubric) Validate() error {
	levels := make(map[string]struct{}, len(r.Levels))
	for _, level := range r.Levels {
		id := strings.TrimSpace(level.ID)
		if id == "" {
			return fmt.Errorf("rubric level id is required")
		}
		if _, dup := levels[id]; dup {
			return fmt.Errorf("duplicate rubric level %q", id)
		}
		if level.Points < 0 {
			return fmt.Errorf("rubric level %q has negative points", id)
		}
		levels[id] = struct{}{}
	}

	criteria := make(map[string]struct{}, len(r.Criteria))
	for _, criterion := range r.Criteria {
		id := strings.TrimSpace(criterion.ID)
		if id == "" {
			return fmt.Errorf("rubric criterion id is required")
		}
		if _, dup := criteria[id]; dup {
			return fmt.Errorf("duplicate rubric criterion %q", id)
		}
		if criterion.Points < 0 {
			return fmt.Errorf("rubric criterion %q has negative points", id)
		}
		criteria[id] = struct{}{}
	}
	return nil
}

// ValidateSelections rejects selections naming criteria or levels absent from the rubric.
func (r Rubric) ValidateSelections(selections map[string]string) error {
	for criterionID, levelID := range selections {
		if _, ok := r.criterion(criterionID); !ok {
			return fmt.Errorf("%w: criterion %q", ErrInvalidRubricSelection, criterionID)
		}
		if _, ok := r.level(levelID); !ok {
			return fmt.Errorf("%w: level %q", ErrInvalidRubricSelection, levelID)
		}
	}
	return nil
}

// ScoreFromRubric totals the points of the selected levels. Unselected criteria earn
// nothing and a level never earns more than its criterion's maximum.
func ScoreFromRubric(r Rubric, selections map[string]string) RubricScore {
	points := 0.0
	for _, criterion := range r.Criteria {
		points += r.criterionPoints(criterion, selections[criterion.ID])
	}

	maxPoints := defaultRubricMax
	if len(r.Criteria) > 0 {
		maxPoints = r.MaxPoints()
	}

	return RubricScore{
		Points:     points,
		MaxPoints:  maxPoints,
		Percentage: Percentage(points, maxPoints),
	}
}

// Breakdown snapshots the selected level and awarded points for each selected criterion.
func Breakdown(r Rubric, selections map[string]string) map[string]CriterionMark {
	marks := make(map[string]CriterionMark, len(selections))
	for _, criterion := range r.Criteria {
		levelID, ok := selections[criterion.ID]
		if !ok {
			continue
		}
		marks[criterion.ID] = CriterionMark{
			LevelID: levelID,
			Points:  r.criterionPoints(criterion, levelID),
		}
	}
	return marks
}

func (r Rubric) criterionPoints(criterion RubricCriterion, levelID string) float64 {
	if levelID == "" {
		return 0
	}
	level, ok := r.level(levelID)
	if !ok || level.Points <= 0 {
		return 0
	}
	if level.Points > criterion.Points {
		return criterion.Points
	}
	return level.Points
}

func (r Rubric) level(id string) (RubricLevel, bool) {
	for _, level := range r.Levels {
		if level.ID == id {
			return level, true
		}
	}
	return RubricLevel{}, false
}

func (r Rubric) criterion(id string) (RubricCriterion, bool) {
	for _, criterion := range r.Criteria {
		if criterion.ID == id {
			return criterion, true
		}
	}
	return RubricCriterion{}, false
}
