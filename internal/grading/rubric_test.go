package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fourPointRubric() Rubric {
	return Rubric{
		Levels: []RubricLevel{
			{ID: "beginning", Name: "Beginning", Points: 1},
			{ID: "developing", Name: "Developing", Points: 2},
			{ID: "proficient", Name: "Proficient", Points: 3},
			{ID: "exemplary", Name: "Exemplary", Points: 4},
		},
		Criteria: []RubricCriterion{
			{ID: "structure", Description: "Structure", Points: 4},
			{ID: "accuracy", Description: "Accuracy", Points: 4},
			{ID: "style", Description: "Style", Points: 4},
		},
	}
}

func TestScoreFromRubricSelectedLevels(t *testing.T) {
	score := ScoreFromRubric(fourPointRubric(), map[string]string{
		"structure": "proficient",
		"accuracy":  "exemplary",
		"style":     "developing",
	})

	require.Equal(t, 9.0, score.Points)
	require.Equal(t, 12.0, score.MaxPoints)
	require.Equal(t, 75, score.Percentage)
}

func TestScoreFromRubricUnselectedCriterionEarnsNothing(t *testing.T) {
	score := ScoreFromRubric(fourPointRubric(), map[string]string{"structure": "exemplary"})

	require.Equal(t, 4.0, score.Points)
	require.Equal(t, 33, score.Percentage)
}

func TestScoreFromRubricWithoutCriteria(t *testing.T) {
	score := ScoreFromRubric(Rubric{Levels: fourPointRubric().Levels}, map[string]string{"structure": "exemplary"})

	require.Equal(t, 0.0, score.Points)
	require.Equal(t, 100.0, score.MaxPoints)
	require.Equal(t, 0, score.Percentage)
}

func TestScoreFromRubricZeroPointCriteria(t *testing.T) {
	rubric := Rubric{
		Levels:   []RubricLevel{{ID: "done", Points: 2}},
		Criteria: []RubricCriterion{{ID: "a", Points: 0}, {ID: "b", Points: 0}},
	}

	score := ScoreFromRubric(rubric, map[string]string{"a": "done", "b": "done"})
	require.Equal(t, 0.0, score.MaxPoints)
	require.Equal(t, 0, score.Percentage)
}

func TestScoreFromRubricClampsToCriterionMax(t *testing.T) {
	rubric := Rubric{
		Levels:   []RubricLevel{{ID: "high", Points: 10}},
		Criteria: []RubricCriterion{{ID: "a", Points: 4}, {ID: "b", Points: 6}},
	}

	score := ScoreFromRubric(rubric, map[string]string{"a": "high", "b": "high"})
	require.Equal(t, 10.0, score.Points)
	require.Equal(t, 100, score.Percentage)
}

func TestScoreFromRubricUnknownLevelEarnsNothing(t *testing.T) {
	score := ScoreFromRubric(fourPointRubric(), map[string]string{"structure": "legendary"})
	require.Equal(t, 0.0, score.Points)
}

func TestBreakdownSnapshotsSelections(t *testing.T) {
	marks := Breakdown(fourPointRubric(), map[string]string{
		"structure": "proficient",
		"style":     "developing",
	})

	require.Len(t, marks, 2)
	require.Equal(t, CriterionMark{LevelID: "proficient", Points: 3}, marks["structure"])
	require.Equal(t, CriterionMark{LevelID: "developing", Points: 2}, marks["style"])
}

func TestValidateSelections(t *testing.T) {
	rubric := fourPointRubric()

	require.NoError(t, rubric.ValidateSelections(map[string]string{"structure": "exemplary"}))
	require.ErrorIs(t, rubric.ValidateSelections(map[string]string{"unknown": "exemplary"}), ErrInvalidRubricSelection)
	require.ErrorIs(t, rubric.ValidateSelections(map[string]string{"structure": "unknown"}), ErrInvalidRubricSelection)
}

func TestRubricValidate(t *testing.T) {
	require.NoError(t, fourPointRubric().Validate())

	dupLevel := fourPointRubric()
	dupLevel.Levels = append(dupLevel.Levels, RubricLevel{ID: "exemplary", Points: 5})
	require.Error(t, dupLevel.Validate())

	negative := fourPointRubric()
	negative.Criteria[0].Points = -1
	require.Error(t, negative.Validate())

	blank := fourPointRubric()
	blank.Criteria[1].ID = " "
	require.Error(t, blank.Validate())
}
