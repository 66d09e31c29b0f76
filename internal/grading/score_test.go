package grading

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateScore(t *testing.T) {
	score, err := ValidateScore(82)
	require.NoError(t, err)
	require.Equal(t, 82, score)

	for _, value := range []float64{-1, 100.5, 101, 74.5, math.NaN(), math.Inf(1)} {
		_, err := ValidateScore(value)
		require.ErrorIs(t, err, ErrInvalidScore, "value %v", value)
	}
}

func TestPercentage(t *testing.T) {
	require.Equal(t, 75, Percentage(9, 12))
	require.Equal(t, 67, Percentage(2, 3))
	require.Equal(t, 0, Percentage(5, 0))
	require.Equal(t, 100, Percentage(20, 10))
}

func TestCodeUnwrapsGradingErrors(t *testing.T) {
	err := fmt.Errorf("upsert: %w", ErrLockedCourse)
	require.Equal(t, "locked_course", Code(err))
	require.Equal(t, "", Code(fmt.Errorf("plain")))
}
