package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("population size must be positive, got %d", -3)
	require.NotNil(t, err)

	assert.Equal(t, KindConfiguration, err.Kind)
	assert.Equal(t, -1, err.Iteration)
	assert.Contains(t, err.Error(), "configuration")
	assert.Contains(t, err.Error(), "-3")
	assert.NotContains(t, err.Error(), "iteration", "configuration errors carry no iteration index")
}

func TestEvaluationError(t *testing.T) {
	cause := errors.New("division by zero")
	pos := []float64{1.5, -2.5}
	err := NewEvaluationError(7, pos, cause)

	assert.Equal(t, KindEvaluation, err.Kind)
	assert.Equal(t, 7, err.Iteration)
	assert.Equal(t, pos, err.Position)
	assert.ErrorIs(t, err, cause)

	msg := err.Error()
	assert.Contains(t, msg, "iteration 7")
	assert.Contains(t, msg, "1.5")
	assert.Contains(t, msg, "division by zero")

	// the error keeps its own copy of the position
	pos[0] = 99
	assert.Equal(t, 1.5, err.Position[0])
}

func TestIsKind(t *testing.T) {
	cfgErr := NewConfigError("bad bounds")
	evalErr := NewEvaluationError(1, []float64{0}, errors.New("boom"))

	assert.True(t, IsKind(cfgErr, KindConfiguration))
	assert.False(t, IsKind(cfgErr, KindEvaluation))
	assert.True(t, IsKind(evalErr, KindEvaluation))

	wrapped := fmt.Errorf("running: %w", evalErr)
	assert.True(t, IsKind(wrapped, KindEvaluation), "kind check should see through wrapping")

	assert.False(t, IsKind(errors.New("plain"), KindConfiguration))
	assert.False(t, IsKind(nil, KindConfiguration))
}
