package ias

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/SCHOLA/internal/optimization"
)

func TestNewValidation(t *testing.T) {
	valid := optimization.OptimizerConfig{
		Objective: sphereObjective,
		Bounds:    [][2]float64{{-5, 5}, {-5, 5}},
	}

	tests := []struct {
		name    string
		mutate  func(*optimization.OptimizerConfig)
		wantErr bool
	}{
		{"valid", func(c *optimization.OptimizerConfig) {}, false},
		{"nil objective", func(c *optimization.OptimizerConfig) { c.Objective = nil }, true},
		{"no bounds", func(c *optimization.OptimizerConfig) { c.Bounds = nil }, true},
		{"degenerate bound", func(c *optimization.OptimizerConfig) { c.Bounds = [][2]float64{{1, 1}, {-5, 5}} }, true},
		{"inverted bound", func(c *optimization.OptimizerConfig) { c.Bounds = [][2]float64{{2, -2}} }, true},
		{"negative population", func(c *optimization.OptimizerConfig) { c.PopulationSize = -1 }, true},
		{"negative iterations", func(c *optimization.OptimizerConfig) { c.MaxIterations = -1 }, true},
		{"elite fraction above one", func(c *optimization.OptimizerConfig) { c.EliteFraction = 1.5 }, true},
		{"negative replacement fraction", func(c *optimization.OptimizerConfig) { c.ReplacementFraction = -0.2 }, true},
		{"unknown pairing", func(c *optimization.OptimizerConfig) { c.Pairing = "round-robin" }, true},
		{"unknown boundary", func(c *optimization.OptimizerConfig) { c.Boundary = "wrap" }, true},
		{"tolerance without window", func(c *optimization.OptimizerConfig) { c.Tolerance = 1e-6 }, true},
		{"tolerance with window", func(c *optimization.OptimizerConfig) { c.Tolerance = 1e-6; c.ToleranceWindow = 5 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			o, err := New(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, optimization.IsKind(err, optimization.KindConfiguration),
					"expected a configuration error, got %v", err)
				assert.Nil(t, o)
			} else {
				require.NoError(t, err)
				require.NotNil(t, o)
			}
		})
	}
}

func TestNewDefaults(t *testing.T) {
	o, err := New(optimization.OptimizerConfig{
		Objective: sphereObjective,
		Bounds:    [][2]float64{{-1, 1}},
	})
	require.NoError(t, err)

	assert.Equal(t, 30, o.cfg.PopulationSize)
	assert.Equal(t, 100, o.cfg.MaxIterations)
	assert.Equal(t, 1.0, o.cfg.SelfLearningRate)
	assert.Equal(t, 1.0, o.cfg.SelfLearningDecay)
	assert.Equal(t, 1.0, o.cfg.InteractionWeight)
	assert.Equal(t, 0.1, o.cfg.EliteFraction)
	assert.Equal(t, 0.1, o.cfg.ReplacementFraction)
	assert.Equal(t, optimization.PairRandom, o.cfg.Pairing)
	assert.Equal(t, optimization.BoundClamp, o.cfg.Boundary)
	assert.Equal(t, optimization.ReplaceRecombine, o.cfg.Replacement)
}

func TestOptimizeSphere(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective:      sphereObjective,
		Bounds:         [][2]float64{{-5, 5}, {-5, 5}},
		PopulationSize: 30,
		MaxIterations:  100,
		RandomSeed:     42,
	}

	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotNil(t, result.Best)

	assert.LessOrEqual(t, result.Best.Fitness, 1e-3, "should find the sphere minimum")
	for d, v := range result.Best.Position {
		assert.InDelta(t, 0.0, v, 0.1, "dimension %d should be near the origin", d)
	}

	assert.Equal(t, 100, result.Iterations)
	assert.Len(t, result.Trace, 100)
	assert.Equal(t, optimization.StatusIterationLimit, result.Status)

	// one trace entry per iteration, never regressing
	for i := 1; i < len(result.Trace); i++ {
		assert.LessOrEqual(t, result.Trace[i], result.Trace[i-1],
			"elitism record regressed at iteration %d", i+1)
	}

	// bounded evaluation budget: init plus at most four phases touching
	// every student each iteration
	budget := cfg.PopulationSize * (1 + 4*cfg.MaxIterations)
	assert.LessOrEqual(t, result.Evaluations, budget)

	// the reported best fitness must match the objective at the reported
	// position exactly
	f, _ := sphereObjective(result.Best.Position)
	assert.Equal(t, f, result.Best.Fitness)
}

func TestOptimizeReproducible(t *testing.T) {
	run := func() *optimization.Result {
		cfg := optimization.OptimizerConfig{
			Objective:      sphereObjective,
			Bounds:         [][2]float64{{-5, 5}, {-5, 5}, {-5, 5}},
			PopulationSize: 20,
			MaxIterations:  40,
			RandomSeed:     1234,
		}
		o, err := New(cfg)
		require.NoError(t, err)
		result, err := o.Optimize(context.Background(), cfg)
		require.NoError(t, err)
		return result
	}

	a, b := run(), run()
	assert.Equal(t, a.Trace, b.Trace, "same seed must give an identical trace")
	assert.Equal(t, a.Best.Position, b.Best.Position)
	assert.Equal(t, a.Best.Fitness, b.Best.Fitness)
	assert.Equal(t, a.Evaluations, b.Evaluations)
}

func TestOptimizeMaximize(t *testing.T) {
	// negated sphere: maximum 0 at the origin
	objective := func(x []float64) (float64, error) {
		f, _ := sphereObjective(x)
		return -f, nil
	}
	cfg := optimization.OptimizerConfig{
		Objective:      objective,
		Bounds:         [][2]float64{{-5, 5}, {-5, 5}},
		PopulationSize: 30,
		MaxIterations:  60,
		Direction:      optimization.Maximize,
		RandomSeed:     7,
	}

	o, err := New(cfg)
	require.NoError(t, err)
	result, err := o.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.0, result.Best.Fitness, 0.1, "should approach the maximum")
	for i := 1; i < len(result.Trace); i++ {
		assert.GreaterOrEqual(t, result.Trace[i], result.Trace[i-1],
			"maximization trace must be non-decreasing")
	}
}

func TestOptimizeSingleStudent(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective:      sphereObjective,
		Bounds:         [][2]float64{{-5, 5}},
		PopulationSize: 1,
		MaxIterations:  20,
		RandomSeed:     3,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.NoError(t, err, "a school of one must still run")
	require.NotNil(t, result.Best)
	assert.Len(t, result.Trace, 20)
}

func TestOptimizeToleranceConvergence(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective:       sphereObjective,
		Bounds:          [][2]float64{{-5, 5}, {-5, 5}},
		PopulationSize:  30,
		MaxIterations:   1000,
		RandomSeed:      42,
		Tolerance:       1e-6,
		ToleranceWindow: 10,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, optimization.StatusConverged, result.Status)
	assert.Less(t, result.Iterations, 1000, "tolerance should stop the run early")
}

func TestOptimizeEvaluationErrorDuringInit(t *testing.T) {
	boom := errors.New("boom")
	cfg := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) { return 0, boom },
		Bounds:    [][2]float64{{-1, 1}},
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, result, "no partial result on a fatal evaluation error")
	assert.True(t, optimization.IsKind(err, optimization.KindEvaluation))

	var optErr *optimization.Error
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, 0, optErr.Iteration, "initialization reports iteration 0")
	assert.NotNil(t, optErr.Position)
	assert.ErrorIs(t, err, boom)
}

func TestOptimizeEvaluationErrorMidRun(t *testing.T) {
	n := 10
	calls := 0
	cfg := optimization.OptimizerConfig{
		// survive initialization, then fail during the first iteration
		Objective: func(x []float64) (float64, error) {
			calls++
			if calls > n {
				return 0, fmt.Errorf("objective broke on call %d", calls)
			}
			return sphereObjective(x)
		},
		Bounds:         [][2]float64{{-1, 1}},
		PopulationSize: n,
		MaxIterations:  50,
		RandomSeed:     9,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.Error(t, err)
	assert.Nil(t, result)

	var optErr *optimization.Error
	require.ErrorAs(t, err, &optErr)
	assert.Equal(t, optimization.KindEvaluation, optErr.Kind)
	assert.Equal(t, 1, optErr.Iteration)
}

func TestOptimizeNaNIsFatal(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) { return math.NaN(), nil },
		Bounds:    [][2]float64{{-1, 1}},
	}
	o, err := New(cfg)
	require.NoError(t, err)

	_, err = o.Optimize(context.Background(), cfg)
	require.Error(t, err)
	assert.True(t, optimization.IsKind(err, optimization.KindEvaluation))
}

func TestOptimizeCancel(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective:      sphereObjective,
		Bounds:         [][2]float64{{-5, 5}},
		PopulationSize: 10,
		MaxIterations:  100000,
		RandomSeed:     5,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := o.Optimize(ctx, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, result)
}

func TestBestAndTraceBeforeRun(t *testing.T) {
	o, err := New(optimization.OptimizerConfig{
		Objective: sphereObjective,
		Bounds:    [][2]float64{{-1, 1}},
	})
	require.NoError(t, err)

	assert.Nil(t, o.Best())
	assert.Empty(t, o.Trace())
}

func TestReflectBoundaryRun(t *testing.T) {
	cfg := optimization.OptimizerConfig{
		Objective:      sphereObjective,
		Bounds:         [][2]float64{{-5, 5}, {-5, 5}},
		PopulationSize: 20,
		MaxIterations:  30,
		Boundary:       optimization.BoundReflect,
		RandomSeed:     11,
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Optimize(context.Background(), cfg)
	require.NoError(t, err)
	for d, v := range result.Best.Position {
		assert.GreaterOrEqual(t, v, cfg.Bounds[d][0])
		assert.LessOrEqual(t, v, cfg.Bounds[d][1])
	}
}
