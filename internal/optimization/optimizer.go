package optimization

import (
	"context"
)

// Direction selects whether the objective is minimized or maximized.
type Direction int

const (
	// Minimize searches for the lowest objective value (the default).
	Minimize Direction = iota
	// Maximize searches for the highest objective value.
	Maximize
)

// PairingPolicy selects how students are paired during the interaction phase.
type PairingPolicy string

const (
	// PairRandom pairs each student with a uniformly chosen peer.
	PairRandom PairingPolicy = "random"
	// PairRank pairs students adjacent in the fitness ranking.
	PairRank PairingPolicy = "rank"
)

// BoundaryPolicy selects how out-of-bounds coordinates are repaired.
type BoundaryPolicy string

const (
	// BoundClamp clips each coordinate to the nearest bound.
	BoundClamp BoundaryPolicy = "clamp"
	// BoundReflect mirrors overshooting coordinates back into the range.
	BoundReflect BoundaryPolicy = "reflect"
)

// ReplacementStrategy selects how the competition phase rebuilds the
// weakest students.
type ReplacementStrategy string

const (
	// ReplaceRecombine crosses the current leader with a fresh random
	// student using a per-dimension binary mask.
	ReplaceRecombine ReplacementStrategy = "recombine"
	// ReplaceRandom regenerates replaced students uniformly within bounds.
	ReplaceRandom ReplacementStrategy = "random"
)

// ObjectiveFunction defines the function to be optimized. It must be a pure
// function of its input; the optimizer never calls it with an out-of-bounds
// vector.
type ObjectiveFunction func(x []float64) (float64, error)

// OptimizerConfig contains configuration for an optimization run.
type OptimizerConfig struct {
	// Objective function to optimize.
	Objective ObjectiveFunction

	// Bounds for each dimension [min, max]. The number of bounds defines
	// the search dimensionality.
	Bounds [][2]float64

	// PopulationSize is the number of students in the school.
	PopulationSize int

	// MaxIterations caps the number of iterations.
	MaxIterations int

	// Direction of the search. Defaults to Minimize.
	Direction Direction

	// RandomSeed for reproducibility. Zero means seed from the clock.
	RandomSeed int64

	// SelfLearningRate scales the self-learning step toward a random
	// sample of the search space. Defaults to 1.0.
	SelfLearningRate float64

	// SelfLearningDecay is the per-iteration multiplicative decay of the
	// self-learning rate. 1.0 holds the rate constant (the default).
	SelfLearningDecay float64

	// InteractionWeight scales the discussion step of the worse partner in
	// a pair; the better partner moves at half this weight. Defaults to 1.0.
	InteractionWeight float64

	// EliteFraction is the share of top-ranked students that criticize the
	// rest. Defaults to 0.1.
	EliteFraction float64

	// ReplacementFraction is the share of bottom-ranked students replaced
	// each iteration by the competition phase. Defaults to 0.1.
	ReplacementFraction float64

	// Pairing policy for the interaction phase. Defaults to PairRandom.
	Pairing PairingPolicy

	// Boundary repair policy. Defaults to BoundClamp.
	Boundary BoundaryPolicy

	// Replacement strategy for the competition phase. Defaults to
	// ReplaceRecombine.
	Replacement ReplacementStrategy

	// Tolerance enables early stopping: the run converges when the best
	// fitness improves by less than Tolerance over ToleranceWindow
	// iterations. Zero disables the check.
	Tolerance float64

	// ToleranceWindow is the sliding window, in iterations, for the
	// tolerance check.
	ToleranceWindow int

	// Workers bounds the fan-out of the self-learning phase. Values below
	// 2 keep the phase sequential. Results are identical either way.
	Workers int
}

// Solution represents a point in the search space together with its
// objective value.
type Solution struct {
	Position []float64
	Fitness  float64
}

// Status names the terminal state of a finished run.
type Status string

const (
	// StatusConverged means the tolerance check fired before the
	// iteration cap.
	StatusConverged Status = "converged"
	// StatusIterationLimit means the run used its full iteration budget.
	StatusIterationLimit Status = "iteration_limit"
)

// Result contains the outcome of an optimization run.
type Result struct {
	// Best is the best solution observed across all iterations.
	Best *Solution

	// Trace holds the best fitness seen up to and including each
	// iteration, one entry per completed iteration.
	Trace []float64

	// Iterations is the number of iterations actually performed.
	Iterations int

	// Evaluations counts calls to the objective function.
	Evaluations int

	// Status records why the run stopped.
	Status Status
}

// Optimizer defines the interface for optimization algorithms.
type Optimizer interface {
	// Optimize runs the optimization process to completion.
	Optimize(ctx context.Context, config OptimizerConfig) (*Result, error)

	// Best returns the best solution found so far. Safe to call while a
	// run is in progress.
	Best() *Solution

	// Trace returns the convergence trace accumulated so far.
	Trace() []float64

	// Stop cancels a running optimization.
	Stop()
}
