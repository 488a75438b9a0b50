// Package ias implements the Interactive Autodidactic School algorithm, a
// population-based metaheuristic that improves a school of candidate
// solutions through four phases per iteration: self-learning, interactive
// discussion, criticism and competition.
package ias

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/copyleftdev/SCHOLA/internal/optimization"
)

// collapseEps is the population spread below which the run is considered
// degenerate (every student on the same point). Degeneracy is a warning,
// not an error; the run still completes.
const collapseEps = 1e-12

var errNonNumeric = errors.New("objective returned a non-numeric value")

// Option configures an IASOptimizer beyond its OptimizerConfig.
type Option func(*IASOptimizer)

// WithLogger attaches a structured logger for per-iteration progress and
// degeneracy warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(o *IASOptimizer) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEvaluationHook registers a callback invoked once per objective
// evaluation. The hook must be safe for concurrent use; the self-learning
// phase may call it from several goroutines.
func WithEvaluationHook(hook func()) Option {
	return func(o *IASOptimizer) {
		o.hook = hook
	}
}

// IASOptimizer implements optimization.Optimizer using the Interactive
// Autodidactic School algorithm.
type IASOptimizer struct {
	cfg    optimization.OptimizerConfig
	rng    *rand.Rand
	logger *zap.Logger
	hook   func()

	evaluations atomic.Int64
	cancel      context.CancelFunc

	mu             sync.RWMutex
	bestX          []float64
	bestF          float64 // internal (minimization) view
	trace          []float64
	warnedCollapse bool
}

// New creates an IASOptimizer. Zero-valued config fields fall back to
// defaults; negative or otherwise invalid fields return a configuration
// error before any evaluation happens.
func New(cfg optimization.OptimizerConfig, opts ...Option) (*IASOptimizer, error) {
	if err := validate(cfg); err != nil {
		return nil, err
	}
	cfg = withDefaults(cfg)

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	o := &IASOptimizer{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Optimize runs the school to completion. Iterations are numbered from 1;
// evaluation errors during population initialization report iteration 0.
func (o *IASOptimizer) Optimize(ctx context.Context, cfg optimization.OptimizerConfig) (*optimization.Result, error) {
	if cfg.Objective != nil {
		if err := validate(cfg); err != nil {
			return nil, err
		}
		o.cfg = withDefaults(cfg)
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	sch, err := newSchool(o.cfg.PopulationSize, o.cfg.Bounds, o.rng, o.eval)
	if err != nil {
		return nil, err
	}
	o.recordBest(sch)

	// internal best per iteration, in the minimization view, for the
	// tolerance check
	internal := make([]float64, 0, o.cfg.MaxIterations)
	status := optimization.StatusIterationLimit
	iterations := 0

	for i := 1; i <= o.cfg.MaxIterations; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := o.selfLearning(sch, i); err != nil {
			return nil, err
		}
		if err := o.interaction(sch, i); err != nil {
			return nil, err
		}
		if err := o.criticism(sch, i); err != nil {
			return nil, err
		}
		if err := o.competition(sch, i); err != nil {
			return nil, err
		}

		best := o.recordBest(sch)
		internal = append(internal, best)
		o.appendTrace(o.reported(best))
		iterations = i

		if !o.warnedCollapse && sch.spread() < collapseEps {
			o.warnedCollapse = true
			o.logger.Warn("population collapsed to a single point",
				zap.Int("iteration", i),
				zap.Float64("best_fitness", o.reported(best)))
		}
		o.logger.Debug("iteration complete",
			zap.Int("iteration", i),
			zap.Float64("best_fitness", o.reported(best)))

		if w := o.cfg.ToleranceWindow; w > 0 && o.cfg.Tolerance > 0 && len(internal) > w {
			if internal[len(internal)-1-w]-internal[len(internal)-1] < o.cfg.Tolerance {
				status = optimization.StatusConverged
				break
			}
		}
	}

	return &optimization.Result{
		Best:        o.Best(),
		Trace:       o.Trace(),
		Iterations:  iterations,
		Evaluations: int(o.evaluations.Load()),
		Status:      status,
	}, nil
}

// Best returns the best solution found so far, or nil before the first
// evaluation. Safe to call while a run is in progress.
func (o *IASOptimizer) Best() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.bestX == nil {
		return nil
	}
	return &optimization.Solution{
		Position: append([]float64(nil), o.bestX...),
		Fitness:  o.reported(o.bestF),
	}
}

// Trace returns a copy of the convergence trace accumulated so far.
func (o *IASOptimizer) Trace() []float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]float64(nil), o.trace...)
}

// Evaluations returns the number of objective evaluations so far.
func (o *IASOptimizer) Evaluations() int {
	return int(o.evaluations.Load())
}

// Stop cancels a running optimization.
func (o *IASOptimizer) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
}

// eval calls the objective once, counts the call and normalizes the value
// to the internal minimization view. A failed or NaN evaluation is fatal.
func (o *IASOptimizer) eval(iteration int, x []float64) (float64, error) {
	v, err := o.cfg.Objective(x)
	if err != nil {
		return 0, optimization.NewEvaluationError(iteration, x, err)
	}
	if math.IsNaN(v) {
		return 0, optimization.NewEvaluationError(iteration, x, errNonNumeric)
	}
	o.evaluations.Add(1)
	if o.hook != nil {
		o.hook()
	}
	if o.cfg.Direction == optimization.Maximize {
		v = -v
	}
	return v, nil
}

// recordBest updates the elitism record from the school's current best
// student and returns the record's internal fitness. The record only ever
// improves.
func (o *IASOptimizer) recordBest(sch *school) float64 {
	st := sch.students[sch.bestIndex()]
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bestX == nil || st.fitness < o.bestF {
		o.bestF = st.fitness
		o.bestX = append([]float64(nil), st.position...)
	}
	return o.bestF
}

func (o *IASOptimizer) appendTrace(v float64) {
	o.mu.Lock()
	o.trace = append(o.trace, v)
	o.mu.Unlock()
}

// reported converts an internal fitness back to the caller's view.
func (o *IASOptimizer) reported(f float64) float64 {
	if o.cfg.Direction == optimization.Maximize {
		return -f
	}
	return f
}

// withDefaults fills zero-valued config fields. Zero means "unset";
// negative values are rejected by validate before this runs.
func withDefaults(cfg optimization.OptimizerConfig) optimization.OptimizerConfig {
	if cfg.PopulationSize == 0 {
		cfg.PopulationSize = 30
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100
	}
	if cfg.SelfLearningRate == 0 {
		cfg.SelfLearningRate = 1.0
	}
	if cfg.SelfLearningDecay == 0 {
		cfg.SelfLearningDecay = 1.0
	}
	if cfg.InteractionWeight == 0 {
		cfg.InteractionWeight = 1.0
	}
	if cfg.EliteFraction == 0 {
		cfg.EliteFraction = 0.1
	}
	if cfg.ReplacementFraction == 0 {
		cfg.ReplacementFraction = 0.1
	}
	if cfg.Pairing == "" {
		cfg.Pairing = optimization.PairRandom
	}
	if cfg.Boundary == "" {
		cfg.Boundary = optimization.BoundClamp
	}
	if cfg.Replacement == "" {
		cfg.Replacement = optimization.ReplaceRecombine
	}
	return cfg
}

// validate checks the configuration before the run begins. Every failure
// carries the configuration error kind.
func validate(cfg optimization.OptimizerConfig) error {
	if cfg.Objective == nil {
		return optimization.NewConfigError("objective function is required")
	}
	if len(cfg.Bounds) == 0 {
		return optimization.NewConfigError("dimension must be positive")
	}
	for d, b := range cfg.Bounds {
		if !(b[0] < b[1]) {
			return optimization.NewConfigError("bounds[%d]: lower bound %v must be strictly below upper bound %v", d, b[0], b[1])
		}
	}
	if cfg.PopulationSize < 0 {
		return optimization.NewConfigError("population size must be positive, got %d", cfg.PopulationSize)
	}
	if cfg.MaxIterations < 0 {
		return optimization.NewConfigError("max iterations must be positive, got %d", cfg.MaxIterations)
	}
	if cfg.SelfLearningRate < 0 || cfg.SelfLearningDecay < 0 || cfg.InteractionWeight < 0 {
		return optimization.NewConfigError("phase coefficients must be non-negative")
	}
	if cfg.EliteFraction < 0 || cfg.EliteFraction > 1 {
		return optimization.NewConfigError("elite fraction must be in [0, 1], got %v", cfg.EliteFraction)
	}
	if cfg.ReplacementFraction < 0 || cfg.ReplacementFraction > 1 {
		return optimization.NewConfigError("replacement fraction must be in [0, 1], got %v", cfg.ReplacementFraction)
	}
	if cfg.Tolerance < 0 {
		return optimization.NewConfigError("tolerance must be non-negative, got %v", cfg.Tolerance)
	}
	if cfg.Tolerance > 0 && cfg.ToleranceWindow <= 0 {
		return optimization.NewConfigError("tolerance requires a positive tolerance window")
	}
	switch cfg.Pairing {
	case "", optimization.PairRandom, optimization.PairRank:
	default:
		return optimization.NewConfigError("unknown pairing policy %q", cfg.Pairing)
	}
	switch cfg.Boundary {
	case "", optimization.BoundClamp, optimization.BoundReflect:
	default:
		return optimization.NewConfigError("unknown boundary policy %q", cfg.Boundary)
	}
	switch cfg.Replacement {
	case "", optimization.ReplaceRecombine, optimization.ReplaceRandom:
	default:
		return optimization.NewConfigError("unknown replacement strategy %q", cfg.Replacement)
	}
	return nil
}
