// Package benchmarks provides standard test functions for derivative-free
// optimizers, with their canonical box bounds and known optima. See
// http://en.wikipedia.org/wiki/Test_functions_for_optimization.
package benchmarks

import (
	"math"
	"strings"

	"github.com/copyleftdev/SCHOLA/internal/optimization"
)

// Func is a benchmark objective defined for any positive dimension.
type Func interface {
	// Name returns the registry name of the function.
	Name() string

	// Eval computes the function value at v.
	Eval(v []float64) float64

	// Bounds returns the canonical box bounds for the given dimension.
	Bounds(dim int) [][2]float64

	// Optimum returns the global minimum value.
	Optimum() float64
}

// All lists every registered benchmark function.
var All = []Func{
	Sphere{},
	Rosenbrock{},
	Rastrigin{},
	Ackley{},
	Griewank{},
}

// ByName looks up a benchmark function by its (case-insensitive) name.
func ByName(name string) (Func, bool) {
	for _, f := range All {
		if strings.EqualFold(f.Name(), name) {
			return f, true
		}
	}
	return nil, false
}

// Objective adapts a benchmark function to the optimizer's objective
// contract.
func Objective(f Func) optimization.ObjectiveFunction {
	return func(x []float64) (float64, error) {
		return f.Eval(x), nil
	}
}

func uniformBounds(dim int, lo, hi float64) [][2]float64 {
	b := make([][2]float64, dim)
	for i := range b {
		b[i] = [2]float64{lo, hi}
	}
	return b
}

// Sphere is the sum of squares, minimum 0 at the origin.
type Sphere struct{}

func (Sphere) Name() string { return "sphere" }

func (Sphere) Eval(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return sum
}

func (Sphere) Bounds(dim int) [][2]float64 { return uniformBounds(dim, -5.12, 5.12) }

func (Sphere) Optimum() float64 { return 0 }

// Rosenbrock is the banana-valley function, minimum 0 at (1, ..., 1).
type Rosenbrock struct{}

func (Rosenbrock) Name() string { return "rosenbrock" }

func (Rosenbrock) Eval(v []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(v); i++ {
		a := v[i+1] - v[i]*v[i]
		b := 1 - v[i]
		sum += 100*a*a + b*b
	}
	return sum
}

func (Rosenbrock) Bounds(dim int) [][2]float64 { return uniformBounds(dim, -5, 10) }

func (Rosenbrock) Optimum() float64 { return 0 }

// Rastrigin is highly multimodal, minimum 0 at the origin.
type Rastrigin struct{}

func (Rastrigin) Name() string { return "rastrigin" }

func (Rastrigin) Eval(v []float64) float64 {
	sum := 10.0 * float64(len(v))
	for _, x := range v {
		sum += x*x - 10*math.Cos(2*math.Pi*x)
	}
	return sum
}

func (Rastrigin) Bounds(dim int) [][2]float64 { return uniformBounds(dim, -5.12, 5.12) }

func (Rastrigin) Optimum() float64 { return 0 }

// Ackley has a nearly flat outer region and a large central basin, minimum
// 0 at the origin.
type Ackley struct{}

func (Ackley) Name() string { return "ackley" }

func (Ackley) Eval(v []float64) float64 {
	n := float64(len(v))
	sumSq, sumCos := 0.0, 0.0
	for _, x := range v {
		sumSq += x * x
		sumCos += math.Cos(2 * math.Pi * x)
	}
	return -20*math.Exp(-0.2*math.Sqrt(sumSq/n)) - math.Exp(sumCos/n) + 20 + math.E
}

func (Ackley) Bounds(dim int) [][2]float64 { return uniformBounds(dim, -32.768, 32.768) }

func (Ackley) Optimum() float64 { return 0 }

// Griewank has many widespread regularly distributed local minima, minimum
// 0 at the origin.
type Griewank struct{}

func (Griewank) Name() string { return "griewank" }

func (Griewank) Eval(v []float64) float64 {
	sum, prod := 0.0, 1.0
	for i, x := range v {
		sum += x * x / 4000
		prod *= math.Cos(x / math.Sqrt(float64(i+1)))
	}
	return sum - prod + 1
}

func (Griewank) Bounds(dim int) [][2]float64 { return uniformBounds(dim, -600, 600) }

func (Griewank) Optimum() float64 { return 0 }
