package ias

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/SCHOLA/internal/optimization"
)

// student is a candidate solution: a position inside the search space and
// the objective value at that position. Fitness is refreshed whenever the
// position changes; the two are never allowed to drift apart.
type student struct {
	position []float64
	fitness  float64
}

func (s *student) clone() *student {
	return &student{
		position: append([]float64(nil), s.position...),
		fitness:  s.fitness,
	}
}

// school holds the population for one optimization run. Every student's
// position lies within bounds at all times.
type school struct {
	students []*student
	bounds   [][2]float64
}

// newSchool draws n students uniformly at random within bounds and
// evaluates each of them. eval is called with iteration index 0.
func newSchool(n int, bounds [][2]float64, rng *rand.Rand, eval func(iteration int, x []float64) (float64, error)) (*school, error) {
	sch := &school{
		students: make([]*student, n),
		bounds:   bounds,
	}
	for i := 0; i < n; i++ {
		pos := samplePosition(bounds, rng)
		f, err := eval(0, pos)
		if err != nil {
			return nil, err
		}
		sch.students[i] = &student{position: pos, fitness: f}
	}
	return sch, nil
}

func (sch *school) len() int { return len(sch.students) }

func (sch *school) dims() int { return len(sch.bounds) }

// bestIndex returns the index of the student with the lowest fitness.
// Ties break toward the earlier index.
func (sch *school) bestIndex() int {
	best := 0
	for i, st := range sch.students {
		if st.fitness < sch.students[best].fitness {
			best = i
		}
	}
	return best
}

// ranked returns student indices ordered by ascending fitness. The sort is
// stable so equally fit students keep their encounter order.
func (sch *school) ranked() []int {
	idx := make([]int, len(sch.students))
	for i := range idx {
		idx[i] = i
	}
	// insertion sort keeps the ranking stable without allocating closures
	for i := 1; i < len(idx); i++ {
		for j := i; j > 0 && sch.students[idx[j]].fitness < sch.students[idx[j-1]].fitness; j-- {
			idx[j], idx[j-1] = idx[j-1], idx[j]
		}
	}
	return idx
}

// snapshot deep-copies the population so rank-dependent phases read a
// consistent view while the live population is rewritten.
func (sch *school) snapshot() []*student {
	out := make([]*student, len(sch.students))
	for i, st := range sch.students {
		out[i] = st.clone()
	}
	return out
}

// spread returns the largest per-dimension standard deviation of the
// population, used to detect degenerate collapse onto a single point.
func (sch *school) spread() float64 {
	if len(sch.students) < 2 {
		return math.Inf(1)
	}
	col := make([]float64, len(sch.students))
	widest := 0.0
	for d := 0; d < sch.dims(); d++ {
		for i, st := range sch.students {
			col[i] = st.position[d]
		}
		if sd := stat.StdDev(col, nil); sd > widest {
			widest = sd
		}
	}
	return widest
}

// samplePosition draws a position uniformly at random within bounds.
func samplePosition(bounds [][2]float64, rng *rand.Rand) []float64 {
	pos := make([]float64, len(bounds))
	for d, b := range bounds {
		pos[d] = b[0] + rng.Float64()*(b[1]-b[0])
	}
	return pos
}

// repair brings every coordinate of x back inside bounds in place. This is
// the sole feasibility mechanism; it runs after every phase mutation,
// before fitness re-evaluation.
func repair(x []float64, bounds [][2]float64, policy optimization.BoundaryPolicy) {
	for d, b := range bounds {
		lo, hi := b[0], b[1]
		if policy == optimization.BoundReflect {
			if x[d] < lo {
				x[d] = lo + (lo - x[d])
			} else if x[d] > hi {
				x[d] = hi - (x[d] - hi)
			}
			// a reflected coordinate can still overshoot when the step
			// exceeds the range width; fall through to the clamp
		}
		x[d] = math.Max(lo, math.Min(x[d], hi))
	}
}
