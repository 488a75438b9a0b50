package ias

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/SCHOLA/internal/optimization"
)

// selfLearning lets each student explore independently: a greedy step
// toward a fresh uniform sample of the search space, scaled by the
// (optionally decaying) self-learning rate. Updates are mutually
// independent, so the phase fans out across workers when configured; one
// deterministic sub-stream per student keeps the parallel path
// bit-identical to the sequential one.
func (o *IASOptimizer) selfLearning(sch *school, iteration int) error {
	n := sch.len()
	rate := o.cfg.SelfLearningRate * math.Pow(o.cfg.SelfLearningDecay, float64(iteration-1))

	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = o.rng.Int63()
	}

	update := func(i int, rng *rand.Rand) error {
		st := sch.students[i]
		target := samplePosition(sch.bounds, rng)
		cand := make([]float64, sch.dims())
		for d := range cand {
			cand[d] = st.position[d] + rate*rng.Float64()*(target[d]-st.position[d])
		}
		repair(cand, sch.bounds, o.cfg.Boundary)
		f, err := o.eval(iteration, cand)
		if err != nil {
			return err
		}
		if f < st.fitness {
			st.position = cand
			st.fitness = f
		}
		return nil
	}

	if o.cfg.Workers < 2 || n < 2 {
		for i := 0; i < n; i++ {
			if err := update(i, rand.New(rand.NewSource(seeds[i]))); err != nil {
				return err
			}
		}
		return nil
	}

	errs := make([]error, n)
	sem := make(chan struct{}, o.cfg.Workers)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			errs[i] = update(i, rand.New(rand.NewSource(seeds[i])))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// interaction pairs students and lets each pair discuss: the partners form
// a collective point weighted by per-student competence draws, then move
// toward the current leader relative to that point. The worse partner moves
// at the full interaction weight, the better at half. All reads come from a
// snapshot taken before any write. No-op for a single student; an odd
// population leaves its last unpaired student out for the iteration.
func (o *IASOptimizer) interaction(sch *school, iteration int) error {
	n := sch.len()
	if n < 2 {
		return nil
	}
	prev := sch.snapshot()
	ranked := sch.ranked()
	leader := prev[ranked[0]].position

	var pairs [][2]int
	switch o.cfg.Pairing {
	case optimization.PairRank:
		for i := 0; i+1 < n; i += 2 {
			pairs = append(pairs, [2]int{ranked[i], ranked[i+1]})
		}
	default:
		perm := o.rng.Perm(n)
		for i := 0; i+1 < n; i += 2 {
			pairs = append(pairs, [2]int{perm[i], perm[i+1]})
		}
	}

	for _, p := range pairs {
		i, j := p[0], p[1]
		ci := float64(1 + o.rng.Intn(2))
		cj := float64(1 + o.rng.Intn(2))

		collective := make([]float64, sch.dims())
		floats.AddScaled(collective, ci/(ci+cj), prev[i].position)
		floats.AddScaled(collective, cj/(ci+cj), prev[j].position)

		wi, wj := o.cfg.InteractionWeight, o.cfg.InteractionWeight
		if prev[i].fitness <= prev[j].fitness {
			wi /= 2
		} else {
			wj /= 2
		}

		if err := o.discussStep(sch, iteration, i, prev[i], leader, collective, ci, wi); err != nil {
			return err
		}
		if err := o.discussStep(sch, iteration, j, prev[j], leader, collective, cj, wj); err != nil {
			return err
		}
	}
	return nil
}

func (o *IASOptimizer) discussStep(sch *school, iteration, idx int, from *student, leader, collective []float64, competence, weight float64) error {
	cand := make([]float64, len(from.position))
	for d := range cand {
		cand[d] = from.position[d] + weight*o.rng.Float64()*(leader[d]-competence*collective[d])
	}
	repair(cand, sch.bounds, o.cfg.Boundary)
	f, err := o.eval(iteration, cand)
	if err != nil {
		return err
	}
	if f < sch.students[idx].fitness {
		sch.students[idx].position = cand
		sch.students[idx].fitness = f
	}
	return nil
}

// criticism has the elite subset push every non-elite student toward the
// leader. The competence draw doubles the student's own term half the time,
// which flips the step into a repulsion and keeps the population from
// collapsing onto the leader early. No-op for a single student.
func (o *IASOptimizer) criticism(sch *school, iteration int) error {
	n := sch.len()
	if n < 2 {
		return nil
	}
	prev := sch.snapshot()
	ranked := sch.ranked()
	leader := prev[ranked[0]].position

	k := int(math.Ceil(o.cfg.EliteFraction * float64(n)))
	if k < 1 {
		k = 1
	}
	if k >= n {
		k = n - 1
	}
	elite := make(map[int]bool, k)
	for _, idx := range ranked[:k] {
		elite[idx] = true
	}

	for idx := 0; idx < n; idx++ {
		if elite[idx] {
			continue
		}
		from := prev[idx]
		ic := float64(1 + o.rng.Intn(2))
		cand := make([]float64, sch.dims())
		for d := range cand {
			cand[d] = from.position[d] + o.rng.Float64()*(leader[d]-ic*from.position[d])
		}
		repair(cand, sch.bounds, o.cfg.Boundary)
		f, err := o.eval(iteration, cand)
		if err != nil {
			return err
		}
		if f < sch.students[idx].fitness {
			sch.students[idx].position = cand
			sch.students[idx].fitness = f
		}
	}
	return nil
}

// competition replaces the weakest fraction of the school outright, either
// with fresh random students or with a binary-mask recombination of the
// leader and a fresh student. The leader itself is never replaced. This is
// the only phase that discards students rather than relocating them.
func (o *IASOptimizer) competition(sch *school, iteration int) error {
	n := sch.len()
	if n < 2 || o.cfg.ReplacementFraction <= 0 {
		return nil
	}
	ranked := sch.ranked()
	m := int(o.cfg.ReplacementFraction * float64(n))
	if m < 1 {
		m = 1
	}
	if m > n-1 {
		m = n - 1
	}
	leader := sch.students[ranked[0]].clone()

	for _, idx := range ranked[n-m:] {
		cand := samplePosition(sch.bounds, o.rng)
		if o.cfg.Replacement != optimization.ReplaceRandom {
			for d := range cand {
				if o.rng.Intn(2) == 1 {
					cand[d] = leader.position[d]
				}
			}
		}
		repair(cand, sch.bounds, o.cfg.Boundary)
		f, err := o.eval(iteration, cand)
		if err != nil {
			return err
		}
		sch.students[idx] = &student{position: cand, fitness: f}
	}
	return nil
}
