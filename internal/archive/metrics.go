package archive

import (
	"iter"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"dasopt/internal/model"
)

// Convergence derives one metric row per generation from the archived
// candidates. The sequence is lazy and restartable: it computes rows as they
// are consumed, from a snapshot taken when Convergence is called, so ranging
// over it twice yields identical rows even while recording continues.
//
// Hypervolume is reported for two-objective runs against ref; a nil ref is
// derived from the snapshot as the per-objective feasible maximum plus a ten
// percent margin. Runs with any other objective count report spacing-based
// spread instead.
func (a *Archive) Convergence(ref []float64) iter.Seq[model.GenerationMetric] {
	a.mu.RLock()
	recs := make([]model.Candidate, len(a.records))
	copy(recs, a.records)
	gens := make([][]int, len(a.gens))
	for g := range a.gens {
		gens[g] = append([]int(nil), a.gens[g]...)
	}
	a.mu.RUnlock()

	dims := objectiveDims(recs)
	if len(ref) == 0 && dims == 2 {
		ref = ReferencePoint(recs)
	}

	return func(yield func(model.GenerationMetric) bool) {
		var front [][]float64
		evals := 0
		bestScore := math.Inf(1)
		haveBest := false
		for g := range gens {
			feasCount := 0
			bestPenalty := math.Inf(1)
			var scores []float64
			for _, idx := range gens[g] {
				c := &recs[idx]
				evals++
				if c.Penalty < bestPenalty {
					bestPenalty = c.Penalty
				}
				if !c.Feasible {
					continue
				}
				feasCount++
				scores = append(scores, c.Objectives[0])
				if c.Objectives[0] < bestScore {
					bestScore = c.Objectives[0]
					haveBest = true
				}
				front = insertNonDominated(front, c.Objectives)
			}
			m := model.GenerationMetric{
				Generation:    g,
				Evaluations:   evals,
				FeasibleCount: feasCount,
				FrontSize:     len(front),
			}
			if haveBest {
				m.BestScore = bestScore
			}
			if len(scores) > 0 {
				m.MeanScore = stat.Mean(scores, nil)
			}
			if !math.IsInf(bestPenalty, 1) {
				m.BestPenalty = bestPenalty
			}
			if dims == 2 && len(ref) == 2 {
				m.Hypervolume = hypervolume2D(front, ref)
			} else {
				m.Spread = spacing(front)
			}
			if !yield(m) {
				return
			}
		}
	}
}

func objectiveDims(recs []model.Candidate) int {
	for i := range recs {
		if len(recs[i].Objectives) > 0 {
			return len(recs[i].Objectives)
		}
	}
	return 0
}

// ReferencePoint derives a hypervolume reference slightly worse than every
// feasible candidate in the set, so all front members contribute area. Nil
// when no feasible two-objective candidate exists.
func ReferencePoint(cands []model.Candidate) []float64 {
	lo := []float64{math.Inf(1), math.Inf(1)}
	hi := []float64{math.Inf(-1), math.Inf(-1)}
	seen := false
	for i := range cands {
		c := &cands[i]
		if !c.Feasible || len(c.Objectives) != 2 {
			continue
		}
		seen = true
		for j := 0; j < 2; j++ {
			lo[j] = math.Min(lo[j], c.Objectives[j])
			hi[j] = math.Max(hi[j], c.Objectives[j])
		}
	}
	if !seen {
		return nil
	}
	ref := make([]float64, 2)
	for j := 0; j < 2; j++ {
		span := hi[j] - lo[j]
		if span <= 0 {
			span = 1
		}
		ref[j] = hi[j] + 0.1*span
	}
	return ref
}

// Hypervolume computes the 2-D dominated area of the feasible front members
// against ref. Zero unless ref has exactly two components.
func Hypervolume(front []model.Candidate, ref []float64) float64 {
	if len(ref) != 2 {
		return 0
	}
	pts := make([][]float64, 0, len(front))
	for i := range front {
		if front[i].Feasible && len(front[i].Objectives) == 2 {
			pts = append(pts, front[i].Objectives)
		}
	}
	return hypervolume2D(pts, ref)
}

// Spread reports the spacing diversity metric over the feasible front
// members.
func Spread(front []model.Candidate) float64 {
	pts := make([][]float64, 0, len(front))
	for i := range front {
		if front[i].Feasible {
			pts = append(pts, front[i].Objectives)
		}
	}
	return spacing(pts)
}

// insertNonDominated folds a point into a running non-dominated set.
func insertNonDominated(front [][]float64, objs []float64) [][]float64 {
	for _, f := range front {
		if dominates(f, objs) {
			return front
		}
	}
	kept := front[:0]
	for _, f := range front {
		if !dominates(objs, f) {
			kept = append(kept, f)
		}
	}
	return append(kept, append([]float64(nil), objs...))
}

// hypervolume2D computes the exact area dominated by the front and bounded
// by ref, in minimize orientation. Points not strictly better than ref in
// both objectives contribute nothing.
func hypervolume2D(front [][]float64, ref []float64) float64 {
	pts := make([][]float64, 0, len(front))
	for _, p := range front {
		if p[0] < ref[0] && p[1] < ref[1] {
			pts = append(pts, p)
		}
	}
	if len(pts) == 0 {
		return 0
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i][0] < pts[j][0] })
	hv := 0.0
	prev := ref[1]
	for _, p := range pts {
		if p[1] >= prev {
			continue
		}
		hv += (ref[0] - p[0]) * (prev - p[1])
		prev = p[1]
	}
	return hv
}

// spacing is Schott's diversity metric: the standard deviation of
// nearest-neighbor distances across the front. Zero for fronts of fewer than
// three members.
func spacing(front [][]float64) float64 {
	if len(front) < 3 {
		return 0
	}
	dists := make([]float64, len(front))
	for i := range front {
		nearest := math.Inf(1)
		for j := range front {
			if i == j {
				continue
			}
			d := 0.0
			for k := range front[i] {
				d += math.Abs(front[i][k] - front[j][k])
			}
			if d < nearest {
				nearest = d
			}
		}
		dists[i] = nearest
	}
	return stat.StdDev(dists, nil)
}
