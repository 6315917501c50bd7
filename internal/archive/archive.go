// Package archive collects every evaluated candidate of a run, maintains the
// current non-dominated front incrementally, and derives per-generation
// convergence metrics on demand. An Archive is an explicit per-run object
// passed to the optimizer, never shared process state.
package archive

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"dasopt/internal/model"
)

const defaultTolerance = 1e-9

type Archive struct {
	mu      sync.RWMutex
	tol     float64
	records []model.Candidate
	index   map[string]int
	gens    [][]int
	front   []int
}

// New returns an empty archive. Two parameter vectors whose components all
// agree within tol are treated as the same candidate; tol <= 0 selects the
// default of 1e-9.
func New(tol float64) *Archive {
	if tol <= 0 {
		tol = defaultTolerance
	}
	return &Archive{tol: tol, index: make(map[string]int)}
}

func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Record stores the candidate unless an equivalent parameter vector is
// already present. It reports whether the candidate was added.
func (a *Archive) Record(c model.Candidate) bool {
	key := a.paramKey(c.Params)
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.index[key]; ok {
		return false
	}
	idx := len(a.records)
	a.records = append(a.records, c.Clone())
	a.index[key] = idx
	for len(a.gens) <= c.Generation {
		a.gens = append(a.gens, nil)
	}
	a.gens[c.Generation] = append(a.gens[c.Generation], idx)
	a.updateFront(idx)
	return true
}

// Lookup returns the stored candidate for a parameter vector, if any. Used
// by the optimizer to reuse evaluations for revisited points.
func (a *Archive) Lookup(params []float64) (model.Candidate, bool) {
	key := a.paramKey(params)
	a.mu.RLock()
	defer a.mu.RUnlock()
	idx, ok := a.index[key]
	if !ok {
		return model.Candidate{}, false
	}
	return a.records[idx].Clone(), true
}

// CurrentFront returns the non-dominated feasible candidates seen so far,
// sorted by the first objective. Empty until a feasible candidate appears.
func (a *Archive) CurrentFront() []model.Candidate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Candidate, 0, len(a.front))
	for _, idx := range a.front {
		out = append(out, a.records[idx].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Objectives[0] != out[j].Objectives[0] {
			return out[i].Objectives[0] < out[j].Objectives[0]
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Best returns the feasible candidate with the lowest first oriented
// objective. Ties resolve to the lower penalty, then to the candidate
// discovered first.
func (a *Archive) Best() (model.Candidate, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bestIdx := -1
	for i := range a.records {
		c := &a.records[i]
		if !c.Feasible {
			continue
		}
		if bestIdx < 0 || better(c, &a.records[bestIdx]) {
			bestIdx = i
		}
	}
	if bestIdx < 0 {
		return model.Candidate{}, false
	}
	return a.records[bestIdx].Clone(), true
}

func better(c, best *model.Candidate) bool {
	if c.Objectives[0] != best.Objectives[0] {
		return c.Objectives[0] < best.Objectives[0]
	}
	if c.Penalty != best.Penalty {
		return c.Penalty < best.Penalty
	}
	return c.Seq < best.Seq
}

// Generations reports how many generations have recorded candidates.
func (a *Archive) Generations() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.gens)
}

// Generation returns the candidates recorded for one generation index.
func (a *Archive) Generation(g int) []model.Candidate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if g < 0 || g >= len(a.gens) {
		return nil
	}
	out := make([]model.Candidate, 0, len(a.gens[g]))
	for _, idx := range a.gens[g] {
		out = append(out, a.records[idx].Clone())
	}
	return out
}

// All returns every recorded candidate in discovery order.
func (a *Archive) All() []model.Candidate {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]model.Candidate, len(a.records))
	for i := range a.records {
		out[i] = a.records[i].Clone()
	}
	return out
}

// updateFront folds one new record into the non-dominated set. Caller holds
// the write lock.
func (a *Archive) updateFront(idx int) {
	c := &a.records[idx]
	if !c.Feasible {
		return
	}
	for _, fi := range a.front {
		if dominates(a.records[fi].Objectives, c.Objectives) {
			return
		}
	}
	kept := make([]int, 0, len(a.front)+1)
	for _, fi := range a.front {
		if !dominates(c.Objectives, a.records[fi].Objectives) {
			kept = append(kept, fi)
		}
	}
	a.front = append(kept, idx)
}

// dominates reports Pareto dominance in minimize orientation: a is no worse
// in every objective and strictly better in at least one.
func dominates(a, b []float64) bool {
	strict := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			strict = true
		}
	}
	return strict
}

func (a *Archive) paramKey(params []float64) string {
	var sb strings.Builder
	for _, p := range params {
		q := int64(math.Round(p / a.tol))
		sb.WriteString(strconv.FormatInt(q, 36))
		sb.WriteByte(',')
	}
	return sb.String()
}
