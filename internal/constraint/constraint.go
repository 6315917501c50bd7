package constraint

import (
	"sort"

	"dasopt/internal/layout"
)

// Constraint checks one geometric property of a layout. Hard constraints
// reject a layout outright; soft constraints contribute to a penalty total.
// Check returns the violation magnitude, 0 when satisfied; for soft
// constraints the magnitude is the (already weighted) penalty contribution.
type Constraint interface {
	Name() string
	Hard() bool
	// Cost ranks relative check expense so hard constraints can run cheapest
	// first.
	Cost() int
	Check(lay *layout.Layout) float64
}

// Repairer is implemented by constraints that can apply a best-effort
// correction to an offending layout. Repair never mutates its input.
type Repairer interface {
	Repair(lay *layout.Layout) *layout.Layout
}

// FeasibilityResult is the verdict of a constraint pass. For a feasible
// layout Penalty holds the soft-constraint total; for an infeasible one it
// holds the violation magnitude of the failed hard constraint, so infeasible
// candidates can still be ordered by how badly they fail.
type FeasibilityResult struct {
	Feasible  bool
	Reason    string
	Violation float64
	Penalty   float64
}

// Check evaluates hard constraints in ascending cost order and short-circuits
// on the first violation. Soft constraints are always evaluated in full.
func Check(lay *layout.Layout, constraints []Constraint) FeasibilityResult {
	ordered := byCost(constraints)
	for _, c := range ordered {
		if !c.Hard() {
			continue
		}
		if v := c.Check(lay); v > 0 {
			return FeasibilityResult{Reason: c.Name(), Violation: v, Penalty: v}
		}
	}
	res := FeasibilityResult{Feasible: true}
	for _, c := range ordered {
		if c.Hard() {
			continue
		}
		res.Penalty += c.Check(lay)
	}
	return res
}

// Repair runs every repair-capable constraint over the layout in cost order
// and returns the corrected copy. The result may still be infeasible.
func Repair(lay *layout.Layout, constraints []Constraint) *layout.Layout {
	out := lay
	for _, c := range byCost(constraints) {
		if r, ok := c.(Repairer); ok {
			out = r.Repair(out)
		}
	}
	return out
}

func byCost(constraints []Constraint) []Constraint {
	ordered := append([]Constraint(nil), constraints...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Cost() < ordered[j].Cost()
	})
	return ordered
}
