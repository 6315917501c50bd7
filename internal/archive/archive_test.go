package archive

import (
	"math"
	"testing"

	"dasopt/internal/model"
)

func cand(params, objs []float64, gen, seq int, feasible bool, penalty float64) model.Candidate {
	return model.Candidate{
		Params:     params,
		Objectives: objs,
		Penalty:    penalty,
		Feasible:   feasible,
		Generation: gen,
		Seq:        seq,
	}
}

func TestRecordDeduplicatesWithinTolerance(t *testing.T) {
	a := New(1e-6)
	if !a.Record(cand([]float64{0.5, 0.5}, []float64{1}, 0, 0, true, 0)) {
		t.Fatal("first record rejected")
	}
	if a.Record(cand([]float64{0.5 + 1e-8, 0.5}, []float64{2}, 0, 1, true, 0)) {
		t.Fatal("near-duplicate within tolerance was added")
	}
	if !a.Record(cand([]float64{0.5 + 1e-3, 0.5}, []float64{2}, 0, 2, true, 0)) {
		t.Fatal("distinct vector rejected")
	}
	if a.Len() != 2 {
		t.Fatalf("Len = %d, want 2", a.Len())
	}
}

func TestLookupReturnsIndependentCopy(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{0.1, 0.2}, []float64{3}, 0, 0, true, 0))
	got, ok := a.Lookup([]float64{0.1, 0.2})
	if !ok {
		t.Fatal("Lookup missed a recorded vector")
	}
	got.Objectives[0] = -99
	again, _ := a.Lookup([]float64{0.1, 0.2})
	if again.Objectives[0] != 3 {
		t.Fatalf("archived candidate mutated through Lookup copy: %g", again.Objectives[0])
	}
	if _, ok := a.Lookup([]float64{9, 9}); ok {
		t.Fatal("Lookup found an unrecorded vector")
	}
}

func TestCurrentFrontIsNonDominatedAndFeasibleOnly(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{1, 4}, 0, 0, true, 0))
	a.Record(cand([]float64{2}, []float64{2, 2}, 0, 1, true, 0))
	a.Record(cand([]float64{3}, []float64{3, 3}, 0, 2, true, 0))  // dominated by (2,2)
	a.Record(cand([]float64{4}, []float64{0, 0}, 0, 3, false, 7)) // infeasible, would dominate all
	a.Record(cand([]float64{5}, []float64{4, 1}, 1, 4, true, 0))

	front := a.CurrentFront()
	if len(front) != 3 {
		t.Fatalf("front size = %d, want 3", len(front))
	}
	for _, c := range front {
		if !c.Feasible {
			t.Fatal("infeasible candidate on the front")
		}
	}
	for i, x := range front {
		for j, y := range front {
			if i != j && dominates(x.Objectives, y.Objectives) {
				t.Fatalf("front member %v dominates front member %v", x.Objectives, y.Objectives)
			}
		}
	}
	for i := 1; i < len(front); i++ {
		if front[i].Objectives[0] < front[i-1].Objectives[0] {
			t.Fatal("front not sorted by first objective")
		}
	}
}

func TestFrontDropsNewlyDominatedMembers(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{3, 3}, 0, 0, true, 0))
	a.Record(cand([]float64{2}, []float64{4, 2}, 0, 1, true, 0))
	a.Record(cand([]float64{3}, []float64{1, 1}, 1, 2, true, 0))
	front := a.CurrentFront()
	if len(front) != 1 || front[0].Objectives[0] != 1 {
		t.Fatalf("front = %+v, want only the dominating candidate", front)
	}
}

func TestBestTieBreaks(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{5}, 0, 0, true, 2))
	a.Record(cand([]float64{2}, []float64{5}, 0, 1, true, 1))
	a.Record(cand([]float64{3}, []float64{5}, 0, 2, true, 1))
	best, ok := a.Best()
	if !ok {
		t.Fatal("Best found nothing")
	}
	if best.Seq != 1 {
		t.Fatalf("Best.Seq = %d, want lower penalty then earlier discovery to win", best.Seq)
	}

	empty := New(0)
	empty.Record(cand([]float64{1}, []float64{1}, 0, 0, false, 3))
	if _, ok := empty.Best(); ok {
		t.Fatal("Best returned an infeasible candidate")
	}
}

func TestGenerationViews(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{1}, 0, 0, true, 0))
	a.Record(cand([]float64{2}, []float64{2}, 0, 1, true, 0))
	a.Record(cand([]float64{3}, []float64{3}, 1, 2, true, 0))
	if a.Generations() != 2 {
		t.Fatalf("Generations = %d, want 2", a.Generations())
	}
	if got := len(a.Generation(0)); got != 2 {
		t.Fatalf("generation 0 has %d candidates, want 2", got)
	}
	if got := len(a.Generation(1)); got != 1 {
		t.Fatalf("generation 1 has %d candidates, want 1", got)
	}
	if a.Generation(5) != nil {
		t.Fatal("out-of-range generation returned candidates")
	}
	all := a.All()
	if len(all) != 3 || all[0].Seq != 0 || all[2].Seq != 2 {
		t.Fatalf("All returned %d candidates out of order", len(all))
	}
}

func TestConvergenceRowsAreCumulativeAndRestartable(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{4, 4}, 0, 0, true, 0))
	a.Record(cand([]float64{2}, []float64{9, 9}, 0, 1, false, 5))
	a.Record(cand([]float64{3}, []float64{3, 5}, 1, 2, true, 0))
	a.Record(cand([]float64{4}, []float64{2, 6}, 1, 3, true, 0))

	seq := a.Convergence([]float64{10, 10})
	var first []model.GenerationMetric
	for m := range seq {
		first = append(first, m)
	}
	if len(first) != 2 {
		t.Fatalf("got %d rows, want 2", len(first))
	}
	if first[0].Evaluations != 2 || first[1].Evaluations != 4 {
		t.Fatalf("evaluations = %d,%d, want cumulative 2,4", first[0].Evaluations, first[1].Evaluations)
	}
	if first[0].FeasibleCount != 1 || first[1].FeasibleCount != 2 {
		t.Fatalf("feasible counts = %d,%d, want 1,2", first[0].FeasibleCount, first[1].FeasibleCount)
	}
	if first[1].Hypervolume < first[0].Hypervolume {
		t.Fatalf("hypervolume regressed: %g -> %g", first[0].Hypervolume, first[1].Hypervolume)
	}

	// Recording after the snapshot must not change an in-flight sequence.
	a.Record(cand([]float64{9}, []float64{1, 1}, 2, 4, true, 0))
	var second []model.GenerationMetric
	for m := range seq {
		second = append(second, m)
	}
	if len(second) != len(first) {
		t.Fatalf("restarted sequence has %d rows, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("row %d differs between passes: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestConvergenceStopsWhenConsumerBreaks(t *testing.T) {
	a := New(0)
	for g := 0; g < 5; g++ {
		a.Record(cand([]float64{float64(g)}, []float64{float64(g)}, g, g, true, 0))
	}
	rows := 0
	for range a.Convergence(nil) {
		rows++
		if rows == 2 {
			break
		}
	}
	if rows != 2 {
		t.Fatalf("consumed %d rows, want early stop at 2", rows)
	}
}

func TestHypervolumeExactSweep(t *testing.T) {
	front := [][]float64{{1, 3}, {3, 1}, {2, 2}}
	got := hypervolume2D(front, []float64{4, 4})
	if math.Abs(got-6) > 1e-12 {
		t.Fatalf("hypervolume = %g, want 6", got)
	}
	if hv := hypervolume2D([][]float64{{5, 5}}, []float64{4, 4}); hv != 0 {
		t.Fatalf("point outside reference contributed %g", hv)
	}
}

func TestSpreadUsedForNonBiObjective(t *testing.T) {
	a := New(0)
	a.Record(cand([]float64{1}, []float64{1, 1, 1}, 0, 0, true, 0))
	a.Record(cand([]float64{2}, []float64{2, 0.5, 1}, 0, 1, true, 0))
	a.Record(cand([]float64{3}, []float64{0.5, 2, 1}, 0, 2, true, 0))
	for m := range a.Convergence(nil) {
		if m.Hypervolume != 0 {
			t.Fatalf("three-objective run reported hypervolume %g", m.Hypervolume)
		}
		if m.Spread < 0 {
			t.Fatalf("spread = %g, want >= 0", m.Spread)
		}
	}
}
