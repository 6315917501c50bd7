package evo

import (
	"context"
	"testing"

	"dasopt/internal/constraint"
	"dasopt/internal/model"
)

func TestNSGA2TradeoffFront(t *testing.T) {
	opt, err := NewNSGA2(MultiConfig{
		Problem:        tradeoffProblem(t),
		PopulationSize: 12,
		Generations:    6,
		Workers:        4,
	})
	if err != nil {
		t.Fatalf("NewNSGA2: %v", err)
	}
	res, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Reason != ReasonGenerations {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonGenerations)
	}
	if len(res.Front) < 2 {
		t.Fatalf("front has %d candidates, conflicting objectives should keep several", len(res.Front))
	}
	for i, c := range res.Front {
		if !c.Feasible {
			t.Fatalf("front candidate %d is infeasible", i)
		}
		if len(c.Objectives) != 2 {
			t.Fatalf("front candidate %d has %d objectives", i, len(c.Objectives))
		}
	}
	for i := 1; i < len(res.Front); i++ {
		if res.Front[i].Objectives[0] < res.Front[i-1].Objectives[0] {
			t.Fatal("front is not sorted by the first objective")
		}
	}
	for i := range res.Front {
		for j := range res.Front {
			if i != j && paretoDominates(res.Front[i].Objectives, res.Front[j].Objectives) {
				t.Fatalf("front candidate %d dominates %d", i, j)
			}
		}
	}

	if len(res.Progress) != res.Generations {
		t.Fatalf("progress has %d entries for %d generations", len(res.Progress), res.Generations)
	}
	// The front only accumulates here, so hypervolume never shrinks and the
	// negated series never rises.
	for i := 1; i < len(res.Progress); i++ {
		if res.Progress[i] > res.Progress[i-1]+1e-12 {
			t.Fatalf("negated hypervolume rose at generation %d: %g -> %g",
				i, res.Progress[i-1], res.Progress[i])
		}
	}
}

func TestNSGA2DeterministicBySeed(t *testing.T) {
	run := func() *MultiResult {
		opt, err := NewNSGA2(MultiConfig{
			Problem:        tradeoffProblem(t),
			PopulationSize: 10,
			Generations:    5,
			Workers:        3,
			Seed:           7,
		})
		if err != nil {
			t.Fatalf("NewNSGA2: %v", err)
		}
		res, err := opt.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return res
	}

	a, b := run(), run()
	if len(a.Front) != len(b.Front) {
		t.Fatalf("front sizes differ: %d vs %d", len(a.Front), len(b.Front))
	}
	for i := range a.Front {
		for k := range a.Front[i].Params {
			if a.Front[i].Params[k] != b.Front[i].Params[k] {
				t.Fatalf("front candidate %d diverges", i)
			}
		}
	}
	for i := range a.Progress {
		if a.Progress[i] != b.Progress[i] {
			t.Fatalf("progress diverges at %d: %g vs %g", i, a.Progress[i], b.Progress[i])
		}
	}
}

func TestNSGA2FrontHonorsHardConstraint(t *testing.T) {
	limit, err := constraint.NewMaxLength(80)
	if err != nil {
		t.Fatalf("NewMaxLength: %v", err)
	}
	opt, err := NewNSGA2(MultiConfig{
		Problem:        tradeoffProblem(t, limit),
		PopulationSize: 12,
		Generations:    6,
	})
	if err != nil {
		t.Fatalf("NewNSGA2: %v", err)
	}
	res, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Front) == 0 {
		t.Fatal("no feasible front found")
	}
	for i, c := range res.Front {
		if !c.Feasible {
			t.Fatalf("front candidate %d is infeasible", i)
		}
		if c.Raw[0] > 80+1e-9 {
			t.Fatalf("front candidate %d has length %g over the limit", i, c.Raw[0])
		}
	}
}

func TestNSGA2StallsOnPlateau(t *testing.T) {
	opt, err := NewNSGA2(MultiConfig{
		Problem:        constTradeoffProblem(t),
		PopulationSize: 8,
		Generations:    40,
		Stall:          NewPlateauStall(StallConfig{Window: 3, MinGenerations: 1}),
	})
	if err != nil {
		t.Fatalf("NewNSGA2: %v", err)
	}
	res, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Reason != ReasonStalled {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonStalled)
	}
	if res.Generations != 3 {
		t.Fatalf("stalled after %d generations, want 3 with window 3", res.Generations)
	}
}

func TestNSGA2EvaluationBudget(t *testing.T) {
	opt, err := NewNSGA2(MultiConfig{
		Problem:        tradeoffProblem(t),
		PopulationSize: 10,
		Generations:    50,
		MaxEvaluations: 30,
	})
	if err != nil {
		t.Fatalf("NewNSGA2: %v", err)
	}
	res, err := opt.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Reason != ReasonEvaluations {
		t.Fatalf("reason = %q, want %q", res.Reason, ReasonEvaluations)
	}
	if res.Evaluations < 30 || res.Evaluations > 40 {
		t.Fatalf("evaluations = %d, want the budget overshot by less than a generation", res.Evaluations)
	}
}

func TestNewNSGA2Validation(t *testing.T) {
	multi := tradeoffProblem(t)
	single := lengthProblem(t)
	cases := []struct {
		name string
		cfg  MultiConfig
	}{
		{"nil problem", MultiConfig{PopulationSize: 10, Generations: 5}},
		{"single-objective problem", MultiConfig{Problem: single, PopulationSize: 10, Generations: 5}},
		{"population too small", MultiConfig{Problem: multi, PopulationSize: 1, Generations: 5}},
		{"no generations", MultiConfig{Problem: multi, PopulationSize: 10}},
		{"mis-sized reference point", MultiConfig{Problem: multi, PopulationSize: 10, Generations: 5,
			RefPoint: []float64{1, 2, 3}}},
		{"mis-sized seed vector", MultiConfig{Problem: multi, PopulationSize: 10, Generations: 5,
			SeedVectors: [][]float64{{0.5}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewNSGA2(tc.cfg); err == nil {
				t.Fatal("config accepted")
			}
		})
	}

	if _, err := NewNSGA2(MultiConfig{Problem: multi, PopulationSize: 10, Generations: 5}); err != nil {
		t.Fatalf("minimal config rejected: %v", err)
	}
}

func TestReduceFillsWholeFrontsFirst(t *testing.T) {
	combined := []model.Candidate{
		{Feasible: true, Objectives: []float64{1, 5}, Seq: 0},
		{Feasible: true, Objectives: []float64{5, 1}, Seq: 1},
		{Feasible: true, Objectives: []float64{3, 3}, Seq: 2},
		{Feasible: true, Objectives: []float64{4, 4}, Seq: 3}, // dominated by (3,3)
		{Feasible: true, Objectives: []float64{6, 6}, Seq: 4}, // dominated by both above
	}

	survivors, ranks, dists := reduce(combined, 4)
	if len(survivors) != 4 {
		t.Fatalf("kept %d candidates, want 4", len(survivors))
	}
	seqs := map[int]int{}
	for i, s := range survivors {
		seqs[s.Seq] = ranks[i]
	}
	for _, seq := range []int{0, 1, 2} {
		if rank, ok := seqs[seq]; !ok || rank != 0 {
			t.Fatalf("candidate %d missing from rank 0: %v", seq, seqs)
		}
	}
	if rank, ok := seqs[3]; !ok || rank != 1 {
		t.Fatalf("partial fill picked the wrong candidate: %v", seqs)
	}
	if len(dists) != len(survivors) {
		t.Fatalf("got %d distances for %d survivors", len(dists), len(survivors))
	}

	// A partial first front keeps the boundary candidates by crowding.
	survivors, ranks, _ = reduce(combined, 2)
	if len(survivors) != 2 {
		t.Fatalf("kept %d candidates, want 2", len(survivors))
	}
	for i, s := range survivors {
		if s.Seq != 0 && s.Seq != 1 {
			t.Fatalf("boundary candidate dropped in favor of seq %d", s.Seq)
		}
		if ranks[i] != 0 {
			t.Fatalf("survivor %d has rank %d", i, ranks[i])
		}
	}
}
