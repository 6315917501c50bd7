package evo

import (
	"math"
	"testing"

	"dasopt/internal/model"
)

func TestConstrainedDomination(t *testing.T) {
	feasible := model.Candidate{Feasible: true, Objectives: []float64{9, 9}}
	better := model.Candidate{Feasible: true, Objectives: []float64{1, 1}}
	mild := model.Candidate{Penalty: 2}
	severe := model.Candidate{Penalty: 8}

	if !dominates(&feasible, &mild) {
		t.Fatal("feasible candidate does not dominate a violator")
	}
	if dominates(&mild, &feasible) {
		t.Fatal("violator dominates a feasible candidate")
	}
	if !dominates(&mild, &severe) {
		t.Fatal("smaller violation does not dominate a larger one")
	}
	if dominates(&severe, &mild) || dominates(&mild, &mild) {
		t.Fatal("violation ordering inverted")
	}
	if !dominates(&better, &feasible) {
		t.Fatal("Pareto-better candidate does not dominate")
	}
	if dominates(&feasible, &better) {
		t.Fatal("Pareto-worse candidate dominates")
	}
}

func TestParetoDominates(t *testing.T) {
	cases := []struct {
		a, b []float64
		want bool
	}{
		{[]float64{1, 1}, []float64{2, 2}, true},
		{[]float64{1, 2}, []float64{1, 3}, true},
		{[]float64{1, 3}, []float64{2, 2}, false},
		{[]float64{2, 2}, []float64{2, 2}, false},
		{[]float64{3, 3}, []float64{1, 1}, false},
	}
	for i, tc := range cases {
		if got := paretoDominates(tc.a, tc.b); got != tc.want {
			t.Fatalf("case %d: paretoDominates(%v,%v) = %t, want %t", i, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestNonDominatedSort(t *testing.T) {
	pop := []model.Candidate{
		{Feasible: true, Objectives: []float64{1, 5}}, // 0: front 0
		{Feasible: true, Objectives: []float64{5, 1}}, // 1: front 0
		{Feasible: true, Objectives: []float64{3, 3}}, // 2: front 0
		{Feasible: true, Objectives: []float64{4, 4}}, // 3: front 1
		{Penalty: 2},                                  // 4: behind all feasible
		{Penalty: 7},                                  // 5: behind everything
	}

	fronts, rank := nonDominatedSort(pop)
	if len(fronts) != 4 {
		t.Fatalf("got %d fronts, want 4", len(fronts))
	}
	wantRank := []int{0, 0, 0, 1, 2, 3}
	for i, want := range wantRank {
		if rank[i] != want {
			t.Fatalf("candidate %d has rank %d, want %d", i, rank[i], want)
		}
	}
	if len(fronts[0]) != 3 || len(fronts[1]) != 1 || len(fronts[2]) != 1 || len(fronts[3]) != 1 {
		t.Fatalf("front sizes = %d/%d/%d/%d", len(fronts[0]), len(fronts[1]), len(fronts[2]), len(fronts[3]))
	}
}

func TestNonDominatedSortEmpty(t *testing.T) {
	fronts, rank := nonDominatedSort(nil)
	if fronts != nil || rank != nil {
		t.Fatal("empty population should produce no fronts")
	}
}

func TestCrowdingDistance(t *testing.T) {
	pop := []model.Candidate{
		{Feasible: true, Objectives: []float64{1, 4}},
		{Feasible: true, Objectives: []float64{2, 3}},
		{Feasible: true, Objectives: []float64{3, 2}},
		{Feasible: true, Objectives: []float64{4, 1}},
	}
	front := []int{0, 1, 2, 3}

	dist := crowdingDistance(pop, front)
	if !math.IsInf(dist[0], 1) || !math.IsInf(dist[3], 1) {
		t.Fatalf("boundary distances = %g, %g, want +Inf", dist[0], dist[3])
	}
	want := 4.0 / 3.0
	if math.Abs(dist[1]-want) > 1e-12 || math.Abs(dist[2]-want) > 1e-12 {
		t.Fatalf("interior distances = %g, %g, want %g", dist[1], dist[2], want)
	}
}

func TestCrowdingDistanceSmallFront(t *testing.T) {
	pop := []model.Candidate{
		{Feasible: true, Objectives: []float64{1, 4}},
		{Feasible: true, Objectives: []float64{2, 3}},
	}
	dist := crowdingDistance(pop, []int{0, 1})
	if !math.IsInf(dist[0], 1) || !math.IsInf(dist[1], 1) {
		t.Fatal("fronts of two should be all boundary")
	}
	if got := crowdingDistance(pop, nil); len(got) != 0 {
		t.Fatalf("empty front produced %d distances", len(got))
	}
}

func TestCrowdingDistanceDegenerateSpan(t *testing.T) {
	pop := []model.Candidate{
		{Feasible: true, Objectives: []float64{2, 1}},
		{Feasible: true, Objectives: []float64{2, 2}},
		{Feasible: true, Objectives: []float64{2, 3}},
	}
	dist := crowdingDistance(pop, []int{0, 1, 2})
	if !math.IsInf(dist[0], 1) || !math.IsInf(dist[2], 1) {
		t.Fatal("objective-1 boundaries missing")
	}
	if math.IsNaN(dist[1]) {
		t.Fatal("constant objective produced NaN crowding")
	}
}

func TestCrowdingDistanceInfeasibleFront(t *testing.T) {
	pop := []model.Candidate{
		{Penalty: 1},
		{Penalty: 2},
		{Penalty: 3},
	}
	dist := crowdingDistance(pop, []int{0, 1, 2})
	for idx, d := range dist {
		if math.IsNaN(d) {
			t.Fatalf("candidate %d has NaN crowding", idx)
		}
	}
}
