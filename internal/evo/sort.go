package evo

import (
	"math"
	"sort"

	"dasopt/internal/model"
)

// dominates applies constrained domination: any feasible candidate dominates
// any infeasible one; between infeasible candidates the lower penalty wins;
// between feasible candidates Pareto dominance on the oriented objectives
// decides.
func dominates(a, b *model.Candidate) bool {
	if a.Feasible != b.Feasible {
		return a.Feasible
	}
	if !a.Feasible {
		return a.Penalty < b.Penalty
	}
	return paretoDominates(a.Objectives, b.Objectives)
}

func paretoDominates(a, b []float64) bool {
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

// nonDominatedSort partitions the population into fronts: front 0 holds the
// non-dominated set, front k the candidates non-dominated once fronts below
// k are removed. It returns candidate indices per front and the front rank
// per candidate.
func nonDominatedSort(pop []model.Candidate) (fronts [][]int, rank []int) {
	n := len(pop)
	if n == 0 {
		return nil, nil
	}
	rank = make([]int, n)
	dominated := make([][]int, n)
	domCount := make([]int, n)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if dominates(&pop[i], &pop[j]) {
				dominated[i] = append(dominated[i], j)
			} else if dominates(&pop[j], &pop[i]) {
				domCount[i]++
			}
		}
	}

	var current []int
	for i := 0; i < n; i++ {
		if domCount[i] == 0 {
			rank[i] = 0
			current = append(current, i)
		}
	}
	fronts = append(fronts, current)

	frontIndex := 0
	for len(current) > 0 {
		var next []int
		for _, idx := range current {
			for _, d := range dominated[idx] {
				domCount[d]--
				if domCount[d] == 0 {
					rank[d] = frontIndex + 1
					next = append(next, d)
				}
			}
		}
		frontIndex++
		if len(next) > 0 {
			fronts = append(fronts, next)
		}
		current = next
	}
	return fronts, rank
}

// crowdingDistance assigns the crowding measure to each member of one front:
// boundary candidates get +Inf, interior ones the sum of normalized
// objective-space gaps between their neighbors.
func crowdingDistance(pop []model.Candidate, front []int) map[int]float64 {
	dist := make(map[int]float64, len(front))
	if len(front) == 0 {
		return dist
	}
	if len(front) <= 2 {
		for _, idx := range front {
			dist[idx] = math.Inf(1)
		}
		return dist
	}
	for _, idx := range front {
		dist[idx] = 0
	}
	order := append([]int(nil), front...)
	for m := 0; m < len(pop[front[0]].Objectives); m++ {
		sort.Slice(order, func(i, j int) bool {
			return pop[order[i]].Objectives[m] < pop[order[j]].Objectives[m]
		})
		dist[order[0]] = math.Inf(1)
		dist[order[len(order)-1]] = math.Inf(1)
		span := pop[order[len(order)-1]].Objectives[m] - pop[order[0]].Objectives[m]
		if span == 0 {
			continue
		}
		for i := 1; i < len(order)-1; i++ {
			dist[order[i]] += (pop[order[i+1]].Objectives[m] - pop[order[i-1]].Objectives[m]) / span
		}
	}
	return dist
}
