package evo

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"dasopt/internal/archive"
	"dasopt/internal/model"
)

type MultiConfig struct {
	Problem        *Problem
	PopulationSize int
	Generations    int
	// MaxEvaluations bounds fresh assessments across the run; 0 = unbounded.
	MaxEvaluations int
	Workers        int
	Seed           int64
	Variation      Variation
	// Stall watches the progress series: negated hypervolume for
	// two-objective runs, front spacing otherwise (plateau detection suits
	// the latter).
	Stall StallStrategy
	// RefPoint fixes the hypervolume reference for two-objective runs; nil
	// derives one from the first feasible front and freezes it.
	RefPoint []float64
	Deadline time.Duration
	// SeedVectors are injected into the initial population.
	SeedVectors [][]float64
	Stop        <-chan struct{}
	Archive     *archive.Archive
}

type MultiResult struct {
	// Front is the non-dominated feasible set over the whole run. Empty when
	// no feasible candidate was ever seen.
	Front       []model.Candidate
	Reason      string
	Generations int
	Evaluations int
	// Progress holds the per-generation stall series in minimize
	// orientation.
	Progress []float64
	Archive  *archive.Archive
}

// NSGA2 is the elitist multi-objective optimizer: parents and offspring are
// merged each generation, ranked by constrained non-domination, and the top
// candidates by (rank, crowding distance) survive. A non-dominated candidate
// is therefore never lost to a dominated one.
type NSGA2 struct {
	cfg MultiConfig
	rng *rand.Rand
}

func NewNSGA2(cfg MultiConfig) (*NSGA2, error) {
	if cfg.Problem == nil {
		return nil, fmt.Errorf("problem is required")
	}
	if n := cfg.Problem.Objectives(); n < 2 {
		return nil, fmt.Errorf("multi-objective optimizer needs >= 2 objectives, got %d", n)
	}
	if cfg.PopulationSize <= 1 {
		return nil, fmt.Errorf("population size must be > 1")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.MaxEvaluations < 0 {
		return nil, fmt.Errorf("max evaluations must be >= 0")
	}
	if len(cfg.RefPoint) != 0 && len(cfg.RefPoint) != cfg.Problem.Objectives() {
		return nil, fmt.Errorf("reference point has %d components, objectives have %d",
			len(cfg.RefPoint), cfg.Problem.Objectives())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	cfg.Variation = cfg.Variation.withDefaults(cfg.Problem.Dimension())
	if cfg.Archive == nil {
		cfg.Archive = archive.New(0)
	}
	dim := cfg.Problem.Dimension()
	for i, sv := range cfg.SeedVectors {
		if len(sv) != dim {
			return nil, fmt.Errorf("seed vector %d has %d parameters, encoding needs %d", i, len(sv), dim)
		}
	}
	return &NSGA2{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

func (o *NSGA2) Run(ctx context.Context) (*MultiResult, error) {
	if o.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.Deadline)
		defer cancel()
	}

	log := o.cfg.Problem.Logger()
	arch := o.cfg.Archive
	dim := o.cfg.Problem.Dimension()
	twoObjectives := o.cfg.Problem.Objectives() == 2
	ref := append([]float64(nil), o.cfg.RefPoint...)

	population := make([][]float64, 0, o.cfg.PopulationSize)
	for _, sv := range o.cfg.SeedVectors {
		if len(population) == o.cfg.PopulationSize {
			break
		}
		population = append(population, append([]float64(nil), sv...))
	}
	for len(population) < o.cfg.PopulationSize {
		population = append(population, randomVector(o.rng, dim))
	}

	res := &MultiResult{Archive: arch}
	var parents []model.Candidate
	var parentRanks []int
	var parentDists []float64
	evals := 0
	seq := 0

	for gen := 0; gen < o.cfg.Generations; gen++ {
		if reason, halted := stopRequested(ctx, o.cfg.Stop); halted {
			res.Reason = reason
			break
		}

		offspring, fresh := o.cfg.Problem.evaluateGeneration(ctx, population, gen, seq, o.cfg.Workers, arch)
		seq += len(population)
		evals += fresh
		res.Generations = gen + 1

		combined := append(append([]model.Candidate(nil), parents...), offspring...)
		parents, parentRanks, parentDists = reduce(combined, o.cfg.PopulationSize)

		front := arch.CurrentFront()
		if twoObjectives && len(ref) == 0 && len(front) > 0 {
			ref = archive.ReferencePoint(front)
		}
		var progress float64
		if twoObjectives {
			progress = -archive.Hypervolume(front, ref)
		} else {
			progress = archive.Spread(front)
		}
		res.Progress = append(res.Progress, progress)
		log.Debug("generation complete",
			"generation", gen, "front_size", len(front), "evaluations", evals, "progress", progress)

		if o.cfg.MaxEvaluations > 0 && evals >= o.cfg.MaxEvaluations {
			res.Reason = ReasonEvaluations
			break
		}
		if o.cfg.Stall != nil {
			if stalled, why := o.cfg.Stall.Check(res.Progress); stalled {
				log.Info("run stalled", "generation", gen, "detail", why)
				res.Reason = ReasonStalled
				break
			}
		}
		if gen == o.cfg.Generations-1 {
			break
		}
		population = o.breed(parents, parentRanks, parentDists)
	}

	if res.Reason == "" {
		res.Reason = ReasonGenerations
	}
	res.Evaluations = evals
	res.Front = arch.CurrentFront()
	return res, nil
}

// reduce keeps the top n of the merged population by (front rank ascending,
// crowding distance descending), filling whole fronts first and the last
// partial front in crowding order.
func reduce(combined []model.Candidate, n int) ([]model.Candidate, []int, []float64) {
	fronts, _ := nonDominatedSort(combined)
	survivors := make([]model.Candidate, 0, n)
	ranks := make([]int, 0, n)
	dists := make([]float64, 0, n)
	for fi, front := range fronts {
		dist := crowdingDistance(combined, front)
		if len(survivors)+len(front) <= n {
			for _, idx := range front {
				survivors = append(survivors, combined[idx])
				ranks = append(ranks, fi)
				dists = append(dists, dist[idx])
			}
			if len(survivors) == n {
				break
			}
			continue
		}
		order := append([]int(nil), front...)
		sort.SliceStable(order, func(i, j int) bool { return dist[order[i]] > dist[order[j]] })
		for _, idx := range order {
			if len(survivors) == n {
				break
			}
			survivors = append(survivors, combined[idx])
			ranks = append(ranks, fi)
			dists = append(dists, dist[idx])
		}
		break
	}
	return survivors, ranks, dists
}

// breed produces offspring via crowded binary tournaments, SBX crossover and
// polynomial mutation.
func (o *NSGA2) breed(parents []model.Candidate, ranks []int, dists []float64) [][]float64 {
	next := make([][]float64, 0, o.cfg.PopulationSize)
	for len(next) < o.cfg.PopulationSize {
		p1 := parents[o.crowdedTournament(ranks, dists)]
		p2 := parents[o.crowdedTournament(ranks, dists)]
		c1, c2 := sbxCrossover(o.rng, p1.Params, p2.Params, o.cfg.Variation.CrossoverRate)
		polynomialMutation(o.rng, c1, o.cfg.Variation.MutationRate)
		next = append(next, c1)
		if len(next) < o.cfg.PopulationSize {
			polynomialMutation(o.rng, c2, o.cfg.Variation.MutationRate)
			next = append(next, c2)
		}
	}
	return next
}

// crowdedTournament prefers the lower front rank, then the larger crowding
// distance.
func (o *NSGA2) crowdedTournament(ranks []int, dists []float64) int {
	best := o.rng.Intn(len(ranks))
	challenger := o.rng.Intn(len(ranks))
	if ranks[challenger] < ranks[best] ||
		(ranks[challenger] == ranks[best] && dists[challenger] > dists[best]) {
		best = challenger
	}
	return best
}
