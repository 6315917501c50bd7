package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"dasopt/internal/archive"
	"dasopt/internal/model"
)

// Termination reasons reported by both optimizers.
const (
	ReasonGenerations = "generation_budget"
	ReasonEvaluations = "evaluation_budget"
	ReasonStalled     = "stalled"
	ReasonDeadline    = "deadline"
	ReasonGoal        = "goal_reached"
	ReasonStopped     = "stopped"
)

// DefaultSeed replaces a zero seed so zero-valued configs stay reproducible.
const DefaultSeed = 42

type SingleConfig struct {
	Problem        *Problem
	PopulationSize int
	// EliteCount is how many top candidates survive unchanged; 0 selects 1.
	EliteCount  int
	Generations int
	// MaxEvaluations bounds fresh assessments across the run; 0 = unbounded.
	MaxEvaluations int
	Workers        int
	Seed           int64
	Selector       Selector
	Variation      Variation
	Stall          StallStrategy
	// Goal ends the run once the best oriented score reaches it.
	Goal *float64
	// Deadline bounds the whole run in wall-clock time; 0 = none.
	Deadline time.Duration
	// SeedVectors are injected into the initial population, ahead of random
	// initialization. Used to pin baseline layouts into the search.
	SeedVectors [][]float64
	// Polish hill-climbs the generation best through the same pipeline.
	Polish *Polisher
	// Stop requests a cooperative stop, honored at the next generation
	// boundary.
	Stop    <-chan struct{}
	Archive *archive.Archive
}

type SingleResult struct {
	Best        model.Candidate
	Reason      string
	Generations int
	Evaluations int
	// BestHistory holds the best-so-far oriented score after each
	// generation.
	BestHistory []float64
	Archive     *archive.Archive
}

// Single is the single-objective optimizer: seeded uniform initialization,
// parallel evaluation, elitist replacement, tournament parent selection, SBX
// crossover and polynomial mutation.
type Single struct {
	cfg SingleConfig
	rng *rand.Rand
}

func NewSingle(cfg SingleConfig) (*Single, error) {
	if cfg.Problem == nil {
		return nil, fmt.Errorf("problem is required")
	}
	if n := cfg.Problem.Objectives(); n != 1 {
		return nil, fmt.Errorf("single-objective optimizer needs exactly 1 objective, got %d", n)
	}
	if cfg.PopulationSize <= 1 {
		return nil, fmt.Errorf("population size must be > 1")
	}
	if cfg.EliteCount <= 0 {
		cfg.EliteCount = 1
	}
	if cfg.EliteCount > cfg.PopulationSize {
		return nil, fmt.Errorf("elite count must be in [1, population size]")
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("generations must be > 0")
	}
	if cfg.MaxEvaluations < 0 {
		return nil, fmt.Errorf("max evaluations must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = DefaultSeed
	}
	if cfg.Selector == nil {
		cfg.Selector = TournamentSelector{}
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
	return &Single{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

func (s *Single) Run(ctx context.Context) (*SingleResult, error) {
	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	log := s.cfg.Problem.Logger()
	arch := s.cfg.Archive
	population := s.initialPopulation()
	res := &SingleResult{Archive: arch}
	bestSoFar := math.Inf(1)
	evals := 0
	seq := 0

	for gen := 0; gen < s.cfg.Generations; gen++ {
		if reason, halted := stopRequested(ctx, s.cfg.Stop); halted {
			res.Reason = reason
			break
		}

		ranked, fresh := s.cfg.Problem.evaluateGeneration(ctx, population, gen, seq, s.cfg.Workers, arch)
		seq += len(population)
		evals += fresh
		res.Generations = gen + 1
		sort.SliceStable(ranked, func(i, j int) bool { return less(&ranked[i], &ranked[j]) })

		if s.cfg.Polish != nil && ranked[0].Feasible {
			improved, used := s.cfg.Polish.Improve(ctx, s.rng, s.cfg.Problem, ranked[0], gen, seq, arch)
			seq += used
			evals += used
			if less(&improved, &ranked[0]) {
				ranked[0] = improved
			}
		}

		if sc := Score(&ranked[0]); sc < bestSoFar {
			bestSoFar = sc
		}
		res.BestHistory = append(res.BestHistory, bestSoFar)
		log.Debug("generation complete",
			"generation", gen, "best", bestSoFar, "evaluations", evals, "feasible", countFeasible(ranked))

		if s.cfg.Goal != nil && ranked[0].Feasible && bestSoFar <= *s.cfg.Goal {
			res.Reason = ReasonGoal
			break
		}
		if s.cfg.MaxEvaluations > 0 && evals >= s.cfg.MaxEvaluations {
			res.Reason = ReasonEvaluations
			break
		}
		if s.cfg.Stall != nil {
			if stalled, why := s.cfg.Stall.Check(res.BestHistory); stalled {
				log.Info("run stalled", "generation", gen, "detail", why)
				res.Reason = ReasonStalled
				break
			}
		}
		if gen == s.cfg.Generations-1 {
			break
		}
		population = s.breed(ranked)
	}

	if res.Reason == "" {
		res.Reason = ReasonGenerations
	}
	res.Evaluations = evals
	res.Best = bestRecorded(arch)
	return res, nil
}

func (s *Single) initialPopulation() [][]float64 {
	dim := s.cfg.Problem.Dimension()
	population := make([][]float64, 0, s.cfg.PopulationSize)
	for _, sv := range s.cfg.SeedVectors {
		if len(population) == s.cfg.PopulationSize {
			break
		}
		population = append(population, append([]float64(nil), sv...))
	}
	for len(population) < s.cfg.PopulationSize {
		population = append(population, randomVector(s.rng, dim))
	}
	return population
}

// breed produces the next generation: elites pass through unchanged, the
// rest come from tournament parents crossed and mutated. Selection and
// variation run in the sequential phase only, so worker scheduling never
// perturbs the random sequence.
func (s *Single) breed(ranked []model.Candidate) [][]float64 {
	next := make([][]float64, 0, s.cfg.PopulationSize)
	for i := 0; i < s.cfg.EliteCount; i++ {
		next = append(next, append([]float64(nil), ranked[i].Params...))
	}
	for len(next) < s.cfg.PopulationSize {
		p1, err := s.cfg.Selector.PickParent(s.rng, ranked, s.cfg.EliteCount)
		if err != nil {
			p1 = ranked[0]
		}
		p2, err := s.cfg.Selector.PickParent(s.rng, ranked, s.cfg.EliteCount)
		if err != nil {
			p2 = ranked[0]
		}
		c1, c2 := sbxCrossover(s.rng, p1.Params, p2.Params, s.cfg.Variation.CrossoverRate)
		polynomialMutation(s.rng, c1, s.cfg.Variation.MutationRate)
		next = append(next, c1)
		if len(next) < s.cfg.PopulationSize {
			polynomialMutation(s.rng, c2, s.cfg.Variation.MutationRate)
			next = append(next, c2)
		}
	}
	return next
}

// stopRequested checks the cooperative stop sources without blocking.
func stopRequested(ctx context.Context, stop <-chan struct{}) (string, bool) {
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ReasonDeadline, true
		}
		return ReasonStopped, true
	default:
	}
	select {
	case <-stop:
		return ReasonStopped, true
	default:
	}
	return "", false
}

// bestRecorded returns the best archived candidate: the feasible winner when
// one exists, otherwise the least-violating infeasible candidate.
func bestRecorded(arch *archive.Archive) model.Candidate {
	if best, ok := arch.Best(); ok {
		return best
	}
	var best model.Candidate
	found := false
	for _, c := range arch.All() {
		if !found || less(&c, &best) {
			best = c
			found = true
		}
	}
	return best
}

func countFeasible(cands []model.Candidate) int {
	n := 0
	for i := range cands {
		if cands[i].Feasible {
			n++
		}
	}
	return n
}
