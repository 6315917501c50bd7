package evo

import (
	"fmt"
	"math/rand"

	"dasopt/internal/model"
)

// Selector chooses parents from a best-first ranked population for
// replication.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []model.Candidate, eliteCount int) (model.Candidate, error)
}

// EliteSelector picks uniformly from the top elite set.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []model.Candidate, eliteCount int) (model.Candidate, error) {
	if rng == nil {
		return model.Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return model.Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}
	return ranked[rng.Intn(eliteCount)], nil
}

// TournamentSelector samples candidates from the top of the ranking and
// keeps the best scored among them.
type TournamentSelector struct {
	PoolSize       int
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []model.Candidate, eliteCount int) (model.Candidate, error) {
	if rng == nil {
		return model.Candidate{}, fmt.Errorf("random source is required")
	}
	if eliteCount <= 0 || eliteCount > len(ranked) {
		return model.Candidate{}, fmt.Errorf("invalid elite count: %d", eliteCount)
	}

	poolSize := s.PoolSize
	if poolSize <= 0 {
		poolSize = eliteCount * 2
	}
	if poolSize < eliteCount {
		poolSize = eliteCount
	}
	if poolSize > len(ranked) {
		poolSize = len(ranked)
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > poolSize {
		tournamentSize = poolSize
	}

	best := rng.Intn(poolSize)
	for i := 1; i < tournamentSize; i++ {
		challenger := rng.Intn(poolSize)
		if less(&ranked[challenger], &ranked[best]) {
			best = challenger
		}
	}
	return ranked[best], nil
}

// SelectorByName resolves the configured selector. The empty name selects
// tournament selection.
func SelectorByName(name string) (Selector, error) {
	switch name {
	case "", "tournament":
		return TournamentSelector{}, nil
	case "elite":
		return EliteSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown selector %q", name)
	}
}
