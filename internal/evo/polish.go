package evo

import (
	"context"
	"fmt"
	"math/rand"

	"dasopt/internal/archive"
	"dasopt/internal/model"
)

// Polisher hill-climbs a candidate by perturbing one parameter at a time
// with an annealed spread, accepting only improvements. Rounds restart from
// the incumbent; a round without any accepted move ends the climb early.
type Polisher struct {
	// Attempts is the number of climb rounds per polished candidate.
	Attempts int
	// Steps is the perturbed-vector count per round.
	Steps int
	// StepSize scales the perturbation spread in normalized space.
	StepSize float64
	// AnnealingFactor shrinks the spread after every step; 1 disables
	// annealing.
	AnnealingFactor float64
	// MinImprovement is the score decrease required to accept a move.
	MinImprovement float64
}

func NewPolisher(attempts, steps int, stepSize, annealing float64) (*Polisher, error) {
	if attempts <= 0 {
		return nil, fmt.Errorf("attempts must be > 0")
	}
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be > 0")
	}
	if stepSize <= 0 {
		return nil, fmt.Errorf("step size must be > 0")
	}
	if annealing <= 0 || annealing > 1 {
		return nil, fmt.Errorf("annealing factor must be in (0,1]")
	}
	return &Polisher{
		Attempts:        attempts,
		Steps:           steps,
		StepSize:        stepSize,
		AnnealingFactor: annealing,
	}, nil
}

// Improve climbs from start and returns the best candidate found plus the
// number of fresh assessments consumed. Every assessed vector is recorded in
// the archive, so polish results survive into fronts and artifacts.
func (p *Polisher) Improve(ctx context.Context, rng *rand.Rand, prob *Problem, start model.Candidate, gen, seqBase int, arch *archive.Archive) (model.Candidate, int) {
	best := start
	used := 0
	for a := 0; a < p.Attempts; a++ {
		if ctx.Err() != nil {
			break
		}
		base := append([]float64(nil), best.Params...)
		spread := p.StepSize
		improved := false
		for st := 0; st < p.Steps; st++ {
			params := append([]float64(nil), base...)
			idx := rng.Intn(len(params))
			delta := (rng.Float64()*2 - 1) * spread
			params[idx] = clamp01(params[idx] + delta)
			spread *= p.AnnealingFactor

			var cand model.Candidate
			if hit, ok := arch.Lookup(params); ok {
				cand = hit
			} else {
				cand = prob.Assess(ctx, params, gen, seqBase+used)
				arch.Record(cand)
				used++
			}
			if Score(&cand) < Score(&best)-p.MinImprovement {
				best = cand
				base = append([]float64(nil), cand.Params...)
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return best, used
}
