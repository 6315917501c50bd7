package evo

import (
	"math"
	"math/rand"
)

// Variation holds the SBX crossover and polynomial mutation rates. Both
// operators act in the normalized parameter space and clamp results to the
// unit cube.
type Variation struct {
	CrossoverRate float64
	MutationRate  float64
}

func (v Variation) withDefaults(dim int) Variation {
	if v.CrossoverRate == 0 {
		v.CrossoverRate = 0.9
	}
	if v.MutationRate == 0 && dim > 0 {
		v.MutationRate = 1 / float64(dim)
	}
	return v
}

func randomVector(rng *rand.Rand, dim int) []float64 {
	vec := make([]float64, dim)
	for i := range vec {
		vec[i] = rng.Float64()
	}
	return vec
}

// sbxCrossover produces two children by simulated binary crossover. With
// probability 1-rate the parents pass through unchanged.
func sbxCrossover(rng *rand.Rand, p1, p2 []float64, rate float64) ([]float64, []float64) {
	c1 := append([]float64(nil), p1...)
	c2 := append([]float64(nil), p2...)
	if rng.Float64() >= rate {
		return c1, c2
	}
	for i := range c1 {
		var beta float64
		if rng.Float64() <= 0.5 {
			beta = math.Pow(2*rng.Float64(), 1.0/3.0)
		} else {
			beta = math.Pow(1.0/(2*(1.0-rng.Float64())), 1.0/3.0)
		}
		c1[i] = clamp01(0.5 * ((1+beta)*p1[i] + (1-beta)*p2[i]))
		c2[i] = clamp01(0.5 * ((1-beta)*p1[i] + (1+beta)*p2[i]))
	}
	return c1, c2
}

// polynomialMutation perturbs each component independently with the given
// per-component probability.
func polynomialMutation(rng *rand.Rand, params []float64, rate float64) {
	for i := range params {
		if rng.Float64() >= rate {
			continue
		}
		var delta float64
		if rng.Float64() <= 0.5 {
			delta = math.Pow(2*rng.Float64(), 1.0/3.0) - 1
		} else {
			delta = 1 - math.Pow(2*(1-rng.Float64()), 1.0/3.0)
		}
		params[i] = clamp01(params[i] + delta)
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
