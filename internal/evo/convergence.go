package evo

import (
	"fmt"
	"math"
)

// StallStrategy decides whether a run has stopped making progress, given the
// per-generation history of the quantity being improved. The history is in
// minimize orientation: smaller is better.
type StallStrategy interface {
	Name() string
	Check(history []float64) (bool, string)
}

// StallConfig holds the shared knobs of the built-in strategies.
type StallConfig struct {
	// Window is the number of consecutive generations without improvement
	// (or within tolerance of each other) that counts as a stall.
	Window int
	// Tolerance is the minimum decrease that still counts as improvement.
	Tolerance float64
	// MinGenerations suppresses stall detection early in the run.
	MinGenerations int
}

func (c StallConfig) withDefaults() StallConfig {
	if c.Window <= 0 {
		c.Window = 10
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	if c.MinGenerations <= 0 {
		c.MinGenerations = 3
	}
	return c
}

// NoImprovementStall reports a stall once the best value has not improved by
// more than the tolerance for Window consecutive generations.
type NoImprovementStall struct {
	cfg StallConfig
}

func NewNoImprovementStall(cfg StallConfig) *NoImprovementStall {
	return &NoImprovementStall{cfg: cfg.withDefaults()}
}

func (s *NoImprovementStall) Name() string { return "no_improvement" }

func (s *NoImprovementStall) Check(history []float64) (bool, string) {
	if len(history) < s.cfg.MinGenerations {
		return false, ""
	}
	best := math.Inf(1)
	bestAt := -1
	for i, v := range history {
		if v < best-s.cfg.Tolerance {
			best = v
			bestAt = i
		}
	}
	if bestAt < 0 {
		return false, ""
	}
	since := len(history) - 1 - bestAt
	if since >= s.cfg.Window {
		return true, fmt.Sprintf("no improvement for %d generations (best at generation %d)", since, bestAt)
	}
	return false, ""
}

// PlateauStall reports a stall once the last Window values all sit within
// the tolerance of each other.
type PlateauStall struct {
	cfg StallConfig
}

func NewPlateauStall(cfg StallConfig) *PlateauStall {
	return &PlateauStall{cfg: cfg.withDefaults()}
}

func (s *PlateauStall) Name() string { return "plateau" }

func (s *PlateauStall) Check(history []float64) (bool, string) {
	if len(history) < s.cfg.MinGenerations || len(history) < s.cfg.Window {
		return false, ""
	}
	recent := history[len(history)-s.cfg.Window:]
	lo, hi := recent[0], recent[0]
	for _, v := range recent {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo <= s.cfg.Tolerance {
		return true, fmt.Sprintf("value plateaued for %d generations (range %.3g)", s.cfg.Window, hi-lo)
	}
	return false, ""
}

// StallByName resolves the configured stall strategy. The empty name selects
// no_improvement; "none" disables stall detection and returns a nil
// strategy.
func StallByName(name string, cfg StallConfig) (StallStrategy, error) {
	switch name {
	case "", "no_improvement":
		return NewNoImprovementStall(cfg), nil
	case "plateau":
		return NewPlateauStall(cfg), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown stall strategy %q", name)
	}
}
