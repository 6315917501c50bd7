package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dasopt/internal/objective"
)

// ConfigError reports an invalid or inconsistent study field. Configuration
// errors are fatal and surface before any evaluation starts.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Reason
}

func errf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// LoadStudy reads and parses a study file.
func LoadStudy(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study file %s: %w", path, err)
	}
	study, err := ParseStudy(data)
	if err != nil {
		return nil, fmt.Errorf("study file %s: %w", path, err)
	}
	return study, nil
}

// ParseStudy parses and validates a study from YAML bytes. This is the entry
// point when the study arrives as a payload instead of a file.
func ParseStudy(data []byte) (*Study, error) {
	var study Study
	if err := yaml.Unmarshal(data, &study); err != nil {
		return nil, fmt.Errorf("parse study yaml: %w", err)
	}
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}
	return &study, nil
}

var validLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the whole study: section shapes, closed-set names, and
// cross-section consistency such as seed vector dimensionality. Model names
// outside the builtin set pass here and resolve against the platform's model
// registry at run start.
func (s *Study) Validate() error {
	if !validLogLevels[s.LogLevel] {
		return errf("log_level", "unknown level %q, want debug, info, warn or error", s.LogLevel)
	}
	enc, err := s.BuildEncoder()
	if err != nil {
		return err
	}
	if _, err := s.BuildConstraints(); err != nil {
		return err
	}
	specs, err := s.BuildObjectives()
	if err != nil {
		return err
	}
	if s.Cost.PerMeter < 0 {
		return errf("cost.per_meter", "must be >= 0, got %g", s.Cost.PerMeter)
	}
	if s.Cost.PerCable < 0 {
		return errf("cost.per_cable", "must be >= 0, got %g", s.Cost.PerCable)
	}
	evalTimeout, err := s.Optimizer.GetEvalTimeout()
	if err != nil {
		return errf("optimizer.eval_timeout", "%v", err)
	}
	if evalTimeout < 0 {
		return errf("optimizer.eval_timeout", "must be >= 0, got %s", s.Optimizer.EvalTimeout)
	}

	mdl, err := s.BuildModel()
	switch {
	case err == nil:
		if _, err := objective.NewEvaluator(objective.Config{
			Model:        mdl,
			Specs:        specs,
			Timeout:      evalTimeout,
			CostPerMeter: s.Cost.PerMeter,
			CostPerCable: s.Cost.PerCable,
		}); err != nil {
			return &ConfigError{Field: "objectives", Reason: err.Error()}
		}
	case errors.Is(err, ErrUnknownModel):
	default:
		return err
	}

	if err := s.validateOptimizer(enc.Dimension(), len(specs)); err != nil {
		return err
	}

	switch s.Cache.Kind {
	case "", "memory":
	case "badger":
		if s.Cache.Dir == "" {
			return errf("cache.dir", "badger cache needs a directory")
		}
	default:
		return errf("cache.kind", "unknown cache kind %q", s.Cache.Kind)
	}
	switch s.Store.Kind {
	case "", "memory":
	case "sqlite":
		if s.Store.Path == "" {
			return errf("store.path", "sqlite store needs a database file")
		}
	default:
		return errf("store.kind", "unknown store kind %q", s.Store.Kind)
	}
	return nil
}

func (s *Study) validateOptimizer(dim, objectives int) error {
	o := s.Optimizer
	switch algo := s.Algorithm(); algo {
	case AlgorithmSingle:
		if objectives != 1 {
			return errf("optimizer.algorithm", "single handles exactly 1 objective, study has %d", objectives)
		}
		if len(o.ReferencePoint) != 0 {
			return errf("optimizer.reference_point", "applies to the nsga2 algorithm")
		}
	case AlgorithmNSGA2:
		if objectives < 2 {
			return errf("optimizer.algorithm", "nsga2 needs >= 2 objectives, study has %d", objectives)
		}
		if o.Goal != nil {
			return errf("optimizer.goal", "applies to the single algorithm")
		}
		if o.Polish != nil {
			return errf("optimizer.polish", "applies to the single algorithm")
		}
		if len(o.ReferencePoint) != 0 && len(o.ReferencePoint) != objectives {
			return errf("optimizer.reference_point", "has %d components, study has %d objectives",
				len(o.ReferencePoint), objectives)
		}
	default:
		return errf("optimizer.algorithm", "unknown algorithm %q", o.Algorithm)
	}
	if o.Population <= 1 {
		return errf("optimizer.population", "must be > 1, got %d", o.Population)
	}
	if o.Generations <= 0 {
		return errf("optimizer.generations", "must be > 0, got %d", o.Generations)
	}
	if o.MaxEvaluations < 0 {
		return errf("optimizer.max_evaluations", "must be >= 0, got %d", o.MaxEvaluations)
	}
	if o.Elites < 0 || o.Elites > o.Population {
		return errf("optimizer.elites", "must be in [0, population], got %d", o.Elites)
	}
	if o.Workers < 0 {
		return errf("optimizer.workers", "must be >= 0, got %d", o.Workers)
	}
	if o.CrossoverRate < 0 || o.CrossoverRate > 1 {
		return errf("optimizer.crossover_rate", "must be in [0,1], got %g", o.CrossoverRate)
	}
	if o.MutationRate < 0 || o.MutationRate > 1 {
		return errf("optimizer.mutation_rate", "must be in [0,1], got %g", o.MutationRate)
	}
	if _, err := o.BuildSelector(); err != nil {
		return err
	}
	if o.Stall != nil {
		if o.Stall.Window < 0 {
			return errf("optimizer.stall.window", "must be >= 0, got %d", o.Stall.Window)
		}
		if o.Stall.Tolerance < 0 {
			return errf("optimizer.stall.tolerance", "must be >= 0, got %g", o.Stall.Tolerance)
		}
		if o.Stall.MinGenerations < 0 {
			return errf("optimizer.stall.min_generations", "must be >= 0, got %d", o.Stall.MinGenerations)
		}
	}
	if _, err := o.BuildStall(); err != nil {
		return err
	}
	if deadline, err := o.GetDeadline(); err != nil {
		return errf("optimizer.deadline", "%v", err)
	} else if deadline < 0 {
		return errf("optimizer.deadline", "must be >= 0, got %s", o.Deadline)
	}
	if _, err := o.BuildPolisher(); err != nil {
		return err
	}
	for i, sv := range o.SeedVectors {
		field := fmt.Sprintf("optimizer.seed_vectors[%d]", i)
		if len(sv) != dim {
			return errf(field, "has %d parameters, encoding needs %d", len(sv), dim)
		}
		for j, v := range sv {
			if v < 0 || v > 1 {
				return errf(field, "parameter %d is %g, want normalized [0,1]", j, v)
			}
		}
	}
	return nil
}
