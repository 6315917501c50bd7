// Package config defines the YAML study schema and turns validated studies
// into the engine's domain objects. Constraints, objectives, models and
// optimizer strategies form closed sets constructed by name; a study that
// passes Validate builds without surprises at run start.
package config

import "time"

// Study is one optimization request: the survey domain, how parameter
// vectors encode into cable layouts, what makes a layout acceptable, what to
// optimize for, and how hard to search.
type Study struct {
	Name        string             `yaml:"name,omitempty"`
	Seed        int64              `yaml:"seed,omitempty"`
	LogLevel    string             `yaml:"log_level,omitempty"`
	Domain      DomainConfig       `yaml:"domain"`
	Encoding    EncodingConfig     `yaml:"encoding"`
	Constraints []ConstraintConfig `yaml:"constraints,omitempty"`
	// Repair lets repairable hard constraints nudge a violating layout back
	// into feasibility before it is rejected.
	Repair     bool              `yaml:"repair,omitempty"`
	Objectives []ObjectiveConfig `yaml:"objectives"`
	Cost       CostConfig        `yaml:"cost,omitempty"`
	Model      ModelConfig       `yaml:"model,omitempty"`
	Optimizer  OptimizerConfig   `yaml:"optimizer"`
	Cache      CacheConfig       `yaml:"cache,omitempty"`
	Store      StoreConfig       `yaml:"store,omitempty"`
	Artifacts  ArtifactsConfig   `yaml:"artifacts,omitempty"`
}

// BoundsConfig is the survey area's outer rectangle in easting/northing
// meters.
type BoundsConfig struct {
	MinX float64 `yaml:"min_x"`
	MaxX float64 `yaml:"max_x"`
	MinY float64 `yaml:"min_y"`
	MaxY float64 `yaml:"max_y"`
}

// DomainConfig describes the survey area. Points are [x, y] pairs; polygons
// are vertex lists.
type DomainConfig struct {
	Bounds BoundsConfig `yaml:"bounds"`
	// Obstacles are polygons cables may not enter (buffered roads, rivers,
	// infrastructure).
	Obstacles [][][]float64 `yaml:"obstacles,omitempty"`
	// ROI restricts coverage accounting to a sub-region of interest.
	ROI [][]float64 `yaml:"roi,omitempty"`
	// Anchors are interrogator tie-in points cables originate from.
	Anchors [][]float64 `yaml:"anchors,omitempty"`
}

// EncodingConfig fixes how a normalized parameter vector decodes into cable
// paths.
type EncodingConfig struct {
	// Scheme is one of waypoints, spline or parametric; empty selects
	// waypoints.
	Scheme         string `yaml:"scheme,omitempty"`
	Cables         int    `yaml:"cables,omitempty"`
	PointsPerCable int    `yaml:"points_per_cable"`
	// SamplesPerSpan is the spline sampling density between control points.
	SamplesPerSpan int `yaml:"samples_per_span,omitempty"`
	// StepRange bounds the per-knot step length of the parametric scheme in
	// meters, as [min, max].
	StepRange []float64 `yaml:"step_range,omitempty"`
	// MaxTurnDeg bounds the per-knot heading change of the parametric
	// scheme.
	MaxTurnDeg float64 `yaml:"max_turn_deg,omitempty"`
	// BoundsPolicy is clamp or wrap; empty selects clamp.
	BoundsPolicy string `yaml:"bounds_policy,omitempty"`
	// Anchored starts cable i at domain anchor i mod len(anchors).
	Anchored bool `yaml:"anchored,omitempty"`
}

// ConstraintConfig selects one named constraint. Only the parameters the
// named constraint reads need to be set.
type ConstraintConfig struct {
	Name string `yaml:"name"`
	// Limit is the deployed-length ceiling of max_length in meters.
	Limit float64 `yaml:"limit,omitempty"`
	// Margin is the obstacle clearance in meters.
	Margin float64 `yaml:"margin,omitempty"`
	// MaxTurnDeg is the bend constraint's per-vertex turn ceiling.
	MaxTurnDeg float64 `yaml:"max_turn_deg,omitempty"`
	// Target is the soft length target of target_length in meters.
	Target float64 `yaml:"target,omitempty"`
	// MinDist is the separation constraint's minimum cable spacing in
	// meters.
	MinDist float64 `yaml:"min_dist,omitempty"`
	// Weight scales the penalty of soft constraints.
	Weight float64 `yaml:"weight,omitempty"`
}

// ObjectiveConfig names one quantity to optimize and in which direction.
type ObjectiveConfig struct {
	// Name labels the objective in artifacts; empty falls back to the
	// quantity.
	Name     string `yaml:"name,omitempty"`
	Quantity string `yaml:"quantity"`
	// Direction is minimize or maximize.
	Direction string `yaml:"direction"`
	// Normalize maps the raw quantity onto [0, 1] from [lo, hi] before
	// orientation.
	Normalize []float64 `yaml:"normalize,omitempty"`
}

// CostConfig parameterizes the cable_cost quantity.
type CostConfig struct {
	PerMeter float64 `yaml:"per_meter,omitempty"`
	PerCable float64 `yaml:"per_cable,omitempty"`
}

// Builtin forward-model names. Any other name must be registered with the
// platform before the study runs.
const (
	ModelNone       = "none"
	ModelSourceGrid = "source_grid"
)

// ModelConfig selects and parameterizes the forward model. The zero value
// (no model) serves studies on purely geometric quantities.
type ModelConfig struct {
	Name string `yaml:"name,omitempty"`
	// CellSize is the source-grid rasterization pitch in meters.
	CellSize float64 `yaml:"cell_size,omitempty"`
	// SampleSpacing is the virtual channel spacing along each cable.
	SampleSpacing float64 `yaml:"sample_spacing,omitempty"`
	// SensingRadius is the Gaussian falloff scale of a channel's
	// sensitivity.
	SensingRadius float64 `yaml:"sensing_radius,omitempty"`
	// DirectivityPower shapes the fiber's axial response.
	DirectivityPower float64 `yaml:"directivity_power,omitempty"`
	// DetectThreshold is the sensitivity a cell must reach to count as
	// covered.
	DetectThreshold float64 `yaml:"detect_threshold,omitempty"`
	// Sectors is the azimuth bin count of the resolution quantity.
	Sectors int `yaml:"sectors,omitempty"`
	// RedundancyCap saturates the per-cell covering channel count.
	RedundancyCap int           `yaml:"redundancy_cap,omitempty"`
	Priors        []PriorConfig `yaml:"priors,omitempty"`
}

// PriorConfig is a Gaussian bump in the source prior: cells near Center
// weigh more in coverage accounting.
type PriorConfig struct {
	Center []float64 `yaml:"center"`
	Sigma  float64   `yaml:"sigma"`
	Weight float64   `yaml:"weight,omitempty"`
}

// Optimizer algorithm names.
const (
	AlgorithmSingle = "single"
	AlgorithmNSGA2  = "nsga2"
)

// StallSettings configures early termination on lack of progress.
type StallSettings struct {
	// Policy is one of no_improvement, plateau or none; empty selects
	// no_improvement.
	Policy         string  `yaml:"policy,omitempty"`
	Window         int     `yaml:"window,omitempty"`
	Tolerance      float64 `yaml:"tolerance,omitempty"`
	MinGenerations int     `yaml:"min_generations,omitempty"`
}

// PolishSettings configures the hill-climbing refinement of each
// generation's best candidate.
type PolishSettings struct {
	Attempts int     `yaml:"attempts"`
	Steps    int     `yaml:"steps"`
	StepSize float64 `yaml:"step_size"`
	// Annealing shrinks the step size between attempts; empty selects 0.9.
	Annealing float64 `yaml:"annealing,omitempty"`
}

// OptimizerConfig drives the evolutionary search.
type OptimizerConfig struct {
	// Algorithm is single or nsga2; empty derives it from the objective
	// count.
	Algorithm      string `yaml:"algorithm,omitempty"`
	Population     int    `yaml:"population"`
	Generations    int    `yaml:"generations"`
	MaxEvaluations int    `yaml:"max_evaluations,omitempty"`
	Elites         int    `yaml:"elites,omitempty"`
	Workers        int    `yaml:"workers,omitempty"`
	CrossoverRate  float64 `yaml:"crossover_rate,omitempty"`
	MutationRate   float64 `yaml:"mutation_rate,omitempty"`
	// Selector is tournament or elite; empty selects tournament.
	Selector string         `yaml:"selector,omitempty"`
	Stall    *StallSettings `yaml:"stall,omitempty"`
	// Goal ends a single-objective run once the best score reaches it.
	Goal *float64 `yaml:"goal,omitempty"`
	// Deadline bounds the whole run in wall-clock time, e.g. "5m".
	Deadline string `yaml:"deadline,omitempty"`
	// EvalTimeout bounds each forward-model call, e.g. "30s".
	EvalTimeout string          `yaml:"eval_timeout,omitempty"`
	Polish      *PolishSettings `yaml:"polish,omitempty"`
	// ReferencePoint fixes the hypervolume reference of two-objective nsga2
	// runs; empty derives one from the first feasible front.
	ReferencePoint []float64 `yaml:"reference_point,omitempty"`
	// SeedVectors inject known-good normalized parameter vectors into the
	// initial population.
	SeedVectors [][]float64 `yaml:"seed_vectors,omitempty"`
}

// CacheConfig selects the objective evaluation cache.
type CacheConfig struct {
	// Kind is memory or badger; empty selects memory.
	Kind string `yaml:"kind,omitempty"`
	// Dir is the badger cache directory.
	Dir string `yaml:"dir,omitempty"`
}

// StoreConfig selects the run store backend.
type StoreConfig struct {
	// Kind is memory or sqlite; empty selects memory.
	Kind string `yaml:"kind,omitempty"`
	// Path is the sqlite database file.
	Path string `yaml:"path,omitempty"`
}

// ArtifactsConfig controls per-run output files.
type ArtifactsConfig struct {
	// Dir is the artifact root; empty selects "artifacts".
	Dir string `yaml:"dir,omitempty"`
	// Charts adds HTML front and convergence charts.
	Charts bool `yaml:"charts,omitempty"`
	// KeepLayouts stores the decoded layout of every evaluated candidate
	// instead of only the best and the front.
	KeepLayouts bool `yaml:"keep_layouts,omitempty"`
}

// Algorithm resolves the effective optimizer algorithm: the configured name,
// or one derived from the objective count when unset.
func (s *Study) Algorithm() string {
	if s.Optimizer.Algorithm != "" {
		return s.Optimizer.Algorithm
	}
	if len(s.Objectives) > 1 {
		return AlgorithmNSGA2
	}
	return AlgorithmSingle
}

// GetDeadline parses the whole-run deadline; empty means none.
func (o OptimizerConfig) GetDeadline() (time.Duration, error) {
	if o.Deadline == "" {
		return 0, nil
	}
	return time.ParseDuration(o.Deadline)
}

// GetEvalTimeout parses the per-evaluation timeout; empty means none.
func (o OptimizerConfig) GetEvalTimeout() (time.Duration, error) {
	if o.EvalTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(o.EvalTimeout)
}
