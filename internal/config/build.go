package config

import (
	"errors"
	"fmt"
	"math"

	"dasopt/internal/constraint"
	"dasopt/internal/evo"
	"dasopt/internal/forward"
	"dasopt/internal/geom"
	"dasopt/internal/layout"
	"dasopt/internal/objective"
)

// ErrUnknownModel marks a model name outside the builtin set. The platform
// resolves such names against its model registry before giving up.
var ErrUnknownModel = errors.New("unknown forward model")

// BuildDomain assembles and validates the survey domain.
func (s *Study) BuildDomain() (geom.Domain, error) {
	b := s.Domain.Bounds
	dom := geom.Domain{
		Bounds: geom.Rect{MinX: b.MinX, MaxX: b.MaxX, MinY: b.MinY, MaxY: b.MaxY},
	}
	for i, vertices := range s.Domain.Obstacles {
		poly, err := toPolygon(vertices)
		if err != nil {
			return geom.Domain{}, errf(fmt.Sprintf("domain.obstacles[%d]", i), "%v", err)
		}
		dom.Obstacles = append(dom.Obstacles, poly)
	}
	if len(s.Domain.ROI) > 0 {
		poly, err := toPolygon(s.Domain.ROI)
		if err != nil {
			return geom.Domain{}, errf("domain.roi", "%v", err)
		}
		dom.ROI = poly
	}
	for i, pair := range s.Domain.Anchors {
		pt, err := toPoint(pair)
		if err != nil {
			return geom.Domain{}, errf(fmt.Sprintf("domain.anchors[%d]", i), "%v", err)
		}
		dom.Anchors = append(dom.Anchors, pt)
	}
	if err := dom.Validate(); err != nil {
		return geom.Domain{}, &ConfigError{Field: "domain", Reason: err.Error()}
	}
	return dom, nil
}

// BuildEncoder constructs the geometry encoder for the study.
func (s *Study) BuildEncoder() (*layout.Encoder, error) {
	dom, err := s.BuildDomain()
	if err != nil {
		return nil, err
	}
	e := s.Encoding
	cfg := layout.Config{
		Scheme:         layout.Scheme(e.Scheme),
		Domain:         dom,
		Cables:         e.Cables,
		PointsPerCable: e.PointsPerCable,
		SamplesPerSpan: e.SamplesPerSpan,
		MaxTurn:        degToRad(e.MaxTurnDeg),
		BoundsPolicy:   layout.BoundsPolicy(e.BoundsPolicy),
		Anchored:       e.Anchored,
	}
	switch len(e.StepRange) {
	case 0:
	case 2:
		cfg.StepRange = [2]float64{e.StepRange[0], e.StepRange[1]}
	default:
		return nil, errf("encoding.step_range", "has %d values, want [min, max]", len(e.StepRange))
	}
	enc, err := layout.NewEncoder(cfg)
	if err != nil {
		return nil, &ConfigError{Field: "encoding", Reason: err.Error()}
	}
	return enc, nil
}

// BuildConstraints constructs the configured constraint set, preserving
// study order. Check order at run time is by cost, not study order.
func (s *Study) BuildConstraints() ([]constraint.Constraint, error) {
	dom, err := s.BuildDomain()
	if err != nil {
		return nil, err
	}
	cons := make([]constraint.Constraint, 0, len(s.Constraints))
	for i, cc := range s.Constraints {
		c, err := buildConstraint(cc, dom)
		if err != nil {
			return nil, &ConfigError{
				Field:  fmt.Sprintf("constraints[%d]", i),
				Reason: err.Error(),
			}
		}
		cons = append(cons, c)
	}
	return cons, nil
}

func buildConstraint(cc ConstraintConfig, dom geom.Domain) (constraint.Constraint, error) {
	switch cc.Name {
	case "max_length":
		return constraint.NewMaxLength(cc.Limit)
	case "bounds":
		return constraint.NewBounds(dom.Bounds)
	case "obstacle":
		return constraint.NewObstacle(dom.Obstacles, cc.Margin)
	case "bend":
		return constraint.NewBend(degToRad(cc.MaxTurnDeg))
	case "self_intersection":
		return constraint.NewSelfIntersection(), nil
	case "target_length":
		return constraint.NewTargetLength(cc.Target, cc.Weight)
	case "smoothness":
		return constraint.NewSmoothness(cc.Weight)
	case "separation":
		return constraint.NewSeparation(cc.MinDist, cc.Weight)
	default:
		return nil, fmt.Errorf("unknown constraint %q", cc.Name)
	}
}

// BuildObjectives converts the objective section into evaluator specs.
func (s *Study) BuildObjectives() ([]objective.Spec, error) {
	if len(s.Objectives) == 0 {
		return nil, errf("objectives", "at least one objective is required")
	}
	specs := make([]objective.Spec, 0, len(s.Objectives))
	for i, oc := range s.Objectives {
		field := fmt.Sprintf("objectives[%d]", i)
		if oc.Quantity == "" {
			return nil, errf(field, "quantity is required")
		}
		dir := objective.Direction(oc.Direction)
		if dir != objective.Minimize && dir != objective.Maximize {
			return nil, errf(field, "direction %q, want minimize or maximize", oc.Direction)
		}
		spec := objective.Spec{Name: oc.Name, Quantity: oc.Quantity, Direction: dir}
		switch len(oc.Normalize) {
		case 0:
		case 2:
			if oc.Normalize[1] <= oc.Normalize[0] {
				return nil, errf(field, "normalization [%g,%g] is not an increasing interval",
					oc.Normalize[0], oc.Normalize[1])
			}
			spec.Normalize = &objective.Range{Lo: oc.Normalize[0], Hi: oc.Normalize[1]}
		default:
			return nil, errf(field, "normalize has %d values, want [lo, hi]", len(oc.Normalize))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// BuildModel constructs the builtin forward model the study names. A nil
// model (name empty or "none") serves purely geometric studies; names
// outside the builtin set return ErrUnknownModel.
func (s *Study) BuildModel() (forward.Model, error) {
	switch s.Model.Name {
	case "", ModelNone:
		return nil, nil
	case ModelSourceGrid:
		dom, err := s.BuildDomain()
		if err != nil {
			return nil, err
		}
		cfg := forward.GridConfig{
			Domain:           dom,
			CellSize:         s.Model.CellSize,
			SampleSpacing:    s.Model.SampleSpacing,
			SensingRadius:    s.Model.SensingRadius,
			DirectivityPower: s.Model.DirectivityPower,
			DetectThreshold:  s.Model.DetectThreshold,
			Sectors:          s.Model.Sectors,
			RedundancyCap:    s.Model.RedundancyCap,
		}
		for i, pc := range s.Model.Priors {
			center, err := toPoint(pc.Center)
			if err != nil {
				return nil, errf(fmt.Sprintf("model.priors[%d].center", i), "%v", err)
			}
			cfg.Priors = append(cfg.Priors, forward.PriorBlob{
				Center: center,
				Sigma:  pc.Sigma,
				Weight: pc.Weight,
			})
		}
		m, err := forward.NewSourceGrid(cfg)
		if err != nil {
			return nil, &ConfigError{Field: "model", Reason: err.Error()}
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownModel, s.Model.Name)
	}
}

// BuildSelector resolves the configured parent selector.
func (o OptimizerConfig) BuildSelector() (evo.Selector, error) {
	sel, err := evo.SelectorByName(o.Selector)
	if err != nil {
		return nil, &ConfigError{Field: "optimizer.selector", Reason: err.Error()}
	}
	return sel, nil
}

// BuildStall resolves the configured stall strategy. A nil settings block
// selects no_improvement with default window and tolerance.
func (o OptimizerConfig) BuildStall() (evo.StallStrategy, error) {
	if o.Stall == nil {
		return evo.StallByName("", evo.StallConfig{})
	}
	stall, err := evo.StallByName(o.Stall.Policy, evo.StallConfig{
		Window:         o.Stall.Window,
		Tolerance:      o.Stall.Tolerance,
		MinGenerations: o.Stall.MinGenerations,
	})
	if err != nil {
		return nil, &ConfigError{Field: "optimizer.stall.policy", Reason: err.Error()}
	}
	return stall, nil
}

// BuildPolisher resolves the optional polish stage; nil settings disable it.
func (o OptimizerConfig) BuildPolisher() (*evo.Polisher, error) {
	if o.Polish == nil {
		return nil, nil
	}
	annealing := o.Polish.Annealing
	if annealing == 0 {
		annealing = 0.9
	}
	p, err := evo.NewPolisher(o.Polish.Attempts, o.Polish.Steps, o.Polish.StepSize, annealing)
	if err != nil {
		return nil, &ConfigError{Field: "optimizer.polish", Reason: err.Error()}
	}
	return p, nil
}

func toPoint(pair []float64) (geom.Point, error) {
	if len(pair) != 2 {
		return geom.Point{}, fmt.Errorf("point has %d values, want [x, y]", len(pair))
	}
	return geom.Point{X: pair[0], Y: pair[1]}, nil
}

func toPolygon(vertices [][]float64) (geom.Polygon, error) {
	poly := make(geom.Polygon, 0, len(vertices))
	for i, pair := range vertices {
		pt, err := toPoint(pair)
		if err != nil {
			return nil, fmt.Errorf("vertex %d: %v", i, err)
		}
		poly = append(poly, pt)
	}
	return poly, nil
}

func degToRad(deg float64) float64 {
	return deg * math.Pi / 180
}
