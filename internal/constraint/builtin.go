package constraint

import (
	"fmt"
	"math"

	"dasopt/internal/geom"
	"dasopt/internal/layout"
)

// MaxLength rejects layouts whose total deployed length exceeds the budget.
type MaxLength struct {
	Limit float64
}

func NewMaxLength(limit float64) (*MaxLength, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("length limit must be > 0, got %g", limit)
	}
	return &MaxLength{Limit: limit}, nil
}

func (*MaxLength) Name() string { return "max_length" }
func (*MaxLength) Hard() bool   { return true }
func (*MaxLength) Cost() int    { return 0 }

func (c *MaxLength) Check(lay *layout.Layout) float64 {
	if over := lay.TotalLength() - c.Limit; over > 0 {
		return over
	}
	return 0
}

// Bounds rejects layouts with points outside the survey rectangle. Encoded
// layouts satisfy it by construction; it guards repaired and externally
// supplied geometries.
type Bounds struct {
	Rect geom.Rect
}

func NewBounds(r geom.Rect) (*Bounds, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("bounds rectangle must span a positive area")
	}
	return &Bounds{Rect: r}, nil
}

func (*Bounds) Name() string { return "bounds" }
func (*Bounds) Hard() bool   { return true }
func (*Bounds) Cost() int    { return 1 }

func (c *Bounds) Check(lay *layout.Layout) float64 {
	total := 0.0
	for _, cable := range lay.Cables {
		for _, p := range cable {
			total += p.DistanceTo(c.Rect.Clamp(p))
		}
	}
	return total
}

func (c *Bounds) Repair(lay *layout.Layout) *layout.Layout {
	cables := make([]geom.Polyline, len(lay.Cables))
	for i, cable := range lay.Cables {
		out := cable.Clone()
		for j, p := range out {
			out[j] = c.Rect.Clamp(p)
		}
		cables[i] = out
	}
	return layout.New(cables)
}

// Obstacle rejects layouts that enter no-deploy polygons or come closer to
// them than the clearance margin.
type Obstacle struct {
	Regions []geom.Polygon
	Margin  float64
}

func NewObstacle(regions []geom.Polygon, margin float64) (*Obstacle, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("obstacle constraint needs at least one region")
	}
	for i, r := range regions {
		if len(r) < 3 {
			return nil, fmt.Errorf("obstacle region %d has %d vertices, need at least 3", i, len(r))
		}
	}
	if margin < 0 {
		return nil, fmt.Errorf("clearance margin must be >= 0, got %g", margin)
	}
	return &Obstacle{Regions: regions, Margin: margin}, nil
}

func (*Obstacle) Name() string { return "obstacle" }
func (*Obstacle) Hard() bool   { return true }
func (*Obstacle) Cost() int    { return 3 }

func (c *Obstacle) Check(lay *layout.Layout) float64 {
	total := 0.0
	for _, region := range c.Regions {
		for _, cable := range lay.Cables {
			for i := 1; i < len(cable); i++ {
				if region.IntersectsSegment(cable[i-1], cable[i]) {
					total++
				}
			}
			if c.Margin > 0 {
				if d := clearance(region, cable); d < c.Margin {
					total += c.Margin - d
				}
			}
		}
	}
	return total
}

// clearance is the minimum distance between the cable and the region
// boundary. The closest pair of a polyline and a polygon always involves a
// vertex of one side, so checking vertices against the other side's segments
// in both directions is exact.
func clearance(region geom.Polygon, cable geom.Polyline) float64 {
	best := math.Inf(1)
	for _, p := range cable {
		if d := region.Distance(p); d < best {
			best = d
		}
	}
	for _, rp := range region {
		for k := 1; k < len(cable); k++ {
			if d := geom.DistPointSegment(rp, cable[k-1], cable[k]); d < best {
				best = d
			}
		}
	}
	return best
}

// Repair resamples each cable fine enough for the clearance margin and pushes
// offending points out of the regions.
func (c *Obstacle) Repair(lay *layout.Layout) *layout.Layout {
	cables := make([]geom.Polyline, len(lay.Cables))
	for i, cable := range lay.Cables {
		out := cable.Clone()
		if c.Margin > 0 {
			out = out.Resample(c.Margin / 2)
		}
		for j, p := range out {
			out[j] = c.pushClear(p)
		}
		cables[i] = out
	}
	return layout.New(cables)
}

// pushClear moves p just past the clearance margin. The overshoot keeps the
// chords between consecutive pushed samples from dipping back inside it.
func (c *Obstacle) pushClear(p geom.Point) geom.Point {
	push := c.Margin*1.05 + 0.01
	for _, region := range c.Regions {
		inside := region.Contains(p)
		if !inside && region.Distance(p) >= c.Margin {
			continue
		}
		cp := region.ClosestBoundaryPoint(p)
		var dir geom.Point
		if inside {
			dir = cp.Sub(p)
		} else {
			dir = p.Sub(cp)
		}
		if n := dir.Norm(); n > 0 {
			p = cp.Add(dir.Scale(push / n))
			continue
		}
		away := p.Sub(region.Centroid())
		if n := away.Norm(); n > 0 {
			p = cp.Add(away.Scale(push / n))
		}
	}
	return p
}

// Bend rejects layouts that turn more sharply than the cable tolerates.
// MaxTurn is the allowed deviation from straight at a vertex, in radians.
type Bend struct {
	MaxTurn float64
}

func NewBend(maxTurn float64) (*Bend, error) {
	if maxTurn <= 0 {
		return nil, fmt.Errorf("max turn must be > 0, got %g", maxTurn)
	}
	return &Bend{MaxTurn: maxTurn}, nil
}

func (*Bend) Name() string { return "bend" }
func (*Bend) Hard() bool   { return true }
func (*Bend) Cost() int    { return 2 }

func (c *Bend) Check(lay *layout.Layout) float64 {
	total := 0.0
	for _, cable := range lay.Cables {
		for _, a := range cable.TurnAngles() {
			if a > c.MaxTurn {
				total += a - c.MaxTurn
			}
		}
	}
	return total
}

// Repair relaxes offending corners toward the midpoint of their neighbors.
// Cable endpoints (anchors) stay fixed.
func (c *Bend) Repair(lay *layout.Layout) *layout.Layout {
	cables := make([]geom.Polyline, len(lay.Cables))
	for i, cable := range lay.Cables {
		out := cable.Clone()
		for pass := 0; pass < 3; pass++ {
			angles := out.TurnAngles()
			changed := false
			for j, a := range angles {
				if a <= c.MaxTurn {
					continue
				}
				v := j + 1
				mid := geom.Lerp(out[v-1], out[v+1], 0.5)
				out[v] = geom.Lerp(out[v], mid, 0.5)
				changed = true
			}
			if !changed {
				break
			}
		}
		cables[i] = out
	}
	return layout.New(cables)
}

// SelfIntersection rejects cables that cross themselves. The magnitude is the
// number of crossing segment pairs.
type SelfIntersection struct{}

func NewSelfIntersection() *SelfIntersection { return &SelfIntersection{} }

func (*SelfIntersection) Name() string { return "self_intersection" }
func (*SelfIntersection) Hard() bool   { return true }
func (*SelfIntersection) Cost() int    { return 4 }

func (*SelfIntersection) Check(lay *layout.Layout) float64 {
	count := 0
	for _, cable := range lay.Cables {
		n := len(cable) - 1
		for i := 0; i < n; i++ {
			for j := i + 2; j < n; j++ {
				if geom.SegmentsIntersect(cable[i], cable[i+1], cable[j], cable[j+1]) {
					count++
				}
			}
		}
	}
	return float64(count)
}

// TargetLength penalizes deployed length above a target without rejecting the
// layout.
type TargetLength struct {
	Target float64
	Weight float64
}

func NewTargetLength(target, weight float64) (*TargetLength, error) {
	if target <= 0 {
		return nil, fmt.Errorf("target length must be > 0, got %g", target)
	}
	if weight == 0 {
		weight = 1
	}
	if weight < 0 {
		return nil, fmt.Errorf("weight must be > 0, got %g", weight)
	}
	return &TargetLength{Target: target, Weight: weight}, nil
}

func (*TargetLength) Name() string { return "target_length" }
func (*TargetLength) Hard() bool   { return false }
func (*TargetLength) Cost() int    { return 0 }

func (c *TargetLength) Check(lay *layout.Layout) float64 {
	if over := lay.TotalLength() - c.Target; over > 0 {
		return over * c.Weight
	}
	return 0
}

// Smoothness penalizes total turning along each cable.
type Smoothness struct {
	Weight float64
}

func NewSmoothness(weight float64) (*Smoothness, error) {
	if weight <= 0 {
		return nil, fmt.Errorf("weight must be > 0, got %g", weight)
	}
	return &Smoothness{Weight: weight}, nil
}

func (*Smoothness) Name() string { return "smoothness" }
func (*Smoothness) Hard() bool   { return false }
func (*Smoothness) Cost() int    { return 2 }

func (c *Smoothness) Check(lay *layout.Layout) float64 {
	total := 0.0
	for _, cable := range lay.Cables {
		for _, a := range cable.TurnAngles() {
			total += a
		}
	}
	return total * c.Weight
}

// Separation penalizes distinct cables that run closer together than MinDist,
// which wastes aperture on redundant coverage.
type Separation struct {
	MinDist float64
	Weight  float64
}

func NewSeparation(minDist, weight float64) (*Separation, error) {
	if minDist <= 0 {
		return nil, fmt.Errorf("min distance must be > 0, got %g", minDist)
	}
	if weight == 0 {
		weight = 1
	}
	if weight < 0 {
		return nil, fmt.Errorf("weight must be > 0, got %g", weight)
	}
	return &Separation{MinDist: minDist, Weight: weight}, nil
}

func (*Separation) Name() string { return "separation" }
func (*Separation) Hard() bool   { return false }
func (*Separation) Cost() int    { return 5 }

func (c *Separation) Check(lay *layout.Layout) float64 {
	total := 0.0
	for i := 0; i < len(lay.Cables); i++ {
		for j := i + 1; j < len(lay.Cables); j++ {
			total += c.pairDeficit(lay.Cables[i], lay.Cables[j])
			total += c.pairDeficit(lay.Cables[j], lay.Cables[i])
		}
	}
	return total * c.Weight
}

func (c *Separation) pairDeficit(a, b geom.Polyline) float64 {
	deficit := 0.0
	for _, p := range a {
		best := c.MinDist
		for k := 1; k < len(b); k++ {
			if d := geom.DistPointSegment(p, b[k-1], b[k]); d < best {
				best = d
			}
		}
		deficit += c.MinDist - best
	}
	return deficit
}
