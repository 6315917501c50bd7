package layout

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"strconv"

	"dasopt/internal/geom"
	"dasopt/internal/model"
)

// Scheme selects how a parameter vector is decoded into cable paths.
type Scheme string

const (
	// SchemeWaypoints decodes flattened (x, y) pairs into a piecewise-linear
	// path.
	SchemeWaypoints Scheme = "waypoints"
	// SchemeSpline decodes control points and samples a Catmull-Rom curve
	// through them.
	SchemeSpline Scheme = "spline"
	// SchemeParametric decodes per-knot (turn, step) pairs walked from the
	// cable start, which yields naturally smooth paths.
	SchemeParametric Scheme = "parametric"
)

type BoundsPolicy string

const (
	BoundsClamp BoundsPolicy = "clamp"
	BoundsWrap  BoundsPolicy = "wrap"
)

// EncodingError reports a parameter vector whose length does not match the
// configured encoding dimensionality.
type EncodingError struct {
	Want int
	Got  int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("parameter vector has %d values, encoding needs %d", e.Got, e.Want)
}

type Config struct {
	Scheme         Scheme
	Domain         geom.Domain
	Cables         int
	PointsPerCable int
	// SamplesPerSpan is the spline sampling density between control points.
	SamplesPerSpan int
	// StepRange bounds the per-knot step length of the parametric scheme in
	// meters.
	StepRange [2]float64
	// MaxTurn bounds the per-knot heading change of the parametric scheme in
	// radians.
	MaxTurn      float64
	BoundsPolicy BoundsPolicy
	// Anchored prepends domain anchor i mod len(anchors) to cable i, or, for
	// the parametric scheme, starts the walk there.
	Anchored bool
}

// Encoder maps normalized parameter vectors to layouts. Encoding is a pure
// function: the same vector always yields the same layout, and every emitted
// point lies inside the survey bounds.
type Encoder struct {
	cfg Config
}

func NewEncoder(cfg Config) (*Encoder, error) {
	switch cfg.Scheme {
	case SchemeWaypoints, SchemeSpline, SchemeParametric:
	case "":
		cfg.Scheme = SchemeWaypoints
	default:
		return nil, fmt.Errorf("unknown encoding scheme %q", cfg.Scheme)
	}
	if err := cfg.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain: %w", err)
	}
	if cfg.Cables <= 0 {
		cfg.Cables = 1
	}
	minPoints := 2
	if cfg.Anchored {
		if len(cfg.Domain.Anchors) == 0 {
			return nil, fmt.Errorf("anchored encoding needs at least one domain anchor")
		}
		minPoints = 1
	}
	if cfg.PointsPerCable < minPoints {
		return nil, fmt.Errorf("points per cable must be >= %d, got %d", minPoints, cfg.PointsPerCable)
	}
	if cfg.SamplesPerSpan <= 0 {
		cfg.SamplesPerSpan = 8
	}
	if cfg.StepRange[0] == 0 && cfg.StepRange[1] == 0 {
		span := math.Min(cfg.Domain.Bounds.Width(), cfg.Domain.Bounds.Height())
		cfg.StepRange = [2]float64{span / 50, span / 10}
	}
	if cfg.StepRange[0] <= 0 || cfg.StepRange[1] < cfg.StepRange[0] {
		return nil, fmt.Errorf("step range [%g,%g] is not an increasing positive interval",
			cfg.StepRange[0], cfg.StepRange[1])
	}
	if cfg.MaxTurn == 0 {
		cfg.MaxTurn = math.Pi / 3
	}
	if cfg.MaxTurn < 0 || cfg.MaxTurn > math.Pi {
		return nil, fmt.Errorf("max turn must be in (0,pi], got %g", cfg.MaxTurn)
	}
	if cfg.BoundsPolicy == "" {
		cfg.BoundsPolicy = BoundsClamp
	}
	if cfg.BoundsPolicy != BoundsClamp && cfg.BoundsPolicy != BoundsWrap {
		return nil, fmt.Errorf("unknown bounds policy %q", cfg.BoundsPolicy)
	}
	return &Encoder{cfg: cfg}, nil
}

func (e *Encoder) Config() Config { return e.cfg }

// Dimension reports the parameter count Encode expects.
func (e *Encoder) Dimension() int {
	switch e.cfg.Scheme {
	case SchemeParametric:
		perCable := 1 + 2*e.cfg.PointsPerCable
		if !e.cfg.Anchored {
			perCable += 2
		}
		return e.cfg.Cables * perCable
	default:
		return e.cfg.Cables * e.cfg.PointsPerCable * 2
	}
}

func (e *Encoder) Encode(params []float64) (*Layout, error) {
	if want := e.Dimension(); len(params) != want {
		return nil, &EncodingError{Want: want, Got: len(params)}
	}
	cables := make([]geom.Polyline, 0, e.cfg.Cables)
	idx := 0
	for c := 0; c < e.cfg.Cables; c++ {
		var cable geom.Polyline
		switch e.cfg.Scheme {
		case SchemeParametric:
			cable, idx = e.decodeParametric(params, idx, c)
		case SchemeSpline:
			ctrl, next := e.decodePoints(params, idx, c)
			idx = next
			cable = e.applyPolicy(sampleCatmullRom(ctrl, e.cfg.SamplesPerSpan))
		default:
			pts, next := e.decodePoints(params, idx, c)
			idx = next
			cable = e.applyPolicy(pts)
		}
		cables = append(cables, cable)
	}
	return newLayout(cables), nil
}

func (e *Encoder) anchorFor(cable int) geom.Point {
	return e.cfg.Domain.Anchors[cable%len(e.cfg.Domain.Anchors)]
}

func (e *Encoder) decodePoints(params []float64, idx, cable int) (geom.Polyline, int) {
	pts := make(geom.Polyline, 0, e.cfg.PointsPerCable+1)
	if e.cfg.Anchored {
		pts = append(pts, e.anchorFor(cable))
	}
	for k := 0; k < e.cfg.PointsPerCable; k++ {
		p := e.cfg.Domain.Bounds.Denormalize(params[idx], params[idx+1])
		idx += 2
		pts = append(pts, p)
	}
	return pts, idx
}

func (e *Encoder) decodeParametric(params []float64, idx, cable int) (geom.Polyline, int) {
	var start geom.Point
	if e.cfg.Anchored {
		start = e.anchorFor(cable)
	} else {
		start = e.cfg.Domain.Bounds.Denormalize(params[idx], params[idx+1])
		idx += 2
	}
	heading := geom.Clamp(params[idx], 0, 1) * 2 * math.Pi
	idx++
	pts := make(geom.Polyline, 0, e.cfg.PointsPerCable+1)
	pts = append(pts, e.applyPoint(start))
	cur := pts[0]
	for k := 0; k < e.cfg.PointsPerCable; k++ {
		turn := (geom.Clamp(params[idx], 0, 1)*2 - 1) * e.cfg.MaxTurn
		step := e.cfg.StepRange[0] + geom.Clamp(params[idx+1], 0, 1)*(e.cfg.StepRange[1]-e.cfg.StepRange[0])
		idx += 2
		heading += turn
		cur = e.applyPoint(geom.Point{
			X: cur.X + math.Cos(heading)*step,
			Y: cur.Y + math.Sin(heading)*step,
		})
		pts = append(pts, cur)
	}
	return pts, idx
}

func (e *Encoder) applyPoint(p geom.Point) geom.Point {
	if e.cfg.BoundsPolicy == BoundsWrap {
		return e.cfg.Domain.Bounds.Wrap(p)
	}
	return e.cfg.Domain.Bounds.Clamp(p)
}

func (e *Encoder) applyPolicy(pl geom.Polyline) geom.Polyline {
	for i, p := range pl {
		pl[i] = e.applyPoint(p)
	}
	return pl
}

// Layout is the decoded geometry of one candidate: one path per cable.
// Layouts are derived values and are never mutated, only recomputed from
// their parameter vector.
type Layout struct {
	Cables []geom.Polyline
	length float64
}

// New builds a layout directly from cable paths, bypassing any encoding.
// Used by repair and by callers evaluating externally supplied geometries.
func New(cables []geom.Polyline) *Layout {
	return newLayout(cables)
}

func newLayout(cables []geom.Polyline) *Layout {
	l := &Layout{Cables: cables}
	for _, c := range cables {
		l.length += c.Length()
	}
	return l
}

func (l *Layout) TotalLength() float64 { return l.length }

func (l *Layout) Record() *model.LayoutRecord {
	rec := &model.LayoutRecord{Length: l.length}
	rec.Cables = make([]geom.Polyline, len(l.Cables))
	for i, c := range l.Cables {
		rec.Cables[i] = c.Clone()
	}
	return rec
}

// Fingerprint returns a stable identity for the layout with coordinates
// quantized to 0.1 mm, used for evaluation caching and deduplication.
func (l *Layout) Fingerprint() string {
	h := fnv.New64a()
	var buf [8]byte
	for _, cable := range l.Cables {
		h.Write([]byte{0xfe})
		for _, p := range cable {
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(math.Round(p.X*1e4))))
			h.Write(buf[:])
			binary.LittleEndian.PutUint64(buf[:], uint64(int64(math.Round(p.Y*1e4))))
			h.Write(buf[:])
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
