// Package geom provides the planar primitives cable layouts are built from:
// points, polylines, polygons and the survey domain they live in. Coordinates
// are easting/northing in meters.
package geom

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

func (p Point) Scale(f float64) Point { return Point{p.X * f, p.Y * f} }

func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

func (p Point) DistanceTo(q Point) float64 { return math.Hypot(p.X-q.X, p.Y-q.Y) }

// Lerp interpolates between a and b; t=0 yields a, t=1 yields b.
func Lerp(a, b Point, t float64) Point {
	return Point{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t}
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Rect is an axis-aligned rectangle, min corner inclusive.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

func (r Rect) Valid() bool { return r.MaxX > r.MinX && r.MaxY > r.MinY }

func (r Rect) Width() float64 { return r.MaxX - r.MinX }

func (r Rect) Height() float64 { return r.MaxY - r.MinY }

func (r Rect) Contains(p Point) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) Clamp(p Point) Point {
	return Point{Clamp(p.X, r.MinX, r.MaxX), Clamp(p.Y, r.MinY, r.MaxY)}
}

// Wrap maps p into the rectangle modulo its extent, so paths that walk off
// one edge re-enter from the opposite one.
func (r Rect) Wrap(p Point) Point {
	return Point{wrapVal(p.X, r.MinX, r.MaxX), wrapVal(p.Y, r.MinY, r.MaxY)}
}

// Denormalize maps unit-square coordinates into the rectangle.
func (r Rect) Denormalize(u, v float64) Point {
	return Point{r.MinX + u*r.Width(), r.MinY + v*r.Height()}
}

func wrapVal(v, lo, hi float64) float64 {
	w := hi - lo
	if w <= 0 {
		return lo
	}
	m := math.Mod(v-lo, w)
	if m < 0 {
		m += w
	}
	return lo + m
}

// Polyline is an open path of two or more vertices.
type Polyline []Point

func (pl Polyline) Clone() Polyline {
	return append(Polyline(nil), pl...)
}

func (pl Polyline) Length() float64 {
	total := 0.0
	for i := 1; i < len(pl); i++ {
		total += pl[i-1].DistanceTo(pl[i])
	}
	return total
}

// Resample returns points walked along the path at the given spacing. The
// first and last vertices are always included.
func (pl Polyline) Resample(spacing float64) Polyline {
	if spacing <= 0 || len(pl) < 2 {
		return pl.Clone()
	}
	out := make(Polyline, 0, int(pl.Length()/spacing)+2)
	out = append(out, pl[0])
	residual := spacing
	for i := 1; i < len(pl); i++ {
		a, b := pl[i-1], pl[i]
		segLen := a.DistanceTo(b)
		if segLen == 0 {
			continue
		}
		pos := 0.0
		for segLen-pos >= residual {
			pos += residual
			out = append(out, Lerp(a, b, pos/segLen))
			residual = spacing
		}
		residual -= segLen - pos
	}
	last := pl[len(pl)-1]
	if out[len(out)-1].DistanceTo(last) > 1e-9 {
		out = append(out, last)
	}
	return out
}

// TurnAngles reports the deviation from straight at every interior vertex in
// radians; 0 means the path continues straight, Pi means full reversal.
func (pl Polyline) TurnAngles() []float64 {
	if len(pl) < 3 {
		return nil
	}
	angles := make([]float64, 0, len(pl)-2)
	for i := 1; i < len(pl)-1; i++ {
		u := pl[i].Sub(pl[i-1])
		v := pl[i+1].Sub(pl[i])
		nu, nv := u.Norm(), v.Norm()
		if nu == 0 || nv == 0 {
			angles = append(angles, 0)
			continue
		}
		cos := Clamp(u.Dot(v)/(nu*nv), -1, 1)
		angles = append(angles, math.Acos(cos))
	}
	return angles
}

// SelfIntersects reports whether any two non-adjacent segments of the path
// cross or touch.
func (pl Polyline) SelfIntersects() bool {
	n := len(pl) - 1
	for i := 0; i < n; i++ {
		for j := i + 2; j < n; j++ {
			if SegmentsIntersect(pl[i], pl[i+1], pl[j], pl[j+1]) {
				return true
			}
		}
	}
	return false
}

func orient(a, b, c Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func onSegment(a, b, p Point) bool {
	return math.Min(a.X, b.X) <= p.X && p.X <= math.Max(a.X, b.X) &&
		math.Min(a.Y, b.Y) <= p.Y && p.Y <= math.Max(a.Y, b.Y)
}

// SegmentsIntersect reports whether segments ab and cd share any point,
// including collinear overlap and endpoint touches.
func SegmentsIntersect(a, b, c, d Point) bool {
	d1 := orient(c, d, a)
	d2 := orient(c, d, b)
	d3 := orient(a, b, c)
	d4 := orient(a, b, d)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	if d1 == 0 && onSegment(c, d, a) {
		return true
	}
	if d2 == 0 && onSegment(c, d, b) {
		return true
	}
	if d3 == 0 && onSegment(a, b, c) {
		return true
	}
	if d4 == 0 && onSegment(a, b, d) {
		return true
	}
	return false
}

// DistPointSegment returns the distance from p to the closest point of
// segment ab.
func DistPointSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den == 0 {
		return p.DistanceTo(a)
	}
	t := Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return p.DistanceTo(a.Add(ab.Scale(t)))
}
