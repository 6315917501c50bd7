package geom

// Polygon is a simple closed region; the edge from the last vertex back to
// the first is implicit.
type Polygon []Point

func (pg Polygon) Clone() Polygon {
	return append(Polygon(nil), pg...)
}

func (pg Polygon) Bounds() Rect {
	if len(pg) == 0 {
		return Rect{}
	}
	r := Rect{MinX: pg[0].X, MinY: pg[0].Y, MaxX: pg[0].X, MaxY: pg[0].Y}
	for _, p := range pg[1:] {
		if p.X < r.MinX {
			r.MinX = p.X
		}
		if p.X > r.MaxX {
			r.MaxX = p.X
		}
		if p.Y < r.MinY {
			r.MinY = p.Y
		}
		if p.Y > r.MaxY {
			r.MaxY = p.Y
		}
	}
	return r
}

// Contains tests p against the polygon using even-odd ray casting. Points on
// an edge may land on either side; callers needing a safety margin should use
// Distance instead.
func (pg Polygon) Contains(p Point) bool {
	if len(pg) < 3 {
		return false
	}
	inside := false
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		a, b := pg[i], pg[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := a.X + (p.Y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
			if p.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// Distance returns the distance from p to the polygon boundary, or 0 when p
// lies inside.
func (pg Polygon) Distance(p Point) float64 {
	if len(pg) < 3 {
		return 0
	}
	if pg.Contains(p) {
		return 0
	}
	best := p.DistanceTo(pg[0])
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		if d := DistPointSegment(p, pg[j], pg[i]); d < best {
			best = d
		}
		j = i
	}
	return best
}

// Centroid returns the vertex average, good enough for nudging points away
// from the region.
func (pg Polygon) Centroid() Point {
	if len(pg) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pg {
		c = c.Add(p)
	}
	return c.Scale(1 / float64(len(pg)))
}

// ClosestBoundaryPoint returns the point on the polygon outline nearest to p.
func (pg Polygon) ClosestBoundaryPoint(p Point) Point {
	if len(pg) == 0 {
		return p
	}
	best := pg[0]
	bestDist := p.DistanceTo(pg[0])
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		cp := closestOnSegment(p, pg[j], pg[i])
		if d := p.DistanceTo(cp); d < bestDist {
			best, bestDist = cp, d
		}
		j = i
	}
	return best
}

func closestOnSegment(p, a, b Point) Point {
	ab := b.Sub(a)
	den := ab.Dot(ab)
	if den == 0 {
		return a
	}
	t := Clamp(p.Sub(a).Dot(ab)/den, 0, 1)
	return a.Add(ab.Scale(t))
}

// IntersectsSegment reports whether segment ab enters, crosses or touches the
// polygon.
func (pg Polygon) IntersectsSegment(a, b Point) bool {
	if len(pg) < 3 {
		return false
	}
	if pg.Contains(a) || pg.Contains(b) {
		return true
	}
	j := len(pg) - 1
	for i := 0; i < len(pg); i++ {
		if SegmentsIntersect(a, b, pg[j], pg[i]) {
			return true
		}
		j = i
	}
	return false
}

// IntersectsPolyline reports whether any segment of the path touches the
// polygon.
func (pg Polygon) IntersectsPolyline(pl Polyline) bool {
	for i := 1; i < len(pl); i++ {
		if pg.IntersectsSegment(pl[i-1], pl[i]) {
			return true
		}
	}
	return false
}
