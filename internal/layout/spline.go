package layout

import "dasopt/internal/geom"

// sampleCatmullRom interpolates a uniform Catmull-Rom curve through the
// control points, emitting perSpan samples per control span. Endpoint
// tangents reuse the boundary control points, so the curve starts and ends
// exactly on the first and last control point.
func sampleCatmullRom(ctrl geom.Polyline, perSpan int) geom.Polyline {
	if len(ctrl) < 3 || perSpan < 2 {
		return ctrl
	}
	out := make(geom.Polyline, 0, (len(ctrl)-1)*perSpan+1)
	out = append(out, ctrl[0])
	for i := 0; i < len(ctrl)-1; i++ {
		p0 := ctrl[max(i-1, 0)]
		p1 := ctrl[i]
		p2 := ctrl[i+1]
		p3 := ctrl[min(i+2, len(ctrl)-1)]
		for s := 1; s <= perSpan; s++ {
			t := float64(s) / float64(perSpan)
			out = append(out, catmullRom(p0, p1, p2, p3, t))
		}
	}
	return out
}

func catmullRom(p0, p1, p2, p3 geom.Point, t float64) geom.Point {
	t2 := t * t
	t3 := t2 * t
	return geom.Point{
		X: 0.5 * (2*p1.X + (p2.X-p0.X)*t +
			(2*p0.X-5*p1.X+4*p2.X-p3.X)*t2 +
			(3*p1.X-p0.X-3*p2.X+p3.X)*t3),
		Y: 0.5 * (2*p1.Y + (p2.Y-p0.Y)*t +
			(2*p0.Y-5*p1.Y+4*p2.Y-p3.Y)*t2 +
			(3*p1.Y-p0.Y-3*p2.Y+p3.Y)*t3),
	}
}
