package geom

import "fmt"

// Domain describes the survey area a layout must live in: the outer bounds,
// obstacle polygons that cables may not enter, an optional region of interest
// that coverage accounting is restricted to, and optional anchor points
// (interrogator tie-ins) that cables originate from.
type Domain struct {
	Bounds    Rect      `json:"bounds"`
	Obstacles []Polygon `json:"obstacles,omitempty"`
	ROI       Polygon   `json:"roi,omitempty"`
	Anchors   []Point   `json:"anchors,omitempty"`
}

func (d Domain) Validate() error {
	if !d.Bounds.Valid() {
		return fmt.Errorf("bounds must span a positive area, got [%g,%g]x[%g,%g]",
			d.Bounds.MinX, d.Bounds.MaxX, d.Bounds.MinY, d.Bounds.MaxY)
	}
	for i, ob := range d.Obstacles {
		if len(ob) < 3 {
			return fmt.Errorf("obstacle %d has %d vertices, need at least 3", i, len(ob))
		}
	}
	if len(d.ROI) > 0 && len(d.ROI) < 3 {
		return fmt.Errorf("roi has %d vertices, need at least 3", len(d.ROI))
	}
	for i, a := range d.Anchors {
		if !d.Bounds.Contains(a) {
			return fmt.Errorf("anchor %d (%g,%g) lies outside the bounds", i, a.X, a.Y)
		}
	}
	return nil
}

// InROI reports whether p counts toward coverage. Without an explicit region
// of interest the whole bounded area counts.
func (d Domain) InROI(p Point) bool {
	if len(d.ROI) >= 3 {
		return d.ROI.Contains(p)
	}
	return d.Bounds.Contains(p)
}

// ROIBounds returns the bounding rectangle coverage grids are rasterized
// over.
func (d Domain) ROIBounds() Rect {
	if len(d.ROI) >= 3 {
		return d.ROI.Bounds()
	}
	return d.Bounds
}

// InObstacle reports whether p lies inside any obstacle polygon.
func (d Domain) InObstacle(p Point) bool {
	for _, ob := range d.Obstacles {
		if ob.Contains(p) {
			return true
		}
	}
	return false
}
