package constraint

import (
	"math"
	"testing"

	"dasopt/internal/geom"
	"dasopt/internal/layout"
)

type spy struct {
	name  string
	hard  bool
	cost  int
	mag   float64
	calls *[]string
}

func (s *spy) Name() string { return s.name }
func (s *spy) Hard() bool   { return s.hard }
func (s *spy) Cost() int    { return s.cost }

func (s *spy) Check(*layout.Layout) float64 {
	*s.calls = append(*s.calls, s.name)
	return s.mag
}

func line(pts ...geom.Point) *layout.Layout {
	return layout.New([]geom.Polyline{geom.Polyline(pts)})
}

func TestCheckOrdersByCostAndShortCircuits(t *testing.T) {
	var calls []string
	constraints := []Constraint{
		&spy{name: "expensive", hard: true, cost: 9, mag: 1, calls: &calls},
		&spy{name: "cheap", hard: true, cost: 1, mag: 2.5, calls: &calls},
		&spy{name: "soft", hard: false, cost: 0, mag: 0.5, calls: &calls},
	}
	res := Check(line(geom.Point{}, geom.Point{X: 1}), constraints)
	if res.Feasible {
		t.Fatal("violated hard constraint reported feasible")
	}
	if res.Reason != "cheap" {
		t.Fatalf("reason = %q, want cheapest violated constraint", res.Reason)
	}
	if res.Violation != 2.5 || res.Penalty != 2.5 {
		t.Fatalf("violation = %g penalty = %g, want 2.5 both", res.Violation, res.Penalty)
	}
	if len(calls) != 1 || calls[0] != "cheap" {
		t.Fatalf("check calls = %v, want short-circuit after cheap", calls)
	}
}

func TestCheckSumsSoftPenalties(t *testing.T) {
	var calls []string
	constraints := []Constraint{
		&spy{name: "hard_ok", hard: true, cost: 0, mag: 0, calls: &calls},
		&spy{name: "soft_a", hard: false, cost: 1, mag: 0.75, calls: &calls},
		&spy{name: "soft_b", hard: false, cost: 2, mag: 0.25, calls: &calls},
	}
	res := Check(line(geom.Point{}, geom.Point{X: 1}), constraints)
	if !res.Feasible {
		t.Fatalf("feasible layout rejected with reason %q", res.Reason)
	}
	if res.Penalty != 1.0 {
		t.Fatalf("penalty = %g, want 1.0", res.Penalty)
	}
	if res.Reason != "" || res.Violation != 0 {
		t.Fatalf("feasible result carries violation: %+v", res)
	}
}

func TestMaxLength(t *testing.T) {
	c, err := NewMaxLength(5)
	if err != nil {
		t.Fatalf("NewMaxLength: %v", err)
	}
	if v := c.Check(line(geom.Point{}, geom.Point{X: 4})); v != 0 {
		t.Fatalf("under budget violation = %g, want 0", v)
	}
	if v := c.Check(line(geom.Point{}, geom.Point{X: 8})); v != 3 {
		t.Fatalf("over budget violation = %g, want 3", v)
	}
	if _, err := NewMaxLength(0); err == nil {
		t.Fatal("zero limit accepted")
	}
}

func TestBoundsCheckAndRepair(t *testing.T) {
	c, err := NewBounds(geom.Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10})
	if err != nil {
		t.Fatalf("NewBounds: %v", err)
	}
	inside := line(geom.Point{X: 1, Y: 1}, geom.Point{X: 9, Y: 9})
	if v := c.Check(inside); v != 0 {
		t.Fatalf("inside layout violation = %g, want 0", v)
	}
	outside := line(geom.Point{X: -3, Y: 5}, geom.Point{X: 5, Y: 5})
	if v := c.Check(outside); v != 3 {
		t.Fatalf("outside layout violation = %g, want 3", v)
	}
	repaired := c.Repair(outside)
	if v := c.Check(repaired); v != 0 {
		t.Fatalf("repaired layout still violates bounds by %g", v)
	}
	if outside.Cables[0][0].X != -3 {
		t.Fatal("repair mutated the original layout")
	}
}

func TestObstacle(t *testing.T) {
	region := geom.Polygon{{X: 4, Y: 4}, {X: 6, Y: 4}, {X: 6, Y: 6}, {X: 4, Y: 6}}
	c, err := NewObstacle([]geom.Polygon{region}, 0)
	if err != nil {
		t.Fatalf("NewObstacle: %v", err)
	}
	crossing := line(geom.Point{X: 0, Y: 5}, geom.Point{X: 10, Y: 5})
	if v := c.Check(crossing); v == 0 {
		t.Fatal("cable through obstacle not flagged")
	}
	clear := line(geom.Point{X: 0, Y: 0}, geom.Point{X: 10, Y: 0})
	if v := c.Check(clear); v != 0 {
		t.Fatalf("clear cable violation = %g, want 0", v)
	}

	withMargin, err := NewObstacle([]geom.Polygon{region}, 1.5)
	if err != nil {
		t.Fatalf("NewObstacle with margin: %v", err)
	}
	near := line(geom.Point{X: 0, Y: 3}, geom.Point{X: 10, Y: 3})
	if v := withMargin.Check(near); v == 0 {
		t.Fatal("cable inside clearance margin not flagged")
	}
	repaired := withMargin.Repair(near)
	if v := withMargin.Check(repaired); v != 0 {
		t.Fatalf("repaired layout still violates clearance by %g", v)
	}
}

func TestBendCheckAndRepair(t *testing.T) {
	c, err := NewBend(math.Pi / 4)
	if err != nil {
		t.Fatalf("NewBend: %v", err)
	}
	gentle := line(geom.Point{}, geom.Point{X: 10}, geom.Point{X: 20, Y: 2})
	if v := c.Check(gentle); v != 0 {
		t.Fatalf("gentle path violation = %g, want 0", v)
	}
	sharp := line(geom.Point{}, geom.Point{X: 10}, geom.Point{X: 0, Y: 1})
	before := c.Check(sharp)
	if before == 0 {
		t.Fatal("hairpin not flagged")
	}
	repaired := c.Repair(sharp)
	if after := c.Check(repaired); after >= before {
		t.Fatalf("repair did not reduce bend violation: before %g after %g", before, after)
	}
	if got := repaired.Cables[0][0]; got != (geom.Point{}) {
		t.Fatalf("repair moved cable start to %v", got)
	}
}

func TestSelfIntersection(t *testing.T) {
	c := NewSelfIntersection()
	bowtie := line(geom.Point{}, geom.Point{X: 2, Y: 2}, geom.Point{X: 2}, geom.Point{Y: 2})
	if v := c.Check(bowtie); v != 1 {
		t.Fatalf("bowtie violation = %g, want 1 crossing", v)
	}
	straight := line(geom.Point{}, geom.Point{X: 1}, geom.Point{X: 2})
	if v := c.Check(straight); v != 0 {
		t.Fatalf("straight violation = %g, want 0", v)
	}
}

func TestTargetLengthAndSmoothness(t *testing.T) {
	tl, err := NewTargetLength(5, 2)
	if err != nil {
		t.Fatalf("NewTargetLength: %v", err)
	}
	if v := tl.Check(line(geom.Point{}, geom.Point{X: 8})); v != 6 {
		t.Fatalf("target length penalty = %g, want (8-5)*2 = 6", v)
	}
	if v := tl.Check(line(geom.Point{}, geom.Point{X: 4})); v != 0 {
		t.Fatalf("under-target penalty = %g, want 0", v)
	}
	sm, err := NewSmoothness(1)
	if err != nil {
		t.Fatalf("NewSmoothness: %v", err)
	}
	right := line(geom.Point{}, geom.Point{X: 1}, geom.Point{X: 1, Y: 1})
	if v := sm.Check(right); math.Abs(v-math.Pi/2) > 1e-9 {
		t.Fatalf("smoothness penalty = %g, want pi/2", v)
	}
}

func TestSeparation(t *testing.T) {
	c, err := NewSeparation(5, 1)
	if err != nil {
		t.Fatalf("NewSeparation: %v", err)
	}
	close := layout.New([]geom.Polyline{
		{{X: 0, Y: 0}, {X: 10, Y: 0}},
		{{X: 0, Y: 1}, {X: 10, Y: 1}},
	})
	if v := c.Check(close); v == 0 {
		t.Fatal("cables 1 m apart under 5 m minimum not penalized")
	}
	far := layout.New([]geom.Polyline{
		{{X: 0, Y: 0}, {X: 10, Y: 0}},
		{{X: 0, Y: 20}, {X: 10, Y: 20}},
	})
	if v := c.Check(far); v != 0 {
		t.Fatalf("well separated cables penalized by %g", v)
	}
	single := line(geom.Point{}, geom.Point{X: 10})
	if v := c.Check(single); v != 0 {
		t.Fatalf("single cable penalized by %g", v)
	}
}

func TestRepairRunsAllRepairers(t *testing.T) {
	rect := geom.Rect{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}
	b, err := NewBounds(rect)
	if err != nil {
		t.Fatalf("NewBounds: %v", err)
	}
	bend, err := NewBend(math.Pi / 3)
	if err != nil {
		t.Fatalf("NewBend: %v", err)
	}
	lay := line(geom.Point{X: -4, Y: 5}, geom.Point{X: 5, Y: 5}, geom.Point{X: -4, Y: 6})
	repaired := Repair(lay, []Constraint{bend, b})
	if v := b.Check(repaired); v != 0 {
		t.Fatalf("bounds still violated by %g after Repair", v)
	}
	if lay.Cables[0][0].X != -4 {
		t.Fatal("Repair mutated the original layout")
	}
}
