package forward

import (
	"context"
	"fmt"
	"math"

	"dasopt/internal/geom"
	"dasopt/internal/layout"
)

// PriorBlob is a Gaussian bump in the source prior: cells near Center weigh
// more in coverage accounting.
type PriorBlob struct {
	Center geom.Point `json:"center"`
	Sigma  float64    `json:"sigma"`
	Weight float64    `json:"weight"`
}

type GridConfig struct {
	Domain geom.Domain
	// CellSize is the rasterization pitch of the source grid in meters.
	CellSize float64
	// SampleSpacing is the virtual channel spacing along each cable.
	SampleSpacing float64
	// SensingRadius is the Gaussian falloff scale of a channel's sensitivity.
	SensingRadius float64
	// DirectivityPower shapes the |cos theta|^p axial response of the fiber.
	DirectivityPower float64
	// DetectThreshold is the sensitivity a cell must reach to count as
	// covered.
	DetectThreshold float64
	// Sectors is the number of azimuth bins used for the resolution quantity.
	Sectors int
	// RedundancyCap saturates the per-cell covering channel count.
	RedundancyCap int
	Priors        []PriorBlob
}

type cell struct {
	center geom.Point
	weight float64
}

// SourceGrid is the built-in forward model: a prior-weighted grid of source
// cells over the region of interest, observed by virtual channels sampled
// along the cables. It approximates DAS sensing with a Gaussian distance
// falloff and an axial strain directivity.
type SourceGrid struct {
	cfg         GridConfig
	cells       []cell
	totalWeight float64
}

func NewSourceGrid(cfg GridConfig) (*SourceGrid, error) {
	if err := cfg.Domain.Validate(); err != nil {
		return nil, fmt.Errorf("invalid domain: %w", err)
	}
	roi := cfg.Domain.ROIBounds()
	if cfg.CellSize <= 0 {
		cfg.CellSize = math.Min(roi.Width(), roi.Height()) / 40
	}
	if cfg.SensingRadius <= 0 {
		cfg.SensingRadius = cfg.CellSize * 5
	}
	if cfg.SampleSpacing <= 0 {
		cfg.SampleSpacing = cfg.SensingRadius / 2
	}
	if cfg.DirectivityPower < 0 {
		return nil, fmt.Errorf("directivity power must be >= 0, got %g", cfg.DirectivityPower)
	}
	if cfg.DirectivityPower == 0 {
		cfg.DirectivityPower = 2
	}
	if cfg.DetectThreshold <= 0 || cfg.DetectThreshold >= 1 {
		if cfg.DetectThreshold == 0 {
			cfg.DetectThreshold = 0.3
		} else {
			return nil, fmt.Errorf("detect threshold must be in (0,1), got %g", cfg.DetectThreshold)
		}
	}
	if cfg.Sectors <= 0 {
		cfg.Sectors = 8
	}
	if cfg.RedundancyCap <= 0 {
		cfg.RedundancyCap = 4
	}
	for i, b := range cfg.Priors {
		if b.Sigma <= 0 {
			return nil, fmt.Errorf("prior blob %d sigma must be > 0, got %g", i, b.Sigma)
		}
		if b.Weight < 0 {
			return nil, fmt.Errorf("prior blob %d weight must be >= 0, got %g", i, b.Weight)
		}
	}

	m := &SourceGrid{cfg: cfg}
	nx := max(int(roi.Width()/cfg.CellSize), 1)
	ny := max(int(roi.Height()/cfg.CellSize), 1)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			center := geom.Point{
				X: roi.MinX + (float64(ix)+0.5)*cfg.CellSize,
				Y: roi.MinY + (float64(iy)+0.5)*cfg.CellSize,
			}
			if !cfg.Domain.InROI(center) {
				continue
			}
			w := 1.0
			for _, b := range cfg.Priors {
				d := center.DistanceTo(b.Center)
				w += b.Weight * math.Exp(-d*d/(2*b.Sigma*b.Sigma))
			}
			m.cells = append(m.cells, cell{center: center, weight: w})
			m.totalWeight += w
		}
	}
	if len(m.cells) == 0 {
		return nil, fmt.Errorf("source grid is empty: no cells inside the region of interest")
	}
	return m, nil
}

func (m *SourceGrid) Config() GridConfig { return m.cfg }

func (m *SourceGrid) CellCount() int { return len(m.cells) }

func (m *SourceGrid) Name() string { return "source_grid" }

func (m *SourceGrid) Quantities() []string {
	return []string{QuantityCoverage, QuantityResolution, QuantityRedundancy}
}

func (m *SourceGrid) Evaluate(ctx context.Context, lay *layout.Layout, quantity string) (float64, error) {
	switch quantity {
	case QuantityCoverage, QuantityResolution, QuantityRedundancy:
	default:
		return 0, &UnknownQuantityError{Model: m.Name(), Quantity: quantity}
	}
	channels := m.channels(lay)
	if len(channels) == 0 {
		return 0, nil
	}

	var coveredWeight, diversity, redundancy float64
	sectorSeen := make([]bool, m.cfg.Sectors)
	for i, c := range m.cells {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		covering := 0
		sectors := 0
		for s := range sectorSeen {
			sectorSeen[s] = false
		}
		for _, ch := range channels {
			sens := m.sensitivity(c.center, ch)
			if sens < m.cfg.DetectThreshold {
				continue
			}
			covering++
			az := math.Atan2(c.center.Y-ch.pos.Y, c.center.X-ch.pos.X)
			bin := int((az + math.Pi) / (2 * math.Pi) * float64(m.cfg.Sectors))
			if bin >= m.cfg.Sectors {
				bin = m.cfg.Sectors - 1
			}
			if !sectorSeen[bin] {
				sectorSeen[bin] = true
				sectors++
			}
		}
		if covering == 0 {
			continue
		}
		coveredWeight += c.weight
		diversity += c.weight * float64(sectors) / float64(m.cfg.Sectors)
		redundancy += c.weight * math.Min(float64(covering), float64(m.cfg.RedundancyCap)) / float64(m.cfg.RedundancyCap)
	}

	switch quantity {
	case QuantityCoverage:
		return coveredWeight / m.totalWeight, nil
	case QuantityResolution:
		if coveredWeight == 0 {
			return 0, nil
		}
		return diversity / coveredWeight, nil
	default:
		if coveredWeight == 0 {
			return 0, nil
		}
		return redundancy / coveredWeight, nil
	}
}

type channel struct {
	pos geom.Point
	dir geom.Point
}

// channels samples virtual measurement points along each cable together with
// the local fiber direction.
func (m *SourceGrid) channels(lay *layout.Layout) []channel {
	var out []channel
	for _, cable := range lay.Cables {
		if len(cable) < 2 {
			continue
		}
		pts := cable.Resample(m.cfg.SampleSpacing)
		for i := 1; i < len(pts); i++ {
			d := pts[i].Sub(pts[i-1])
			n := d.Norm()
			if n == 0 {
				continue
			}
			out = append(out, channel{pos: pts[i], dir: d.Scale(1 / n)})
		}
	}
	return out
}

// sensitivity is the response of one channel to a source at p: Gaussian
// distance falloff times the axial directivity of the fiber.
func (m *SourceGrid) sensitivity(p geom.Point, ch channel) float64 {
	to := p.Sub(ch.pos)
	d := to.Norm()
	if d > 3*m.cfg.SensingRadius {
		return 0
	}
	falloff := math.Exp(-d * d / (2 * m.cfg.SensingRadius * m.cfg.SensingRadius))
	if d == 0 {
		return falloff
	}
	cos := math.Abs(to.Dot(ch.dir)) / d
	return falloff * math.Pow(cos, m.cfg.DirectivityPower)
}
