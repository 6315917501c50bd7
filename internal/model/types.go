package model

import (
	"encoding/json"

	"dasopt/internal/geom"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// LayoutRecord is the serializable shape of an encoded layout: one point
// sequence per cable plus the total deployed length.
type LayoutRecord struct {
	Cables []geom.Polyline `json:"cables"`
	Length float64         `json:"length"`
}

func (l *LayoutRecord) Clone() *LayoutRecord {
	if l == nil {
		return nil
	}
	out := &LayoutRecord{Length: l.Length}
	out.Cables = make([]geom.Polyline, len(l.Cables))
	for i, c := range l.Cables {
		out.Cables[i] = c.Clone()
	}
	return out
}

// Candidate is one evaluated point of the search: the parameter vector, its
// objective values in both natural and minimize orientation, and the
// feasibility verdict. Candidates are immutable once created; the generation
// they belong to is recorded as an index, the archive owns the reverse
// mapping.
type Candidate struct {
	Params     []float64     `json:"params"`
	Objectives []float64     `json:"objectives"`
	Raw        []float64     `json:"raw,omitempty"`
	Penalty    float64       `json:"penalty"`
	Feasible   bool          `json:"feasible"`
	Reason     string        `json:"reason,omitempty"`
	Generation int           `json:"generation"`
	Seq        int           `json:"seq"`
	Layout     *LayoutRecord `json:"layout,omitempty"`
}

func (c Candidate) Clone() Candidate {
	out := c
	out.Params = append([]float64(nil), c.Params...)
	out.Objectives = append([]float64(nil), c.Objectives...)
	out.Raw = append([]float64(nil), c.Raw...)
	out.Layout = c.Layout.Clone()
	return out
}

type RunKind string

const (
	RunSingle RunKind = "single"
	RunPareto RunKind = "pareto"
)

type RunRecord struct {
	VersionedRecord
	RunID         string          `json:"run_id"`
	Name          string          `json:"name"`
	Kind          RunKind         `json:"kind"`
	Seed          int64           `json:"seed"`
	Objectives    []string        `json:"objectives"`
	Config        json.RawMessage `json:"config,omitempty"`
	StartedAtUTC  string          `json:"started_at_utc"`
	FinishedAtUTC string          `json:"finished_at_utc,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Generations   int             `json:"generations"`
	Evaluations   int             `json:"evaluations"`
	Best          *Candidate      `json:"best,omitempty"`
	FrontSize     int             `json:"front_size"`
}

// GenerationMetric is one row of the convergence log.
type GenerationMetric struct {
	Generation    int     `json:"generation"`
	Evaluations   int     `json:"evaluations"`
	FeasibleCount int     `json:"feasible_count"`
	BestScore     float64 `json:"best_score"`
	MeanScore     float64 `json:"mean_score"`
	BestPenalty   float64 `json:"best_penalty"`
	FrontSize     int     `json:"front_size"`
	Hypervolume   float64 `json:"hypervolume"`
	Spread        float64 `json:"spread"`
}

type FrontRecord struct {
	VersionedRecord
	RunID   string      `json:"run_id"`
	Members []Candidate `json:"members"`
}

type CandidateLog struct {
	VersionedRecord
	RunID      string      `json:"run_id"`
	Candidates []Candidate `json:"candidates"`
}

type MetricsLog struct {
	VersionedRecord
	RunID   string             `json:"run_id"`
	Metrics []GenerationMetric `json:"metrics"`
}
