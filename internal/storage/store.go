package storage

import (
	"context"

	"dasopt/internal/model"
)

// Store persists optimization runs and their attached records. Lookups
// report absence through the ok return instead of an error; record payloads
// are versioned JSON envelopes checked on decode.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, runID string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	DeleteRun(ctx context.Context, runID string) error
	SaveCandidates(ctx context.Context, log model.CandidateLog) error
	GetCandidates(ctx context.Context, runID string) (model.CandidateLog, bool, error)
	SaveFront(ctx context.Context, front model.FrontRecord) error
	GetFront(ctx context.Context, runID string) (model.FrontRecord, bool, error)
	SaveMetrics(ctx context.Context, log model.MetricsLog) error
	GetMetrics(ctx context.Context, runID string) (model.MetricsLog, bool, error)
	Reset(ctx context.Context) error
}
