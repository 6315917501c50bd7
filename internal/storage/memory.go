package storage

import (
	"context"
	"sort"
	"sync"

	"dasopt/internal/model"
)

type MemoryStore struct {
	mu         sync.RWMutex
	runs       map[string]model.RunRecord
	candidates map[string]model.CandidateLog
	fronts     map[string]model.FrontRecord
	metrics    map[string]model.MetricsLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]model.RunRecord)
	s.candidates = make(map[string]model.CandidateLog)
	s.fronts = make(map[string]model.FrontRecord)
	s.metrics = make(map[string]model.MetricsLog)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.RunID] = copyRun(run)
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, runID string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[runID]
	if !ok {
		return model.RunRecord{}, false, nil
	}
	return copyRun(run), true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.RunRecord, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, copyRun(run))
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAtUTC != runs[j].StartedAtUTC {
			return runs[i].StartedAtUTC < runs[j].StartedAtUTC
		}
		return runs[i].RunID < runs[j].RunID
	})
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, runID)
	delete(s.candidates, runID)
	delete(s.fronts, runID)
	delete(s.metrics, runID)
	return nil
}

func (s *MemoryStore) SaveCandidates(_ context.Context, log model.CandidateLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates[log.RunID] = copyCandidateLog(log)
	return nil
}

func (s *MemoryStore) GetCandidates(_ context.Context, runID string) (model.CandidateLog, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.candidates[runID]
	if !ok {
		return model.CandidateLog{}, false, nil
	}
	return copyCandidateLog(log), true, nil
}

func (s *MemoryStore) SaveFront(_ context.Context, front model.FrontRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fronts[front.RunID] = copyFront(front)
	return nil
}

func (s *MemoryStore) GetFront(_ context.Context, runID string) (model.FrontRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	front, ok := s.fronts[runID]
	if !ok {
		return model.FrontRecord{}, false, nil
	}
	return copyFront(front), true, nil
}

func (s *MemoryStore) SaveMetrics(_ context.Context, log model.MetricsLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := log
	copied.Metrics = append([]model.GenerationMetric(nil), log.Metrics...)
	s.metrics[log.RunID] = copied
	return nil
}

func (s *MemoryStore) GetMetrics(_ context.Context, runID string) (model.MetricsLog, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.metrics[runID]
	if !ok {
		return model.MetricsLog{}, false, nil
	}
	copied := log
	copied.Metrics = append([]model.GenerationMetric(nil), log.Metrics...)
	return copied, true, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func copyRun(run model.RunRecord) model.RunRecord {
	copied := run
	copied.Objectives = append([]string(nil), run.Objectives...)
	copied.Config = append([]byte(nil), run.Config...)
	if run.Best != nil {
		best := run.Best.Clone()
		copied.Best = &best
	}
	return copied
}

func copyCandidateLog(log model.CandidateLog) model.CandidateLog {
	copied := log
	copied.Candidates = make([]model.Candidate, len(log.Candidates))
	for i, c := range log.Candidates {
		copied.Candidates[i] = c.Clone()
	}
	return copied
}

func copyFront(front model.FrontRecord) model.FrontRecord {
	copied := front
	copied.Members = make([]model.Candidate, len(front.Members))
	for i, c := range front.Members {
		copied.Members[i] = c.Clone()
	}
	return copied
}
