//go:build sqlite

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"dasopt/internal/model"
)

func TestSQLiteStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dasopt.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	run := testRun("run-1", "2026-01-02T10:00:00Z")
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if loaded.RunID != run.RunID || loaded.Best == nil || loaded.Best.Objectives[0] != 57.2 {
		t.Fatalf("unexpected run loaded: %+v", loaded)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing run: ok=%t err=%v", ok, err)
	}

	// Saving again with the same id updates in place.
	run.Reason = "stopped"
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run update: %v", err)
	}
	updated, _, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get updated run: %v", err)
	}
	if updated.Reason != "stopped" {
		t.Fatalf("update lost: reason = %q", updated.Reason)
	}
}

func TestSQLiteStoreListAndDelete(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dasopt.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	for _, run := range []model.RunRecord{
		testRun("run-b", "2026-01-02T12:00:00Z"),
		testRun("run-a", "2026-01-02T10:00:00Z"),
	} {
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %s: %v", run.RunID, err)
		}
	}
	front := model.FrontRecord{VersionedRecord: Versioned(), RunID: "run-a"}
	if err := store.SaveFront(ctx, front); err != nil {
		t.Fatalf("save front: %v", err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "run-a" || runs[1].RunID != "run-b" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	if err := store.DeleteRun(ctx, "run-a"); err != nil {
		t.Fatalf("delete run: %v", err)
	}
	if _, ok, _ := store.GetRun(ctx, "run-a"); ok {
		t.Fatal("run survived deletion")
	}
	if _, ok, _ := store.GetFront(ctx, "run-a"); ok {
		t.Fatal("front survived run deletion")
	}
	if _, ok, _ := store.GetRun(ctx, "run-b"); !ok {
		t.Fatal("unrelated run deleted")
	}
}

func TestSQLiteStoreRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dasopt.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	log := model.CandidateLog{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Candidates: []model.Candidate{
			{Params: []float64{0.1, 0.9}, Objectives: []float64{44.5}, Feasible: true, Seq: 0},
			{Params: []float64{0.7, 0.7}, Penalty: 5, Reason: "bend", Seq: 1},
		},
	}
	if err := store.SaveCandidates(ctx, log); err != nil {
		t.Fatalf("save candidates: %v", err)
	}
	loadedLog, ok, err := store.GetCandidates(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get candidates: ok=%t err=%v", ok, err)
	}
	if len(loadedLog.Candidates) != 2 || loadedLog.Candidates[1].Reason != "bend" {
		t.Fatalf("unexpected candidates: %+v", loadedLog)
	}

	front := model.FrontRecord{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Members: []model.Candidate{
			{Params: []float64{0.2, 0.4}, Objectives: []float64{30, -0.6}, Feasible: true},
		},
	}
	if err := store.SaveFront(ctx, front); err != nil {
		t.Fatalf("save front: %v", err)
	}
	loadedFront, ok, err := store.GetFront(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get front: ok=%t err=%v", ok, err)
	}
	if len(loadedFront.Members) != 1 || loadedFront.Members[0].Objectives[1] != -0.6 {
		t.Fatalf("unexpected front: %+v", loadedFront)
	}

	metrics := model.MetricsLog{
		VersionedRecord: Versioned(),
		RunID:           "run-1",
		Metrics: []model.GenerationMetric{
			{Generation: 0, Evaluations: 12, BestScore: 60.1},
		},
	}
	if err := store.SaveMetrics(ctx, metrics); err != nil {
		t.Fatalf("save metrics: %v", err)
	}
	loadedMetrics, ok, err := store.GetMetrics(ctx, "run-1")
	if err != nil || !ok {
		t.Fatalf("get metrics: ok=%t err=%v", ok, err)
	}
	if len(loadedMetrics.Metrics) != 1 || loadedMetrics.Metrics[0].BestScore != 60.1 {
		t.Fatalf("unexpected metrics: %+v", loadedMetrics)
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dasopt.db")

	first := NewSQLiteStore(dbPath)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveRun(ctx, testRun("run-1", "2026-01-02T10:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(dbPath)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})

	loaded, ok, err := second.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok || loaded.RunID != "run-1" {
		t.Fatalf("run lost across reopen: ok=%t run=%+v", ok, loaded)
	}
}

func TestSQLiteStoreReset(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "dasopt.db")

	store := NewSQLiteStore(dbPath)
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.SaveRun(ctx, testRun("run-1", "2026-01-02T10:00:00Z")); err != nil {
		t.Fatalf("save run: %v", err)
	}
	if err := store.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("%d runs survived reset", len(runs))
	}
}

func TestSQLiteStoreRequiresInit(t *testing.T) {
	store := NewSQLiteStore(filepath.Join(t.TempDir(), "dasopt.db"))
	if err := store.SaveRun(context.Background(), testRun("run-1", "2026-01-02T10:00:00Z")); err == nil {
		t.Fatal("save before init accepted")
	}
}
