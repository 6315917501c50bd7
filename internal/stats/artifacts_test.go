package stats

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"dasopt/internal/geom"
	"dasopt/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	best := model.Candidate{
		Params:     []float64{0.25, 0.5, 0.75, 1},
		Objectives: []float64{-57.2, 4200},
		Raw:        []float64{57.2, 4200},
		Feasible:   true,
		Generation: 3,
		Seq:        41,
	}
	second := model.Candidate{
		Params:     []float64{0.3, 0.3, 0.6, 0.9},
		Objectives: []float64{-51, 3900},
		Raw:        []float64{51, 3900},
		Feasible:   true,
		Generation: 3,
		Seq:        44,
	}
	rejected := model.Candidate{
		Params:     []float64{0.1, 0.2, 0.3, 0.4},
		Penalty:    12.5,
		Reason:     "bend",
		Generation: 1,
		Seq:        2,
	}

	return RunArtifacts{
		Run: model.RunRecord{
			RunID:        runID,
			Name:         "coastal-array",
			Kind:         model.RunPareto,
			Seed:         7,
			Objectives:   []string{"coverage", "cable_cost"},
			Config:       []byte(`{"name":"coastal-array","seed":7}`),
			StartedAtUTC: "2026-03-01T09:00:00Z",
			Reason:       "generations",
			Generations:  3,
			Evaluations:  48,
			Best:         &best,
			FrontSize:    2,
		},
		Candidates: []model.Candidate{rejected, best, second},
		Front:      []model.Candidate{best, second},
		Metrics: []model.GenerationMetric{
			{Generation: 1, Evaluations: 16, FeasibleCount: 12, BestScore: 49.5, MeanScore: 30.1, FrontSize: 3, Hypervolume: 1100, Spread: 0.4},
			{Generation: 2, Evaluations: 32, FeasibleCount: 14, BestScore: 55.0, MeanScore: 38.6, FrontSize: 2, Hypervolume: 1180, Spread: 0.3},
			{Generation: 3, Evaluations: 48, FeasibleCount: 15, BestScore: 57.2, MeanScore: 42.9, FrontSize: 2, Hypervolume: 1240, Spread: 0.25},
		},
		Layouts: LayoutsArtifact{
			Best: &model.LayoutRecord{
				Cables: []geom.Polyline{{{X: 100, Y: 1000}, {X: 600, Y: 1100}}},
				Length: 509.9,
			},
			Front: []FrontLayout{{
				Seq: 41,
				Layout: model.LayoutRecord{
					Cables: []geom.Polyline{{{X: 100, Y: 1000}, {X: 600, Y: 1100}}},
					Length: 509.9,
				},
			}},
		},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runID := "run-123"
	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	files := []string{"run.json", "config.json", "candidates.csv", "front.json", "front.csv", "convergence.json", "convergence.csv", "layouts.json"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}
	for _, file := range []string{"front.html", "convergence.html"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); !os.IsNotExist(err) {
			t.Fatalf("expected no chart file %s without charts enabled", file)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, runID, outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	if _, err := WriteRunArtifacts(baseDir, RunArtifacts{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
	if _, err := ExportRunArtifacts(baseDir, "absent", outDir); err == nil {
		t.Fatal("expected error for unknown run id")
	}
}

func TestCandidatesCSVColumns(t *testing.T) {
	baseDir := t.TempDir()

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-csv"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	file, err := os.Open(filepath.Join(runDir, "candidates.csv"))
	if err != nil {
		t.Fatalf("open candidates.csv: %v", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read candidates.csv: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header and 3 rows, got %d", len(rows))
	}

	want := []string{"generation", "seq", "p0", "p1", "p2", "p3", "coverage", "cable_cost", "penalty", "feasible", "reason"}
	if len(rows[0]) != len(want) {
		t.Fatalf("expected %d header columns, got %d: %v", len(want), len(rows[0]), rows[0])
	}
	for i, col := range want {
		if rows[0][i] != col {
			t.Fatalf("header column %d: got %s, want %s", i, rows[0][i], col)
		}
	}

	// The rejected candidate keeps its objective cells empty.
	rejected := rows[1]
	if rejected[6] != "" || rejected[7] != "" {
		t.Fatalf("expected empty objective cells for rejected candidate, got %v", rejected)
	}
	if rejected[8] != "12.5" || rejected[9] != "false" || rejected[10] != "bend" {
		t.Fatalf("unexpected rejected row: %v", rejected)
	}

	evaluated := rows[2]
	if evaluated[6] != "57.2" || evaluated[7] != "4200" {
		t.Fatalf("unexpected objective cells: %v", evaluated)
	}
	if evaluated[9] != "true" {
		t.Fatalf("expected feasible candidate, got %v", evaluated)
	}
}

func TestWriteRunArtifactsCharts(t *testing.T) {
	baseDir := t.TempDir()

	artifacts := sampleArtifacts("run-charts")
	artifacts.Charts = true
	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	for _, file := range []string{"front.html", "convergence.html"} {
		info, err := os.Stat(filepath.Join(runDir, file))
		if err != nil {
			t.Fatalf("expected chart file %s: %v", file, err)
		}
		if info.Size() == 0 {
			t.Fatalf("chart file %s is empty", file)
		}
	}
}

func TestReadRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()

	runID := "run-read"
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts(runID)); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	run, ok, err := ReadRunRecord(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read run record: ok=%v err=%v", ok, err)
	}
	if run.RunID != runID || run.Name != "coastal-array" || len(run.Objectives) != 2 {
		t.Fatalf("unexpected run record: %+v", run)
	}
	if run.Best == nil || run.Best.Raw[0] != 57.2 {
		t.Fatalf("unexpected best candidate: %+v", run.Best)
	}

	front, ok, err := ReadFront(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read front: ok=%v err=%v", ok, err)
	}
	if len(front) != 2 || front[1].Raw[1] != 3900 {
		t.Fatalf("unexpected front: %+v", front)
	}

	metrics, ok, err := ReadConvergence(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read convergence: ok=%v err=%v", ok, err)
	}
	if len(metrics) != 3 || metrics[2].Hypervolume != 1240 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}

	layouts, ok, err := ReadLayouts(baseDir, runID)
	if err != nil || !ok {
		t.Fatalf("read layouts: ok=%v err=%v", ok, err)
	}
	if layouts.Best == nil || layouts.Best.Length != 509.9 {
		t.Fatalf("unexpected layouts: %+v", layouts)
	}
	if len(layouts.Front) != 1 || layouts.Front[0].Seq != 41 {
		t.Fatalf("unexpected front layouts: %+v", layouts.Front)
	}

	if _, ok, err := ReadRunRecord(baseDir, "absent"); err != nil || ok {
		t.Fatalf("expected missing run record: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadFront(baseDir, "absent"); err != nil || ok {
		t.Fatalf("expected missing front: ok=%v err=%v", ok, err)
	}
}

func TestRunIndexAppendListAndUpsert(t *testing.T) {
	baseDir := t.TempDir()

	err := AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-1",
		Name:         "coastal-array",
		Kind:         model.RunSingle,
		Seed:         1,
		Generations:  40,
		Evaluations:  960,
		BestScore:    57.2,
		CreatedAtUTC: "2026-03-01T10:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-1: %v", err)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-2",
		Name:         "coastal-array",
		Kind:         model.RunSingle,
		Seed:         2,
		Generations:  40,
		Evaluations:  960,
		BestScore:    58.4,
		CreatedAtUTC: "2026-03-01T11:00:00Z",
	})
	if err != nil {
		t.Fatalf("append run-2: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-2" || entries[1].RunID != "run-1" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	err = AppendRunIndex(baseDir, RunIndexEntry{
		RunID:        "run-1",
		Name:         "coastal-array",
		Kind:         model.RunSingle,
		Seed:         1,
		Generations:  60,
		Evaluations:  1440,
		BestScore:    60.9,
		CreatedAtUTC: "2026-03-01T12:00:00Z",
	})
	if err != nil {
		t.Fatalf("upsert run-1: %v", err)
	}

	entries, err = ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list after upsert: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after upsert, got %d", len(entries))
	}
	if entries[0].RunID != "run-1" || entries[0].BestScore != 60.9 {
		t.Fatalf("unexpected upsert result: %+v", entries[0])
	}
}

func TestRunIndexEqualTimestampPrefersLaterAppend(t *testing.T) {
	baseDir := t.TempDir()
	ts := "2026-03-01T12:00:00Z"

	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-a: %v", err)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-b", CreatedAtUTC: ts}); err != nil {
		t.Fatalf("append run-b: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" {
		t.Fatalf("expected latest appended run-b first, got %+v", entries)
	}
}
