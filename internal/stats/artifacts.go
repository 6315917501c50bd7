// Package stats persists run artifacts to disk and renders the
// optional HTML charts for finished optimization runs. Artifacts are
// plain JSON and CSV files grouped in one directory per run, plus an
// append-only run index next to the run directories.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"dasopt/internal/model"
)

const runIndexFile = "run_index.json"

// RunArtifacts bundles everything the artifact writer persists for a
// single run.
type RunArtifacts struct {
	Run        model.RunRecord
	Candidates []model.Candidate
	Front      []model.Candidate
	Metrics    []model.GenerationMetric
	Layouts    LayoutsArtifact
	Charts     bool
}

// LayoutsArtifact holds the decoded cable paths for the run's best
// candidate and, on multi-objective runs, for the front members.
type LayoutsArtifact struct {
	Best  *model.LayoutRecord `json:"best,omitempty"`
	Front []FrontLayout       `json:"front,omitempty"`
}

// FrontLayout ties a decoded layout back to its front member by
// evaluation sequence number.
type FrontLayout struct {
	Seq    int                `json:"seq"`
	Layout model.LayoutRecord `json:"layout"`
}

// RunIndexEntry is one row of the run index.
type RunIndexEntry struct {
	RunID        string        `json:"run_id"`
	Name         string        `json:"name"`
	Kind         model.RunKind `json:"kind"`
	Seed         int64         `json:"seed"`
	Generations  int           `json:"generations"`
	Evaluations  int           `json:"evaluations"`
	BestScore    float64       `json:"best_score"`
	FrontSize    int           `json:"front_size"`
	Reason       string        `json:"reason,omitempty"`
	CreatedAtUTC string        `json:"created_at_utc"`
}

// WriteRunArtifacts writes the artifact set for one run under
// baseDir/<run id> and returns the run directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	if len(artifacts.Run.Config) > 0 {
		if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Run.Config); err != nil {
			return "", err
		}
	}
	if err := writeCandidatesCSV(filepath.Join(runDir, "candidates.csv"), artifacts.Run.Objectives, artifacts.Candidates); err != nil {
		return "", err
	}
	if len(artifacts.Front) > 0 {
		if err := writeJSON(filepath.Join(runDir, "front.json"), artifacts.Front); err != nil {
			return "", err
		}
		if err := writeCandidatesCSV(filepath.Join(runDir, "front.csv"), artifacts.Run.Objectives, artifacts.Front); err != nil {
			return "", err
		}
	}
	if err := writeJSON(filepath.Join(runDir, "convergence.json"), artifacts.Metrics); err != nil {
		return "", err
	}
	if err := writeConvergenceCSV(filepath.Join(runDir, "convergence.csv"), artifacts.Metrics); err != nil {
		return "", err
	}
	if artifacts.Layouts.Best != nil || len(artifacts.Layouts.Front) > 0 {
		if err := writeJSON(filepath.Join(runDir, "layouts.json"), artifacts.Layouts); err != nil {
			return "", err
		}
	}

	if artifacts.Charts {
		if len(artifacts.Run.Objectives) == 2 && len(artifacts.Front) > 0 {
			if err := WriteFrontChart(filepath.Join(runDir, "front.html"), artifacts.Run.Objectives, artifacts.Candidates, artifacts.Front); err != nil {
				return "", err
			}
		}
		if len(artifacts.Metrics) > 0 {
			if err := WriteConvergenceChart(filepath.Join(runDir, "convergence.html"), artifacts.Run.Kind, artifacts.Metrics); err != nil {
				return "", err
			}
		}
	}

	return runDir, nil
}

// AppendRunIndex records a finished run in the run index, replacing an
// existing entry with the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the run index entries sorted newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run's artifact directory into outDir and
// returns the destination directory.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	required := []string{"run.json", "candidates.csv", "convergence.json", "convergence.csv"}
	for _, file := range required {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	optional := []string{"config.json", "front.json", "front.csv", "layouts.json", "front.html", "convergence.html"}
	for _, file := range optional {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

// ReadRunRecord loads run.json from a run's artifact directory. The
// boolean reports whether the file exists.
func ReadRunRecord(baseDir, runID string) (model.RunRecord, bool, error) {
	path := filepath.Join(baseDir, runID, "run.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.RunRecord{}, false, nil
		}
		return model.RunRecord{}, false, err
	}

	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, false, err
	}
	return run, true, nil
}

// ReadFront loads front.json from a run's artifact directory.
func ReadFront(baseDir, runID string) ([]model.Candidate, bool, error) {
	path := filepath.Join(baseDir, runID, "front.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var front []model.Candidate
	if err := json.Unmarshal(data, &front); err != nil {
		return nil, false, err
	}
	return front, true, nil
}

// ReadConvergence loads convergence.json from a run's artifact
// directory.
func ReadConvergence(baseDir, runID string) ([]model.GenerationMetric, bool, error) {
	path := filepath.Join(baseDir, runID, "convergence.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var metrics []model.GenerationMetric
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, false, err
	}
	return metrics, true, nil
}

// ReadLayouts loads layouts.json from a run's artifact directory.
func ReadLayouts(baseDir, runID string) (LayoutsArtifact, bool, error) {
	path := filepath.Join(baseDir, runID, "layouts.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return LayoutsArtifact{}, false, nil
		}
		return LayoutsArtifact{}, false, err
	}

	var layouts LayoutsArtifact
	if err := json.Unmarshal(data, &layouts); err != nil {
		return LayoutsArtifact{}, false, err
	}
	return layouts, true, nil
}

// writeCandidatesCSV writes one row per candidate with the flattened
// parameter vector, the raw objective values in their natural
// direction, the penalty, the feasibility flag and the rejection
// reason. Raw objective cells stay empty for candidates that were
// never evaluated.
func writeCandidatesCSV(path string, objectives []string, candidates []model.Candidate) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	dims := 0
	if len(candidates) > 0 {
		dims = len(candidates[0].Params)
	}
	header := make([]string, 0, dims+len(objectives)+5)
	header = append(header, "generation", "seq")
	for i := 0; i < dims; i++ {
		header = append(header, "p"+strconv.Itoa(i))
	}
	header = append(header, objectives...)
	header = append(header, "penalty", "feasible", "reason")

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, c := range candidates {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(c.Generation), strconv.Itoa(c.Seq))
		for _, p := range c.Params {
			row = append(row, strconv.FormatFloat(p, 'f', -1, 64))
		}
		for i := range objectives {
			if i < len(c.Raw) {
				row = append(row, strconv.FormatFloat(c.Raw[i], 'f', -1, 64))
			} else {
				row = append(row, "")
			}
		}
		row = append(row,
			strconv.FormatFloat(c.Penalty, 'f', -1, 64),
			strconv.FormatBool(c.Feasible),
			c.Reason,
		)
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeConvergenceCSV(path string, metrics []model.GenerationMetric) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"generation", "evaluations", "feasible_count", "best_score", "mean_score", "best_penalty", "front_size", "hypervolume", "spread"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, m := range metrics {
		if err := writer.Write([]string{
			strconv.Itoa(m.Generation),
			strconv.Itoa(m.Evaluations),
			strconv.Itoa(m.FeasibleCount),
			strconv.FormatFloat(m.BestScore, 'f', -1, 64),
			strconv.FormatFloat(m.MeanScore, 'f', -1, 64),
			strconv.FormatFloat(m.BestPenalty, 'f', -1, 64),
			strconv.Itoa(m.FrontSize),
			strconv.FormatFloat(m.Hypervolume, 'f', -1, 64),
			strconv.FormatFloat(m.Spread, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
