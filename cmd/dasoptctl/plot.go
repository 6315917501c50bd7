package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"dasopt/internal/model"
	"dasopt/internal/stats"
)

// runPlot re-renders the HTML charts of a finished run from its artifact
// directory, so charts can be produced after the fact for runs that were
// executed with artifacts.charts disabled.
func runPlot(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "plot the most recent run from the run index")
	artifactsDir := fs.String("artifacts", defaultArtifactsDir, "artifact root directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}

	id := *runID
	if *latest {
		entries, err := stats.ListRunIndex(*artifactsDir)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New("no runs available")
		}
		id = entries[0].RunID
	}
	if id == "" {
		return errors.New("plot requires --run-id or --latest")
	}

	run, ok, err := stats.ReadRunRecord(*artifactsDir, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run artifacts not found: %s", id)
	}
	metrics, ok, err := stats.ReadConvergence(*artifactsDir, id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("convergence log not found for run id: %s", id)
	}

	runDir := filepath.Join(*artifactsDir, id)
	convergencePath := filepath.Join(runDir, "convergence.html")
	if err := stats.WriteConvergenceChart(convergencePath, run.Kind, metrics); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", convergencePath)

	front, hasFront, err := stats.ReadFront(*artifactsDir, id)
	if err != nil {
		return err
	}
	if !hasFront || len(run.Objectives) != 2 {
		return nil
	}

	candidates, err := readCandidatesCSV(filepath.Join(runDir, "candidates.csv"), len(run.Objectives))
	if err != nil {
		return err
	}
	frontPath := filepath.Join(runDir, "front.html")
	if err := stats.WriteFrontChart(frontPath, run.Objectives, candidates, front); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", frontPath)
	return nil
}

// readCandidatesCSV recovers the raw objective values of every evaluated
// candidate from the candidates table. The objective columns sit between
// the parameter columns and the trailing penalty/feasible/reason triple;
// rows whose objective cells are empty were never evaluated and are
// skipped.
func readCandidatesCSV(path string, objectives int) ([]model.Candidate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("candidates table %s is empty", path)
	}

	header := rows[0]
	firstObjective := len(header) - objectives - 3
	if firstObjective < 2 {
		return nil, fmt.Errorf("candidates table %s has %d columns, too few for %d objectives",
			path, len(header), objectives)
	}

	candidates := make([]model.Candidate, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("candidates table %s has a ragged row of %d cells", path, len(row))
		}
		if row[firstObjective] == "" {
			continue
		}
		raw := make([]float64, objectives)
		for i := range raw {
			v, err := strconv.ParseFloat(row[firstObjective+i], 64)
			if err != nil {
				return nil, fmt.Errorf("candidates table %s: bad objective cell %q", path, row[firstObjective+i])
			}
			raw[i] = v
		}
		candidates = append(candidates, model.Candidate{Raw: raw})
	}
	return candidates, nil
}
