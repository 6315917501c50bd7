package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"dasopt/internal/config"
	"dasopt/pkg/dasopt"
	"dasopt/pkg/logger"
)

const (
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
	defaultDBPath       = "dasopt.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "validate":
		return runValidate(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "benchmark":
		return runBenchmark(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "show":
		return runShow(ctx, args[1:])
	case "front":
		return runFront(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are the store and directory options every command shares.
type clientFlags struct {
	storeKind    *string
	dbPath       *string
	artifactsDir *string
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:    fs.String("store", "memory", "store backend: memory|sqlite"),
		dbPath:       fs.String("db-path", defaultDBPath, "sqlite database path"),
		artifactsDir: fs.String("artifacts", defaultArtifactsDir, "artifact root directory"),
	}
}

func (f clientFlags) newClient() (*dasopt.Client, error) {
	return dasopt.New(dasopt.Options{
		StoreKind:    *f.storeKind,
		DBPath:       *f.dbPath,
		ArtifactsDir: *f.artifactsDir,
		ExportsDir:   defaultExportsDir,
		Logger:       logger.NewText("info", os.Stderr),
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *cf.storeKind)
	return nil
}

func runValidate(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	studyPath := fs.String("study", "", "study YAML path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *studyPath == "" {
		return errors.New("validate requires --study")
	}

	study, err := config.LoadStudy(*studyPath)
	if err != nil {
		return err
	}

	encoder, err := study.BuildEncoder()
	if err != nil {
		return err
	}
	objectives, err := study.BuildObjectives()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(objectives))
	for _, spec := range objectives {
		names = append(names, spec.DisplayName())
	}

	fmt.Printf("study ok name=%s algorithm=%s dimension=%d objectives=%s constraints=%d\n",
		study.Name,
		study.Algorithm(),
		encoder.Dimension(),
		strings.Join(names, ","),
		len(study.Constraints),
	)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	studyPath := fs.String("study", "", "study YAML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", 0, "rng seed override (0 keeps the study seed)")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *studyPath == "" {
		return errors.New("run requires --study")
	}

	study, err := config.LoadStudy(*studyPath)
	if err != nil {
		return err
	}

	client, err := dasopt.New(dasopt.Options{
		StoreKind:    *cf.storeKind,
		DBPath:       *cf.dbPath,
		ArtifactsDir: *cf.artifactsDir,
		ExportsDir:   defaultExportsDir,
		Logger:       logger.NewText(study.LogLevel, os.Stderr),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.RunStudy(ctx, dasopt.RunStudyRequest{
		Study: study,
		RunID: *runID,
		Seed:  *seed,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("run completed run_id=%s study=%s kind=%s seed=%d reason=%s generations=%d evaluations=%d\n",
		summary.RunID,
		summary.Name,
		summary.Kind,
		summary.Seed,
		summary.Reason,
		summary.Generations,
		summary.Evaluations,
	)
	if summary.Kind == "pareto" {
		fmt.Printf("front_size=%d hypervolume=%.6f\n", summary.FrontSize, summary.BestScore)
	} else {
		fmt.Printf("best_score=%.6f best_params=%s\n", summary.BestScore, formatVector(summary.BestParams))
	}
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runBenchmark(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("benchmark", flag.ContinueOnError)
	studyPath := fs.String("study", "", "study YAML path")
	repeats := fs.Int("repeats", 5, "number of repeat runs")
	baseSeed := fs.Int64("base-seed", 0, "seed derivation base (0 keeps the study seed)")
	jsonOut := fs.Bool("json", false, "emit the benchmark summary as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *studyPath == "" {
		return errors.New("benchmark requires --study")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Benchmark(ctx, dasopt.BenchmarkRequest{
		StudyPath: *studyPath,
		Repeats:   *repeats,
		BaseSeed:  *baseSeed,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	fmt.Printf("benchmark completed id=%s study=%s algorithm=%s repeats=%d\n",
		summary.BenchmarkID,
		summary.Study,
		summary.Algorithm,
		summary.Repeats,
	)
	fmt.Printf("best_mean=%.6f best_std=%.6f best_min=%.6f best_max=%.6f\n",
		summary.BestMean,
		summary.BestStd,
		summary.BestMin,
		summary.BestMax,
	)
	for i, runID := range summary.RunIDs {
		fmt.Printf("repeat=%d run_id=%s seed=%d best_score=%.6f\n",
			i+1, runID, summary.Seeds[i], summary.BestScores[i])
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, dasopt.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s study=%s kind=%s seed=%d gens=%d evals=%d best_score=%.6f front_size=%d reason=%s\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Name,
			r.Kind,
			r.Seed,
			r.Generations,
			r.Evaluations,
			r.BestScore,
			r.FrontSize,
			r.Reason,
		)
	}
	return nil
}

func runShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from the run index")
	jsonOut := fs.Bool("json", false, "emit the run record as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	run, err := client.Run(ctx, *runID, *latest)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Printf("run_id=%s study=%s kind=%s seed=%d reason=%s generations=%d evaluations=%d objectives=%s\n",
		run.RunID,
		run.Name,
		run.Kind,
		run.Seed,
		run.Reason,
		run.Generations,
		run.Evaluations,
		strings.Join(run.Objectives, ","),
	)
	fmt.Printf("started_at=%s finished_at=%s\n", run.StartedAtUTC, run.FinishedAtUTC)
	if run.Best != nil {
		fmt.Printf("best score=%s penalty=%.6f feasible=%t params=%s\n",
			formatVector(run.Best.Raw),
			run.Best.Penalty,
			run.Best.Feasible,
			formatVector(run.Best.Params),
		)
	}
	if run.FrontSize > 0 {
		fmt.Printf("front_size=%d\n", run.FrontSize)
	}
	return nil
}

func runFront(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("front", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the front of the most recent run")
	jsonOut := fs.Bool("json", false, "emit front members as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	front, err := client.Front(ctx, dasopt.FrontRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if len(front) == 0 {
		fmt.Println("empty front")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(front)
	}

	for _, m := range front {
		fmt.Printf("seq=%d generation=%d objectives=%s penalty=%.6f params=%s\n",
			m.Seq,
			m.Generation,
			formatVector(m.Raw),
			m.Penalty,
			formatVector(m.Params),
		)
	}
	return nil
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show history for the most recent run")
	limit := fs.Int("limit", 0, "max generations to print (0 for all)")
	jsonOut := fs.Bool("json", false, "emit the convergence log as JSON")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	metrics, err := client.History(ctx, dasopt.HistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(metrics) == 0 {
		fmt.Println("no convergence log")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(metrics)
	}

	for _, m := range metrics {
		fmt.Printf("generation=%d evaluations=%d feasible=%d best=%.6f mean=%.6f front_size=%d hypervolume=%.6f spread=%.6f\n",
			m.Generation,
			m.Evaluations,
			m.FeasibleCount,
			m.BestScore,
			m.MeanScore,
			m.FrontSize,
			m.Hypervolume,
			m.Spread,
		)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from the run index")
	outDir := fs.String("out", "", "destination directory (defaults to exports/)")
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Export(ctx, dasopt.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("exported run_id=%s dir=%s\n", summary.RunID, summary.Directory)
	return nil
}

func formatVector(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: dasoptctl <init|reset|validate|run|benchmark|runs|show|front|history|export|plot> [flags]", msg)
}
