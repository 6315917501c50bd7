// Package dasopt is the client facade over the layout optimization
// platform: it owns a store and a lab, loads study files, executes runs
// and benchmarks, and reads back persisted results and artifacts.
package dasopt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"dasopt/internal/config"
	"dasopt/internal/forward"
	"dasopt/internal/model"
	"dasopt/internal/platform"
	"dasopt/internal/stats"
	"dasopt/internal/storage"
	"dasopt/pkg/logger"
)

const (
	defaultDBPath       = "dasopt.db"
	defaultArtifactsDir = "artifacts"
	defaultExportsDir   = "exports"
)

type Options struct {
	// StoreKind is memory or sqlite; empty selects memory.
	StoreKind string
	// DBPath is the sqlite database file.
	DBPath string
	// ArtifactsDir is the artifact root for every run the client executes.
	// It overrides per-study artifact dirs so the client's run index stays
	// in one place.
	ArtifactsDir string
	ExportsDir   string
	// Models are external forward models registered ahead of the builtins.
	Models []forward.Model
	Logger *slog.Logger
}

type Client struct {
	store storage.Store
	lab   *platform.Lab
	log   *slog.Logger

	models       []forward.Model
	artifactsDir string
	exportsDir   string
}

type RunStudyRequest struct {
	// StudyPath names a YAML study file; Study takes precedence when set.
	StudyPath string
	Study     *config.Study
	// RunID pins the run identifier; empty generates one.
	RunID string
	// Seed overrides the study seed when nonzero.
	Seed int64
}

type RunSummary struct {
	RunID        string
	Name         string
	Kind         model.RunKind
	Seed         int64
	Reason       string
	Generations  int
	Evaluations  int
	BestScore    float64
	BestParams   []float64
	FrontSize    int
	ArtifactsDir string
}

type BenchmarkRequest struct {
	StudyPath string
	Study     *config.Study
	Repeats   int
	// BaseSeed feeds the seed derivation; 0 falls back to the study seed.
	BaseSeed int64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Name         string
	Kind         model.RunKind
	Seed         int64
	Generations  int
	Evaluations  int
	BestScore    float64
	FrontSize    int
	Reason       string
}

type FrontRequest struct {
	RunID  string
	Latest bool
}

type HistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default
	}

	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          log,
		models:       opts.Models,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.lab != nil {
		c.lab.Shutdown()
		c.lab = nil
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureLab(ctx)
	return err
}

// RegisterModel adds an external forward model so studies can name it.
func (c *Client) RegisterModel(ctx context.Context, m forward.Model) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.RegisterModel(m)
}

func (c *Client) RunStudy(ctx context.Context, req RunStudyRequest) (RunSummary, error) {
	study, err := c.loadStudy(req.StudyPath, req.Study)
	if err != nil {
		return RunSummary{}, err
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	res, err := lab.RunStudy(ctx, platform.RunRequest{
		Study:        study,
		RunID:        req.RunID,
		Seed:         req.Seed,
		ArtifactsDir: c.artifactsDir,
	})
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:        res.Run.RunID,
		Name:         res.Run.Name,
		Kind:         res.Run.Kind,
		Seed:         res.Run.Seed,
		Reason:       res.Run.Reason,
		Generations:  res.Run.Generations,
		Evaluations:  res.Run.Evaluations,
		FrontSize:    res.Run.FrontSize,
		ArtifactsDir: filepath.Clean(res.ArtifactsDir),
	}
	if best := res.Run.Best; best != nil {
		summary.BestParams = append([]float64(nil), best.Params...)
		if len(best.Raw) > 0 {
			summary.BestScore = best.Raw[0]
		}
	} else if len(res.Metrics) > 0 {
		summary.BestScore = res.Metrics[len(res.Metrics)-1].Hypervolume
	}
	return summary, nil
}

func (c *Client) Benchmark(ctx context.Context, req BenchmarkRequest) (stats.BenchmarkSummary, error) {
	study, err := c.loadStudy(req.StudyPath, req.Study)
	if err != nil {
		return stats.BenchmarkSummary{}, err
	}
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return stats.BenchmarkSummary{}, err
	}

	res, err := lab.Benchmark(ctx, platform.BenchmarkRequest{
		Study:        study,
		Repeats:      req.Repeats,
		BaseSeed:     req.BaseSeed,
		ArtifactsDir: c.artifactsDir,
	})
	if err != nil {
		return stats.BenchmarkSummary{}, err
	}
	return res.Summary, nil
}

// Runs lists the run index, newest first.
func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Name:         e.Name,
			Kind:         e.Kind,
			Seed:         e.Seed,
			Generations:  e.Generations,
			Evaluations:  e.Evaluations,
			BestScore:    e.BestScore,
			FrontSize:    e.FrontSize,
			Reason:       e.Reason,
		})
	}
	return out, nil
}

// Run loads the persisted record of one run. The store is authoritative;
// when it misses (a fresh client over a memory store) the run's artifact
// directory is consulted instead.
func (c *Client) Run(ctx context.Context, runID string, latest bool) (model.RunRecord, error) {
	id, err := c.resolveRunID(runID, latest)
	if err != nil {
		return model.RunRecord{}, err
	}
	if _, err := c.ensureLab(ctx); err != nil {
		return model.RunRecord{}, err
	}
	run, ok, err := c.store.GetRun(ctx, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		run, ok, err = stats.ReadRunRecord(c.artifactsDir, id)
		if err != nil {
			return model.RunRecord{}, err
		}
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("run not found: %s", id)
	}
	return run, nil
}

// Front loads the persisted Pareto front of a multi-objective run, falling
// back to the run's artifacts when the store misses.
func (c *Client) Front(ctx context.Context, req FrontRequest) ([]model.Candidate, error) {
	id, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureLab(ctx); err != nil {
		return nil, err
	}
	front, ok, err := c.store.GetFront(ctx, id)
	if err != nil {
		return nil, err
	}
	members := front.Members
	if !ok {
		members, ok, err = stats.ReadFront(c.artifactsDir, id)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("front not found for run id: %s", id)
	}
	out := make([]model.Candidate, len(members))
	for i, m := range members {
		out[i] = m.Clone()
	}
	return out, nil
}

// History loads a run's generation-by-generation convergence log, falling
// back to the run's artifacts when the store misses.
func (c *Client) History(ctx context.Context, req HistoryRequest) ([]model.GenerationMetric, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	id, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureLab(ctx); err != nil {
		return nil, err
	}
	log, ok, err := c.store.GetMetrics(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics := log.Metrics
	if !ok {
		metrics, ok, err = stats.ReadConvergence(c.artifactsDir, id)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("convergence log not found for run id: %s", id)
	}
	if req.Limit > 0 && len(metrics) > req.Limit {
		metrics = metrics[:req.Limit]
	}
	return append([]model.GenerationMetric(nil), metrics...), nil
}

// Export copies a run's artifact directory under the exports root.
func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	id, err := c.resolveRunID(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	outDir := req.OutDir
	if outDir == "" {
		outDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, id, outDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: id, Directory: filepath.Clean(exportedDir)}, nil
}

// StopRun asks an in-flight run to stop at its next generation boundary.
func (c *Client) StopRun(runID string) error {
	if c.lab == nil {
		return errors.New("no active lab")
	}
	return c.lab.StopRun(runID)
}

// Reset wipes the store and restarts the lab. Artifacts on disk stay.
func (c *Client) Reset(ctx context.Context) error {
	lab, err := c.ensureLab(ctx)
	if err != nil {
		return err
	}
	return lab.Reset(ctx)
}

func (c *Client) ensureLab(ctx context.Context) (*platform.Lab, error) {
	if c.lab != nil {
		return c.lab, nil
	}
	lab := platform.NewLab(platform.Config{
		Store:  c.store,
		Models: c.models,
		Logger: c.log,
	})
	if err := lab.Init(ctx); err != nil {
		return nil, err
	}
	c.lab = lab
	return c.lab, nil
}

func (c *Client) loadStudy(path string, study *config.Study) (*config.Study, error) {
	if study != nil {
		return study, nil
	}
	if path == "" {
		return nil, errors.New("study file or study is required")
	}
	return config.LoadStudy(path)
}

func (c *Client) resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", errors.New("run id or latest is required")
	}
	return runID, nil
}
