package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"dasopt/internal/archive"
	"dasopt/internal/config"
	"dasopt/internal/evo"
	"dasopt/internal/forward"
	"dasopt/internal/layout"
	"dasopt/internal/model"
	"dasopt/internal/objective"
	"dasopt/internal/stats"
	"dasopt/internal/storage"
)

const defaultArtifactsDir = "artifacts"

type RunRequest struct {
	Study *config.Study
	// RunID pins the run identifier; empty generates a UUID.
	RunID string
	// Seed overrides the study seed when nonzero.
	Seed int64
	// ArtifactsDir overrides the study's artifact root.
	ArtifactsDir string
}

type RunResult struct {
	Run     model.RunRecord
	Front   []model.Candidate
	Metrics []model.GenerationMetric
	// ArtifactsDir is the per-run directory the artifacts were written to.
	ArtifactsDir string
}

// RunStudy executes one optimization run end to end: it builds the encoder,
// constraints and evaluator from the study, runs the configured algorithm,
// persists the run records in the store and writes the artifact directory.
// A cooperative stop (StopRun, lab shutdown or context cancellation) ends
// the run at a generation boundary with reason "stopped", not an error.
func (l *Lab) RunStudy(ctx context.Context, req RunRequest) (*RunResult, error) {
	study := req.Study
	if study == nil {
		return nil, fmt.Errorf("study is required")
	}
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}

	l.mu.RLock()
	started := l.started
	l.mu.RUnlock()
	if !started {
		return nil, fmt.Errorf("lab is not initialized")
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	seed := study.Seed
	if req.Seed != 0 {
		seed = req.Seed
	}
	if seed == 0 {
		seed = evo.DefaultSeed
	}

	fwd, err := l.resolveModel(study)
	if err != nil {
		return nil, err
	}
	encoder, err := study.BuildEncoder()
	if err != nil {
		return nil, err
	}
	constraints, err := study.BuildConstraints()
	if err != nil {
		return nil, err
	}
	specs, err := study.BuildObjectives()
	if err != nil {
		return nil, err
	}
	evalTimeout, err := study.Optimizer.GetEvalTimeout()
	if err != nil {
		return nil, err
	}
	deadline, err := study.Optimizer.GetDeadline()
	if err != nil {
		return nil, err
	}

	var cache objective.Cache
	switch study.Cache.Kind {
	case "", "memory":
	case "badger":
		bc, err := objective.OpenBadgerCache(study.Cache.Dir)
		if err != nil {
			return nil, err
		}
		defer func() { _ = bc.Close() }()
		cache = bc
	default:
		return nil, fmt.Errorf("unknown cache kind: %s", study.Cache.Kind)
	}

	evaluator, err := objective.NewEvaluator(objective.Config{
		Model:        fwd,
		Specs:        specs,
		Cache:        cache,
		Timeout:      evalTimeout,
		CostPerMeter: study.Cost.PerMeter,
		CostPerCable: study.Cost.PerCable,
	})
	if err != nil {
		return nil, err
	}

	cfgJSON, err := studyJSON(study)
	if err != nil {
		return nil, err
	}

	handle, err := l.registerRun(runID)
	if err != nil {
		return nil, err
	}
	defer l.unregisterRun(runID)

	algo := study.Algorithm()
	kind := model.RunSingle
	if algo == config.AlgorithmNSGA2 {
		kind = model.RunPareto
	}

	runLog := l.log.With("run_id", runID)
	startedAt := time.Now().UTC()
	runLog.Info("run started",
		"study", study.Name,
		"kind", string(kind),
		"seed", seed,
		"population", study.Optimizer.Population,
		"generations", study.Optimizer.Generations)

	problem, err := evo.NewProblem(evo.ProblemConfig{
		Encoder:     encoder,
		Constraints: constraints,
		Evaluator:   evaluator,
		Repair:      study.Repair,
		KeepLayouts: study.Artifacts.KeepLayouts,
		Logger:      runLog,
	})
	if err != nil {
		return nil, err
	}
	arch := archive.New(0)

	variation := evo.Variation{
		CrossoverRate: study.Optimizer.CrossoverRate,
		MutationRate:  study.Optimizer.MutationRate,
	}
	stall, err := study.Optimizer.BuildStall()
	if err != nil {
		return nil, err
	}

	var best *model.Candidate
	var front []model.Candidate
	var reason string
	var generations, evaluations int

	switch algo {
	case config.AlgorithmSingle:
		selector, err := study.Optimizer.BuildSelector()
		if err != nil {
			return nil, err
		}
		polisher, err := study.Optimizer.BuildPolisher()
		if err != nil {
			return nil, err
		}
		single, err := evo.NewSingle(evo.SingleConfig{
			Problem:        problem,
			PopulationSize: study.Optimizer.Population,
			EliteCount:     study.Optimizer.Elites,
			Generations:    study.Optimizer.Generations,
			MaxEvaluations: study.Optimizer.MaxEvaluations,
			Workers:        study.Optimizer.Workers,
			Seed:           seed,
			Selector:       selector,
			Variation:      variation,
			Stall:          stall,
			Goal:           study.Optimizer.Goal,
			Deadline:       deadline,
			SeedVectors:    study.Optimizer.SeedVectors,
			Polish:         polisher,
			Stop:           handle.stop,
			Archive:        arch,
		})
		if err != nil {
			return nil, err
		}
		res, err := single.Run(ctx)
		if err != nil {
			return nil, err
		}
		b := res.Best
		best = &b
		reason = res.Reason
		generations = res.Generations
		evaluations = res.Evaluations
	case config.AlgorithmNSGA2:
		nsga, err := evo.NewNSGA2(evo.MultiConfig{
			Problem:        problem,
			PopulationSize: study.Optimizer.Population,
			Generations:    study.Optimizer.Generations,
			MaxEvaluations: study.Optimizer.MaxEvaluations,
			Workers:        study.Optimizer.Workers,
			Seed:           seed,
			Variation:      variation,
			Stall:          stall,
			RefPoint:       study.Optimizer.ReferencePoint,
			Deadline:       deadline,
			SeedVectors:    study.Optimizer.SeedVectors,
			Stop:           handle.stop,
			Archive:        arch,
		})
		if err != nil {
			return nil, err
		}
		res, err := nsga.Run(ctx)
		if err != nil {
			return nil, err
		}
		front = res.Front
		reason = res.Reason
		generations = res.Generations
		evaluations = res.Evaluations
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}

	metrics := make([]model.GenerationMetric, 0, arch.Generations())
	for m := range arch.Convergence(study.Optimizer.ReferencePoint) {
		metrics = append(metrics, m)
	}
	candidates := arch.All()

	run := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Name:            study.Name,
		Kind:            kind,
		Seed:            seed,
		Objectives:      evaluator.ObjectiveNames(),
		Config:          cfgJSON,
		StartedAtUTC:    startedAt.Format(time.RFC3339),
		FinishedAtUTC:   time.Now().UTC().Format(time.RFC3339),
		Reason:          reason,
		Generations:     generations,
		Evaluations:     evaluations,
		Best:            best,
		FrontSize:       len(front),
	}

	if err := l.store.SaveRun(ctx, run); err != nil {
		return nil, err
	}
	if err := l.store.SaveCandidates(ctx, model.CandidateLog{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Candidates:      candidates,
	}); err != nil {
		return nil, err
	}
	if len(front) > 0 {
		if err := l.store.SaveFront(ctx, model.FrontRecord{
			VersionedRecord: storage.Versioned(),
			RunID:           runID,
			Members:         front,
		}); err != nil {
			return nil, err
		}
	}
	if err := l.store.SaveMetrics(ctx, model.MetricsLog{
		VersionedRecord: storage.Versioned(),
		RunID:           runID,
		Metrics:         metrics,
	}); err != nil {
		return nil, err
	}

	layouts, err := buildLayouts(encoder, best, front)
	if err != nil {
		return nil, err
	}
	root := artifactsRoot(req.ArtifactsDir, study)
	runDir, err := stats.WriteRunArtifacts(root, stats.RunArtifacts{
		Run:        run,
		Candidates: candidates,
		Front:      front,
		Metrics:    metrics,
		Layouts:    layouts,
		Charts:     study.Artifacts.Charts,
	})
	if err != nil {
		return nil, err
	}
	if err := stats.AppendRunIndex(root, stats.RunIndexEntry{
		RunID:        runID,
		Name:         study.Name,
		Kind:         kind,
		Seed:         seed,
		Generations:  generations,
		Evaluations:  evaluations,
		BestScore:    headlineScore(best, metrics),
		FrontSize:    len(front),
		Reason:       reason,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339Nano),
	}); err != nil {
		return nil, err
	}

	runLog.Info("run finished",
		"reason", reason,
		"generations", generations,
		"evaluations", evaluations,
		"front_size", len(front),
		"artifacts_dir", runDir)

	return &RunResult{
		Run:          run,
		Front:        front,
		Metrics:      metrics,
		ArtifactsDir: runDir,
	}, nil
}

// resolveModel maps the study's model name onto a forward model. Registered
// models shadow the builtin set so callers can swap in external solvers
// without renaming studies; an unregistered non-builtin name is an error
// here even though Validate tolerates it.
func (l *Lab) resolveModel(study *config.Study) (forward.Model, error) {
	name := study.Model.Name
	if name == "" || name == config.ModelNone {
		return nil, nil
	}

	l.mu.RLock()
	m, ok := l.models[name]
	l.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := study.BuildModel()
	if err != nil {
		if errors.Is(err, config.ErrUnknownModel) {
			return nil, fmt.Errorf("forward model not registered: %s", name)
		}
		return nil, err
	}
	return m, nil
}

// studyJSON snapshots the study into the run record. The YAML round-trip
// keeps the schema's snake_case field names in the archived config.
func studyJSON(study *config.Study) (json.RawMessage, error) {
	raw, err := yaml.Marshal(study)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func artifactsRoot(override string, study *config.Study) string {
	if override != "" {
		return override
	}
	if study.Artifacts.Dir != "" {
		return study.Artifacts.Dir
	}
	return defaultArtifactsDir
}

// buildLayouts decodes the coordinate paths of the run's keepers. Layouts
// kept on the candidates are reused; otherwise the parameters are re-encoded.
func buildLayouts(encoder *layout.Encoder, best *model.Candidate, front []model.Candidate) (stats.LayoutsArtifact, error) {
	var out stats.LayoutsArtifact
	if best != nil {
		rec, err := layoutRecord(encoder, *best)
		if err != nil {
			return stats.LayoutsArtifact{}, err
		}
		out.Best = rec
	}
	for _, c := range front {
		rec, err := layoutRecord(encoder, c)
		if err != nil {
			return stats.LayoutsArtifact{}, err
		}
		out.Front = append(out.Front, stats.FrontLayout{Seq: c.Seq, Layout: *rec})
	}
	return out, nil
}

func layoutRecord(encoder *layout.Encoder, c model.Candidate) (*model.LayoutRecord, error) {
	if c.Layout != nil {
		return c.Layout.Clone(), nil
	}
	lay, err := encoder.Encode(c.Params)
	if err != nil {
		return nil, fmt.Errorf("encode layout for candidate %d: %w", c.Seq, err)
	}
	return lay.Record(), nil
}

// headlineScore is the run index's one-number summary: the natural best
// objective value for single-objective runs, the final hypervolume for
// pareto runs.
func headlineScore(best *model.Candidate, metrics []model.GenerationMetric) float64 {
	if best != nil {
		if len(best.Raw) > 0 {
			return best.Raw[0]
		}
		if len(best.Objectives) > 0 {
			return best.Objectives[0]
		}
		return 0
	}
	if len(metrics) > 0 {
		return metrics[len(metrics)-1].Hypervolume
	}
	return 0
}
