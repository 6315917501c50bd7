package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dasopt/internal/config"
	"dasopt/internal/evo"
	"dasopt/internal/stats"
)

type BenchmarkRequest struct {
	Study *config.Study
	// Repeats is how many runs to execute; each gets its own derived seed.
	Repeats int
	// BaseSeed feeds the seed derivation; 0 falls back to the study seed.
	BaseSeed int64
	// ArtifactsDir overrides the study's artifact root for the repeat runs
	// and the summary file.
	ArtifactsDir string
}

type BenchmarkResult struct {
	Summary stats.BenchmarkSummary
	// Path is the summary file under <artifacts root>/benchmarks.
	Path string
}

// Benchmark runs the same study Repeats times on deterministically derived
// seeds and aggregates the headline scores. Repeat runs persist and produce
// artifacts like any other run; their IDs share the benchmark ID prefix.
func (l *Lab) Benchmark(ctx context.Context, req BenchmarkRequest) (*BenchmarkResult, error) {
	study := req.Study
	if study == nil {
		return nil, fmt.Errorf("study is required")
	}
	if req.Repeats <= 0 {
		return nil, fmt.Errorf("repeats must be > 0, got %d", req.Repeats)
	}
	if err := study.Validate(); err != nil {
		return nil, fmt.Errorf("invalid study: %w", err)
	}

	base := req.BaseSeed
	if base == 0 {
		base = study.Seed
	}
	if base == 0 {
		base = evo.DefaultSeed
	}

	benchID := uuid.NewString()
	summary := stats.BenchmarkSummary{
		BenchmarkID:  benchID,
		Study:        study.Name,
		Algorithm:    study.Algorithm(),
		Repeats:      req.Repeats,
		BaseSeed:     base,
		Seeds:        stats.DeriveSeeds(base, req.Repeats),
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}

	benchLog := l.log.With("benchmark_id", benchID)
	benchLog.Info("benchmark started",
		"study", study.Name,
		"repeats", req.Repeats,
		"base_seed", base)

	for i, seed := range summary.Seeds {
		res, err := l.RunStudy(ctx, RunRequest{
			Study:        study,
			RunID:        fmt.Sprintf("%s-%02d", benchID, i+1),
			Seed:         seed,
			ArtifactsDir: req.ArtifactsDir,
		})
		if err != nil {
			return nil, fmt.Errorf("benchmark repeat %d: %w", i+1, err)
		}
		summary.RunIDs = append(summary.RunIDs, res.Run.RunID)
		summary.BestScores = append(summary.BestScores, headlineScore(res.Run.Best, res.Metrics))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	summary.Summarize()

	path, err := stats.WriteBenchmarkSummary(artifactsRoot(req.ArtifactsDir, study), summary)
	if err != nil {
		return nil, err
	}

	benchLog.Info("benchmark finished",
		"best_mean", summary.BestMean,
		"best_std", summary.BestStd,
		"best_min", summary.BestMin,
		"best_max", summary.BestMax)

	return &BenchmarkResult{Summary: summary, Path: path}, nil
}
