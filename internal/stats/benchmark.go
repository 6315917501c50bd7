package stats

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BenchmarkSummary aggregates the final best scores of a study executed
// repeatedly under derived seeds.
type BenchmarkSummary struct {
	BenchmarkID  string    `json:"benchmark_id"`
	Study        string    `json:"study"`
	Algorithm    string    `json:"algorithm"`
	Repeats      int       `json:"repeats"`
	BaseSeed     int64     `json:"base_seed"`
	Seeds        []int64   `json:"seeds"`
	RunIDs       []string  `json:"run_ids,omitempty"`
	BestScores   []float64 `json:"best_scores"`
	BestMean     float64   `json:"best_mean"`
	BestStd      float64   `json:"best_std"`
	BestMin      float64   `json:"best_min"`
	BestMax      float64   `json:"best_max"`
	CreatedAtUTC string    `json:"created_at_utc"`
}

// Summarize fills the aggregate fields from BestScores. The standard
// deviation of a single repeat is zero.
func (s *BenchmarkSummary) Summarize() {
	if len(s.BestScores) == 0 {
		return
	}
	s.BestMean = stat.Mean(s.BestScores, nil)
	if len(s.BestScores) > 1 {
		s.BestStd = stat.StdDev(s.BestScores, nil)
	} else {
		s.BestStd = 0
	}
	s.BestMin = floats.Min(s.BestScores)
	s.BestMax = floats.Max(s.BestScores)
}

// WriteBenchmarkSummary writes the summary under baseDir/benchmarks and
// returns the file path.
func WriteBenchmarkSummary(baseDir string, summary BenchmarkSummary) (string, error) {
	if summary.BenchmarkID == "" {
		return "", fmt.Errorf("benchmark id is required")
	}
	dir := filepath.Join(baseDir, "benchmarks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, summary.BenchmarkID+".json")
	if err := writeJSON(path, summary); err != nil {
		return "", err
	}
	return path, nil
}

// DeriveSeeds expands a base seed into n decorrelated seeds, one per
// repeat stream.
func DeriveSeeds(base int64, n int) []int64 {
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = deriveSeed(base, uint64(i)+1)
	}
	return seeds
}

// deriveSeed mixes a stream number into the base seed with the
// SplitMix64 finalizer so adjacent streams land far apart.
func deriveSeed(base int64, stream uint64) int64 {
	x := uint64(base) ^ (stream + 0x9e3779b97f4a7c15)
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	x ^= x >> 31
	return int64(x)
}
