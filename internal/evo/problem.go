// Package evo implements the population-based layout optimizers: a
// single-objective evolutionary search and an elitist non-dominated variant
// for Pareto studies. Both drive the same encode, check, evaluate pipeline
// and record every assessed candidate in a run archive. Generations are
// strictly sequential; only candidate evaluation inside a generation runs on
// a worker pool.
package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dasopt/internal/archive"
	"dasopt/internal/constraint"
	"dasopt/internal/layout"
	"dasopt/internal/model"
	"dasopt/internal/objective"
)

// Reason codes attached to infeasible candidates by the assessment pipeline.
// Constraint violations carry the violated constraint's name instead.
const (
	ReasonEncoding   = "encoding"
	ReasonEvaluation = "evaluation"
)

// infeasibleScore offsets infeasible candidates above any plausible feasible
// score so selection pressure still orders them by violation magnitude.
const infeasibleScore = 1e9

type ProblemConfig struct {
	Encoder     *layout.Encoder
	Constraints []constraint.Constraint
	Evaluator   *objective.Evaluator
	// Repair re-checks a hard-constraint violator after best-effort repair
	// and keeps the repaired layout when it passes.
	Repair bool
	// KeepLayouts stores decoded cable geometry on every candidate, not just
	// the winners. Costs memory proportional to the evaluation budget.
	KeepLayouts bool
	Logger      *slog.Logger
}

// Problem binds the encoder, constraint set and evaluator into the
// assessment pipeline shared by both optimizers.
type Problem struct {
	enc    *layout.Encoder
	cons   []constraint.Constraint
	eval   *objective.Evaluator
	repair bool
	keep   bool
	log    *slog.Logger
}

func NewProblem(cfg ProblemConfig) (*Problem, error) {
	if cfg.Encoder == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Problem{
		enc:    cfg.Encoder,
		cons:   append([]constraint.Constraint(nil), cfg.Constraints...),
		eval:   cfg.Evaluator,
		repair: cfg.Repair,
		keep:   cfg.KeepLayouts,
		log:    log,
	}, nil
}

func (p *Problem) Dimension() int                  { return p.enc.Dimension() }
func (p *Problem) Objectives() int                 { return len(p.eval.Specs()) }
func (p *Problem) Evaluator() *objective.Evaluator { return p.eval }
func (p *Problem) Logger() *slog.Logger            { return p.log }

// Assess runs one parameter vector through encode, constraint check and
// objective evaluation. Failures downgrade the candidate, never the run.
func (p *Problem) Assess(ctx context.Context, params []float64, gen, seq int) model.Candidate {
	cand := model.Candidate{
		Params:     append([]float64(nil), params...),
		Generation: gen,
		Seq:        seq,
	}
	lay, err := p.enc.Encode(params)
	if err != nil {
		p.log.Warn("candidate encoding failed", "generation", gen, "seq", seq, "err", err)
		cand.Reason = ReasonEncoding
		cand.Penalty = infeasibleScore
		return cand
	}
	res := constraint.Check(lay, p.cons)
	if !res.Feasible && p.repair {
		repaired := constraint.Repair(lay, p.cons)
		if again := constraint.Check(repaired, p.cons); again.Feasible {
			lay, res = repaired, again
		}
	}
	if p.keep {
		cand.Layout = lay.Record()
	}
	if !res.Feasible {
		cand.Reason = res.Reason
		cand.Penalty = res.Violation
		return cand
	}
	raw, oriented, err := p.eval.Evaluate(ctx, lay)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		p.log.Log(ctx, level, "objective evaluation failed", "generation", gen, "seq", seq, "err", err)
		cand.Reason = ReasonEvaluation
		cand.Penalty = infeasibleScore
		return cand
	}
	cand.Feasible = true
	cand.Raw = raw
	cand.Objectives = oriented
	cand.Penalty = res.Penalty
	return cand
}

// evaluateGeneration assesses one generation's vectors on a bounded worker
// pool, reusing archived results for revisited vectors. All evaluations of
// the generation complete before it returns; results are keyed by index so
// candidate order never depends on scheduling. The second return value
// counts fresh assessments against the evaluation budget.
func (p *Problem) evaluateGeneration(ctx context.Context, vectors [][]float64, gen, seqBase, workers int, arch *archive.Archive) ([]model.Candidate, int) {
	type job struct {
		idx    int
		params []float64
	}
	type result struct {
		idx  int
		cand model.Candidate
	}

	jobs := make(chan job)
	results := make(chan result, len(vectors))

	workerCount := workers
	if workerCount <= 0 {
		workerCount = 1
	}
	if workerCount > len(vectors) {
		workerCount = len(vectors)
	}

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				results <- result{idx: j.idx, cand: p.Assess(ctx, j.params, gen, seqBase+j.idx)}
			}
		}()
	}

	fresh := 0
	for i := range vectors {
		if hit, ok := arch.Lookup(vectors[i]); ok {
			results <- result{idx: i, cand: hit}
			continue
		}
		fresh++
		jobs <- job{idx: i, params: vectors[i]}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]model.Candidate, len(vectors))
	for res := range results {
		out[res.idx] = res.cand
	}
	for i := range out {
		arch.Record(out[i])
	}
	return out, fresh
}

// Score flattens a candidate to one comparable scalar: feasible candidates
// score their first oriented objective, infeasible ones sit above any
// feasible score, ordered by violation magnitude.
func Score(c *model.Candidate) float64 {
	if c.Feasible {
		return c.Objectives[0]
	}
	return infeasibleScore + c.Penalty
}

// less orders candidates best first: by score, then lower penalty, then
// earlier discovery.
func less(a, b *model.Candidate) bool {
	sa, sb := Score(a), Score(b)
	if sa != sb {
		return sa < sb
	}
	if a.Penalty != b.Penalty {
		return a.Penalty < b.Penalty
	}
	return a.Seq < b.Seq
}
