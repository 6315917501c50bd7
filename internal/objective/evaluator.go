package objective

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"dasopt/internal/forward"
	"dasopt/internal/layout"
)

type Direction string

const (
	Minimize Direction = "minimize"
	Maximize Direction = "maximize"
)

// Quantities the evaluator serves locally, without the forward model.
const (
	QuantityCableLength = "cable_length"
	QuantityCableCost   = "cable_cost"
)

type Range struct {
	Lo float64
	Hi float64
}

// Spec names one objective: a forward-model (or local geometric) quantity,
// the optimization direction, and optional normalization bounds applied
// before orientation.
type Spec struct {
	Name      string
	Quantity  string
	Direction Direction
	Normalize *Range
}

// DisplayName is the label used in logs, artifacts and plots.
func (s Spec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Quantity
}

// EvalError reports a forward-model failure or timeout for one layout. It is
// fatal for the candidate, never for the run.
type EvalError struct {
	Quantity string
	Cause    error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluating %s: %v", e.Quantity, e.Cause)
}

func (e *EvalError) Unwrap() error { return e.Cause }

// Cache memoizes raw objective vectors by layout identity.
type Cache interface {
	Get(key string) ([]float64, bool)
	Put(key string, values []float64)
}

type MemoryCache struct {
	mu sync.RWMutex
	m  map[string][]float64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{m: make(map[string][]float64)}
}

func (c *MemoryCache) Get(key string) ([]float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals, ok := c.m[key]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), vals...), true
}

func (c *MemoryCache) Put(key string, values []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = append([]float64(nil), values...)
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

type Config struct {
	Model forward.Model
	Specs []Spec
	// Cache defaults to a fresh in-memory cache per evaluator.
	Cache Cache
	// Timeout bounds each forward-model call; 0 disables it.
	Timeout time.Duration
	// CostPerMeter and CostPerCable parameterize the cable_cost quantity.
	CostPerMeter float64
	CostPerCable float64
}

// Evaluator orchestrates objective computation for one run: it resolves each
// spec against the forward model or the local geometric quantities, applies
// normalization and sign convention, and memoizes results by layout
// fingerprint. Safe for concurrent use on independent layouts.
type Evaluator struct {
	cfg   Config
	cache Cache
	sig   string
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	if len(cfg.Specs) == 0 {
		return nil, fmt.Errorf("at least one objective spec is required")
	}
	if cfg.CostPerMeter < 0 || cfg.CostPerCable < 0 {
		return nil, fmt.Errorf("cost parameters must be >= 0")
	}
	for i, s := range cfg.Specs {
		if s.Quantity == "" {
			return nil, fmt.Errorf("objective %d has no quantity", i)
		}
		if s.Direction != Minimize && s.Direction != Maximize {
			return nil, fmt.Errorf("objective %q has direction %q, want minimize or maximize",
				s.DisplayName(), s.Direction)
		}
		if s.Normalize != nil && s.Normalize.Hi <= s.Normalize.Lo {
			return nil, fmt.Errorf("objective %q normalization [%g,%g] is not an increasing interval",
				s.DisplayName(), s.Normalize.Lo, s.Normalize.Hi)
		}
		if isLocalQuantity(s.Quantity) {
			continue
		}
		if cfg.Model == nil {
			return nil, fmt.Errorf("objective %q needs a forward model for quantity %q",
				s.DisplayName(), s.Quantity)
		}
		if !forward.Serves(cfg.Model, s.Quantity) {
			return nil, fmt.Errorf("model %s does not serve quantity %q", cfg.Model.Name(), s.Quantity)
		}
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0, got %v", cfg.Timeout)
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Evaluator{cfg: cfg, cache: cache, sig: signature(cfg)}, nil
}

// signature distinguishes cache entries produced under different objective
// configurations, which matters when a persistent cache outlives a run.
func signature(cfg Config) string {
	h := fnv.New64a()
	for _, s := range cfg.Specs {
		h.Write([]byte(s.Quantity))
		h.Write([]byte{0})
	}
	fmt.Fprintf(h, "%g|%g", cfg.CostPerMeter, cfg.CostPerCable)
	if cfg.Model != nil {
		h.Write([]byte(cfg.Model.Name()))
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func (e *Evaluator) Specs() []Spec {
	return append([]Spec(nil), e.cfg.Specs...)
}

func (e *Evaluator) ObjectiveNames() []string {
	names := make([]string, len(e.cfg.Specs))
	for i, s := range e.cfg.Specs {
		names[i] = s.DisplayName()
	}
	return names
}

// Evaluate returns the raw (natural direction) and oriented (minimize
// convention) objective vectors for the layout.
func (e *Evaluator) Evaluate(ctx context.Context, lay *layout.Layout) (raw, oriented []float64, err error) {
	key := lay.Fingerprint() + ":" + e.sig
	if vals, ok := e.cache.Get(key); ok {
		return vals, e.Orient(vals), nil
	}
	raw = make([]float64, len(e.cfg.Specs))
	for i, s := range e.cfg.Specs {
		v, qerr := e.quantity(ctx, lay, s.Quantity)
		if qerr != nil {
			return nil, nil, &EvalError{Quantity: s.Quantity, Cause: qerr}
		}
		raw[i] = v
	}
	e.cache.Put(key, raw)
	return raw, e.Orient(raw), nil
}

// Orient maps raw values into minimize convention: normalization first, then
// sign flip for maximize objectives.
func (e *Evaluator) Orient(raw []float64) []float64 {
	oriented := make([]float64, len(raw))
	for i, s := range e.cfg.Specs {
		v := raw[i]
		if s.Normalize != nil {
			v = (v - s.Normalize.Lo) / (s.Normalize.Hi - s.Normalize.Lo)
		}
		if s.Direction == Maximize {
			v = -v
		}
		oriented[i] = v
	}
	return oriented
}

func (e *Evaluator) quantity(ctx context.Context, lay *layout.Layout, q string) (float64, error) {
	switch q {
	case QuantityCableLength:
		return lay.TotalLength(), nil
	case QuantityCableCost:
		return lay.TotalLength()*e.cfg.CostPerMeter + float64(len(lay.Cables))*e.cfg.CostPerCable, nil
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	return e.cfg.Model.Evaluate(ctx, lay, q)
}

func isLocalQuantity(q string) bool {
	return q == QuantityCableLength || q == QuantityCableCost
}
