package platform

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"dasopt/internal/forward"
	"dasopt/internal/storage"
)

type Config struct {
	Store  storage.Store
	Models []forward.Model
	Logger *slog.Logger
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// Lab owns the run lifecycle: it initializes the store, keeps the registry
// of forward models studies can name, and tracks active runs so they can be
// stopped cooperatively.
type Lab struct {
	store storage.Store
	log   *slog.Logger

	mu sync.RWMutex

	models         map[string]forward.Model
	started        bool
	lastStopReason StopReason
	runs           map[string]*runHandle

	config Config
}

// runHandle is the cooperative stop signal of one active run. Closing the
// channel is idempotent through the once.
type runHandle struct {
	stop chan struct{}
	once sync.Once
}

func (h *runHandle) signal() {
	h.once.Do(func() { close(h.stop) })
}

var (
	defaultLabMu sync.Mutex
	defaultLab   *Lab
)

func NewLab(cfg Config) *Lab {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Lab{
		store:          cfg.Store,
		log:            log,
		models:         make(map[string]forward.Model),
		runs:           make(map[string]*runHandle),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func StartDefault(ctx context.Context, cfg Config) (*Lab, error) {
	defaultLabMu.Lock()
	defer defaultLabMu.Unlock()

	if defaultLab != nil && defaultLab.Started() {
		return defaultLab, nil
	}

	l := NewLab(cfg)
	if err := l.Init(ctx); err != nil {
		return nil, err
	}
	defaultLab = l
	return defaultLab, nil
}

func Default() (*Lab, bool) {
	defaultLabMu.Lock()
	l := defaultLab
	defaultLabMu.Unlock()

	if l == nil || !l.Started() {
		return nil, false
	}
	return l, true
}

func StopDefault(reason StopReason) error {
	defaultLabMu.Lock()
	l := defaultLab
	defaultLabMu.Unlock()
	if l == nil {
		return nil
	}
	if err := l.StopWithReason(reason); err != nil {
		return err
	}
	defaultLabMu.Lock()
	if defaultLab == l {
		defaultLab = nil
	}
	defaultLabMu.Unlock()
	return nil
}

func (l *Lab) Init(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.store.Init(ctx); err != nil {
		return err
	}

	startedModels := make([]managedModel, 0, len(l.config.Models))
	for i, m := range l.config.Models {
		if m == nil {
			stopManagedModels(ctx, startedModels)
			l.models = make(map[string]forward.Model)
			return fmt.Errorf("forward model is nil at index %d", i)
		}
		name := m.Name()
		if name == "" {
			stopManagedModels(ctx, startedModels)
			l.models = make(map[string]forward.Model)
			return fmt.Errorf("forward model name is required at index %d", i)
		}
		if _, exists := l.models[name]; exists {
			stopManagedModels(ctx, startedModels)
			l.models = make(map[string]forward.Model)
			return fmt.Errorf("duplicate forward model: %s", name)
		}
		if managed, ok := m.(managedModel); ok {
			if err := managed.Start(ctx); err != nil {
				stopManagedModels(ctx, startedModels)
				l.models = make(map[string]forward.Model)
				return fmt.Errorf("start forward model %s: %w", name, err)
			}
			startedModels = append(startedModels, managed)
		}
		l.models[name] = m
	}

	l.started = true
	return nil
}

// Reset stops the lab, wipes the store and re-initializes. Run artifacts on
// disk are left alone.
func (l *Lab) Reset(ctx context.Context) error {
	if l.store == nil {
		return fmt.Errorf("store is required")
	}
	_ = l.StopWithReason(StopReasonShutdown)
	if err := l.store.Reset(ctx); err != nil {
		return err
	}
	return l.Init(ctx)
}

// RegisterModel adds a forward model to the registry. Registering a name a
// second time replaces the previous model; studies that name a registered
// model resolve it ahead of the builtin set.
func (l *Lab) RegisterModel(m forward.Model) error {
	if m == nil {
		return fmt.Errorf("forward model is nil")
	}

	name := m.Name()
	if name == "" {
		return fmt.Errorf("forward model name is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return fmt.Errorf("lab is not initialized")
	}
	l.models[name] = m
	return nil
}

func (l *Lab) GetModel(name string) (forward.Model, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	m, ok := l.models[name]
	return m, ok
}

func (l *Lab) Stop() {
	_ = l.StopWithReason(StopReasonNormal)
}

func (l *Lab) Shutdown() {
	_ = l.StopWithReason(StopReasonShutdown)
}

func (l *Lab) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if !isValidStopReason(reason) {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, handle := range l.runs {
		handle.signal()
	}
	for _, m := range l.models {
		if managed, ok := m.(managedModel); ok {
			if withReason, ok := m.(reasonAwareModel); ok {
				_ = withReason.StopWithReason(context.Background(), reason)
			} else {
				_ = managed.Stop(context.Background())
			}
		}
	}

	l.started = false
	l.lastStopReason = reason
	l.models = make(map[string]forward.Model)
	l.runs = make(map[string]*runHandle)
	return nil
}

// StopRun asks an active run to stop. The engine honors the signal at the
// next generation boundary and finishes the run with reason "stopped".
func (l *Lab) StopRun(runID string) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.RLock()
	handle, ok := l.runs[runID]
	l.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	handle.signal()
	return nil
}

func (l *Lab) registerRun(runID string) (*runHandle, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.started {
		return nil, fmt.Errorf("lab is not initialized")
	}
	if _, exists := l.runs[runID]; exists {
		return nil, fmt.Errorf("run already active: %s", runID)
	}
	handle := &runHandle{stop: make(chan struct{})}
	l.runs[runID] = handle
	return handle, nil
}

func (l *Lab) unregisterRun(runID string) {
	if runID == "" {
		return
	}
	l.mu.Lock()
	delete(l.runs, runID)
	l.mu.Unlock()
}

func (l *Lab) RegisteredModels() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.models))
	for name := range l.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Lab) ActiveRuns() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.runs))
	for id := range l.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Lab) Started() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.started
}

func (l *Lab) LastStopReason() StopReason {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastStopReason
}

// managedModel is implemented by forward models that hold external
// resources. Start runs during Init for configured models; Stop runs in
// StopWithReason.
type managedModel interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

type reasonAwareModel interface {
	managedModel
	StopWithReason(ctx context.Context, reason StopReason) error
}

func isValidStopReason(reason StopReason) bool {
	switch reason {
	case StopReasonNormal, StopReasonShutdown:
		return true
	default:
		return false
	}
}

func stopManagedModels(ctx context.Context, models []managedModel) {
	for i := len(models) - 1; i >= 0; i-- {
		_ = models[i].Stop(ctx)
	}
}
