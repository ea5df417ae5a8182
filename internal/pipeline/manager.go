package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
)

// ErrRunNotFound is returned for an unknown run ID.
var ErrRunNotFound = eris.New("pipeline: run not found")

// defaultRetainRuns caps finished runs kept in memory when
// pipeline.retain_runs is unset.
const defaultRetainRuns = 100

// StageBuilder creates the stages of one run, metered against that run's
// budget tracker.
type StageBuilder func(budget *cost.Tracker) (Stages, error)

type entry struct {
	progress *Progress
	done     chan struct{}
	result   *model.RunResult
}

// Manager starts runs in the background and answers progress and result
// polls. It is the host-facing surface of the pipeline.
type Manager struct {
	build StageBuilder
	calc  *cost.Calculator
	cfg   config.PipelineConfig
	sinks []Sink
	now   func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.RWMutex
	runs map[string]*entry
	// finished holds IDs of terminal runs, oldest first.
	finished []string
	retain   int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithRunSinks hands every finished run to sinks.
func WithRunSinks(sinks ...Sink) ManagerOption {
	return func(m *Manager) { m.sinks = append(m.sinks, sinks...) }
}

// NewManager creates a Manager. Runs are canceled by Shutdown.
func NewManager(build StageBuilder, calc *cost.Calculator, cfg config.PipelineConfig, opts ...ManagerOption) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		build:  build,
		calc:   calc,
		cfg:    cfg,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
		runs:   make(map[string]*entry),
		retain: cfg.RetainRuns,
	}
	if m.retain <= 0 {
		m.retain = defaultRetainRuns
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartRun validates criteria and starts a run in the background,
// returning its ID immediately. maxCandidates <= 0 uses the configured
// default.
func (m *Manager) StartRun(criteria model.SearchCriteria, maxCandidates int) (string, error) {
	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return "", err
	}
	if maxCandidates <= 0 {
		maxCandidates = m.cfg.MaxManufacturers
	}
	if err := m.ctx.Err(); err != nil {
		return "", eris.Wrap(err, "pipeline: manager is shut down")
	}

	tracker := cost.NewTracker(m.calc, m.cfg.BudgetUSD)
	stages, err := m.build(tracker)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: build stages")
	}

	id := uuid.NewString()
	e := &entry{
		progress: NewProgress(id, maxCandidates, tracker.Limit(), m.now().UTC()),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	m.runs[id] = e
	m.mu.Unlock()

	orch := NewOrchestrator(stages, tracker, WithSinks(m.sinks...), WithDefaultMax(maxCandidates), WithClock(m.now))
	req := Request{ID: id, Criteria: criteria, MaxCandidates: maxCandidates}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)
		result := orch.Run(m.ctx, req, e.progress)
		m.mu.Lock()
		e.result = result
		m.finished = append(m.finished, id)
		m.evictLocked()
		m.mu.Unlock()
	}()

	zap.L().Info("pipeline: run queued", zap.String("run_id", id), zap.Int("max_candidates", maxCandidates))
	return id, nil
}

// GetProgress returns the latest snapshot of a run. It never blocks on
// the run itself.
func (m *Manager) GetProgress(id string) (model.PipelineRun, error) {
	e, err := m.lookup(id)
	if err != nil {
		return model.PipelineRun{}, err
	}
	return e.progress.Snapshot(), nil
}

// GetResult returns the ranked result of a finished run, or a pending
// result while it is still running.
func (m *Manager) GetResult(id string) (*model.RunResult, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return m.resultOf(id, e), nil
}

func (m *Manager) resultOf(id string, e *entry) *model.RunResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e.result == nil {
		snap := e.progress.Snapshot()
		return &model.RunResult{RunID: id, Status: model.ResultPending, Summary: snap.Summary, CostUSD: snap.CostUSD}
	}
	return e.result
}

// Wait blocks until a run finishes or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (*model.RunResult, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-e.done:
		return m.resultOf(id, e), nil
	case <-ctx.Done():
		return nil, eris.Wrap(ctx.Err(), "pipeline: wait")
	}
}

// Runs returns snapshots of all known runs, newest first.
func (m *Manager) Runs() []model.PipelineRun {
	m.mu.RLock()
	out := make([]model.PipelineRun, 0, len(m.runs))
	for _, e := range m.runs {
		out = append(out, e.progress.Snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Shutdown cancels in-flight runs and waits for them to reach a terminal
// state, or for ctx to expire.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "pipeline: shutdown")
	}
}

// evictLocked drops the oldest finished runs beyond the retention cap.
// Running entries are never evicted. m.mu must be held.
func (m *Manager) evictLocked() {
	for len(m.finished) > m.retain {
		id := m.finished[0]
		m.finished = m.finished[1:]
		delete(m.runs, id)
		zap.L().Debug("pipeline: evicted finished run", zap.String("run_id", id))
	}
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.runs[id]
	if !ok {
		return nil, eris.Wrapf(ErrRunNotFound, "%s", id)
	}
	return e, nil
}
