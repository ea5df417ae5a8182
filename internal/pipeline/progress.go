package pipeline

import (
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Progress publishes PipelineRun snapshots. Readers load the current
// snapshot without locking; writers replace it wholesale under a mutex so
// concurrent stage workers cannot lose each other's updates.
type Progress struct {
	mu   sync.Mutex
	snap atomic.Pointer[model.PipelineRun]
}

// NewProgress creates a Progress in the init state.
func NewProgress(id string, maxCandidates int, budgetUSD float64, startedAt time.Time) *Progress {
	p := &Progress{}
	p.snap.Store(&model.PipelineRun{
		ID:            id,
		State:         model.RunStateInit,
		Step:          model.RunStateInit.StepLabel(),
		MaxCandidates: maxCandidates,
		BudgetUSD:     budgetUSD,
		StartedAt:     startedAt,
	})
	return p
}

// Snapshot returns the latest published state. The returned value shares
// no mutable memory with later snapshots.
func (p *Progress) Snapshot() model.PipelineRun {
	return *p.snap.Load()
}

// update copies the current snapshot, applies fn and publishes the copy.
func (p *Progress) update(fn func(r *model.PipelineRun)) model.PipelineRun {
	p.mu.Lock()
	defer p.mu.Unlock()

	next := *p.snap.Load()
	next.Warnings = append([]string(nil), next.Warnings...)
	next.Summary.ScrapeFailures = maps.Clone(next.Summary.ScrapeFailures)
	next.Summary.ExtractFailures = maps.Clone(next.Summary.ExtractFailures)
	fn(&next)
	p.snap.Store(&next)
	return next
}
