package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sourcing-cli/internal/model"
)

func TestProgress_InitialSnapshot(t *testing.T) {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewProgress("run-1", 10, 50, started)

	snap := p.Snapshot()
	assert.Equal(t, "run-1", snap.ID)
	assert.Equal(t, model.RunStateInit, snap.State)
	assert.Equal(t, "Preparing search criteria", snap.Step)
	assert.Equal(t, 10, snap.MaxCandidates)
	assert.Equal(t, 50.0, snap.BudgetUSD)
	assert.Equal(t, started, snap.StartedAt)
}

func TestProgress_SnapshotsAreImmutable(t *testing.T) {
	p := NewProgress("run-1", 10, 0, time.Now())
	p.update(func(r *model.PipelineRun) {
		r.Warnings = append(r.Warnings, "first")
		r.Summary.ScrapeFailures = map[model.ScrapeFailureKind]int{model.ScrapeTimeout: 1}
	})
	before := p.Snapshot()

	p.update(func(r *model.PipelineRun) {
		r.Warnings = append(r.Warnings, "second")
		r.Summary.ScrapeFailures[model.ScrapeTimeout]++
	})

	assert.Equal(t, []string{"first"}, before.Warnings)
	assert.Equal(t, 1, before.Summary.ScrapeFailures[model.ScrapeTimeout])
	after := p.Snapshot()
	assert.Equal(t, []string{"first", "second"}, after.Warnings)
	assert.Equal(t, 2, after.Summary.ScrapeFailures[model.ScrapeTimeout])
}

func TestProgress_ConcurrentWritersAndReaders(t *testing.T) {
	p := NewProgress("run-1", 10, 0, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.update(func(r *model.PipelineRun) { r.Found++ })
		}()
		go func() {
			defer wg.Done()
			_ = p.Snapshot()
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, p.Snapshot().Found)
}
