package pipeline

import (
	"context"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Sink receives every finished run: completed, empty or failed. Delivery
// errors are logged and surfaced as run warnings; they never change the
// run's outcome.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, run model.PipelineRun, result model.RunResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, run model.PipelineRun, result model.RunResult) error
}

// Name implements Sink.
func (s SinkFunc) Name() string { return s.Label }

// Deliver implements Sink.
func (s SinkFunc) Deliver(ctx context.Context, run model.PipelineRun, result model.RunResult) error {
	return s.Fn(ctx, run, result)
}
