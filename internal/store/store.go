// Package store persists finished pipeline runs and their ranked
// manufacturers so they can be listed, shown and re-scored later.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// ErrNotFound is returned when a run ID has no persisted row.
var ErrNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	State  model.RunState `json:"state,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Offset int            `json:"offset,omitempty"`
}

// StoredRun is a persisted terminal run with its ranked result.
type StoredRun struct {
	Run    model.PipelineRun `json:"run"`
	Result model.RunResult   `json:"result"`
}

// Store defines the persistence interface for finished runs.
type Store interface {
	// SaveRun writes a terminal run and replaces its manufacturers.
	// Saving the same run twice is idempotent.
	SaveRun(ctx context.Context, run model.PipelineRun, result model.RunResult) error
	GetRun(ctx context.Context, runID string) (*StoredRun, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error)

	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

// runRow holds the encoded columns shared by both backends.
type runRow struct {
	run    []byte
	result []byte
}

// encodeRun marshals the snapshot and the result. Manufacturers are
// stored in their own table, so the result document omits them.
func encodeRun(run model.PipelineRun, result model.RunResult) (runRow, error) {
	runJSON, err := json.Marshal(run)
	if err != nil {
		return runRow{}, eris.Wrap(err, "store: marshal run")
	}
	result.Manufacturers = nil
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return runRow{}, eris.Wrap(err, "store: marshal result")
	}
	return runRow{run: runJSON, result: resultJSON}, nil
}

func decodeRun(runJSON, resultJSON []byte) (*StoredRun, error) {
	var sr StoredRun
	if err := json.Unmarshal(runJSON, &sr.Run); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run")
	}
	if err := json.Unmarshal(resultJSON, &sr.Result); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal result")
	}
	return &sr, nil
}

// manufacturerColumns are the columns of the manufacturers table, in the
// order manufacturerRows emits them.
var manufacturerColumns = []string{"run_id", "rank", "name", "website", "score", "confidence", "data"}

// manufacturerRows flattens the ranked list; rank is 1-based.
func manufacturerRows(runID string, ms []model.ScoredManufacturer) ([][]any, error) {
	rows := make([][]any, 0, len(ms))
	for i, m := range ms {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, eris.Wrapf(err, "store: marshal manufacturer %q", m.Record.Name)
		}
		rows = append(rows, []any{
			runID, i + 1, m.Record.Name, m.Record.Website, m.Score(), string(m.Record.Confidence), string(data),
		})
	}
	return rows, nil
}

func decodeManufacturer(data []byte) (model.ScoredManufacturer, error) {
	var m model.ScoredManufacturer
	err := json.Unmarshal(data, &m)
	return m, eris.Wrap(err, "store: unmarshal manufacturer")
}
