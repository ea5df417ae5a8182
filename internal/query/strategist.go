// Package query turns sourcing criteria into a batch of strategy-tagged
// search queries.
package query

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// TextGenerator produces text from a single-turn prompt.
type TextGenerator interface {
	Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error)
}

// Meter records the cost of a generation call. A non-nil error stops the
// strategist; it is how a run's budget ceiling is enforced.
type Meter interface {
	ChargeClaude(model string, input, output, cacheWrite, cacheRead int64) error
}

// Batch is the strategist's output.
type Batch struct {
	Queries []model.Query
	// Fallback reports whether template queries were used, either wholly
	// or to top up a short model batch.
	Fallback bool
}

// Strategist generates query batches. It holds no per-run state.
type Strategist struct {
	gen   TextGenerator
	meter Meter

	model       string
	maxTokens   int64
	temperature float64
	lo, hi      int
	retries     int
}

// NewStrategist creates a Strategist. gen may be nil, in which case every
// batch comes from templates. meter may be nil.
func NewStrategist(gen TextGenerator, meter Meter, ac config.AnthropicConfig, qc config.QueryConfig) *Strategist {
	s := &Strategist{
		gen:         gen,
		meter:       meter,
		model:       ac.QueryModel,
		maxTokens:   int64(ac.QueryMaxTokens),
		temperature: ac.QueryTemperature,
		lo:          qc.Min,
		hi:          qc.Max,
		retries:     qc.Retries,
	}
	if s.lo < 1 {
		s.lo = 7
	}
	if s.hi < s.lo {
		s.hi = s.lo + 3
	}
	if s.maxTokens <= 0 {
		s.maxTokens = 2000
	}
	if s.retries < 0 {
		s.retries = 0
	}
	return s
}

// Generate returns between lo and hi distinct queries for c. Custom
// queries come first. Generation failures degrade to templates; only a
// meter error or context cancellation is returned.
func (s *Strategist) Generate(ctx context.Context, c model.SearchCriteria) (*Batch, error) {
	log := zap.L().With(zap.String("component", "query"))

	b := newBatch(c.Locations, s.hi)
	for _, q := range c.CustomQueries {
		b.add(model.Query{Text: q, Strategy: model.StrategyCustom})
	}

	var generated []model.Query
	if s.gen != nil && !b.full() {
		var err error
		generated, err = s.ask(ctx, c)
		if err != nil {
			if ctx.Err() != nil || isMeterErr(err) {
				return nil, err
			}
			log.Warn("query generation failed, using templates", zap.Error(err))
		}
	}
	for _, q := range generated {
		b.add(q)
	}

	out := &Batch{}
	if b.len() < s.lo {
		out.Fallback = true
		for _, q := range Fallback(c, s.lo, s.hi) {
			if b.len() >= s.lo && len(generated) > 0 {
				break
			}
			b.add(q)
		}
		// Balancing can starve a location-heavy batch; generic templates
		// mention no location.
		for _, q := range genericQueries {
			if b.len() >= s.lo {
				break
			}
			b.add(q)
		}
	}
	out.Queries = b.queries()

	log.Info("query: generated batch",
		zap.Int("count", len(out.Queries)),
		zap.Int("custom", len(c.CustomQueries)),
		zap.Bool("fallback", out.Fallback),
		zap.Bool("blank_criteria", c.IsBlank()),
		zap.Strings("uncovered_strategies", uncovered(out.Queries)),
	)
	for _, q := range out.Queries {
		log.Debug("query", zap.String("strategy", string(q.Strategy)), zap.String("text", q.Text))
	}
	return out, nil
}

// ask calls the model, retrying malformed or failed replies up to the
// configured budget.
func (s *Strategist) ask(ctx context.Context, c model.SearchCriteria) ([]model.Query, error) {
	req := anthropic.CompletionRequest{
		Model:       s.model,
		System:      systemPrompt,
		Prompt:      userPrompt(c, s.lo, s.hi),
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
		Stage:       "query",
	}

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "query: generate")
		}
		resp, err := s.gen.Complete(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if s.meter != nil {
			u := resp.Usage
			if err := s.meter.ChargeClaude(resp.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens); err != nil {
				return nil, &meterError{err: err}
			}
		}
		qs, err := parseQueries(resp.Text)
		if err != nil {
			lastErr = err
			zap.L().Debug("query: unusable model reply", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		return qs, nil
	}
	return nil, lastErr
}

// meterError marks a budget or metering failure so Generate can tell it
// apart from a generation failure.
type meterError struct{ err error }

func (e *meterError) Error() string { return e.err.Error() }
func (e *meterError) Unwrap() error { return e.err }

func isMeterErr(err error) bool {
	var me *meterError
	return errors.As(err, &me)
}
