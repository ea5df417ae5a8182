// Package extract turns scraped page text into structured manufacturer
// records through a text-generation service.
package extract

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/search"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// TextGenerator produces text from a single-turn prompt.
type TextGenerator interface {
	Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error)
}

// Meter records the cost of an extraction call. An error stops the batch.
type Meter interface {
	ChargeClaude(model string, input, output, cacheWrite, cacheRead int64) error
}

// Outcome is the result of a batch extraction, in page order.
type Outcome struct {
	Records  []model.ManufacturerRecord
	Failures []model.ExtractionFailure
}

// ProgressFunc is called after each page finishes.
type ProgressFunc func(done, total int)

// Engine extracts one record per page. It holds no per-run state.
type Engine struct {
	gen   TextGenerator
	meter Meter

	model       string
	maxTokens   int64
	temperature float64
	maxChars    int
	concurrency int
	now         func() time.Time
}

// NewEngine creates an Engine. meter may be nil.
func NewEngine(gen TextGenerator, meter Meter, ac config.AnthropicConfig, ec config.ExtractConfig) *Engine {
	e := &Engine{
		gen:         gen,
		meter:       meter,
		model:       ac.ExtractModel,
		maxTokens:   int64(ac.ExtractMaxTokens),
		temperature: ac.ExtractTemperature,
		maxChars:    ec.MaxContentChars,
		concurrency: ec.Concurrency,
		now:         time.Now,
	}
	if e.maxTokens <= 0 {
		e.maxTokens = 2000
	}
	if e.maxChars <= 0 {
		e.maxChars = 8000
	}
	if e.concurrency < 1 {
		e.concurrency = 1
	}
	return e
}

// Extract builds a record from one page. Per-page problems come back as
// *model.ExtractionFailure; any other error (budget, cancellation) is
// fatal to the run.
func (e *Engine) Extract(ctx context.Context, page model.RawPage) (*model.ManufacturerRecord, error) {
	sourceURL := page.FinalURL
	if sourceURL == "" {
		sourceURL = page.Candidate.URL
	}
	fail := func(kind model.ExtractionFailureKind, reason string) error {
		return &model.ExtractionFailure{URL: sourceURL, Kind: kind, Reason: reason}
	}

	text := strings.TrimSpace(page.Text)
	if text == "" {
		return nil, fail(model.ExtractionMalformedSchema, "page has no text")
	}
	if r := []rune(text); len(r) > e.maxChars {
		text = string(r[:e.maxChars])
	}

	resp, err := e.gen.Complete(ctx, anthropic.CompletionRequest{
		Model:       e.model,
		System:      systemPrompt,
		CacheSystem: true,
		Prompt:      userPrompt(sourceURL, page.Title, text),
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		Stage:       "extract",
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: complete")
		}
		return nil, fail(model.ExtractionServiceError, err.Error())
	}
	if e.meter != nil {
		u := resp.Usage
		if err := e.meter.ChargeClaude(resp.Model, u.InputTokens, u.OutputTokens, u.CacheCreationInputTokens, u.CacheReadInputTokens); err != nil {
			return nil, err
		}
	}

	f, err := decodeReply(resp.Text)
	if err != nil {
		return nil, fail(model.ExtractionMalformedSchema, err.Error())
	}
	if len(f.dropped) > 0 {
		zap.L().Debug("extract: dropped invalid fields",
			zap.String("url", sourceURL),
			zap.Strings("fields", f.dropped),
		)
	}

	rec := f.record
	if rec.Name == "" {
		return nil, fail(model.ExtractionMissingMandatory, "name not found")
	}
	rec.Website = websiteURL(f.website)
	if rec.Website == "" {
		if search.IsMarketplace(sourceURL) {
			return nil, fail(model.ExtractionMissingMandatory, "website not found on marketplace listing")
		}
		rec.Website = model.Origin(sourceURL)
	}
	if rec.Website == "" {
		return nil, fail(model.ExtractionMissingMandatory, "website not found")
	}

	rec.SourceURL = sourceURL
	rec.Confidence = model.ConfidenceFromSignals(rec.SignalCount())
	rec.ExtractedAt = e.now().UTC()
	return &rec, nil
}

// ExtractAll runs Extract over pages with bounded concurrency. Per-page
// failures are collected; only budget errors and cancellation are returned.
func (e *Engine) ExtractAll(ctx context.Context, pages []model.RawPage, progress ProgressFunc) (*Outcome, error) {
	total := len(pages)
	records := make([]*model.ManufacturerRecord, total)
	failures := make([]*model.ExtractionFailure, total)

	var done atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, page := range pages {
		g.Go(func() error {
			rec, err := e.Extract(gctx, page)
			if err != nil {
				var ef *model.ExtractionFailure
				if !errors.As(err, &ef) {
					return err
				}
				zap.L().Warn("extract: page failed",
					zap.String("url", ef.URL),
					zap.String("kind", string(ef.Kind)),
					zap.String("reason", ef.Reason),
				)
				failures[i] = ef
			} else {
				records[i] = rec
			}
			n := int(done.Add(1))
			if progress != nil {
				progress(n, total)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Outcome{}
	for i := range pages {
		if records[i] != nil {
			out.Records = append(out.Records, *records[i])
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, *failures[i])
		}
	}
	zap.L().Info("extract: batch complete",
		zap.Int("pages", total),
		zap.Int("records", len(out.Records)),
		zap.Int("failed", len(out.Failures)),
	)
	return out, nil
}
