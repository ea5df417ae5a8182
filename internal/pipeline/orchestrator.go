// Package pipeline drives one sourcing run through query generation,
// search, scraping, extraction and scoring as an explicit state machine.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/extract"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/query"
	"github.com/sells-group/sourcing-cli/internal/scrape"
	"github.com/sells-group/sourcing-cli/internal/search"
)

// Strategist produces the query batch for a run.
type Strategist interface {
	Generate(ctx context.Context, c model.SearchCriteria) (*query.Batch, error)
}

// Searcher turns queries into deduplicated candidates.
type Searcher interface {
	SearchAll(ctx context.Context, queries []model.Query) (*search.Outcome, error)
}

// Scraper fetches candidate pages.
type Scraper interface {
	FetchAll(ctx context.Context, candidates []model.CandidateURL, progress scrape.ProgressFunc) (*scrape.Outcome, error)
}

// Extractor turns pages into records.
type Extractor interface {
	ExtractAll(ctx context.Context, pages []model.RawPage, progress extract.ProgressFunc) (*extract.Outcome, error)
}

// Scorer ranks records against the criteria.
type Scorer interface {
	ScoreAll(c model.SearchCriteria, records []model.ManufacturerRecord) []model.ScoredManufacturer
}

// Budget reports a run's spend.
type Budget interface {
	Spent() float64
	Limit() float64
	Exceeded() bool
	// Breakdown returns spend per billed item, e.g. "search:serper".
	Breakdown() map[string]float64
}

// Stages are the five collaborators of one run.
type Stages struct {
	Queries Strategist
	Search  Searcher
	Scrape  Scraper
	Extract Extractor
	Score   Scorer
}

// Request describes one run.
type Request struct {
	ID            string
	Criteria      model.SearchCriteria
	MaxCandidates int
}

// Orchestrator runs the stages strictly in sequence, carrying partial
// results forward. Only budget exhaustion, cancellation and a stage with
// zero viable output end a run early.
type Orchestrator struct {
	stages Stages
	budget Budget
	sinks  []Sink

	defaultMax  int
	sinkTimeout time.Duration
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSinks hands every finished run to the given sinks.
func WithSinks(sinks ...Sink) Option {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sinks...) }
}

// WithDefaultMax sets the candidate cap used when a request has none.
func WithDefaultMax(n int) Option {
	return func(o *Orchestrator) { o.defaultMax = n }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// NewOrchestrator creates an Orchestrator. budget may be nil.
func NewOrchestrator(stages Stages, budget Budget, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stages:      stages,
		budget:      budget,
		defaultMax:  10,
		sinkTimeout: 2 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one run to a terminal state and returns its result. It
// never returns an error: failures are carried in the result and in the
// final progress snapshot. progress may be nil.
func (o *Orchestrator) Run(ctx context.Context, req Request, progress *Progress) *model.RunResult {
	if req.MaxCandidates <= 0 {
		req.MaxCandidates = o.defaultMax
	}
	if progress == nil {
		progress = NewProgress(req.ID, req.MaxCandidates, o.limit(), o.now().UTC())
	}
	r := &runner{
		o:        o,
		req:      req,
		progress: progress,
		state:    model.RunStateInit,
		log:      zap.L().With(zap.String("run_id", req.ID)),
	}
	r.log.Info("pipeline: run started", zap.Int("max_candidates", req.MaxCandidates))

	scored := r.execute(ctx)
	return r.finish(ctx, scored)
}

func (o *Orchestrator) limit() float64 {
	if o.budget == nil {
		return 0
	}
	return o.budget.Limit()
}

func (o *Orchestrator) spent() float64 {
	if o.budget == nil {
		return 0
	}
	return o.budget.Spent()
}

// runner holds the state of one run. Only the goroutine executing Run
// moves the state machine; stage workers only touch progress details.
type runner struct {
	o        *Orchestrator
	req      Request
	progress *Progress
	state    model.RunState
	summary  model.RunSummary
	warnings []string
	err      *model.RunError
	log      *zap.Logger
}

func (r *runner) execute(ctx context.Context) []model.ScoredManufacturer {
	c := r.req.Criteria

	// Generating queries.
	if !r.advance(model.RunStateGeneratingQueries, "Crafting search queries") {
		return nil
	}
	if c.IsBlank() {
		r.warn("No search criteria were given; results come from generic manufacturer queries")
	}
	batch, err := r.o.stages.Queries.Generate(ctx, c)
	if err != nil {
		r.fail(r.stageError("query generation", err))
		return nil
	}
	r.summary.QueriesGenerated = len(batch.Queries)
	r.summary.QueryFallbackUsed = batch.Fallback
	if batch.Fallback {
		r.log.Warn("pipeline: query generation degraded", zap.String("kind", string(model.ErrorKindQueryGenerationDegraded)))
	}
	if len(batch.Queries) == 0 {
		r.fail(model.NewRunError(model.ErrorKindNoViableCandidates, "no search queries could be generated"))
		return nil
	}
	r.detail(fmt.Sprintf("Generated %d queries", len(batch.Queries)))

	// Searching.
	if !r.advance(model.RunStateSearching, fmt.Sprintf("Running %d queries", len(batch.Queries))) {
		return nil
	}
	found, err := r.o.stages.Search.SearchAll(ctx, batch.Queries)
	if err != nil {
		r.fail(r.stageError("search", err))
		return nil
	}
	r.summary.QueriesSucceeded = found.Succeeded
	r.summary.QueriesFailed = len(found.Failures)
	r.summary.CandidatesFound = len(found.Candidates)
	if len(found.Failures) > 0 {
		r.log.Warn("pipeline: search queries failed",
			zap.String("kind", string(model.ErrorKindSearchProvider)),
			zap.Int("failed", len(found.Failures)),
		)
	}
	if len(found.Candidates) == 0 {
		if found.Succeeded == 0 && len(found.Failures) > 0 {
			r.fail(model.NewRunError(model.ErrorKindNoViableCandidates,
				"all %d search queries failed: %s", len(found.Failures), found.Failures[0].Reason))
			return nil
		}
		r.advance(model.RunStateEmpty, "No manufacturer URLs found")
		return nil
	}
	candidates := found.Candidates
	if len(candidates) > r.req.MaxCandidates {
		candidates = candidates[:r.req.MaxCandidates]
	}
	r.detail(fmt.Sprintf("Found %d manufacturer URLs", len(found.Candidates)))

	// Scraping.
	if !r.advance(model.RunStateScraping, fmt.Sprintf("Scraping %d sites", len(candidates))) {
		return nil
	}
	fetched, err := r.o.stages.Scrape.FetchAll(ctx, candidates, func(done, total int) {
		r.detail(fmt.Sprintf("Scraped %d/%d sites", done, total))
	})
	if err != nil {
		r.fail(r.stageError("scraping", err))
		return nil
	}
	r.summary.ScrapeAttempted = fetched.Attempted
	r.summary.ScrapeSucceeded = len(fetched.Pages)
	r.summary.ScrapeFailed = len(fetched.Failures)
	for _, f := range fetched.Failures {
		if r.summary.ScrapeFailures == nil {
			r.summary.ScrapeFailures = make(map[model.ScrapeFailureKind]int)
		}
		r.summary.ScrapeFailures[f.Kind]++
	}
	if len(fetched.Pages) == 0 {
		r.fail(model.NewRunError(model.ErrorKindNoViableCandidates,
			"none of %d sites could be scraped", fetched.Attempted))
		return nil
	}
	if fetched.Degraded {
		r.warn(fmt.Sprintf("Only %d of %d sites could be scraped; results may be incomplete",
			len(fetched.Pages), fetched.Attempted))
	}

	// Extracting.
	if !r.advance(model.RunStateExtracting, fmt.Sprintf("Extracting data from %d pages", len(fetched.Pages))) {
		return nil
	}
	extracted, err := r.o.stages.Extract.ExtractAll(ctx, fetched.Pages, func(done, total int) {
		r.detail(fmt.Sprintf("Extracted %d/%d pages", done, total))
	})
	if err != nil {
		r.fail(r.stageError("extraction", err))
		return nil
	}
	r.summary.ExtractSucceeded = len(extracted.Records)
	r.summary.ExtractFailed = len(extracted.Failures)
	for _, f := range extracted.Failures {
		if r.summary.ExtractFailures == nil {
			r.summary.ExtractFailures = make(map[model.ExtractionFailureKind]int)
		}
		r.summary.ExtractFailures[f.Kind]++
	}
	r.progress.update(func(p *model.PipelineRun) { p.Found = len(extracted.Records) })
	if len(extracted.Records) == 0 {
		r.fail(model.NewRunError(model.ErrorKindNoViableCandidates,
			"no manufacturer records could be extracted from %d pages", len(fetched.Pages)))
		return nil
	}

	// Scoring.
	if !r.advance(model.RunStateScoring, fmt.Sprintf("Scoring %d manufacturers", len(extracted.Records))) {
		return nil
	}
	scored := r.o.stages.Score.ScoreAll(c, extracted.Records)
	r.summary.RecordsScored = len(scored)

	if !r.advance(model.RunStateCompleted, fmt.Sprintf("Found %d manufacturers", len(scored))) {
		return nil
	}
	return scored
}

// advance moves to the next state after checking the budget ceiling. It
// reports false when the run has ended instead.
func (r *runner) advance(to model.RunState, detail string) bool {
	if !to.Terminal() && r.o.budget != nil && r.o.budget.Exceeded() {
		r.fail(r.budgetError(string(r.state)))
		return false
	}
	if err := checkTransition(r.state, to); err != nil {
		r.fail(model.NewRunError(model.ErrorKindInternal, "%v", err))
		return false
	}
	from := r.state
	r.state = to
	r.publish(func(p *model.PipelineRun) {
		p.Detail = detail
	})
	r.log.Info("pipeline: state change",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("detail", detail),
		zap.Float64("cost_usd", r.o.spent()),
	)
	return true
}

func (r *runner) fail(e *model.RunError) {
	if r.state.Terminal() {
		return
	}
	r.log.Error("pipeline: run failed",
		zap.String("from", string(r.state)),
		zap.String("kind", string(e.Kind)),
		zap.String("reason", e.Reason),
	)
	r.state = model.RunStateFailed
	r.err = e
	r.publish(func(p *model.PipelineRun) {
		p.Detail = e.Reason
	})
}

func (r *runner) detail(s string) {
	r.progress.update(func(p *model.PipelineRun) {
		p.Detail = s
		p.CostUSD = r.o.spent()
	})
}

func (r *runner) warn(s string) {
	r.log.Warn("pipeline: degraded results", zap.String("warning", s))
	r.warnings = append(r.warnings, s)
	r.publish(func(*model.PipelineRun) {})
}

// publish writes the runner's state into a new snapshot.
func (r *runner) publish(fn func(p *model.PipelineRun)) {
	state, summary, err := r.state, r.summary, r.err
	warnings := append([]string(nil), r.warnings...)
	r.progress.update(func(p *model.PipelineRun) {
		p.State = state
		p.Step = state.StepLabel()
		p.Progress = state.Percent()
		p.Summary = summary
		p.Warnings = warnings
		p.Error = err
		p.CostUSD = r.o.spent()
		fn(p)
	})
}

// stageError maps a stage's fatal error onto the run error taxonomy.
func (r *runner) stageError(stage string, err error) *model.RunError {
	switch {
	case errors.Is(err, cost.ErrBudgetExceeded):
		return r.budgetError(stage)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return model.NewRunError(model.ErrorKindInternal, "run canceled during %s", stage)
	}
	return model.NewRunError(model.ErrorKindInternal, "%s: %v", stage, err)
}

func (r *runner) budgetError(stage string) *model.RunError {
	return model.NewRunError(model.ErrorKindBudgetExceeded,
		"budget of $%.2f exceeded during %s (spent $%.2f)", r.o.limit(), stage, r.o.spent())
}

// finish builds the result, hands it to sinks and publishes the terminal
// snapshot.
func (r *runner) finish(ctx context.Context, scored []model.ScoredManufacturer) *model.RunResult {
	result := &model.RunResult{
		RunID:         r.req.ID,
		Criteria:      r.req.Criteria,
		Manufacturers: scored,
		Summary:       r.summary,
		Error:         r.err,
		CostUSD:       r.o.spent(),
	}
	if r.o.budget != nil {
		if items := r.o.budget.Breakdown(); len(items) > 0 {
			result.CostBreakdown = items
		}
	}
	switch r.state {
	case model.RunStateCompleted:
		result.Status = model.ResultCompleted
	case model.RunStateEmpty:
		result.Status = model.ResultEmpty
	default:
		result.Status = model.ResultFailed
	}

	completedAt := r.o.now().UTC()
	final := r.progress.Snapshot()
	final.CompletedAt = &completedAt
	final.Found = len(scored)
	final.CostUSD = result.CostUSD

	if len(r.o.sinks) > 0 {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.o.sinkTimeout)
		for _, s := range r.o.sinks {
			if err := s.Deliver(sinkCtx, final, *result); err != nil {
				r.log.Warn("pipeline: sink delivery failed", zap.String("sink", s.Name()), zap.Error(err))
				r.warnings = append(r.warnings, fmt.Sprintf("Could not deliver results to %s", s.Name()))
			}
		}
		cancel()
	}
	result.Warnings = append([]string(nil), r.warnings...)

	warnings := result.Warnings
	r.progress.update(func(p *model.PipelineRun) {
		p.State = r.state
		p.Step = r.state.StepLabel()
		p.Progress = r.state.Percent()
		p.Summary = r.summary
		p.Error = r.err
		p.Warnings = warnings
		p.Found = len(scored)
		p.CostUSD = result.CostUSD
		p.CompletedAt = &completedAt
	})

	r.log.Info("pipeline: run finished",
		zap.String("state", string(r.state)),
		zap.Int("manufacturers", len(scored)),
		zap.Int("scrape_failed", r.summary.ScrapeFailed),
		zap.Int("extract_failed", r.summary.ExtractFailed),
		zap.Float64("cost_usd", result.CostUSD),
	)
	return result
}
