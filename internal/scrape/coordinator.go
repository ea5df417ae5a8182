// Package scrape fetches candidate URLs under concurrency, politeness and
// timeout limits, yielding page text or a typed failure per URL.
package scrape

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/resilience"
)

// Outcome is the result of a batch fetch. Pages and Failures are in
// candidate order; their lengths sum to Attempted.
type Outcome struct {
	Pages     []model.RawPage
	Failures  []model.ScrapeFailure
	Attempted int
	// Degraded is set when successes fell below the configured floor.
	Degraded bool
}

// ProgressFunc is called after each candidate finishes.
type ProgressFunc func(done, total int)

// Coordinator fetches candidates through a primary Fetcher, retrying
// retryable failures once and handing blocked pages to an optional
// fallback.
type Coordinator struct {
	primary  Fetcher
	fallback Fetcher
	matcher  *PathMatcher
	limiter  *rate.Limiter

	concurrency  int
	maxFetch     int
	timeout      time.Duration
	retryDelay   time.Duration
	successFloor int
	now          func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithFallback sets the fetcher used for blocked pages.
func WithFallback(f Fetcher) Option {
	return func(c *Coordinator) { c.fallback = f }
}

// WithPathMatcher replaces the default download filter.
func WithPathMatcher(m *PathMatcher) Option {
	return func(c *Coordinator) { c.matcher = m }
}

// WithLimiter replaces the politeness limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Coordinator) { c.limiter = l }
}

// NewCoordinator creates a Coordinator. The minimum delay between
// consecutive requests is enforced across all workers.
func NewCoordinator(primary Fetcher, cfg config.ScrapeConfig, opts ...Option) *Coordinator {
	every := rate.Inf
	if cfg.MinDelayMS > 0 {
		every = rate.Every(time.Duration(cfg.MinDelayMS) * time.Millisecond)
	}
	c := &Coordinator{
		primary:      primary,
		matcher:      NewPathMatcher(nil),
		limiter:      rate.NewLimiter(every, 1),
		concurrency:  cfg.Concurrency,
		maxFetch:     cfg.MaxFetch,
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		retryDelay:   time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		successFloor: cfg.SuccessFloor,
		now:          time.Now,
	}
	if c.concurrency < 1 {
		c.concurrency = 1
	}
	if c.maxFetch < 1 {
		c.maxFetch = 10
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchAll fetches up to the configured maximum of candidates. A failure on
// one URL never stops the others. Only cancellation and budget errors are
// returned.
func (c *Coordinator) FetchAll(ctx context.Context, candidates []model.CandidateURL, progress ProgressFunc) (*Outcome, error) {
	if len(candidates) > c.maxFetch {
		candidates = candidates[:c.maxFetch]
	}
	total := len(candidates)
	pages := make([]*model.RawPage, total)
	failures := make([]*model.ScrapeFailure, total)

	var done atomic.Int32

	// A budget error cancels gctx so the remaining fetches stop early.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, cand := range candidates {
		g.Go(func() error {
			page, err := c.Fetch(gctx, cand)
			switch {
			case err == nil:
				pages[i] = page
			case isFatal(err):
				return err
			case gctx.Err() == nil:
				failures[i] = classify(cand.URL, err)
			}
			n := int(done.Add(1))
			if progress != nil {
				progress(n, total)
			}
			return nil
		})
	}
	fatalErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "scrape: fetch all")
	}
	if fatalErr != nil {
		return nil, fatalErr
	}

	out := &Outcome{Attempted: total}
	for i := range candidates {
		if pages[i] != nil {
			out.Pages = append(out.Pages, *pages[i])
		}
		if failures[i] != nil {
			out.Failures = append(out.Failures, *failures[i])
		}
	}
	floor := c.successFloor
	if floor > total {
		floor = total
	}
	out.Degraded = len(out.Pages) < floor

	zap.L().Info("scrape: batch complete",
		zap.Int("attempted", total),
		zap.Int("succeeded", len(out.Pages)),
		zap.Int("failed", len(out.Failures)),
		zap.Bool("degraded", out.Degraded),
	)
	return out, nil
}

// Fetch retrieves one candidate. Retryable failures get one more attempt
// after the retry delay; blocked pages then go to the fallback fetcher.
func (c *Coordinator) Fetch(ctx context.Context, cand model.CandidateURL) (*model.RawPage, error) {
	if c.matcher != nil && c.matcher.IsExcluded(cand.URL) {
		return nil, failure(cand.URL, model.ScrapeNonHTML, 0, "excluded download path")
	}

	log := zap.L().With(zap.String("url", cand.URL))

	fetcher := c.primary
	page, err := c.attempt(ctx, fetcher, cand.URL)
	if err != nil && !isFatal(err) && classify(cand.URL, err).Kind.Retryable() && ctx.Err() == nil {
		log.Debug("scrape: retrying", zap.Error(err))
		if serr := resilience.Sleep(ctx, c.retryDelay); serr != nil {
			return nil, eris.Wrap(serr, "scrape: retry wait")
		}
		page, err = c.attempt(ctx, fetcher, cand.URL)
	}
	if err != nil && !isFatal(err) && c.fallback != nil && classify(cand.URL, err).Kind == model.ScrapeBlocked && ctx.Err() == nil {
		log.Debug("scrape: blocked, using fallback", zap.String("fallback", c.fallback.Name()))
		fetcher = c.fallback
		page, err = c.attempt(ctx, fetcher, cand.URL)
	}
	if err != nil {
		if !isFatal(err) {
			log.Warn("scrape: fetch failed", zap.String("kind", string(classify(cand.URL, err).Kind)), zap.Error(err))
		}
		return nil, err
	}

	return &model.RawPage{
		Candidate:  cand,
		FinalURL:   page.FinalURL,
		Title:      page.Title,
		Text:       page.Text,
		StatusCode: page.StatusCode,
		Source:     fetcher.Name(),
		FetchedAt:  c.now().UTC(),
	}, nil
}

func (c *Coordinator) attempt(ctx context.Context, f Fetcher, rawURL string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "scrape: politeness wait")
	}
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return f.Fetch(callCtx, rawURL)
}

func isFatal(err error) bool {
	return errors.Is(err, cost.ErrBudgetExceeded)
}
