package search

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/resilience"
)

// ErrNoProviders is returned by Search when the gateway has no provider.
var ErrNoProviders = eris.New("search: no providers configured")

// Meter records search spend. A non-nil error stops the gateway.
type Meter interface {
	ChargeSearch(provider string, n int) error
}

// Outcome is the merged result of a query batch. Empty is a signaled
// state, not an error.
type Outcome struct {
	Candidates []model.CandidateURL
	Succeeded  int
	Failures   []model.QueryFailure
	Empty      bool
}

// Gateway fans queries out to providers in priority order. Each provider
// sits behind its own circuit breaker; a query falls through to the next
// provider when one errors or its circuit is open.
type Gateway struct {
	providers []Provider
	breakers  *resilience.ServiceBreakers
	limiter   *rate.Limiter
	meter     Meter

	maxCandidates  int
	dedupeByDomain bool
	skipDomains    []string
	timeout        time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithMeter charges every successful provider call to m.
func WithMeter(m Meter) Option {
	return func(g *Gateway) { g.meter = m }
}

// WithLimiter replaces the qps limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(g *Gateway) { g.limiter = l }
}

// WithBreakers shares a breaker registry across gateways.
func WithBreakers(sb *resilience.ServiceBreakers) Option {
	return func(g *Gateway) { g.breakers = sb }
}

// NewGateway creates a Gateway over providers, tried in the given order.
func NewGateway(providers []Provider, cfg config.SearchConfig, opts ...Option) *Gateway {
	limit := rate.Inf
	if cfg.QPS > 0 {
		limit = rate.Limit(cfg.QPS)
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	g := &Gateway{
		providers:      providers,
		breakers:       resilience.NewServiceBreakers(resilience.BreakerSettings("search", cfg.CircuitThreshold, cfg.CircuitResetSecs)),
		limiter:        rate.NewLimiter(limit, 1),
		maxCandidates:  cfg.MaxCandidates,
		dedupeByDomain: cfg.DedupeByDomain,
		skipDomains:    cfg.SkipDomains,
		timeout:        timeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Search runs one query and returns its hits unfiltered.
func (g *Gateway) Search(ctx context.Context, query string) ([]Hit, error) {
	hits, _, err := g.search(ctx, query)
	return hits, err
}

// SearchAll runs queries in order and merges their hits. Per-query
// failures are recorded in the outcome. Only cancellation and meter
// errors are returned. Queries stop once the candidate cap is reached.
func (g *Gateway) SearchAll(ctx context.Context, queries []model.Query) (*Outcome, error) {
	log := zap.L().With(zap.String("component", "search"))
	m := newMerger(g.maxCandidates, g.dedupeByDomain, g.skipDomains)
	out := &Outcome{}

	for i, q := range queries {
		if m.full() {
			log.Info("search: candidate cap reached",
				zap.Int("cap", g.maxCandidates),
				zap.Int("skipped_queries", len(queries)-i),
			)
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "search: search all")
		}

		hits, provider, err := g.search(ctx, q.Text)
		if err != nil {
			var me *meterError
			if errors.As(err, &me) || ctx.Err() != nil {
				return nil, err
			}
			log.Warn("search: query failed",
				zap.String("query", q.Text),
				zap.String("provider", provider),
				zap.Error(err),
			)
			out.Failures = append(out.Failures, model.QueryFailure{Query: q.Text, Provider: provider, Reason: err.Error()})
			continue
		}
		out.Succeeded++

		added := 0
		for _, h := range hits {
			if m.add(h, q.Text) {
				added++
			}
		}
		log.Debug("search: query done",
			zap.String("query", q.Text),
			zap.String("provider", provider),
			zap.Int("hits", len(hits)),
			zap.Int("new_candidates", added),
		)
	}

	out.Candidates = m.candidates()
	out.Empty = len(out.Candidates) == 0
	log.Info("search: batch complete",
		zap.Int("queries", len(queries)),
		zap.Int("succeeded", out.Succeeded),
		zap.Int("failed", len(out.Failures)),
		zap.Int("candidates", len(out.Candidates)),
	)
	return out, nil
}

// search tries each provider in turn and returns the name of the provider
// that answered, or of the last one tried.
func (g *Gateway) search(ctx context.Context, query string) ([]Hit, string, error) {
	if len(g.providers) == 0 {
		return nil, "", ErrNoProviders
	}

	var (
		lastErr  error
		lastName string
	)
	for _, p := range g.providers {
		lastName = p.Name()
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, lastName, eris.Wrap(err, "search: rate limit wait")
		}

		hits, err := resilience.ExecuteVal(ctx, g.breakers.Get(p.Name()), func(ctx context.Context) ([]Hit, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			return p.Search(callCtx, query)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, lastName, eris.Wrap(ctx.Err(), "search: query")
			}
			lastErr = err
			zap.L().Debug("search: provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}

		if g.meter != nil {
			if err := g.meter.ChargeSearch(p.Name(), 1); err != nil {
				return nil, lastName, &meterError{err: err}
			}
		}
		return hits, lastName, nil
	}
	return nil, lastName, lastErr
}

// meterError marks a budget failure so SearchAll stops instead of
// recording a per-query failure.
type meterError struct{ err error }

func (e *meterError) Error() string { return e.err.Error() }
func (e *meterError) Unwrap() error { return e.err }
