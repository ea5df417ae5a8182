package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/export"
	"github.com/sells-group/sourcing-cli/internal/extract"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
	"github.com/sells-group/sourcing-cli/internal/query"
	"github.com/sells-group/sourcing-cli/internal/resilience"
	"github.com/sells-group/sourcing-cli/internal/scorer"
	"github.com/sells-group/sourcing-cli/internal/scrape"
	"github.com/sells-group/sourcing-cli/internal/search"
	"github.com/sells-group/sourcing-cli/internal/store"
	anthropicpkg "github.com/sells-group/sourcing-cli/pkg/anthropic"
	"github.com/sells-group/sourcing-cli/pkg/brave"
	"github.com/sells-group/sourcing-cli/pkg/jina"
	"github.com/sells-group/sourcing-cli/pkg/notion"
)

// envOptions selects the sinks a command wants.
type envOptions struct {
	noStore bool
	notion  bool
}

// pipelineEnv holds the run manager and the resources behind its sinks.
type pipelineEnv struct {
	Store   store.Store // nil when persistence is off
	Manager *pipeline.Manager
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates config for mode, builds every client and
// returns a Manager whose runs deliver to the configured sinks. Callers
// should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, mode string, opts envOptions) (*pipelineEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}

	build, err := newStageBuilder(c)
	if err != nil {
		return nil, err
	}

	env := &pipelineEnv{}
	var sinks []pipeline.Sink

	if !opts.noStore {
		st, err := initStore(ctx, c.Store)
		if err != nil {
			return nil, err
		}
		if st != nil {
			env.Store = st
			sinks = append(sinks, pipeline.SinkFunc{Label: "store", Fn: st.SaveRun})
		}
	}

	if opts.notion {
		if c.Notion.Token == "" || c.Notion.DatabaseID == "" {
			env.Close()
			return nil, eris.New("notion export needs notion.token and notion.database_id")
		}
		sinks = append(sinks, export.NewNotionSink(notion.NewClient(c.Notion.Token), c.Notion.DatabaseID))
		zap.L().Info("notion export enabled", zap.String("database_id", c.Notion.DatabaseID))
	}

	calc := cost.NewCalculator(ratesFromConfig(c.Pricing))
	env.Manager = pipeline.NewManager(build, calc, c.Pipeline, pipeline.WithRunSinks(sinks...))
	return env, nil
}

// newStageBuilder creates the shared clients once and returns a builder
// that binds per-run stages to that run's budget tracker.
func newStageBuilder(c *config.Config) (pipeline.StageBuilder, error) {
	anthropicOpts := []anthropicpkg.Option{anthropicpkg.WithBaseURL(c.Anthropic.BaseURL)}
	if c.Anthropic.TimeoutSecs > 0 {
		anthropicOpts = append(anthropicOpts, anthropicpkg.WithTimeout(time.Duration(c.Anthropic.TimeoutSecs)*time.Second))
	}
	gen := anthropicpkg.NewGenerator(anthropicpkg.NewClient(c.Anthropic.Key, anthropicOpts...))

	var jinaClient jina.Client
	if c.Jina.Key != "" {
		var jinaOpts []jina.Option
		if c.Jina.BaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithBaseURL(c.Jina.BaseURL))
		}
		if c.Jina.SearchBaseURL != "" {
			jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
		}
		jinaClient = jina.NewClient(c.Jina.Key, jinaOpts...)
	}

	providers, err := searchProviders(c, jinaClient)
	if err != nil {
		return nil, err
	}

	// Breakers and limiters are shared so concurrent runs see the same
	// provider health and politeness budget.
	breakers := resilience.NewServiceBreakers(resilience.BreakerSettings("search", c.Search.CircuitThreshold, c.Search.CircuitResetSecs))
	searchLimiter := rate.NewLimiter(limitFor(c.Search.QPS), 1)
	scrapeLimiter := rate.NewLimiter(everyMS(c.Scrape.MinDelayMS), 1)
	transport, err := scrape.NewTransport(c.Scrape.TLSProfile)
	if err != nil {
		return nil, err
	}
	local := scrape.NewLocalFetcher(int64(c.Scrape.MaxBodyBytes), c.Scrape.MaxTextChars,
		scrape.WithHTTPClient(&http.Client{Timeout: 30 * time.Second, Transport: transport}))
	sc := scorer.New(c.Scoring)

	if c.Jina.ReaderFallback && jinaClient == nil {
		zap.L().Warn("jina.reader_fallback is on but jina.key is empty; blocked pages will not be retried")
	}

	return func(budget *cost.Tracker) (pipeline.Stages, error) {
		scrapeOpts := []scrape.Option{
			scrape.WithLimiter(scrapeLimiter),
			scrape.WithPathMatcher(scrape.NewPathMatcher(c.Scrape.ExcludePatterns)),
		}
		if c.Jina.ReaderFallback && jinaClient != nil {
			scrapeOpts = append(scrapeOpts, scrape.WithFallback(scrape.NewJinaFetcher(jinaClient, budget, c.Scrape.MaxTextChars)))
		}
		return pipeline.Stages{
			Queries: query.NewStrategist(gen, budget, c.Anthropic, c.Query),
			Search: search.NewGateway(providers, c.Search,
				search.WithMeter(budget),
				search.WithBreakers(breakers),
				search.WithLimiter(searchLimiter),
			),
			Scrape:  scrape.NewCoordinator(local, c.Scrape, scrapeOpts...),
			Extract: extract.NewEngine(gen, budget, c.Anthropic, c.Extract),
			Score:   sc,
		}, nil
	}, nil
}

// searchProviders builds providers in the configured order, skipping any
// without credentials.
func searchProviders(c *config.Config, jinaClient jina.Client) ([]search.Provider, error) {
	var out []search.Provider
	for _, name := range c.Search.Providers {
		switch name {
		case "brave":
			if c.Brave.Key == "" {
				zap.L().Debug("brave.key not set, skipping brave search")
				continue
			}
			var braveOpts []brave.Option
			if c.Brave.BaseURL != "" {
				braveOpts = append(braveOpts, brave.WithBaseURL(c.Brave.BaseURL))
			}
			out = append(out, search.NewBraveProvider(brave.NewClient(c.Brave.Key, braveOpts...), c.Brave.Count))
		case "jina":
			if jinaClient == nil {
				zap.L().Debug("jina.key not set, skipping jina search")
				continue
			}
			out = append(out, search.NewJinaProvider(jinaClient, c.Brave.Count))
		default:
			return nil, eris.Errorf("search: unknown provider %q", name)
		}
	}
	if len(out) == 0 {
		return nil, eris.New("search: no provider configured (set SOURCING_BRAVE_KEY or SOURCING_JINA_KEY)")
	}
	return out, nil
}

func ratesFromConfig(p config.PricingConfig) cost.Rates {
	r := cost.Rates{
		Anthropic: make(map[string]cost.ModelRate, len(p.Anthropic)),
		Brave:     cost.BraveRate{PerQuery: p.Brave.PerQuery},
		Jina:      cost.JinaRate{PerMTok: p.Jina.PerMTok, SearchTokens: p.Jina.SearchTokens},
	}
	for model, m := range p.Anthropic {
		r.Anthropic[model] = cost.ModelRate{
			Input:         m.Input,
			Output:        m.Output,
			CacheWriteMul: m.CacheWriteMul,
			CacheReadMul:  m.CacheReadMul,
		}
	}
	return r
}

func limitFor(qps float64) rate.Limit {
	if qps <= 0 {
		return rate.Inf
	}
	return rate.Limit(qps)
}

func everyMS(ms int) rate.Limit {
	if ms <= 0 {
		return rate.Inf
	}
	return rate.Every(time.Duration(ms) * time.Millisecond)
}
