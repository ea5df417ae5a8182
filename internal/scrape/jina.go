package scrape

import (
	"context"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/resilience"
	"github.com/sells-group/sourcing-cli/pkg/jina"
)

// ReaderMeter records Jina Reader spend.
type ReaderMeter interface {
	ChargeReader(tokens int) error
}

var challengeSignatures = []string{
	"checking your browser",
	"enable javascript",
	"please enable cookies",
	"access denied",
	"403 forbidden",
	"just a moment",
	"cloudflare",
	"attention required",
}

// JinaFetcher reads pages through Jina Reader. It is used as the fallback
// for pages the local fetcher finds blocked. A circuit breaker skips the
// reader after repeated failures.
type JinaFetcher struct {
	client   jina.Client
	breaker  *resilience.CircuitBreaker
	meter    ReaderMeter
	maxChars int
}

// NewJinaFetcher creates a JinaFetcher. meter may be nil.
func NewJinaFetcher(client jina.Client, meter ReaderMeter, maxChars int) *JinaFetcher {
	return &JinaFetcher{
		client:   client,
		breaker:  resilience.NewCircuitBreaker(resilience.BreakerSettings("jina_reader", 3, 60)),
		meter:    meter,
		maxChars: maxChars,
	}
}

// Name implements Fetcher.
func (j *JinaFetcher) Name() string { return "jina" }

// Fetch implements Fetcher. A budget error from the meter is returned
// as-is so the caller can stop the run.
func (j *JinaFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	resp, err := resilience.ExecuteVal(ctx, j.breaker, func(ctx context.Context) (*jina.ReadResponse, error) {
		resp, err := j.client.Read(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if needsFallback(resp) {
			return nil, failure(rawURL, model.ScrapeBlocked, resp.Code, "jina: unusable reader response")
		}
		return resp, nil
	})
	if err != nil {
		return nil, classify(rawURL, err)
	}

	if j.meter != nil {
		if err := j.meter.ChargeReader(resp.Data.Usage.Tokens); err != nil {
			return nil, err
		}
	}

	finalURL := resp.Data.URL
	if finalURL == "" {
		finalURL = rawURL
	}
	return &Page{
		FinalURL:   finalURL,
		Title:      strings.TrimSpace(resp.Data.Title),
		Text:       Truncate(strings.TrimSpace(resp.Data.Content), j.maxChars),
		StatusCode: 200,
	}, nil
}

// needsFallback reports whether a Reader response is blocked, empty or an
// error page.
func needsFallback(resp *jina.ReadResponse) bool {
	if resp == nil {
		return true
	}
	if resp.Code != 0 && resp.Code != 200 {
		return true
	}

	content := strings.TrimSpace(resp.Data.Content)
	if len(content) < 100 {
		return true
	}

	lower := strings.ToLower(content)
	for _, sig := range challengeSignatures {
		if strings.Contains(lower, sig) && len(content) < 1000 {
			return true
		}
	}
	return false
}
