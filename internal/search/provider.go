// Package search runs generated queries against web search providers and
// merges the hits into a deduplicated, order-preserving candidate list.
package search

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/pkg/brave"
	"github.com/sells-group/sourcing-cli/pkg/jina"
)

// Hit is one web search result.
type Hit struct {
	URL     string
	Title   string
	Snippet string
}

// Provider runs a single web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Hit, error)
}

// BraveProvider searches through the Brave Search API.
type BraveProvider struct {
	client brave.Client
	count  int
}

// NewBraveProvider wraps a Brave client. count <= 0 uses the API default.
func NewBraveProvider(client brave.Client, count int) *BraveProvider {
	return &BraveProvider{client: client, count: count}
}

// Name implements Provider.
func (p *BraveProvider) Name() string { return "brave" }

// Search implements Provider.
func (p *BraveProvider) Search(ctx context.Context, query string) ([]Hit, error) {
	resp, err := p.client.Search(ctx, query, p.count)
	if err != nil {
		return nil, eris.Wrap(err, "search: brave")
	}
	hits := make([]Hit, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		hits = append(hits, Hit{URL: r.URL, Title: r.Title, Snippet: r.Description})
	}
	return hits, nil
}

// JinaProvider searches through Jina Search.
type JinaProvider struct {
	client jina.Client
	count  int
}

// NewJinaProvider wraps a Jina client.
func NewJinaProvider(client jina.Client, count int) *JinaProvider {
	return &JinaProvider{client: client, count: count}
}

// Name implements Provider.
func (p *JinaProvider) Name() string { return "jina" }

// Search implements Provider.
func (p *JinaProvider) Search(ctx context.Context, query string) ([]Hit, error) {
	var opts []jina.SearchOption
	if p.count > 0 {
		opts = append(opts, jina.WithCount(p.count))
	}
	resp, err := p.client.Search(ctx, query, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "search: jina")
	}
	hits := make([]Hit, 0, len(resp.Data))
	for _, r := range resp.Data {
		hits = append(hits, Hit{URL: r.URL, Title: r.Title, Snippet: r.Description})
	}
	return hits, nil
}
