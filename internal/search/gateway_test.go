package search

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
)

type mockProvider struct {
	mock.Mock
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Search(ctx context.Context, query string) ([]Hit, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}

type searchMeter struct {
	calls map[string]int
	err   error
}

func (s *searchMeter) ChargeSearch(provider string, n int) error {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[provider] += n
	return s.err
}

func testSearchConfig() config.SearchConfig {
	return config.SearchConfig{
		MaxCandidates:    15,
		DedupeByDomain:   true,
		TimeoutSecs:      5,
		CircuitThreshold: 3,
		CircuitResetSecs: 60,
	}
}

func queries(texts ...string) []model.Query {
	out := make([]model.Query, len(texts))
	for i, t := range texts {
		out[i] = model.Query{Text: t, Strategy: model.StrategyDirectManufacturer}
	}
	return out
}

func urls(cs []model.CandidateURL) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.URL
	}
	return out
}

func TestSearchAll_DedupesAndPreservesOrder(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, "q1").Return([]Hit{
		{URL: "https://www.acme-knit.com/about", Title: "Acme Knit"},
		{URL: "https://facebook.com/acmeknit"},
		{URL: "https://acme-knit.com/contact"},
		{URL: "https://www.alibaba.com/product/1"},
		{URL: "not a url"},
	}, nil)
	p.On("Search", mock.Anything, "q2").Return([]Hit{
		{URL: "http://acme-knit.com/"},
		{URL: "https://alibaba.com/product/2"},
		{URL: "https://alibaba.com/product/1/"},
		{URL: "https://vnfactory.vn"},
	}, nil)
	meter := &searchMeter{}

	out, err := NewGateway([]Provider{p}, testSearchConfig(), WithMeter(meter)).
		SearchAll(context.Background(), queries("q1", "q2"))

	require.NoError(t, err)
	assert.False(t, out.Empty)
	assert.Equal(t, 2, out.Succeeded)
	assert.Empty(t, out.Failures)
	assert.Equal(t, []string{
		"https://www.acme-knit.com/about",
		"https://www.alibaba.com/product/1",
		"https://alibaba.com/product/2",
		"https://vnfactory.vn",
	}, urls(out.Candidates))
	assert.Equal(t, []string{"q1", "q2"}, out.Candidates[0].Queries)
	assert.Equal(t, []string{"q1", "q2"}, out.Candidates[1].Queries)
	assert.Equal(t, "acme-knit.com/about", out.Candidates[0].Key)
	assert.Equal(t, "Acme Knit", out.Candidates[0].Title)
	assert.Equal(t, 2, meter.calls["brave"])
}

func TestSearchAll_NoTwoCandidatesShareAKey(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, mock.Anything).Return([]Hit{
		{URL: "https://a.com/x"}, {URL: "https://A.com/x/"}, {URL: "https://b.com/y?ref=1"}, {URL: "https://b.com/y"},
	}, nil)
	cfg := testSearchConfig()
	cfg.DedupeByDomain = false

	out, err := NewGateway([]Provider{p}, cfg).SearchAll(context.Background(), queries("q1", "q2", "q3"))
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, c := range out.Candidates {
		assert.False(t, seen[c.Key], "duplicate key %s", c.Key)
		seen[c.Key] = true
	}
	assert.Len(t, out.Candidates, 2)
}

func TestSearchAll_DomainDedupeOff(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, "q1").Return([]Hit{
		{URL: "https://acme.com/knits"}, {URL: "https://acme.com/wovens"},
	}, nil)
	cfg := testSearchConfig()
	cfg.DedupeByDomain = false

	out, err := NewGateway([]Provider{p}, cfg).SearchAll(context.Background(), queries("q1"))
	require.NoError(t, err)
	assert.Len(t, out.Candidates, 2)
}

func TestSearchAll_SkipDomains(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, "q1").Return([]Hit{
		{URL: "https://en.wikipedia.org/wiki/Activewear"},
		{URL: "https://www.youtube.com/watch?v=1"},
		{URL: "https://news.example-trade.com/article"},
		{URL: "https://factory.com"},
	}, nil)
	cfg := testSearchConfig()
	cfg.SkipDomains = []string{"www.example-trade.com"}

	out, err := NewGateway([]Provider{p}, cfg).SearchAll(context.Background(), queries("q1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://factory.com"}, urls(out.Candidates))
}

func TestSearchAll_ToleratesQueryFailure(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, "bad").Return(nil, errors.New("brave: 500"))
	p.On("Search", mock.Anything, "good").Return([]Hit{{URL: "https://factory.com"}}, nil)

	out, err := NewGateway([]Provider{p}, testSearchConfig()).SearchAll(context.Background(), queries("bad", "good"))

	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "bad", out.Failures[0].Query)
	assert.Equal(t, "brave", out.Failures[0].Provider)
	assert.Len(t, out.Candidates, 1)
}

func TestSearchAll_FallsThroughToSecondProvider(t *testing.T) {
	primary := &mockProvider{name: "brave"}
	primary.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("quota"))
	secondary := &mockProvider{name: "jina"}
	secondary.On("Search", mock.Anything, "q1").Return([]Hit{{URL: "https://factory.com"}}, nil)
	meter := &searchMeter{}

	out, err := NewGateway([]Provider{primary, secondary}, testSearchConfig(), WithMeter(meter)).
		SearchAll(context.Background(), queries("q1"))

	require.NoError(t, err)
	assert.Equal(t, 1, out.Succeeded)
	assert.Empty(t, out.Failures)
	assert.Equal(t, 0, meter.calls["brave"])
	assert.Equal(t, 1, meter.calls["jina"])
}

func TestSearchAll_CircuitOpensOnFailingProvider(t *testing.T) {
	primary := &mockProvider{name: "brave"}
	primary.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	secondary := &mockProvider{name: "jina"}
	secondary.On("Search", mock.Anything, mock.Anything).Return([]Hit{}, nil)
	cfg := testSearchConfig()
	cfg.CircuitThreshold = 2

	out, err := NewGateway([]Provider{primary, secondary}, cfg).SearchAll(context.Background(), queries("q1", "q2", "q3", "q4"))

	require.NoError(t, err)
	assert.Equal(t, 4, out.Succeeded)
	primary.AssertNumberOfCalls(t, "Search", 2)
	secondary.AssertNumberOfCalls(t, "Search", 4)
}

func TestSearchAll_EmptyIsNotAnError(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, mock.Anything).Return([]Hit{}, nil)

	out, err := NewGateway([]Provider{p}, testSearchConfig()).SearchAll(context.Background(), queries("q1", "q2"))

	require.NoError(t, err)
	assert.True(t, out.Empty)
	assert.Empty(t, out.Candidates)
	assert.Equal(t, 2, out.Succeeded)
}

func TestSearchAll_StopsAtCandidateCap(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, "q1").Return([]Hit{
		{URL: "https://a.com"}, {URL: "https://b.com"}, {URL: "https://c.com"},
	}, nil)
	cfg := testSearchConfig()
	cfg.MaxCandidates = 2

	out, err := NewGateway([]Provider{p}, cfg).SearchAll(context.Background(), queries("q1", "q2"))

	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.com", "https://b.com"}, urls(out.Candidates))
	p.AssertNotCalled(t, "Search", mock.Anything, "q2")
}

func TestSearchAll_MeterErrorStops(t *testing.T) {
	p := &mockProvider{name: "brave"}
	p.On("Search", mock.Anything, mock.Anything).Return([]Hit{{URL: "https://a.com"}}, nil)
	meter := &searchMeter{err: eris.Wrap(cost.ErrBudgetExceeded, "spent")}

	_, err := NewGateway([]Provider{p}, testSearchConfig(), WithMeter(meter)).
		SearchAll(context.Background(), queries("q1", "q2"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, cost.ErrBudgetExceeded))
	p.AssertNumberOfCalls(t, "Search", 1)
}

func TestSearchAll_ContextCanceled(t *testing.T) {
	p := &mockProvider{name: "brave"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGateway([]Provider{p}, testSearchConfig()).SearchAll(ctx, queries("q1"))

	require.Error(t, err)
	p.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestSearch_NoProviders(t *testing.T) {
	_, err := NewGateway(nil, testSearchConfig()).Search(context.Background(), "q")
	assert.True(t, eris.Is(err, ErrNoProviders))
}

func TestIsMarketplace(t *testing.T) {
	assert.True(t, IsMarketplace("https://www.alibaba.com/product/1"))
	assert.True(t, IsMarketplace("https://vn.made-in-china.com/x"))
	assert.False(t, IsMarketplace("https://alibaba-knits.com"))
	assert.False(t, IsMarketplace(""))
}
