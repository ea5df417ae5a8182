package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/cost"
	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Complete(ctx context.Context, req anthropic.CompletionRequest) (*anthropic.Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.Completion), args.Error(1)
}

type fakeMeter struct {
	calls int
	err   error
}

func (f *fakeMeter) ChargeClaude(string, int64, int64, int64, int64) error {
	f.calls++
	return f.err
}

func testConfigs() (config.AnthropicConfig, config.QueryConfig) {
	ac := config.AnthropicConfig{
		QueryModel:       "claude-sonnet-4-5-20250929",
		QueryMaxTokens:   2000,
		QueryTemperature: 0.5,
	}
	qc := config.QueryConfig{Min: 7, Max: 10, Retries: 1}
	return ac, qc
}

func completion(text string) *anthropic.Completion {
	return &anthropic.Completion{
		Text:  text,
		Model: "claude-sonnet-4-5-20250929",
		Usage: anthropic.TokenUsage{InputTokens: 900, OutputTokens: 300},
	}
}

func queriesJSON(texts ...string) string {
	items := make([]string, len(texts))
	for i, t := range texts {
		items[i] = fmt.Sprintf(`{"query":%q,"strategy":"Direct Manufacturer"}`, t)
	}
	return `{"queries":[` + strings.Join(items, ",") + `]}`
}

func assertDistinct(t *testing.T, qs []model.Query) {
	t.Helper()
	seen := map[string]bool{}
	for _, q := range qs {
		key := model.QueryKey(q.Text)
		assert.False(t, seen[key], "duplicate query %q", q.Text)
		seen[key] = true
	}
}

func TestGenerate_ModelBatchWithCustomFirst(t *testing.T) {
	gen := new(mockGenerator)
	meter := &fakeMeter{}
	ac, qc := testConfigs()

	reply := "```json\n" + queriesJSON(
		"OEKO-TEX certified activewear manufacturer Vietnam",
		"activewear manufacturer site:alibaba.com Vietnam",
		"activewear manufacturer site:makersrow.com",
		"activewear manufacturer site:indiamart.com",
		"GOTS certified manufacturers directory",
		"recycled polyester Vietnam sportswear OEM",
		"low MOQ activewear manufacturer small batch",
		"OEKO-TEX certified activewear manufacturer vietnam",
	) + "\n```"
	gen.On("Complete", mock.Anything, mock.MatchedBy(func(req anthropic.CompletionRequest) bool {
		return req.Stage == "query" && req.MaxTokens == 2000 && req.Temperature == 0.5 &&
			strings.Contains(req.Prompt, "Vietnam") && !req.CacheSystem
	})).Return(completion(reply), nil).Once()

	s := NewStrategist(gen, meter, ac, qc)
	batch, err := s.Generate(context.Background(), model.SearchCriteria{
		Locations:     []string{"Vietnam"},
		CustomQueries: []string{"seamless leggings factory Vietnam"},
	})

	require.NoError(t, err)
	assert.False(t, batch.Fallback)
	require.Len(t, batch.Queries, 8)
	assert.Equal(t, model.StrategyCustom, batch.Queries[0].Strategy)
	assert.Equal(t, "seamless leggings factory Vietnam", batch.Queries[0].Text)
	assertDistinct(t, batch.Queries)
	assert.Equal(t, 1, meter.calls)
	gen.AssertExpectations(t)
}

func TestGenerate_MalformedRepliesFallBackToTemplates(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	gen.On("Complete", mock.Anything, mock.Anything).Return(completion("I cannot produce JSON today."), nil).Twice()

	batch, err := NewStrategist(gen, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{
		Locations: []string{"Portugal"},
	})

	require.NoError(t, err)
	assert.True(t, batch.Fallback)
	assert.GreaterOrEqual(t, len(batch.Queries), 7)
	assert.LessOrEqual(t, len(batch.Queries), 10)
	assertDistinct(t, batch.Queries)
	gen.AssertNumberOfCalls(t, "Complete", 2)
}

func TestGenerate_RetriesAfterServiceError(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	gen.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded")).Once()
	gen.On("Complete", mock.Anything, mock.Anything).Return(completion(`["q1 activewear","q2 activewear","q3 activewear","q4 activewear","q5 activewear","q6 activewear","q7 activewear"]`), nil).Once()

	batch, err := NewStrategist(gen, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{})

	require.NoError(t, err)
	assert.False(t, batch.Fallback)
	assert.Len(t, batch.Queries, 7)
	gen.AssertExpectations(t)
}

func TestGenerate_TopsUpShortModelBatch(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	gen.On("Complete", mock.Anything, mock.Anything).Return(completion(queriesJSON("one activewear query", "two activewear query")), nil)

	batch, err := NewStrategist(gen, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{Materials: []string{"nylon"}})

	require.NoError(t, err)
	assert.True(t, batch.Fallback)
	assert.Len(t, batch.Queries, 7)
	assert.Equal(t, "one activewear query", batch.Queries[0].Text)
	assertDistinct(t, batch.Queries)
}

func TestGenerate_BalancesLocations(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	var texts []string
	for i := 0; i < 10; i++ {
		texts = append(texts, fmt.Sprintf("Vietnam activewear factory %d", i))
	}
	gen.On("Complete", mock.Anything, mock.Anything).Return(completion(queriesJSON(texts...)), nil)

	batch, err := NewStrategist(gen, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{
		Locations: []string{"Vietnam", "Thailand"},
	})
	require.NoError(t, err)

	var vietnam, thailand int
	for _, q := range batch.Queries {
		if strings.Contains(strings.ToLower(q.Text), "vietnam") {
			vietnam++
		}
		if strings.Contains(strings.ToLower(q.Text), "thailand") {
			thailand++
		}
	}
	assert.Len(t, batch.Queries, 7)
	assert.Equal(t, 5, vietnam)
	assert.Equal(t, 2, thailand)
	assert.True(t, batch.Fallback)
}

func TestGenerate_MeterErrorStopsGeneration(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	gen.On("Complete", mock.Anything, mock.Anything).Return(completion(queriesJSON("a")), nil)
	meter := &fakeMeter{err: eris.Wrap(cost.ErrBudgetExceeded, "spent $51 of $50")}

	_, err := NewStrategist(gen, meter, ac, qc).Generate(context.Background(), model.SearchCriteria{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, cost.ErrBudgetExceeded))
}

func TestGenerate_ContextCanceled(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStrategist(gen, nil, ac, qc).Generate(ctx, model.SearchCriteria{})

	require.Error(t, err)
	gen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGenerate_WithoutGeneratorUsesTemplates(t *testing.T) {
	ac, qc := testConfigs()
	batch, err := NewStrategist(nil, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{})

	require.NoError(t, err)
	assert.True(t, batch.Fallback)
	assert.Len(t, batch.Queries, 7)
}

func TestGenerate_CustomQueriesCountTowardCap(t *testing.T) {
	gen := new(mockGenerator)
	ac, qc := testConfigs()
	var custom []string
	for i := 0; i < 12; i++ {
		custom = append(custom, fmt.Sprintf("custom query %d", i))
	}

	batch, err := NewStrategist(gen, nil, ac, qc).Generate(context.Background(), model.SearchCriteria{CustomQueries: custom})

	require.NoError(t, err)
	assert.Len(t, batch.Queries, 10)
	for _, q := range batch.Queries {
		assert.Equal(t, model.StrategyCustom, q.Strategy)
	}
	gen.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
