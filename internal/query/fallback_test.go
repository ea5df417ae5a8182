package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/model"
)

func countStrategy(qs []model.Query, s model.Strategy) int {
	n := 0
	for _, q := range qs {
		if q.Strategy == s {
			n++
		}
	}
	return n
}

func TestFallback_BlankCriteriaNeverEmpty(t *testing.T) {
	qs := Fallback(model.SearchCriteria{}, 7, 10)

	require.Len(t, qs, 7)
	assertDistinct(t, qs)
	assert.Equal(t, 3, countStrategy(qs, model.StrategyB2BPlatform))
	assert.Equal(t, "activewear manufacturer site:alibaba.com", qs[0].Text)
}

func TestFallback_FullCriteria(t *testing.T) {
	c := model.SearchCriteria{
		Locations:                []string{"Vietnam", "Portugal"},
		MOQMin:                   intPtr(300),
		MOQMax:                   intPtr(800),
		CertificationsOfInterest: []string{"OEKO-TEX", "GOTS"},
		Materials:                []string{"recycled polyester", "organic cotton"},
		ProductionMethods:        []string{"sublimation"},
	}

	qs := Fallback(c, 7, 10)

	require.Len(t, qs, 10)
	assertDistinct(t, qs)
	assert.Equal(t, `"OEKO-TEX certified" sublimation activewear manufacturer Vietnam`, qs[0].Text)
	assert.Equal(t, 3, countStrategy(qs, model.StrategyB2BPlatform))
	assert.Equal(t, 1, countStrategy(qs, model.StrategyCertificationDirectory))
	assert.Equal(t, 1, countStrategy(qs, model.StrategyMOQFocused))
	assert.Equal(t, 2, countStrategy(qs, model.StrategyMaterialSpecific))
	assert.Equal(t, 1, countStrategy(qs, model.StrategyProductionMethod))

	vietnam := 0
	for _, q := range qs {
		if strings.Contains(q.Text, "Vietnam") {
			vietnam++
		}
	}
	assert.LessOrEqual(t, vietnam, 5)
}

func TestFallback_IsDeterministic(t *testing.T) {
	c := model.SearchCriteria{Locations: []string{"India"}, Materials: []string{"bamboo"}, MOQMin: intPtr(5000)}
	assert.Equal(t, Fallback(c, 7, 10), Fallback(c, 7, 10))
}

func TestMOQQuery(t *testing.T) {
	tests := []struct {
		name string
		min  *int
		max  *int
		want string
	}{
		{"no bounds", nil, nil, ""},
		{"low ceiling", nil, intPtr(500), "low MOQ activewear manufacturer small batch"},
		{"narrow span", intPtr(2000), intPtr(2500), "low MOQ activewear manufacturer small batch"},
		{"wide span", intPtr(2000), intPtr(10000), "activewear manufacturer 2000 minimum order"},
		{"high floor only", intPtr(5000), nil, "activewear manufacturer 5000 minimum order"},
		{"low floor only", intPtr(300), nil, "low MOQ activewear manufacturer small batch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, moqQuery(model.SearchCriteria{MOQMin: tt.min, MOQMax: tt.max}))
		})
	}
}

func TestParseQueries(t *testing.T) {
	t.Run("object", func(t *testing.T) {
		qs, err := parseQueries(`{"queries":[{"query":"  GOTS   directory ","strategy":"Certification/Association Directory"},{"query":"x","strategy":"custom"}]}`)
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, "GOTS directory", qs[0].Text)
		assert.Equal(t, model.StrategyCertificationDirectory, qs[0].Strategy)
		assert.Equal(t, model.StrategyDirectManufacturer, qs[1].Strategy)
	})

	t.Run("bare array", func(t *testing.T) {
		qs, err := parseQueries("```\n[\"a\", \"\", \"b\"]\n```")
		require.NoError(t, err)
		require.Len(t, qs, 2)
		assert.Equal(t, model.StrategyDirectManufacturer, qs[0].Strategy)
	})

	t.Run("array of objects", func(t *testing.T) {
		qs, err := parseQueries(`[{"query":"low MOQ leggings","strategy":"MOQ-Focused"}]`)
		require.NoError(t, err)
		require.Len(t, qs, 1)
		assert.Equal(t, model.StrategyMOQFocused, qs[0].Strategy)
	})

	t.Run("no queries", func(t *testing.T) {
		_, err := parseQueries(`{"queries":[]}`)
		require.Error(t, err)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseQueries("nope")
		require.Error(t, err)
	})
}

func TestUserPrompt(t *testing.T) {
	p := userPrompt(model.SearchCriteria{
		Locations:   []string{"Vietnam", "Turkey"},
		MOQMin:      intPtr(300),
		MOQMax:      intPtr(600),
		BudgetTiers: []model.BudgetTier{model.BudgetTierMidRange},
		Notes:       "Women's yoga line",
	}, 7, 10)

	assert.Contains(t, p, "Generate 7-10 search queries")
	assert.Contains(t, p, "Locations: Vietnam, Turkey")
	assert.Contains(t, p, "MOQ: 300 to 600 units")
	assert.Contains(t, p, "Budget tier: mid-range")
	assert.Contains(t, p, "MOQ-focused query")
	assert.Contains(t, p, "Spread queries across all listed locations")

	blank := userPrompt(model.SearchCriteria{}, 7, 10)
	assert.Contains(t, blank, "No specific criteria")
}

func intPtr(v int) *int { return &v }
