package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Brave     BraveRate            `yaml:"brave" mapstructure:"brave"`
	Jina      JinaRate             `yaml:"jina" mapstructure:"jina"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// BraveRate holds Brave Search pricing.
type BraveRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// JinaRate holds Jina pricing. Searches are billed as a flat token
// allowance per query.
type JinaRate struct {
	PerMTok      float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
	SearchTokens int     `yaml:"search_tokens" mapstructure:"search_tokens"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates. Models missing
// from rates fall back to DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	merged := DefaultRates()
	for model, r := range rates.Anthropic {
		merged.Anthropic[model] = r
	}
	if rates.Brave.PerQuery > 0 {
		merged.Brave = rates.Brave
	}
	if rates.Jina.PerMTok > 0 {
		merged.Jina.PerMTok = rates.Jina.PerMTok
	}
	if rates.Jina.SearchTokens > 0 {
		merged.Jina.SearchTokens = rates.Jina.SearchTokens
	}
	return &Calculator{rates: merged}
}

// Claude computes the cost for a Claude API call.
func (c *Calculator) Claude(model string, input, output, cacheWrite, cacheRead int64) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Jina computes the cost for Jina Reader token usage.
func (c *Calculator) Jina(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Jina.PerMTok
}

// Search returns the cost of n queries against the named provider.
func (c *Calculator) Search(provider string, n int) float64 {
	switch provider {
	case "brave":
		return float64(n) * c.rates.Brave.PerQuery
	case "jina":
		return c.Jina(n * c.rates.Jina.SearchTokens)
	}
	return 0
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 1.00, Output: 5.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-opus-4-6": {
				Input: 15.00, Output: 75.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Brave: BraveRate{PerQuery: 0.005},
		Jina:  JinaRate{PerMTok: 0.02, SearchTokens: 10000},
	}
}
