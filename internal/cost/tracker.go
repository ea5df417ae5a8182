package cost

import (
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBudgetExceeded is returned by a Tracker once cumulative spend crosses
// the configured ceiling.
var ErrBudgetExceeded = eris.New("cost: budget exceeded")

// Tracker accumulates the spend of one run against a ceiling. It is safe
// for concurrent use by extraction workers.
type Tracker struct {
	calc  *Calculator
	limit float64

	mu     sync.Mutex
	spent  float64
	byItem map[string]float64
}

// NewTracker creates a Tracker. A limit <= 0 disables the ceiling.
func NewTracker(calc *Calculator, limit float64) *Tracker {
	return &Tracker{calc: calc, limit: limit, byItem: make(map[string]float64)}
}

// ChargeClaude records one Claude call.
func (t *Tracker) ChargeClaude(model string, input, output, cacheWrite, cacheRead int64) error {
	usd := t.calc.Claude(model, input, output, cacheWrite, cacheRead)
	zap.L().Debug("cost attribution",
		zap.String("model", model),
		zap.Int64("input_tokens", input),
		zap.Int64("output_tokens", output),
		zap.Int64("cache_write_tokens", cacheWrite),
		zap.Int64("cache_read_tokens", cacheRead),
		zap.Float64("usd", usd),
	)
	return t.add("anthropic:"+model, usd)
}

// ChargeSearch records n search queries against a provider.
func (t *Tracker) ChargeSearch(provider string, n int) error {
	return t.add("search:"+provider, t.calc.Search(provider, n))
}

// ChargeReader records Jina Reader token usage.
func (t *Tracker) ChargeReader(tokens int) error {
	return t.add("jina:reader", t.calc.Jina(tokens))
}

func (t *Tracker) add(item string, usd float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spent += usd
	t.byItem[item] += usd
	if t.limit > 0 && t.spent > t.limit {
		return eris.Wrapf(ErrBudgetExceeded, "spent $%.4f of $%.2f", t.spent, t.limit)
	}
	return nil
}

// Spent returns the cumulative spend in USD.
func (t *Tracker) Spent() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spent
}

// Exceeded reports whether the ceiling has been crossed.
func (t *Tracker) Exceeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limit > 0 && t.spent > t.limit
}

// Limit returns the configured ceiling.
func (t *Tracker) Limit() float64 { return t.limit }

// Breakdown returns a copy of spend per item.
func (t *Tracker) Breakdown() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64, len(t.byItem))
	for k, v := range t.byItem {
		out[k] = v
	}
	return out
}
