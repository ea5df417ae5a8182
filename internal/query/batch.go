package query

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// batch accumulates queries in order, rejecting duplicates and keeping any
// single location to roughly half of the batch when several are wanted.
type batch struct {
	limit    int
	locs     []string
	perLoc   int
	seen     map[string]bool
	locCount map[string]int
	items    []model.Query
}

func newBatch(locations []string, limit int) *batch {
	b := &batch{
		limit:    limit,
		seen:     make(map[string]bool),
		locCount: make(map[string]int),
	}
	if len(locations) > 1 {
		for _, l := range locations {
			if w := words(l); w != "" {
				b.locs = append(b.locs, w)
			}
		}
		b.perLoc = limit / 2
		if b.perLoc < 1 {
			b.perLoc = 1
		}
	}
	return b
}

// add appends q and reports whether it was kept. Custom queries are exempt
// from the location share but still count toward it.
func (b *batch) add(q model.Query) bool {
	q.Text = squash(q.Text)
	key := model.QueryKey(q.Text)
	if key == "" || b.seen[key] || len(b.items) >= b.limit {
		return false
	}

	mentioned := b.mentions(words(q.Text))
	if q.Strategy != model.StrategyCustom {
		for _, l := range mentioned {
			if b.locCount[l] >= b.perLoc {
				return false
			}
		}
	}

	b.seen[key] = true
	for _, l := range mentioned {
		b.locCount[l]++
	}
	b.items = append(b.items, q)
	return true
}

// mentions returns the wanted locations named in text on word boundaries.
func (b *batch) mentions(text string) []string {
	var out []string
	padded := " " + text + " "
	for _, l := range b.locs {
		if strings.Contains(padded, " "+l+" ") {
			out = append(out, l)
		}
	}
	return out
}

// words folds s and joins its letter and digit runs with single spaces.
func words(s string) string {
	fields := strings.FieldsFunc(cases.Fold().String(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

func (b *batch) len() int { return len(b.items) }

func (b *batch) full() bool { return len(b.items) >= b.limit }

func (b *batch) queries() []model.Query {
	return append([]model.Query(nil), b.items...)
}

// uncovered lists the non-custom strategies no query in qs uses, in
// AllStrategies order.
func uncovered(qs []model.Query) []string {
	used := make(map[model.Strategy]bool, len(qs))
	for _, q := range qs {
		used[q.Strategy] = true
	}
	var out []string
	for _, s := range model.AllStrategies() {
		if s != model.StrategyCustom && !used[s] {
			out = append(out, string(s))
		}
	}
	return out
}
