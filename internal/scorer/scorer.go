package scorer

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
)

// Scorer maps (criteria, record) pairs onto explained match scores. It
// holds no mutable state and is safe for concurrent use.
type Scorer struct {
	cfg config.ScoringConfig
}

// New creates a Scorer. A config whose maxima do not sum to 100 falls back
// to DefaultConfig so the 100-point invariant always holds.
func New(cfg config.ScoringConfig) *Scorer {
	if ValidateConfig(cfg) != nil {
		cfg = DefaultConfig()
	}
	return &Scorer{cfg: cfg}
}

// Config returns the effective category maxima.
func (s *Scorer) Config() config.ScoringConfig {
	return s.cfg
}

// Score computes the breakdown for one record. It performs no I/O and
// returns identical output for identical input.
func (s *Scorer) Score(criteria model.SearchCriteria, rec model.ManufacturerRecord) model.ScoringBreakdown {
	b := model.ScoringBreakdown{
		Location:          s.location(criteria, rec),
		MOQ:               s.moq(criteria, rec),
		Certifications:    s.certifications(criteria, rec),
		Materials:         s.materials(criteria, rec),
		ProductionMethods: s.methods(criteria, rec),
		Bonuses:           bonuses(criteria, rec),
		Deductions:        deductions(rec),
	}
	b.Total = b.ComputeTotal()
	return b
}

// ScoreAll scores every record and returns them ranked.
func (s *Scorer) ScoreAll(criteria model.SearchCriteria, records []model.ManufacturerRecord) []model.ScoredManufacturer {
	out := make([]model.ScoredManufacturer, 0, len(records))
	for _, r := range records {
		out = append(out, model.ScoredManufacturer{Record: r, Breakdown: s.Score(criteria, r)})
	}
	Rank(out)
	return out
}

// Rank sorts in place by score descending, then confidence, then name.
// Source URL is the last tie-breaker so the order is total.
func Rank(list []model.ScoredManufacturer) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Score() != b.Score() {
			return a.Score() > b.Score()
		}
		if ra, rb := a.Record.Confidence.Rank(), b.Record.Confidence.Rank(); ra != rb {
			return ra > rb
		}
		na, nb := strings.ToLower(a.Record.Name), strings.ToLower(b.Record.Name)
		if na != nb {
			return na < nb
		}
		return a.Record.SourceURL < b.Record.SourceURL
	})
}

func full(top float64, reason string) model.CategoryScore {
	return model.CategoryScore{Score: top, Max: top, Reason: reason}
}

func fraction(top, f float64, reason string) model.CategoryScore {
	return model.CategoryScore{Score: round1(top * f), Max: top, Reason: reason}
}

func capped(top, v float64, reason string) model.CategoryScore {
	return model.CategoryScore{Score: round1(math.Min(top, math.Max(0, v))), Max: top, Reason: reason}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func pts(v float64) string {
	return strconv.FormatFloat(round1(v), 'f', -1, 64)
}
