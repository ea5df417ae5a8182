package model

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// BudgetTier is the buyer's price positioning. Distinct from the per-run
// cost budget enforced by the pipeline.
type BudgetTier string

const (
	BudgetTierBudget   BudgetTier = "budget"
	BudgetTierMidRange BudgetTier = "mid-range"
	BudgetTierPremium  BudgetTier = "premium"
)

// ParseBudgetTier maps loose spellings onto a BudgetTier.
func ParseBudgetTier(s string) (BudgetTier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "budget", "low", "economy":
		return BudgetTierBudget, true
	case "mid-range", "midrange", "mid_range", "mid", "medium":
		return BudgetTierMidRange, true
	case "premium", "high", "luxury":
		return BudgetTierPremium, true
	}
	return "", false
}

// SearchCriteria is the buyer's sourcing brief for one pipeline run.
type SearchCriteria struct {
	Locations                []string     `json:"locations,omitempty" yaml:"locations,omitempty"`
	MOQMin                   *int         `json:"moq_min,omitempty" yaml:"moq_min,omitempty"`
	MOQMax                   *int         `json:"moq_max,omitempty" yaml:"moq_max,omitempty"`
	CertificationsOfInterest []string     `json:"certifications_of_interest,omitempty" yaml:"certifications_of_interest,omitempty"`
	PreferredCertifications  []string     `json:"preferred_certifications,omitempty" yaml:"preferred_certifications,omitempty"`
	Materials                []string     `json:"materials,omitempty" yaml:"materials,omitempty"`
	ProductionMethods        []string     `json:"production_methods,omitempty" yaml:"production_methods,omitempty"`
	BudgetTiers              []BudgetTier `json:"budget_tier,omitempty" yaml:"budget_tier,omitempty"`
	Notes                    string       `json:"additional_notes,omitempty" yaml:"additional_notes,omitempty"`
	CustomQueries            []string     `json:"custom_queries,omitempty" yaml:"custom_queries,omitempty"`

	// Deprecated: use CertificationsOfInterest. Merged by Normalize.
	RequiredCertifications []string `json:"required_certifications,omitempty" yaml:"required_certifications,omitempty"`
}

// Normalize trims and deduplicates every list field, folds the legacy
// required_certifications key into CertificationsOfInterest and
// canonicalizes budget tier spellings. Unknown tiers and blank custom
// queries are kept so Validate can report them.
func (c SearchCriteria) Normalize() SearchCriteria {
	out := c
	out.Locations = cleanList(c.Locations)
	out.CertificationsOfInterest = cleanList(append(append([]string{}, c.CertificationsOfInterest...), c.RequiredCertifications...))
	out.RequiredCertifications = nil
	out.PreferredCertifications = cleanList(c.PreferredCertifications)
	out.Materials = cleanList(c.Materials)
	out.ProductionMethods = cleanList(c.ProductionMethods)
	out.CustomQueries = cleanQueries(c.CustomQueries)
	out.Notes = strings.TrimSpace(c.Notes)

	out.BudgetTiers = nil
	seen := make(map[BudgetTier]bool, len(c.BudgetTiers))
	for _, t := range c.BudgetTiers {
		tier, ok := ParseBudgetTier(string(t))
		if !ok {
			tier = BudgetTier(strings.TrimSpace(string(t)))
		}
		if tier == "" || seen[tier] {
			continue
		}
		seen[tier] = true
		out.BudgetTiers = append(out.BudgetTiers, tier)
	}
	return out
}

// Validate rejects criteria that cannot drive a run.
func (c SearchCriteria) Validate() error {
	if c.MOQMin != nil && *c.MOQMin < 0 {
		return &ValidationError{Field: "moq_min", Problem: "must be >= 0"}
	}
	if c.MOQMax != nil && *c.MOQMax < 0 {
		return &ValidationError{Field: "moq_max", Problem: "must be >= 0"}
	}
	if c.MOQMin != nil && c.MOQMax != nil && *c.MOQMin > *c.MOQMax {
		return &ValidationError{Field: "moq_min", Problem: "must be <= moq_max"}
	}
	for _, t := range c.BudgetTiers {
		if _, ok := ParseBudgetTier(string(t)); !ok {
			return &ValidationError{Field: "budget_tier", Problem: "unknown tier " + string(t)}
		}
	}
	for _, q := range c.CustomQueries {
		if strings.TrimSpace(q) == "" {
			return &ValidationError{Field: "custom_queries", Problem: "must not contain blank queries"}
		}
	}
	return nil
}

// IsBlank reports whether no discriminating field is set. Query generation
// degrades to generic strategies for blank criteria.
func (c SearchCriteria) IsBlank() bool {
	return len(c.Locations) == 0 &&
		c.MOQMin == nil && c.MOQMax == nil &&
		len(c.CertificationsOfInterest) == 0 &&
		len(c.RequiredCertifications) == 0 &&
		len(c.PreferredCertifications) == 0 &&
		len(c.Materials) == 0 &&
		len(c.ProductionMethods) == 0 &&
		len(c.CustomQueries) == 0
}

// LoadCriteria reads a YAML (or JSON) criteria file, normalizes and
// validates it.
func LoadCriteria(path string) (SearchCriteria, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SearchCriteria{}, eris.Wrapf(err, "model: read criteria %s", path)
	}
	return ParseCriteria(data)
}

// ParseCriteria decodes YAML or JSON criteria bytes.
func ParseCriteria(data []byte) (SearchCriteria, error) {
	var c SearchCriteria
	if err := yaml.Unmarshal(data, &c); err != nil {
		return SearchCriteria{}, &ValidationError{Field: "criteria", Problem: "malformed document: " + err.Error()}
	}
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return SearchCriteria{}, err
	}
	return c, nil
}

func cleanList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// cleanQueries collapses whitespace and deduplicates like cleanList but
// keeps one blank entry if any were given.
func cleanQueries(in []string) []string {
	var blank bool
	for _, s := range in {
		if strings.TrimSpace(s) == "" {
			blank = true
			break
		}
	}
	out := cleanList(in)
	if blank {
		out = append(out, "")
	}
	return out
}
