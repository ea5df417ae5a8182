package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// Strategy tags the search heuristic that produced a query.
type Strategy string

const (
	StrategyDirectManufacturer     Strategy = "direct-manufacturer"
	StrategyB2BPlatform            Strategy = "b2b-platform"
	StrategyCertificationDirectory Strategy = "certification-directory"
	StrategyMaterialSpecific       Strategy = "material-specific"
	StrategyProductionMethod       Strategy = "production-method"
	StrategyMOQFocused             Strategy = "moq-focused"
	StrategySustainabilityAngle    Strategy = "sustainability-angle"
	StrategyCustom                 Strategy = "custom"
)

// AllStrategies lists every strategy tag.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyDirectManufacturer,
		StrategyB2BPlatform,
		StrategyCertificationDirectory,
		StrategyMaterialSpecific,
		StrategyProductionMethod,
		StrategyMOQFocused,
		StrategySustainabilityAngle,
		StrategyCustom,
	}
}

// ParseStrategy maps a free-text strategy label (as returned by the
// language model, e.g. "B2B Platform" or "Material-Specific") onto a tag.
// Unrecognized labels map to StrategyDirectManufacturer.
func ParseStrategy(label string) Strategy {
	l := strings.ToLower(label)
	l = strings.NewReplacer("_", " ", "-", " ", "/", " ").Replace(l)
	switch {
	case strings.Contains(l, "custom"):
		return StrategyCustom
	case strings.Contains(l, "b2b"), strings.Contains(l, "platform"), strings.Contains(l, "marketplace"):
		return StrategyB2BPlatform
	case strings.Contains(l, "certif"), strings.Contains(l, "directory"), strings.Contains(l, "association"):
		return StrategyCertificationDirectory
	case strings.Contains(l, "material"), strings.Contains(l, "fabric"):
		return StrategyMaterialSpecific
	case strings.Contains(l, "method"), strings.Contains(l, "production"), strings.Contains(l, "capabilit"):
		return StrategyProductionMethod
	case strings.Contains(l, "moq"), strings.Contains(l, "minimum"), strings.Contains(l, "batch"):
		return StrategyMOQFocused
	case strings.Contains(l, "sustainab"), strings.Contains(l, "eco"):
		return StrategySustainabilityAngle
	}
	return StrategyDirectManufacturer
}

// Query is one search-engine query and the strategy that produced it.
type Query struct {
	Text     string   `json:"query"`
	Strategy Strategy `json:"strategy"`
}

// QueryKey is the comparison key used to reject duplicate query text
// within a batch: case-folded with collapsed whitespace.
func QueryKey(text string) string {
	return cases.Fold().String(strings.Join(strings.Fields(text), " "))
}
