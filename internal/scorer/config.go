// Package scorer implements deterministic match scoring of extracted
// manufacturer records against a buyer's sourcing criteria.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/config"
)

// DefaultConfig returns the standard category maxima. They sum to 100.
func DefaultConfig() config.ScoringConfig {
	return config.ScoringConfig{
		Location:          25,
		MOQ:               20,
		Certifications:    25,
		Materials:         15,
		ProductionMethods: 15,

		// Share of a category awarded when the record says nothing about it.
		AbsentFraction: 0.2,
	}
}

// WeightSum returns the sum of the five category maxima.
func WeightSum(c config.ScoringConfig) float64 {
	return c.Location + c.MOQ + c.Certifications + c.Materials + c.ProductionMethods
}

// ValidateConfig checks that a ScoringConfig is internally consistent.
func ValidateConfig(c config.ScoringConfig) error {
	var errs []string

	weights := []struct {
		name string
		v    float64
	}{
		{"location", c.Location},
		{"moq", c.MOQ},
		{"certifications", c.Certifications},
		{"materials", c.Materials},
		{"production_methods", c.ProductionMethods},
	}
	for _, w := range weights {
		if w.v < 0 {
			errs = append(errs, fmt.Sprintf("%s must be >= 0", w.name))
		}
	}

	// The 100-point invariant is exact; allow only float noise.
	if sum := WeightSum(c); math.Abs(sum-100) > 0.01 {
		errs = append(errs, fmt.Sprintf("category maxima must sum to 100, got %.2f", sum))
	}

	if c.AbsentFraction < 0 || c.AbsentFraction > 1 {
		errs = append(errs, "absent_fraction must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
