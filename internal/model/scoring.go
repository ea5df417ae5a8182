package model

import "math"

// CategoryScore is one weighted scoring category.
type CategoryScore struct {
	Score  float64 `json:"score"`
	Max    float64 `json:"max"`
	Reason string  `json:"reason"`
}

// Adjustment is a bonus or deduction pool with its reasons.
type Adjustment struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// Add appends points and a reason to the pool.
func (a *Adjustment) Add(points float64, reason string) {
	a.Score += points
	a.Reasons = append(a.Reasons, reason)
}

// ScoringBreakdown explains a match score category by category.
type ScoringBreakdown struct {
	Location          CategoryScore `json:"location"`
	MOQ               CategoryScore `json:"moq"`
	Certifications    CategoryScore `json:"certifications"`
	Materials         CategoryScore `json:"materials"`
	ProductionMethods CategoryScore `json:"production_methods"`
	Bonuses           Adjustment    `json:"bonuses"`
	Deductions        Adjustment    `json:"deductions"`
	Total             float64       `json:"total"`
}

// Categories returns the five weighted categories in display order.
func (b ScoringBreakdown) Categories() []CategoryScore {
	return []CategoryScore{b.Location, b.MOQ, b.Certifications, b.Materials, b.ProductionMethods}
}

// Base sums the five category scores.
func (b ScoringBreakdown) Base() float64 {
	var sum float64
	for _, c := range b.Categories() {
		sum += c.Score
	}
	return sum
}

// ComputeTotal returns clamp(0, 100, base + bonuses - deductions) rounded
// to one decimal place.
func (b ScoringBreakdown) ComputeTotal() float64 {
	total := b.Base() + b.Bonuses.Score - b.Deductions.Score
	if math.IsNaN(total) {
		return 0
	}
	total = math.Max(0, math.Min(100, total))
	return math.Round(total*10) / 10
}

// ScoredManufacturer pairs a record with its breakdown. This is the unit
// handed to sinks.
type ScoredManufacturer struct {
	Record    ManufacturerRecord `json:"record"`
	Breakdown ScoringBreakdown   `json:"breakdown"`
}

// Score is shorthand for the breakdown total.
func (s ScoredManufacturer) Score() float64 {
	return s.Breakdown.Total
}
