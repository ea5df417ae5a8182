package scorer

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// bonuses rewards positive signals outside the five categories. The pool
// is uncapped; the final clamp keeps the total within 100.
func bonuses(c model.SearchCriteria, r model.ManufacturerRecord) model.Adjustment {
	var a model.Adjustment

	methods := r.Contact.Methods()
	if methods >= 1 {
		a.Add(4, "contact info visible (+4)")
	}
	if methods >= 2 {
		a.Add(3, "multiple contact methods (+3)")
	}

	fields := r.PopulatedFields()
	for _, t := range richnessTiers {
		if fields >= t.minFields {
			a.Add(t.points, fmt.Sprintf("%s, %d of 8 fields (+%s)", t.label, fields, pts(t.points)))
			break
		}
	}

	if s := r.Signals; s != nil {
		for _, b := range signalBonuses {
			if b.on(s) {
				a.Add(b.points, fmt.Sprintf("%s (+%s)", b.label, pts(b.points)))
			}
		}
		if s.YearsInBusiness >= veteranYears {
			a.Add(3, fmt.Sprintf("%d years in business (+3)", s.YearsInBusiness))
		}
	}

	if p := preferredCertBonus(c, r); p > 0 {
		a.Add(p, fmt.Sprintf("preferred certifications (+%s)", pts(p)))
	}

	if utf8.RuneCountInString(r.Notes) >= minNotesLen {
		a.Add(2, "detailed notes (+2)")
	}
	return a
}

func preferredCertBonus(c model.SearchCriteria, r model.ManufacturerRecord) float64 {
	have := normalizeAll(r.Certifications)
	var total float64
	for _, want := range normalizeAll(c.PreferredCertifications) {
		for _, h := range have {
			if sameCert(h, want) {
				total += preferredCertPoints
				break
			}
		}
	}
	return math.Min(total, preferredCertCap)
}

// deductions penalizes contact data that looks templated or invented.
func deductions(r model.ManufacturerRecord) model.Adjustment {
	var a model.Adjustment
	fields := []struct {
		name, value string
	}{
		{"email", r.Contact.Email},
		{"phone", r.Contact.Phone},
		{"address", r.Contact.Address},
		{"website", r.Website},
	}
	for _, f := range fields {
		v := cases.Fold().String(f.value)
		for _, m := range placeholderMarkers {
			if strings.Contains(v, m) {
				a.Add(placeholderPenalty, fmt.Sprintf("placeholder %s %q (-%s)", f.name, m, pts(placeholderPenalty)))
			}
		}
	}
	return a
}
