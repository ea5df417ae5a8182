package query

import (
	"fmt"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// systemPrompt is sent uncached; it is only used once per run.
const systemPrompt = `You are an expert at writing web search queries that find activewear and apparel manufacturers.

Generate a batch of diverse search queries. Each query should use a different strategy so the batch covers as many kinds of sources as possible.

Strategies:
1. Direct Manufacturer: combine 2-3 criteria (certification + production method + location). Use industry terms: OEM, ODM, contract manufacturer, private label, cut-and-sew, CMT.
2. B2B Platform: one query per platform using site: operators (site:alibaba.com, site:makersrow.com, site:indiamart.com), combined with a location or capability.
3. Certification Directory: certification member directories and trade associations, e.g. "GOTS certified manufacturers directory".
4. Material-Specific: material + location or material + production method, at least one per requested material.
5. Production Method: specific capabilities, e.g. "sublimation printing activewear manufacturer", "full package manufacturing".
6. MOQ-Focused: "low MOQ", "small batch", or "500 minimum order" phrasing when the buyer's order volume is small or the range is narrow.
7. Sustainability Angle: eco-friendly, recycled, or organic focus when the materials suggest it.

Rules:
- Combine 2-3 criteria per query, never all of them at once.
- Quote exact phrases such as "OEKO-TEX certified".
- Balance location coverage: when several locations are given, no single location may appear in more than half of the queries.
- Avoid near-duplicates. Prefer queries that surface manufacturers over news articles.

Respond with ONLY valid JSON, no other text:
{"queries": [{"query": "the search query", "strategy": "Strategy Name"}]}`

// userPrompt renders the criteria the model should target.
func userPrompt(c model.SearchCriteria, lo, hi int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d-%d search queries to find activewear manufacturers with these criteria:\n\n", lo, hi)

	var parts []string
	if len(c.Locations) > 0 {
		parts = append(parts, "Locations: "+strings.Join(c.Locations, ", "))
	}
	if moq := moqLine(c); moq != "" {
		parts = append(parts, moq)
	}
	if len(c.CertificationsOfInterest) > 0 {
		parts = append(parts, "Certifications of interest: "+strings.Join(c.CertificationsOfInterest, ", "))
	}
	if len(c.PreferredCertifications) > 0 {
		parts = append(parts, "Preferred certifications: "+strings.Join(c.PreferredCertifications, ", "))
	}
	if len(c.Materials) > 0 {
		parts = append(parts, "Materials: "+strings.Join(c.Materials, ", "))
	}
	if len(c.ProductionMethods) > 0 {
		parts = append(parts, "Production methods: "+strings.Join(c.ProductionMethods, ", "))
	}
	if len(c.BudgetTiers) > 0 {
		tiers := make([]string, len(c.BudgetTiers))
		for i, t := range c.BudgetTiers {
			tiers[i] = string(t)
		}
		parts = append(parts, "Budget tier: "+strings.Join(tiers, ", "))
	}
	if c.Notes != "" {
		parts = append(parts, "Notes: "+c.Notes)
	}

	if len(parts) == 0 {
		b.WriteString("No specific criteria (general search).")
	} else {
		b.WriteString("- " + strings.Join(parts, "\n- "))
	}

	if narrowMOQ(c) {
		b.WriteString("\n\nThe MOQ range is narrow or low-volume: include at least one MOQ-focused query.")
	}
	if len(c.Locations) > 1 {
		b.WriteString("\n\nSpread queries across all listed locations.")
	}
	b.WriteString("\n\nReturn the JSON object with queries and their strategies.")
	return b.String()
}

func moqLine(c model.SearchCriteria) string {
	switch {
	case c.MOQMin != nil && c.MOQMax != nil:
		return fmt.Sprintf("MOQ: %d to %d units", *c.MOQMin, *c.MOQMax)
	case c.MOQMin != nil:
		return fmt.Sprintf("MOQ: at least %d units", *c.MOQMin)
	case c.MOQMax != nil:
		return fmt.Sprintf("MOQ: at most %d units", *c.MOQMax)
	}
	return ""
}

// narrowMOQ reports whether the buyer's order volume warrants an
// MOQ-focused query.
func narrowMOQ(c model.SearchCriteria) bool {
	if c.MOQMax != nil && *c.MOQMax < lowVolumeMOQ {
		return true
	}
	if c.MOQMin != nil && c.MOQMax != nil && *c.MOQMax-*c.MOQMin < narrowMOQSpan {
		return true
	}
	return c.MOQMax == nil && c.MOQMin != nil && *c.MOQMin < lowVolumeMOQ
}
