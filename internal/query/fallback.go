package query

import (
	"fmt"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

const (
	// lowVolumeMOQ is the order size below which a buyer counts as low volume.
	lowVolumeMOQ = 1000
	// narrowMOQSpan is the widest moq_max - moq_min considered narrow.
	narrowMOQSpan = 1000
)

var b2bSites = []string{"alibaba.com", "makersrow.com", "indiamart.com"}

var sustainableTerms = []string{"organic", "recycled", "sustainable", "eco"}

// genericQueries back-fill a batch when criteria are too sparse to build
// enough targeted queries.
var genericQueries = []model.Query{
	{Text: "activewear manufacturer private label", Strategy: model.StrategyDirectManufacturer},
	{Text: "athletic apparel contract manufacturer", Strategy: model.StrategyDirectManufacturer},
	{Text: "sportswear OEM manufacturers directory", Strategy: model.StrategyCertificationDirectory},
	{Text: "performance sportswear factory OEM ODM", Strategy: model.StrategyDirectManufacturer},
	{Text: "fitness apparel cut and sew manufacturer", Strategy: model.StrategyProductionMethod},
	{Text: "yoga wear private label manufacturer low MOQ", Strategy: model.StrategyMOQFocused},
	{Text: "activewear manufacturers association member directory", Strategy: model.StrategyCertificationDirectory},
}

// Fallback builds a deterministic batch of lo to hi queries from templates
// alone. It never returns fewer than lo, even for blank criteria.
func Fallback(c model.SearchCriteria, lo, hi int) []model.Query {
	b := newBatch(c.Locations, hi)
	for _, q := range fallbackCandidates(c) {
		b.add(q)
	}
	for _, q := range genericQueries {
		if b.len() >= lo {
			break
		}
		b.add(q)
	}
	return b.queries()
}

// fallbackCandidates lists template queries in priority order so the most
// targeted survive the cap.
func fallbackCandidates(c model.SearchCriteria) []model.Query {
	loc := func(i int) string {
		if len(c.Locations) == 0 {
			return ""
		}
		return c.Locations[i%len(c.Locations)]
	}
	var out []model.Query
	add := func(s model.Strategy, format string, args ...any) {
		out = append(out, model.Query{Text: squash(fmt.Sprintf(format, args...)), Strategy: s})
	}

	if combo := directCombo(c); combo != "" {
		add(model.StrategyDirectManufacturer, "%s", combo)
	}
	for i, site := range b2bSites {
		add(model.StrategyB2BPlatform, "activewear manufacturer site:%s %s", site, loc(i))
	}
	if len(c.CertificationsOfInterest) > 0 {
		add(model.StrategyCertificationDirectory, "\"%s certified\" activewear manufacturers directory", c.CertificationsOfInterest[0])
	}
	if moq := moqQuery(c); moq != "" {
		add(model.StrategyMOQFocused, "%s", moq)
	}
	if len(c.Materials) > 0 {
		add(model.StrategyMaterialSpecific, "%s %s sportswear manufacturer", c.Materials[0], loc(0))
	}
	if len(c.Locations) > 0 {
		add(model.StrategyDirectManufacturer, "%s activewear manufacturer OEM", c.Locations[0])
	}
	if len(c.ProductionMethods) > 0 {
		add(model.StrategyProductionMethod, "%s athletic apparel contract manufacturer", c.ProductionMethods[0])
	}
	for i := 1; i < len(c.Materials); i++ {
		add(model.StrategyMaterialSpecific, "%s %s sportswear manufacturer", c.Materials[i], loc(i))
	}
	if len(c.Locations) > 1 {
		add(model.StrategyDirectManufacturer, "%s activewear manufacturer OEM", c.Locations[1])
	}
	for i, cert := range c.CertificationsOfInterest {
		if i == 0 {
			continue
		}
		add(model.StrategyCertificationDirectory, "\"%s certified\" activewear manufacturers directory", cert)
	}
	if sustainable(c.Materials) {
		add(model.StrategySustainabilityAngle, "sustainable activewear manufacturer eco-friendly")
	}
	return out
}

// directCombo joins the first certification, production method and
// location into one targeted manufacturer query.
func directCombo(c model.SearchCriteria) string {
	var parts []string
	if len(c.CertificationsOfInterest) > 0 {
		parts = append(parts, "\""+c.CertificationsOfInterest[0]+" certified\"")
	}
	if len(c.ProductionMethods) > 0 {
		parts = append(parts, c.ProductionMethods[0])
	}
	if len(parts) == 0 {
		return ""
	}
	parts = append(parts, "activewear manufacturer")
	if len(c.Locations) > 0 {
		parts = append(parts, c.Locations[0])
	}
	return strings.Join(parts, " ")
}

func moqQuery(c model.SearchCriteria) string {
	if narrowMOQ(c) {
		return "low MOQ activewear manufacturer small batch"
	}
	if c.MOQMin != nil && *c.MOQMin > 0 {
		return fmt.Sprintf("activewear manufacturer %d minimum order", *c.MOQMin)
	}
	return ""
}

func sustainable(materials []string) bool {
	joined := strings.ToLower(strings.Join(materials, " "))
	for _, t := range sustainableTerms {
		if strings.Contains(joined, t) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
