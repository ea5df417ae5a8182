package scorer

import "github.com/sells-group/sourcing-cli/internal/model"

// Lookup tables are slices rather than maps so matching walks them in a
// fixed order and scoring stays deterministic.

type region struct {
	name      string
	countries []string
}

var regions = []region{
	{"southeast asia", []string{"vietnam", "thailand", "indonesia", "cambodia", "myanmar", "philippines", "malaysia", "laos", "singapore"}},
	{"east asia", []string{"china", "japan", "south korea", "korea", "taiwan", "hong kong", "macau"}},
	{"south asia", []string{"india", "bangladesh", "sri lanka", "pakistan", "nepal"}},
	{"north america", []string{"usa", "united states", "us", "canada", "mexico"}},
	{"central america", []string{"guatemala", "honduras", "el salvador", "nicaragua", "costa rica", "panama"}},
	{"south america", []string{"brazil", "colombia", "peru", "argentina", "chile", "ecuador"}},
	{"western europe", []string{
		"portugal", "spain", "italy", "france", "germany", "uk", "united kingdom", "england",
		"ireland", "netherlands", "belgium", "switzerland", "austria", "denmark", "sweden", "norway", "finland",
	}},
	{"eastern europe", []string{"turkey", "poland", "romania", "czech republic", "hungary", "bulgaria", "croatia", "serbia"}},
	{"north africa", []string{"morocco", "tunisia", "egypt"}},
	{"sub saharan africa", []string{"ethiopia", "kenya", "madagascar", "mauritius", "south africa", "tanzania", "uganda", "ghana", "nigeria"}},
	{"middle east", []string{"uae", "united arab emirates", "jordan", "israel", "saudi arabia", "bahrain", "qatar", "oman"}},
	{"oceania", []string{"australia", "new zealand", "fiji"}},
}

// tradePartners lists nearby sourcing alternatives for a preferred country.
var tradePartners = map[string][]string{
	"usa":           {"mexico", "canada", "guatemala", "honduras", "dominican republic"},
	"united states": {"mexico", "canada", "guatemala", "honduras"},
	"us":            {"mexico", "canada", "guatemala", "honduras"},
	"china":         {"vietnam", "bangladesh", "india", "cambodia"},
	"vietnam":       {"china", "thailand", "cambodia", "indonesia"},
	"bangladesh":    {"india", "sri lanka", "vietnam"},
	"india":         {"bangladesh", "sri lanka", "vietnam"},
	"portugal":      {"spain", "italy", "morocco", "turkey"},
	"italy":         {"portugal", "spain", "turkey", "romania"},
	"turkey":        {"italy", "portugal", "bulgaria", "romania", "morocco"},
	"mexico":        {"usa", "united states", "guatemala", "honduras"},
	"canada":        {"usa", "united states"},
	"thailand":      {"vietnam", "cambodia", "indonesia", "myanmar"},
	"indonesia":     {"vietnam", "thailand", "cambodia"},
	"cambodia":      {"vietnam", "thailand", "china"},
}

type certEntry struct {
	canonical string
	points    float64
	aliases   []string
}

// certTable points are expressed on a 25-point category and rescaled to
// the configured maximum.
var certTable = []certEntry{
	{"oeko-tex", 8, []string{"oeko tex", "oekotex", "oeko tex standard 100", "oeko tex 100"}},
	{"gots", 8, []string{"gots", "global organic textile standard"}},
	{"fair trade", 7, []string{"fair trade", "fairtrade", "fair trade certified"}},
	{"bluesign", 7, []string{"bluesign"}},
	{"wrap", 6, []string{"wrap", "worldwide responsible accredited production"}},
	{"sa8000", 6, []string{"sa8000", "sa 8000", "social accountability"}},
	{"cradle to cradle", 6, []string{"cradle to cradle", "c2c"}},
	{"iso 9001", 5, []string{"iso 9001", "iso9001"}},
	{"iso 14001", 5, []string{"iso 14001", "iso14001"}},
	{"bci", 5, []string{"bci", "better cotton", "better cotton initiative"}},
}

const (
	certTableScale      = 25.0
	defaultCertPoints   = 4.0
	inProgressPoints    = 3.0
	genericStdPoints    = 2.0
	capabilityScale     = 15.0
	exactMatchPoints    = 5.0
	relatedMatchPoints  = 3.0
	preferredCertPoints = 2.0
	preferredCertCap    = 6.0
	placeholderPenalty  = 5.0
	minNotesLen         = 40
	veteranYears        = 10
	lowMOQBuyerCeiling  = 1000
	moqToleranceFrac    = 0.3
)

var (
	inProgressKeywords = []string{"working towards", "working toward", "in progress", "pending"}
	genericStdKeywords = []string{"quality", "ethical", "standard", "compliant"}
)

type family struct {
	name    string
	members []string
}

var materialFamilies = []family{
	{"polyester", []string{"recycled polyester", "rpet", "repreve", "polyester", "pet", "recycled pet"}},
	{"cotton", []string{"organic cotton", "cotton", "bci cotton", "pima cotton", "supima cotton"}},
	{"nylon", []string{"nylon", "recycled nylon", "econyl", "polyamide", "nylon 6", "nylon 66"}},
	{"spandex", []string{"spandex", "elastane", "lycra"}},
	{"bamboo", []string{"bamboo", "bamboo viscose", "bamboo lyocell", "bamboo fiber"}},
	{"tencel", []string{"tencel", "lyocell", "modal"}},
	{"merino", []string{"merino wool", "merino", "wool", "fine merino"}},
	{"silk", []string{"silk", "mulberry silk"}},
}

var methodFamilies = []family{
	{"sublimation", []string{"sublimation printing", "sublimation", "dye sublimation"}},
	{"screen printing", []string{"screen printing", "silk screen", "silkscreen", "screen print"}},
	{"digital printing", []string{"digital printing", "dtg", "direct to garment"}},
	{"cut and sew", []string{"cut and sew", "cut sew", "cmt", "cut make trim"}},
	{"seamless knitting", []string{"seamless knitting", "seamless", "seamless construction"}},
	{"circular knitting", []string{"circular knitting", "circular knit"}},
	{"warp knitting", []string{"warp knitting", "warp knit"}},
	{"knitting", []string{"knitting", "flat knitting", "flatbed knitting"}},
	{"printing", []string{"sublimation", "screen printing", "digital printing", "heat transfer", "heat press"}},
	{"finishing", []string{"anti microbial", "antimicrobial", "moisture wicking", "anti shrink", "dwr", "water repellent"}},
	{"dyeing", []string{"dyeing", "garment dyeing", "piece dyeing", "yarn dyeing", "dye"}},
	{"embroidery", []string{"embroidery", "embroidered"}},
	{"laser cutting", []string{"laser cutting", "laser cut"}},
}

// keywordBonus awards points once when any keyword appears in a record's
// capability list.
type keywordBonus struct {
	label    string
	points   float64
	keywords []string
}

var materialBonuses = []keywordBonus{
	{"custom or any materials", 8, []string{"any material", "any materials", "custom material", "custom materials", "all materials", "any fabric"}},
	{"sustainable materials", 4, []string{"recycled", "organic", "eco", "sustainable", "biodegradable", "plant based", "hemp", "bamboo", "tencel"}},
	{"premium or technical materials", 5, []string{"merino", "cashmere", "silk", "graphene", "coolmax", "cordura", "gore tex", "supplex"}},
}

var methodBonuses = []keywordBonus{
	{"full service manufacturing", 10, []string{"full service", "complete production", "full package", "fpp", "one stop", "turnkey", "end to end"}},
	{"facility details", 5, []string{"factory", "facility", "equipment", "machinery", "production line", "sqm", "sq ft"}},
}

type signalBonus struct {
	label  string
	points float64
	on     func(s *model.WebsiteSignals) bool
}

var signalBonuses = []signalBonus{
	{"client testimonials", 5, func(s *model.WebsiteSignals) bool { return s.Testimonials }},
	{"portfolio shown", 4, func(s *model.WebsiteSignals) bool { return s.Portfolio }},
	{"factory photos", 4, func(s *model.WebsiteSignals) bool { return s.FactoryPhotos }},
	{"industry awards", 3, func(s *model.WebsiteSignals) bool { return s.Awards }},
	{"sustainability messaging", 5, func(s *model.WebsiteSignals) bool { return s.SustainabilityFocus }},
	{"transparent supply chain", 4, func(s *model.WebsiteSignals) bool { return s.TransparentSupplyChain }},
	{"social responsibility programs", 3, func(s *model.WebsiteSignals) bool { return s.SocialResponsibility }},
	{"environmental initiatives", 3, func(s *model.WebsiteSignals) bool { return s.EnvironmentalInitiatives }},
	{"recent news or updates", 3, func(s *model.WebsiteSignals) bool { return s.RecentUpdates }},
	{"export experience", 3, func(s *model.WebsiteSignals) bool { return s.ExportExperience }},
	{"international clients", 2, func(s *model.WebsiteSignals) bool { return s.InternationalClients }},
	{"trade show participation", 2, func(s *model.WebsiteSignals) bool { return s.TradeShows }},
}

type richnessTier struct {
	minFields int
	points    float64
	label     string
}

var richnessTiers = []richnessTier{
	{7, 8, "detailed website"},
	{5, 6, "good website detail"},
	{3, 4, "basic website detail"},
}

// placeholderMarkers flag contact data that looks templated or invented.
var placeholderMarkers = []string{"example.com", "test@", "123-456-7890", "lorem ipsum"}
