package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sourcing-cli/internal/config"
	"github.com/sells-group/sourcing-cli/internal/model"
)

func intPtr(v int) *int { return &v }

func scenarioCriteria() model.SearchCriteria {
	return model.SearchCriteria{
		Locations:                []string{"Vietnam"},
		MOQMin:                   intPtr(500),
		MOQMax:                   intPtr(2000),
		CertificationsOfInterest: []string{"OEKO-TEX"},
	}
}

func TestScore_ScenarioFullMatch(t *testing.T) {
	s := New(DefaultConfig())
	rec := model.ManufacturerRecord{
		Name:           "Saigon Activewear",
		Location:       "Vietnam",
		MOQ:            intPtr(1200),
		Certifications: []string{"OEKO-TEX"},
	}

	b := s.Score(scenarioCriteria(), rec)

	assert.InDelta(t, 25, b.Location.Score, 0.001)
	assert.InDelta(t, 20, b.MOQ.Score, 0.001)
	assert.InDelta(t, 25, b.Certifications.Score, 0.001)
	assert.InDelta(t, 3, b.Materials.Score, 0.001)
	assert.InDelta(t, 3, b.ProductionMethods.Score, 0.001)
	assert.InDelta(t, 4, b.Bonuses.Score, 0.001)
	assert.InDelta(t, 80, b.Total, 0.001)

	for _, c := range b.Categories() {
		assert.Positive(t, c.Max)
		assert.NotEmpty(t, c.Reason)
	}
}

func TestScore_ScenarioNothingExtracted(t *testing.T) {
	s := New(DefaultConfig())
	full := s.Score(scenarioCriteria(), model.ManufacturerRecord{
		Name: "A", Location: "Vietnam", MOQ: intPtr(1200), Certifications: []string{"OEKO-TEX"},
	})
	empty := s.Score(scenarioCriteria(), model.ManufacturerRecord{
		Name:       "B",
		Confidence: model.ConfidenceLow,
	})

	assert.InDelta(t, 20, empty.Total, 0.001)
	assert.Greater(t, empty.Total, 0.0)
	assert.Less(t, empty.Total, full.Total-30)
	assert.Equal(t, "location unknown", empty.Location.Reason)
	assert.Equal(t, "MOQ unknown", empty.MOQ.Reason)
}

func TestScore_Location(t *testing.T) {
	tests := []struct {
		name  string
		prefs []string
		loc   string
		want  float64
	}{
		{"no preference", nil, "Peru", 25},
		{"unknown", []string{"Vietnam"}, "", 5},
		{"exact within address", []string{"Vietnam"}, "Ho Chi Minh City, Vietnam", 25},
		{"preferred region contains country", []string{"Southeast Asia"}, "Thailand", 25},
		{"same region", []string{"Vietnam"}, "Malaysia", 18},
		{"trade partner", []string{"China"}, "Bangladesh", 12},
		{"stated elsewhere", []string{"Vietnam"}, "Brazil", 8},
		{"short code needs word boundary", []string{"US"}, "Sydney, Australia", 8},
		{"case insensitive", []string{"PORTUGAL"}, "porto, portugal", 25},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.location(model.SearchCriteria{Locations: tt.prefs}, model.ManufacturerRecord{Location: tt.loc})
			assert.InDelta(t, tt.want, got.Score, 0.001)
			assert.InDelta(t, 25, got.Max, 0.001)
		})
	}
}

func TestScore_MOQ(t *testing.T) {
	tests := []struct {
		name string
		max  *int
		moq  *int
		desc string
		want float64
	}{
		{"in range", intPtr(2000), intPtr(1200), "", 20},
		{"at upper bound", intPtr(2000), intPtr(2000), "", 20},
		{"just below range", intPtr(2000), intPtr(400), "", 15},
		{"just above range", intPtr(2000), intPtr(2500), "", 15},
		{"far above range", intPtr(2000), intPtr(3000), "", 5},
		{"flexible", intPtr(2000), nil, "Flexible MOQ", 12},
		{"low moq loose buyer", intPtr(2000), nil, "Low MOQ available", 8},
		{"low moq tight buyer", intPtr(800), nil, "Low MOQ available", 10},
		{"small orders", intPtr(2000), nil, "Small orders welcome", 8},
		{"description only", intPtr(2000), nil, "5000 pcs per style", 5},
		{"unknown", intPtr(2000), nil, "", 4},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := model.SearchCriteria{MOQMin: intPtr(500), MOQMax: tt.max}
			got := s.moq(c, model.ManufacturerRecord{MOQ: tt.moq, MOQDescription: tt.desc})
			assert.InDelta(t, tt.want, got.Score, 0.001)
		})
	}

	t.Run("no bounds", func(t *testing.T) {
		got := s.moq(model.SearchCriteria{}, model.ManufacturerRecord{})
		assert.InDelta(t, 20, got.Score, 0.001)
	})
}

func TestScore_Certifications(t *testing.T) {
	tests := []struct {
		name     string
		interest []string
		certs    []string
		want     float64
	}{
		{"none", []string{"OEKO-TEX"}, nil, 5},
		{"requested alias", []string{"OEKO-TEX"}, []string{"Oeko-Tex Standard 100"}, 25},
		{"requested by long name", []string{"GOTS"}, []string{"Global Organic Textile Standard"}, 25},
		{"half of requested", []string{"OEKO-TEX", "GOTS"}, []string{"OEKO-TEX"}, 12.5},
		{"requested plus table", []string{"OEKO-TEX", "GOTS"}, []string{"OEKO-TEX", "WRAP"}, 18.5},
		{"table only", nil, []string{"GOTS", "WRAP"}, 14},
		{"in progress", nil, []string{"ISO 9001 in progress"}, 3},
		{"generic standard", nil, []string{"Quality assured"}, 2},
		{"unknown scheme", nil, []string{"Acme Seal"}, 4},
		{"capped", nil, []string{"GOTS", "OEKO-TEX", "bluesign", "Fair Trade"}, 25},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.certifications(
				model.SearchCriteria{CertificationsOfInterest: tt.interest},
				model.ManufacturerRecord{Certifications: tt.certs},
			)
			assert.InDelta(t, tt.want, got.Score, 0.001)
			assert.LessOrEqual(t, got.Score, got.Max)
		})
	}
}

func TestScore_Materials(t *testing.T) {
	tests := []struct {
		name  string
		wants []string
		have  []string
		want  float64
	}{
		{"unknown", []string{"Cotton"}, nil, 3},
		{"no preference", nil, []string{"Cotton"}, 15},
		{"exact plus sustainable", []string{"recycled polyester", "organic cotton"}, []string{"Recycled Polyester", "Cotton"}, 14},
		{"same family", []string{"Spandex"}, []string{"Lycra"}, 3},
		{"any material", []string{"Merino"}, []string{"Any material on request"}, 8},
		{"listed no match", []string{"Silk"}, []string{"Polyester"}, 0},
		{"capped", []string{"polyester", "nylon", "spandex"}, []string{"recycled polyester", "nylon", "spandex", "merino"}, 15},
	}

	s := New(DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.materials(model.SearchCriteria{Materials: tt.wants}, model.ManufacturerRecord{Materials: tt.have})
			assert.InDelta(t, tt.want, got.Score, 0.001)
		})
	}
}

func TestScore_ProductionMethods(t *testing.T) {
	s := New(DefaultConfig())

	got := s.methods(
		model.SearchCriteria{ProductionMethods: []string{"sublimation printing"}},
		model.ManufacturerRecord{ProductionMethods: []string{"Full-service production", "Sublimation"}},
	)
	assert.InDelta(t, 15, got.Score, 0.001)
	assert.Contains(t, got.Reason, "full service manufacturing")

	got = s.methods(
		model.SearchCriteria{ProductionMethods: []string{"cut and sew"}},
		model.ManufacturerRecord{ProductionMethods: []string{"CMT"}},
	)
	assert.InDelta(t, 3, got.Score, 0.001)
}

func TestScore_RescalesToConfiguredMax(t *testing.T) {
	cfg := config.ScoringConfig{Location: 10, MOQ: 20, Certifications: 25, Materials: 30, ProductionMethods: 15, AbsentFraction: 0.2}
	s := New(cfg)

	got := s.materials(model.SearchCriteria{Materials: []string{"Spandex"}}, model.ManufacturerRecord{Materials: []string{"Lycra"}})
	assert.InDelta(t, 6, got.Score, 0.001)
	assert.InDelta(t, 30, got.Max, 0.001)
}

func TestScore_Bonuses(t *testing.T) {
	c := model.SearchCriteria{PreferredCertifications: []string{"GOTS", "bluesign", "WRAP", "SA8000"}}
	rec := model.ManufacturerRecord{
		Contact:        model.Contact{Email: "sales@acme.vn", Phone: "+84 28 1234 5678"},
		Certifications: []string{"GOTS", "bluesign", "WRAP", "SA8000"},
		Signals:        &model.WebsiteSignals{Testimonials: true, YearsInBusiness: 12},
		Notes:          "Vertically integrated knit mill with in-house dyeing.",
	}

	a := bonuses(c, rec)

	// contact 4 + multiple 3 + richness 4 (3 fields) + testimonials 5 +
	// tenure 3 + preferred certs capped 6 + notes 2
	assert.InDelta(t, 27, a.Score, 0.001)
	assert.Len(t, a.Reasons, 7)
}

func TestScore_DeductionsForPlaceholderData(t *testing.T) {
	s := New(DefaultConfig())
	rec := model.ManufacturerRecord{
		Name:    "Template Co",
		Website: "https://example.com",
		Contact: model.Contact{Email: "test@example.com", Phone: "123-456-7890"},
	}

	b := s.Score(scenarioCriteria(), rec)

	// email matches two markers, phone one, website one.
	assert.InDelta(t, 20, b.Deductions.Score, 0.001)
	assert.Len(t, b.Deductions.Reasons, 4)
	assert.GreaterOrEqual(t, b.Total, 0.0)
}

func TestScore_ClampsToBounds(t *testing.T) {
	t.Run("upper", func(t *testing.T) {
		rec := model.ManufacturerRecord{
			Location:          "Vietnam",
			MOQ:               intPtr(1000),
			Certifications:    []string{"OEKO-TEX"},
			Materials:         []string{"Recycled polyester"},
			ProductionMethods: []string{"Full service"},
			Contact:           model.Contact{Email: "a@b.vn", Phone: "1", Address: "HCMC"},
			Signals: &model.WebsiteSignals{
				Testimonials: true, Portfolio: true, FactoryPhotos: true, Awards: true,
				SustainabilityFocus: true, TransparentSupplyChain: true, YearsInBusiness: 30,
			},
		}
		b := New(DefaultConfig()).Score(scenarioCriteria(), rec)
		assert.Greater(t, b.Base()+b.Bonuses.Score, 100.0)
		assert.InDelta(t, 100, b.Total, 0.001)
	})

	t.Run("lower", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AbsentFraction = 0
		rec := model.ManufacturerRecord{Website: "https://example.com/lorem-ipsum"}
		b := New(cfg).Score(scenarioCriteria(), rec)
		assert.Positive(t, b.Deductions.Score)
		assert.InDelta(t, 0, b.Total, 0.001)
	})
}

func TestScore_IsDeterministic(t *testing.T) {
	s := New(DefaultConfig())
	c := scenarioCriteria()
	c.Materials = []string{"nylon", "spandex"}
	rec := model.ManufacturerRecord{
		Name:              "Repeatable",
		Location:          "Thailand",
		Materials:         []string{"Econyl", "Lycra", "Organic cotton"},
		ProductionMethods: []string{"Seamless knitting"},
		Certifications:    []string{"bluesign", "Fair Trade"},
	}

	first := s.Score(c, rec)
	second := s.Score(c, rec)
	assert.Equal(t, first, second)

	for _, cat := range first.Categories() {
		assert.GreaterOrEqual(t, cat.Score, 0.0)
		assert.LessOrEqual(t, cat.Score, cat.Max)
	}
}

func TestRank(t *testing.T) {
	mk := func(name string, score float64, conf model.Confidence) model.ScoredManufacturer {
		return model.ScoredManufacturer{
			Record:    model.ManufacturerRecord{Name: name, Confidence: conf},
			Breakdown: model.ScoringBreakdown{Total: score},
		}
	}
	list := []model.ScoredManufacturer{
		mk("delta", 60, model.ConfidenceHigh),
		mk("bravo", 75, model.ConfidenceLow),
		mk("charlie", 75, model.ConfidenceHigh),
		mk("alpha", 75, model.ConfidenceLow),
	}

	Rank(list)

	var names []string
	for _, m := range list {
		names = append(names, m.Record.Name)
	}
	assert.Equal(t, []string{"charlie", "alpha", "bravo", "delta"}, names)
}

func TestScoreAll(t *testing.T) {
	s := New(DefaultConfig())
	out := s.ScoreAll(scenarioCriteria(), []model.ManufacturerRecord{
		{Name: "Sparse", SourceURL: "https://sparse.example.org"},
		{Name: "Strong", Location: "Vietnam", MOQ: intPtr(900), Certifications: []string{"OEKO-TEX"}},
	})
	require.Len(t, out, 2)
	assert.Equal(t, "Strong", out[0].Record.Name)
	assert.Greater(t, out[0].Score(), out[1].Score())
}

func TestNew_InvalidConfigFallsBack(t *testing.T) {
	s := New(config.ScoringConfig{Location: 50})
	assert.Equal(t, DefaultConfig(), s.Config())
}
