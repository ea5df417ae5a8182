package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Partial-credit fractions of the location and MOQ maxima.
const (
	sameRegionFrac   = 0.72
	tradePartnerFrac = 0.48
	statedLocFrac    = 0.32

	nearRangeFrac   = 0.75
	flexibleFrac    = 0.6
	lowMOQFrac      = 0.5
	lowMOQLooseFrac = 0.4
	smallOrderFrac  = 0.4
	outOfRangeFrac  = 0.25
)

func (s *Scorer) location(c model.SearchCriteria, r model.ManufacturerRecord) model.CategoryScore {
	top := s.cfg.Location
	if len(c.Locations) == 0 {
		return full(top, "no location preference")
	}
	loc := normalize(r.Location)
	if loc == "" {
		return fraction(top, s.cfg.AbsentFraction, "location unknown")
	}

	prefs := normalizeAll(c.Locations)
	for i, p := range prefs {
		if termMatch(loc, p) {
			return full(top, fmt.Sprintf("%s matches preferred %s", r.Location, c.Locations[i]))
		}
	}

	region := regionOf(loc)
	if region != "" {
		for i, p := range prefs {
			if isRegionName(p) && p == region {
				return full(top, fmt.Sprintf("%s is within preferred region %s", r.Location, c.Locations[i]))
			}
		}
		for _, p := range prefs {
			if regionOf(p) == region {
				return fraction(top, sameRegionFrac, fmt.Sprintf("%s is in the same region (%s)", r.Location, region))
			}
		}
	}

	for i, p := range prefs {
		for _, partner := range tradePartners[p] {
			if hasTerm(loc, partner) {
				return fraction(top, tradePartnerFrac, fmt.Sprintf("%s is a trade partner of %s", r.Location, c.Locations[i]))
			}
		}
	}

	return fraction(top, statedLocFrac, fmt.Sprintf("%s stated, not preferred", r.Location))
}

func (s *Scorer) moq(c model.SearchCriteria, r model.ManufacturerRecord) model.CategoryScore {
	top := s.cfg.MOQ
	if c.MOQMin == nil && c.MOQMax == nil {
		return full(top, "no MOQ preference")
	}

	lo, hi := 0.0, math.Inf(1)
	if c.MOQMin != nil {
		lo = float64(*c.MOQMin)
	}
	if c.MOQMax != nil {
		hi = float64(*c.MOQMax)
	}

	if r.MOQ != nil {
		moq := float64(*r.MOQ)
		if moq >= lo && moq <= hi {
			return full(top, fmt.Sprintf("%d units within range", *r.MOQ))
		}
		if moq >= lo*(1-moqToleranceFrac) && moq <= hi*(1+moqToleranceFrac) {
			return fraction(top, nearRangeFrac, fmt.Sprintf("%d units close to range", *r.MOQ))
		}
	}

	if desc := normalize(r.MOQDescription); desc != "" {
		switch {
		case hasAnyTerm(desc, []string{"flexible", "negotiable"}):
			return fraction(top, flexibleFrac, fmt.Sprintf("%q (flexible MOQ)", r.MOQDescription))
		case hasAnyTerm(desc, []string{"low moq", "low minimum", "low minimums"}):
			f := lowMOQFrac
			if c.MOQMax == nil || *c.MOQMax > lowMOQBuyerCeiling {
				f = lowMOQLooseFrac
			}
			return fraction(top, f, fmt.Sprintf("%q (low MOQ)", r.MOQDescription))
		case hasAnyTerm(desc, []string{"small order", "small orders", "small batch"}):
			return fraction(top, smallOrderFrac, fmt.Sprintf("%q (small orders welcome)", r.MOQDescription))
		}
	}

	if r.MOQ != nil {
		return fraction(top, outOfRangeFrac, fmt.Sprintf("%d units outside range", *r.MOQ))
	}
	if r.MOQDescription != "" {
		return fraction(top, outOfRangeFrac, fmt.Sprintf("%q stated", r.MOQDescription))
	}
	return fraction(top, s.cfg.AbsentFraction, "MOQ unknown")
}

func (s *Scorer) certifications(c model.SearchCriteria, r model.ManufacturerRecord) model.CategoryScore {
	top := s.cfg.Certifications
	certs := normalizeAll(r.Certifications)
	if len(certs) == 0 {
		return fraction(top, s.cfg.AbsentFraction, "no certifications found")
	}

	interest := normalizeAll(c.CertificationsOfInterest)
	matched := make([]bool, len(certs))
	var total float64
	var items []string

	if len(interest) > 0 {
		per := top / float64(len(interest))
		for i, want := range interest {
			for j, have := range certs {
				if sameCert(have, want) {
					matched[j] = true
					total += per
					items = append(items, fmt.Sprintf("%s requested (+%s)", c.CertificationsOfInterest[i], pts(per)))
					break
				}
			}
		}
	}

	scale := top / certTableScale
	for j, have := range certs {
		if matched[j] {
			continue
		}
		p := tablePoints(have) * scale
		total += p
		items = append(items, fmt.Sprintf("%s (+%s)", r.Certifications[j], pts(p)))
	}

	return capped(top, total, strings.Join(items, ", "))
}

// tablePoints values a certification not requested by the buyer.
func tablePoints(cert string) float64 {
	if hasAnyTerm(cert, inProgressKeywords) {
		return inProgressPoints
	}
	if i := certIndex(cert); i >= 0 {
		return certTable[i].points
	}
	if hasAnyTerm(cert, genericStdKeywords) {
		return genericStdPoints
	}
	return defaultCertPoints
}

func (s *Scorer) materials(c model.SearchCriteria, r model.ManufacturerRecord) model.CategoryScore {
	return s.capabilities("materials", s.cfg.Materials, c.Materials, r.Materials, materialFamilies, materialBonuses)
}

func (s *Scorer) methods(c model.SearchCriteria, r model.ManufacturerRecord) model.CategoryScore {
	return s.capabilities("production methods", s.cfg.ProductionMethods, c.ProductionMethods, r.ProductionMethods, methodFamilies, methodBonuses)
}

// capabilities scores a stackable list category: exact and related matches
// against the buyer's wants plus keyword bonuses, rescaled to top.
func (s *Scorer) capabilities(label string, top float64, wants, have []string, families []family, extras []keywordBonus) model.CategoryScore {
	items := normalizeAll(have)
	if len(items) == 0 {
		return fraction(top, s.cfg.AbsentFraction, label+" unknown")
	}
	if len(wants) == 0 {
		return full(top, "no "+label+" preference")
	}

	var total float64
	var reasons []string
	for _, w := range wants {
		nw := normalize(w)
		switch {
		case matchesAny(nw, items):
			total += exactMatchPoints
			reasons = append(reasons, fmt.Sprintf("%s match (+%s)", w, pts(exactMatchPoints)))
		case related(nw, items, families):
			total += relatedMatchPoints
			reasons = append(reasons, fmt.Sprintf("%s related (+%s)", w, pts(relatedMatchPoints)))
		}
	}

	joined := strings.Join(items, " | ")
	for _, e := range extras {
		if hasAnyTerm(joined, e.keywords) {
			total += e.points
			reasons = append(reasons, fmt.Sprintf("%s (+%s)", e.label, pts(e.points)))
		}
	}

	if len(reasons) == 0 {
		return model.CategoryScore{Score: 0, Max: top, Reason: label + " listed, no match"}
	}
	return capped(top, total*top/capabilityScale, strings.Join(reasons, ", "))
}
