package model

import (
	"fmt"
	"time"
)

// Confidence tags how much of a record was positively extracted.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Rank orders confidence levels for tie-breaking.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	}
	return 0
}

// ConfidenceFromSignals maps a count of positively populated signal fields
// (MOQ, certifications, materials, contact) onto a confidence tag.
func ConfidenceFromSignals(n int) Confidence {
	switch {
	case n >= 4:
		return ConfidenceHigh
	case n >= 2:
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// Contact holds optional contact details.
type Contact struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Methods counts populated contact methods.
func (c Contact) Methods() int {
	n := 0
	for _, v := range []string{c.Email, c.Phone, c.Address} {
		if v != "" {
			n++
		}
	}
	return n
}

// WebsiteSignals are credibility markers observed on the page.
type WebsiteSignals struct {
	Testimonials             bool `json:"testimonials,omitempty"`
	Portfolio                bool `json:"portfolio,omitempty"`
	FactoryPhotos            bool `json:"factory_photos,omitempty"`
	Awards                   bool `json:"awards,omitempty"`
	SustainabilityFocus      bool `json:"sustainability_focus,omitempty"`
	TransparentSupplyChain   bool `json:"transparent_supply_chain,omitempty"`
	SocialResponsibility     bool `json:"social_responsibility,omitempty"`
	EnvironmentalInitiatives bool `json:"environmental_initiatives,omitempty"`
	RecentUpdates            bool `json:"recent_updates,omitempty"`
	ExportExperience         bool `json:"export_experience,omitempty"`
	InternationalClients     bool `json:"international_clients,omitempty"`
	TradeShows               bool `json:"trade_shows,omitempty"`
	YearsInBusiness          int  `json:"years_in_business,omitempty"`
}

// ManufacturerRecord is the structured, advisory view of one candidate.
// Records are immutable once created by the extraction stage.
type ManufacturerRecord struct {
	Name              string          `json:"name"`
	Website           string          `json:"website"`
	Location          string          `json:"location,omitempty"`
	Contact           Contact         `json:"contact"`
	Materials         []string        `json:"materials,omitempty"`
	ProductionMethods []string        `json:"production_methods,omitempty"`
	Certifications    []string        `json:"certifications,omitempty"`
	MOQ               *int            `json:"moq,omitempty"`
	MOQDescription    string          `json:"moq_description,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Signals           *WebsiteSignals `json:"website_signals,omitempty"`
	Confidence        Confidence      `json:"confidence"`
	SourceURL         string          `json:"source_url"`
	ExtractedAt       time.Time       `json:"extracted_at"`
}

// SignalCount counts the populated signal fields used for confidence.
func (r ManufacturerRecord) SignalCount() int {
	n := 0
	if r.MOQ != nil || r.MOQDescription != "" {
		n++
	}
	if len(r.Certifications) > 0 {
		n++
	}
	if len(r.Materials) > 0 {
		n++
	}
	if r.Contact.Methods() > 0 {
		n++
	}
	return n
}

// PopulatedFields counts the eight data-richness fields: location, three
// contact fields, materials, methods, MOQ and certifications.
func (r ManufacturerRecord) PopulatedFields() int {
	n := r.Contact.Methods()
	if r.Location != "" {
		n++
	}
	if len(r.Materials) > 0 {
		n++
	}
	if len(r.ProductionMethods) > 0 {
		n++
	}
	if r.MOQ != nil {
		n++
	}
	if len(r.Certifications) > 0 {
		n++
	}
	return n
}

// ExtractionFailureKind classifies why a page produced no record.
type ExtractionFailureKind string

const (
	ExtractionMissingMandatory ExtractionFailureKind = "missing_mandatory_field"
	ExtractionMalformedSchema  ExtractionFailureKind = "malformed_schema"
	ExtractionServiceError     ExtractionFailureKind = "service_error"
)

// ExtractionFailure is the per-URL outcome when extraction yields nothing.
type ExtractionFailure struct {
	URL    string                `json:"url"`
	Kind   ExtractionFailureKind `json:"kind"`
	Reason string                `json:"reason"`
}

func (f *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract %s: %s: %s", f.URL, f.Kind, f.Reason)
}
