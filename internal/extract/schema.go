package extract

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/pkg/anthropic"
)

// Caps applied to model output before it reaches a record.
const (
	maxStringLen = 500
	maxNotesLen  = 1000
	maxListItems = 25
)

// placeholders are values models emit instead of null.
var placeholders = map[string]bool{
	"null":          true,
	"none":          true,
	"n/a":           true,
	"na":            true,
	"unknown":       true,
	"not found":     true,
	"not available": true,
	"not specified": true,
	"-":             true,
}

// fields is the decoded model reply. Each field that failed its type check
// is left zero and named in dropped.
type fields struct {
	record  model.ManufacturerRecord
	website string
	dropped []string
}

// decodeReply parses a model reply. Only an unparseable reply is an error;
// individual fields that fail validation are dropped.
func decodeReply(text string) (*fields, error) {
	raw := anthropic.CleanJSON(text)
	if raw == "" {
		return nil, eris.New("extract: empty response")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, eris.Wrap(err, "extract: unmarshal record")
	}

	f := &fields{}
	r := &f.record

	r.Name = f.str(m, "name", maxStringLen)
	f.website = f.str(m, "website", maxStringLen)
	r.Location = f.str(m, "location", maxStringLen)
	r.Contact.Email = f.email(m, "email")
	r.Contact.Phone = f.str(m, "phone", 64)
	r.Contact.Address = f.str(m, "address", maxStringLen)
	r.Materials = f.list(m, "materials")
	r.ProductionMethods = f.list(m, "production_methods")
	r.Certifications = f.list(m, "certifications")
	r.MOQDescription = f.str(m, "moq_description", maxStringLen)
	r.Notes = f.str(m, "notes", maxNotesLen)

	if v, ok := present(m, "moq"); ok {
		n, desc, valid := parseMOQ(v)
		switch {
		case valid && n != nil:
			r.MOQ = n
		case valid && desc != "" && r.MOQDescription == "":
			r.MOQDescription = desc
		case !valid:
			f.dropped = append(f.dropped, "moq")
		}
	}

	if v, ok := present(m, "website_signals"); ok {
		sig, valid := parseSignals(v)
		if valid {
			r.Signals = sig
		} else {
			f.dropped = append(f.dropped, "website_signals")
		}
	}
	return f, nil
}

// present returns a key's value when it is set and not null.
func present(m map[string]any, key string) (any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

func (f *fields) str(m map[string]any, key string, limit int) string {
	v, ok := present(m, key)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		f.dropped = append(f.dropped, key)
		return ""
	}
	s = clean(s)
	if len(s) > limit {
		f.dropped = append(f.dropped, key)
		return ""
	}
	return s
}

func (f *fields) email(m map[string]any, key string) string {
	s := f.str(m, key, 254)
	s = strings.TrimPrefix(s, "mailto:")
	if s == "" {
		return ""
	}
	at := strings.Index(s, "@")
	if at < 1 || !strings.Contains(s[at:], ".") || strings.ContainsAny(s, " ,;") {
		f.dropped = append(f.dropped, key)
		return ""
	}
	return s
}

// list accepts an array of strings, skipping non-string items, or a single
// comma-separated string.
func (f *fields) list(m map[string]any, key string) []string {
	v, ok := present(m, key)
	if !ok {
		return nil
	}
	var items []string
	switch t := v.(type) {
	case []any:
		for _, it := range t {
			if s, ok := it.(string); ok {
				items = append(items, s)
			}
		}
	case string:
		items = strings.Split(t, ",")
	default:
		f.dropped = append(f.dropped, key)
		return nil
	}

	seen := make(map[string]bool, len(items))
	var out []string
	for _, s := range items {
		s = clean(s)
		k := strings.ToLower(s)
		if s == "" || len(s) > maxStringLen || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
		if len(out) == maxListItems {
			break
		}
	}
	return out
}

func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if placeholders[strings.ToLower(s)] {
		return ""
	}
	return s
}

// parseMOQ accepts a non-negative whole number, or a string holding one
// ("1,000", "500 pcs"). Other strings are returned as a description.
func parseMOQ(v any) (*int, string, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != math.Trunc(t) || t > math.MaxInt32 {
			return nil, "", false
		}
		n := int(t)
		return &n, "", true
	case string:
		s := clean(t)
		if s == "" {
			return nil, "", true
		}
		digits := strings.ReplaceAll(strings.Fields(s)[0], ",", "")
		if n, err := strconv.Atoi(digits); err == nil && n >= 0 {
			return &n, "", true
		}
		if len(s) > maxStringLen {
			return nil, "", false
		}
		return nil, s, true
	}
	return nil, "", false
}

func parseSignals(v any) (*model.WebsiteSignals, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	flag := func(key string) bool {
		b, _ := m[key].(bool)
		return b
	}
	sig := &model.WebsiteSignals{
		Testimonials:             flag("testimonials"),
		Portfolio:                flag("portfolio"),
		FactoryPhotos:            flag("factory_photos"),
		Awards:                   flag("awards"),
		SustainabilityFocus:      flag("sustainability_focus"),
		TransparentSupplyChain:   flag("transparent_supply_chain"),
		SocialResponsibility:     flag("social_responsibility"),
		EnvironmentalInitiatives: flag("environmental_initiatives"),
		RecentUpdates:            flag("recent_updates"),
		ExportExperience:         flag("export_experience"),
		InternationalClients:     flag("international_clients"),
		TradeShows:               flag("trade_shows"),
	}
	if y, ok := m["years_in_business"].(float64); ok && y > 0 && y < 200 {
		sig.YearsInBusiness = int(y)
	}
	if *sig == (model.WebsiteSignals{}) {
		return nil, true
	}
	return sig, true
}

// websiteURL normalizes an extracted website to an absolute http(s) URL,
// returning "" when it is not one.
func websiteURL(s string) string {
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.User != nil {
		return ""
	}
	host := u.Hostname()
	if !strings.Contains(host, ".") || strings.ContainsAny(host, " @") {
		return ""
	}
	return u.String()
}
