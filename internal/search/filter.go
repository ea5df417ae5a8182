package search

import (
	"strings"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// defaultSkipDomains never host a manufacturer's own site.
var defaultSkipDomains = []string{
	"google.com",
	"facebook.com",
	"linkedin.com",
	"instagram.com",
	"twitter.com",
	"x.com",
	"youtube.com",
	"pinterest.com",
	"reddit.com",
	"wikipedia.org",
}

// marketplaceDomains list many suppliers under one host, so each listing
// path is its own candidate.
var marketplaceDomains = []string{
	"alibaba.com",
	"indiamart.com",
	"made-in-china.com",
	"globalsources.com",
}

// IsMarketplace reports whether a URL is a B2B marketplace listing.
func IsMarketplace(rawURL string) bool {
	return domainIn(model.Domain(rawURL), marketplaceDomains)
}

// domainIn matches domain against list entries and their subdomains.
func domainIn(domain string, list []string) bool {
	if domain == "" {
		return false
	}
	for _, d := range list {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

// merger accumulates hits in first-seen order.
type merger struct {
	limit    int
	byDomain bool
	skip     []string

	index map[string]int
	items []model.CandidateURL
}

func newMerger(limit int, byDomain bool, extraSkip []string) *merger {
	skip := append([]string(nil), defaultSkipDomains...)
	for _, d := range extraSkip {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			skip = append(skip, strings.TrimPrefix(d, "www."))
		}
	}
	return &merger{limit: limit, byDomain: byDomain, skip: skip, index: make(map[string]int)}
}

// add merges h, surfaced by query, and reports whether it is a new
// candidate. Repeats only add provenance.
func (m *merger) add(h Hit, query string) bool {
	domain := model.Domain(h.URL)
	if domain == "" || domainIn(domain, m.skip) {
		return false
	}
	key, err := model.NormalizeURL(h.URL)
	if err != nil {
		return false
	}

	dedupe := key
	if m.byDomain && !domainIn(domain, marketplaceDomains) {
		dedupe = domain
	}
	if i, ok := m.index[dedupe]; ok {
		m.items[i].AddQuery(query)
		return false
	}
	if m.full() {
		return false
	}

	m.index[dedupe] = len(m.items)
	m.items = append(m.items, model.CandidateURL{
		URL:     strings.TrimSpace(h.URL),
		Key:     key,
		Title:   h.Title,
		Queries: []string{query},
	})
	return true
}

func (m *merger) full() bool { return m.limit > 0 && len(m.items) >= m.limit }

func (m *merger) candidates() []model.CandidateURL {
	return append([]model.CandidateURL(nil), m.items...)
}
