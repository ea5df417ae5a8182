package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// CandidateURL is a search hit plus the queries that surfaced it. URL is
// the original form used for fetching; Key is the normalized comparison
// form used for deduplication.
type CandidateURL struct {
	URL     string   `json:"url"`
	Key     string   `json:"-"`
	Title   string   `json:"title,omitempty"`
	Queries []string `json:"queries"`
}

// AddQuery records provenance, ignoring repeats.
func (c *CandidateURL) AddQuery(q string) {
	for _, existing := range c.Queries {
		if existing == q {
			return
		}
	}
	c.Queries = append(c.Queries, q)
}

// NormalizeURL returns the comparison key for a URL: lowercase scheme and
// host without a leading "www.", and the path without a trailing slash.
// Query string and fragment are dropped. http and https compare equal.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", eris.Wrapf(err, "model: parse url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", eris.Errorf("model: unsupported url scheme %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", eris.Errorf("model: url has no host: %q", raw)
	}
	host = strings.TrimPrefix(host, "www.")
	path := strings.TrimRight(u.EscapedPath(), "/")
	return host + path, nil
}

// Domain returns the lowercase host of a URL without a leading "www.".
func Domain(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// Origin returns scheme://host for a URL, or "" when it cannot be parsed.
func Origin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
