package model

import (
	"fmt"
	"time"
)

// RawPage is the stripped text of one successfully fetched candidate.
type RawPage struct {
	Candidate  CandidateURL `json:"candidate"`
	FinalURL   string       `json:"final_url"`
	Title      string       `json:"title,omitempty"`
	Text       string       `json:"text"`
	StatusCode int          `json:"status_code"`
	Source     string       `json:"source"` // fetcher name, e.g. "local_http", "jina"
	FetchedAt  time.Time    `json:"fetched_at"`
}

// ScrapeFailureKind classifies why a candidate could not be fetched.
type ScrapeFailureKind string

const (
	ScrapeTimeout    ScrapeFailureKind = "timeout"
	ScrapeConnection ScrapeFailureKind = "connection"
	ScrapeBadStatus  ScrapeFailureKind = "bad_status"
	ScrapeNonHTML    ScrapeFailureKind = "non_html"
	ScrapeBlocked    ScrapeFailureKind = "blocked"
	ScrapeEmpty      ScrapeFailureKind = "empty"
)

// Retryable reports whether a second attempt could plausibly succeed.
func (k ScrapeFailureKind) Retryable() bool {
	switch k {
	case ScrapeTimeout, ScrapeConnection, ScrapeBadStatus, ScrapeBlocked:
		return true
	}
	return false
}

// ScrapeFailure is the typed outcome for a candidate that yielded no text.
type ScrapeFailure struct {
	URL        string            `json:"url"`
	Kind       ScrapeFailureKind `json:"kind"`
	Reason     string            `json:"reason"`
	StatusCode int               `json:"status_code,omitempty"`
}

func (f *ScrapeFailure) Error() string {
	return fmt.Sprintf("scrape %s: %s: %s", f.URL, f.Kind, f.Reason)
}
