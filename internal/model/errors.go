package model

import "fmt"

// ErrorKind classifies failures surfaced by a run.
type ErrorKind string

const (
	ErrorKindValidation              ErrorKind = "validation"
	ErrorKindQueryGenerationDegraded ErrorKind = "query_generation_degraded"
	ErrorKindSearchProvider          ErrorKind = "search_provider"
	ErrorKindEmptySearchResult       ErrorKind = "empty_search_result"
	ErrorKindScrape                  ErrorKind = "scrape"
	ErrorKindExtraction              ErrorKind = "extraction"
	ErrorKindBudgetExceeded          ErrorKind = "budget_exceeded"
	ErrorKindNoViableCandidates      ErrorKind = "no_viable_candidates"
	ErrorKindInternal                ErrorKind = "internal"
)

// Fatal reports whether the kind terminates a run.
func (k ErrorKind) Fatal() bool {
	switch k {
	case ErrorKindBudgetExceeded, ErrorKindNoViableCandidates, ErrorKindInternal:
		return true
	}
	return false
}

// ValidationError rejects malformed criteria before a run starts.
type ValidationError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid criteria: %s %s", e.Field, e.Problem)
}

// RunError is the terminal error carried by a failed run.
type RunError struct {
	Kind   ErrorKind `json:"kind"`
	Reason string    `json:"reason"`
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// NewRunError builds a RunError.
func NewRunError(kind ErrorKind, format string, args ...any) *RunError {
	return &RunError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// QueryFailure records one search query that failed at the provider.
type QueryFailure struct {
	Query    string `json:"query"`
	Provider string `json:"provider,omitempty"`
	Reason   string `json:"reason"`
}
