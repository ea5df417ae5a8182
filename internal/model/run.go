package model

import "time"

// RunState is the pipeline state machine position.
type RunState string

const (
	RunStateInit              RunState = "init"
	RunStateGeneratingQueries RunState = "generating_queries"
	RunStateSearching         RunState = "searching"
	RunStateScraping          RunState = "scraping"
	RunStateExtracting        RunState = "extracting"
	RunStateScoring           RunState = "scoring"
	RunStateCompleted         RunState = "completed"
	RunStateEmpty             RunState = "empty_search_result"
	RunStateFailed            RunState = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s RunState) Terminal() bool {
	switch s {
	case RunStateCompleted, RunStateEmpty, RunStateFailed:
		return true
	}
	return false
}

// StepLabel is the human-readable label shown while in the state.
func (s RunState) StepLabel() string {
	switch s {
	case RunStateInit:
		return "Preparing search criteria"
	case RunStateGeneratingQueries:
		return "Generating queries"
	case RunStateSearching:
		return "Searching the web"
	case RunStateScraping:
		return "Scraping websites"
	case RunStateExtracting:
		return "Extracting data"
	case RunStateScoring:
		return "Evaluating"
	case RunStateCompleted:
		return "Complete"
	case RunStateEmpty:
		return "No candidates found"
	case RunStateFailed:
		return "Failed"
	}
	return string(s)
}

// Percent is the coarse progress percentage for the state.
func (s RunState) Percent() int {
	switch s {
	case RunStateGeneratingQueries:
		return 10
	case RunStateSearching:
		return 30
	case RunStateScraping:
		return 50
	case RunStateExtracting:
		return 70
	case RunStateScoring:
		return 85
	case RunStateCompleted, RunStateEmpty, RunStateFailed:
		return 100
	}
	return 0
}

// RunSummary reports per-stage success and failure counts.
type RunSummary struct {
	QueriesGenerated  int  `json:"queries_generated"`
	QueryFallbackUsed bool `json:"query_fallback_used"`
	QueriesSucceeded  int  `json:"queries_succeeded"`
	QueriesFailed     int  `json:"queries_failed"`
	CandidatesFound   int  `json:"candidates_found"`

	ScrapeAttempted int                       `json:"scrape_attempted"`
	ScrapeSucceeded int                       `json:"scrape_succeeded"`
	ScrapeFailed    int                       `json:"scrape_failed"`
	ScrapeFailures  map[ScrapeFailureKind]int `json:"scrape_failures,omitempty"`

	ExtractSucceeded int                           `json:"extract_succeeded"`
	ExtractFailed    int                           `json:"extract_failed"`
	ExtractFailures  map[ExtractionFailureKind]int `json:"extract_failures,omitempty"`
	RecordsScored    int                           `json:"records_scored"`
}

// PipelineRun is the read-only progress snapshot of one run. Snapshots
// are replaced wholesale, never mutated after publication.
type PipelineRun struct {
	ID            string     `json:"run_id"`
	State         RunState   `json:"state"`
	Step          string     `json:"current_step"`
	Detail        string     `json:"current_detail,omitempty"`
	Progress      int        `json:"progress"`
	Found         int        `json:"total_found"`
	MaxCandidates int        `json:"max_candidates"`
	CostUSD       float64    `json:"cost_usd"`
	BudgetUSD     float64    `json:"budget_usd"`
	Warnings      []string   `json:"warnings,omitempty"`
	Summary       RunSummary `json:"summary"`
	Error         *RunError  `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// ResultStatus is the outcome shape returned by GetResult.
type ResultStatus string

const (
	ResultPending   ResultStatus = "pending"
	ResultCompleted ResultStatus = "completed"
	ResultEmpty     ResultStatus = "empty"
	ResultFailed    ResultStatus = "failed"
)

// RunResult is the ranked output of a finished run, or its pending or
// failed status.
type RunResult struct {
	RunID         string               `json:"run_id"`
	Status        ResultStatus         `json:"status"`
	Criteria      SearchCriteria       `json:"criteria"`
	Manufacturers []ScoredManufacturer `json:"manufacturers,omitempty"`
	Summary       RunSummary           `json:"summary"`
	Warnings      []string             `json:"warnings,omitempty"`
	Error         *RunError            `json:"error,omitempty"`
	CostUSD       float64              `json:"cost_usd"`
	// CostBreakdown is spend per billed item, keyed like "anthropic:<model>".
	CostBreakdown map[string]float64   `json:"cost_breakdown,omitempty"`
}
