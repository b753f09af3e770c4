package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunResponse represents a match run in API responses.
type RunResponse struct {
	ID               string `json:"id"`
	StartedAt        string `json:"started_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
	Limit            int    `json:"limit"`
	DryRun           bool   `json:"dry_run"`
	PaymentsFound    int    `json:"payments_found"`
	CustomerMatches  int    `json:"customer_matches"`
	ClientMatches    int    `json:"client_matches"`
	NoMatches        int    `json:"no_matches"`
	Errors           int    `json:"errors"`
	HighConfidence   int    `json:"high_confidence"`
	MediumConfidence int    `json:"medium_confidence"`
	Status           string `json:"status"`
}

// RunListResponse wraps a list of match runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// TriggerRunRequest is the body for starting a batch run over HTTP.
type TriggerRunRequest struct {
	Limit  int  `json:"limit"`
	DryRun bool `json:"dry_run"`
}

// MatchRecordResponse represents one payment evaluation in API responses.
type MatchRecordResponse struct {
	ID           int64   `json:"id"`
	RunID        string  `json:"run_id"`
	PaymentID    int64   `json:"payment_id"`
	EntityKind   string  `json:"entity_kind,omitempty"`
	EntityID     int64   `json:"entity_id,omitempty"`
	MatchType    string  `json:"match_type"`
	Tier         string  `json:"tier"`
	Confidence   float64 `json:"confidence"`
	NameScore    float64 `json:"name_score"`
	CompanyScore float64 `json:"company_score"`
	AccountScore float64 `json:"account_score"`
	CreatedAt    string  `json:"created_at"`
}

// MatchListResponse wraps a list of match records.
type MatchListResponse struct {
	Matches []MatchRecordResponse `json:"matches"`
	Count   int                   `json:"count"`
}

// StatsResponse aggregates the match audit trail.
type StatsResponse struct {
	TotalEvaluated int            `json:"total_evaluated"`
	Matched        int            `json:"matched"`
	Unmatched      int            `json:"unmatched"`
	ByType         map[string]int `json:"by_type"`
	ByTier         map[string]int `json:"by_tier"`
}
