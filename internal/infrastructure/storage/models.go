package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// AppliedPayment is a payment that has been definitively linked to a
// client and recorded as settled. Rows are keyed by PaymentReference;
// applying the same reference twice updates in place.
type AppliedPayment struct {
	ID               int64           `json:"id"`
	ClientID         int64           `json:"client_id"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentDate      time.Time       `json:"payment_date"`
	Notes            string          `json:"notes"`
	PaymentReference string          `json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// MatchRun tracks one batch of match processing.
type MatchRun struct {
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

// MatchRecord is the persisted audit trail for one payment evaluation.
// Medium and low tier records feed the human review queue.
type MatchRecord struct {
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

// MatchFilters selects match records for listing.
type MatchFilters struct {
	RunID     string // empty = all runs
	Tier      string // empty = all tiers
	MatchType string // empty = all types
	Limit     int    // 0 = default 50
	Offset    int
}

// MatchStats aggregates match records for the stats endpoint.
type MatchStats struct {
	TotalEvaluated int            `json:"total_evaluated"`
	Matched        int            `json:"matched"`
	Unmatched      int            `json:"unmatched"`
	ByType         map[string]int `json:"by_type"`
	ByTier         map[string]int `json:"by_tier"`
}
