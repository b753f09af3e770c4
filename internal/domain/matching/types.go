package matching

import (
	"context"

	"github.com/paymentops/payment-match-backend/internal/domain/confidence"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// CustomerLookup supplies customer candidates. Implementations return an
// empty slice (or nil pointer) when nothing matches; errors are reserved
// for real lookup failures.
type CustomerLookup interface {
	CustomerByID(ctx context.Context, id int64) (*model.Customer, error)
	CustomersByPrimaryClientID(ctx context.Context, accountID string) ([]*model.Customer, error)
	CustomersByName(ctx context.Context, name string) ([]*model.Customer, error)
	CustomersByCompany(ctx context.Context, company string) ([]*model.Customer, error)
}

// ClientLookup supplies client candidates.
type ClientLookup interface {
	ClientByAccountNumber(ctx context.Context, accountNumber string) (*model.Client, error)
	ClientsByName(ctx context.Context, name string) ([]*model.Client, error)
	ClientsByCompany(ctx context.Context, company string) ([]*model.Client, error)
}

// AccountSet is the batch-scoped cache of known account identifiers,
// loaded once per batch and consulted before hitting the repository.
type AccountSet map[string]struct{}

// NewAccountSet builds an AccountSet from a list of account identifiers.
func NewAccountSet(ids []string) AccountSet {
	set := make(AccountSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is a known account identifier.
func (s AccountSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Result is the outcome of evaluating one payment. It is created fresh per
// evaluation and never persisted by the engine itself.
type Result struct {
	Kind       model.EntityKind     `json:"kind,omitempty"`
	EntityID   int64                `json:"entity_id,omitempty"`
	Confidence float64              `json:"confidence"`
	Type       model.MatchType      `json:"match_type"`
	Tier       confidence.Tier      `json:"tier"`
	Breakdown  confidence.Breakdown `json:"breakdown"`

	// Best scores seen on each side, kept for diagnostics when the
	// payment ends up unmatched.
	BestCustomerScore float64 `json:"best_customer_score"`
	BestClientScore   float64 `json:"best_client_score"`
}

// Matched reports whether the payment was matched to an entity.
func (r *Result) Matched() bool {
	return r.Type != model.MatchNone
}

// Stats are per-engine batch counters. They are reset at the start of each
// batch and are not safe for use from concurrent batches; give each batch
// its own engine instance instead.
type Stats struct {
	TotalProcessed   int `json:"total_processed"`
	CustomerMatches  int `json:"customer_matches"`
	ClientMatches    int `json:"client_matches"`
	NoMatches        int `json:"no_matches"`
	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`
}
