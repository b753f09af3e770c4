// Package confidence combines field-level similarity scores into a single
// match confidence for a payment/entity candidate pair.
//
// Direct identifier matches short-circuit to a fixed score; everything else
// gets a weighted blend of name, company, and account similarity. Weights
// and tier thresholds are plain config structs injected at construction,
// so tests and callers can tune them without touching globals.
package confidence

import (
	"strconv"

	"github.com/paymentops/payment-match-backend/internal/domain/model"
	"github.com/paymentops/payment-match-backend/internal/domain/similarity"
)

// Fixed scores for direct identifier matches. A customer id match is the
// strongest signal we ever see; a client account match is nearly as strong.
const (
	DirectCustomerScore = 1.0
	DirectClientScore   = 0.95
)

// Weights controls how the three similarity components blend into the
// overall confidence. They should sum to 1.0.
type Weights struct {
	Name    float64 `yaml:"name"`
	Company float64 `yaml:"company"`
	Account float64 `yaml:"account"`
}

// DefaultWeights returns the production weighting: account similarity
// counts most, company least.
func DefaultWeights() Weights {
	return Weights{
		Name:    0.35,
		Company: 0.25,
		Account: 0.40,
	}
}

// Breakdown carries the overall confidence plus the raw sub-scores so a
// reviewer can see why a match was (or wasn't) made.
type Breakdown struct {
	Total   float64 `json:"total"`
	Name    float64 `json:"name"`
	Company float64 `json:"company"`
	Account float64 `json:"account"`

	// Direct is true when an exact identifier match short-circuited
	// scoring; the sub-scores are zero in that case.
	Direct bool `json:"direct"`
}

// Scorer computes match confidence for customer and client candidates.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given component weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// ScoreCustomer calculates confidence that payment belongs to customer.
func (s *Scorer) ScoreCustomer(payment *model.Payment, customer *model.Customer) Breakdown {
	if hasDirectCustomerMatch(payment, customer) {
		return Breakdown{Total: DirectCustomerScore, Direct: true}
	}

	return s.blend(
		similarity.Score(payment.CustName, customer.Name),
		similarity.Score(payment.CompName, customer.Company),
		accountSimilarity(payment, customer.PrimaryClientID),
	)
}

// ScoreClient calculates confidence that payment belongs to client.
func (s *Scorer) ScoreClient(payment *model.Payment, client *model.Client) Breakdown {
	if hasDirectAccountMatch(payment, client) {
		return Breakdown{Total: DirectClientScore, Direct: true}
	}

	return s.blend(
		similarity.Score(payment.CustName, client.Name),
		similarity.Score(payment.CompName, client.Company),
		accountSimilarity(payment, client.AccountNumber),
	)
}

// blend produces the weighted sum. Missing fields score 0.0 and are never
// skipped: partial data must not inflate confidence.
func (s *Scorer) blend(name, company, account float64) Breakdown {
	total := s.weights.Name*name + s.weights.Company*company + s.weights.Account*account

	return Breakdown{
		Total:   clamp01(total),
		Name:    name,
		Company: company,
		Account: account,
	}
}

// hasDirectCustomerMatch checks the two exact-identifier shortcuts for
// customers: payment CustID against the customer id, and the customer's
// primary client id against the payment's account number.
func hasDirectCustomerMatch(payment *model.Payment, customer *model.Customer) bool {
	if payment.CustID != "" && customer.ID > 0 &&
		payment.CustID == strconv.FormatInt(customer.ID, 10) {
		return true
	}

	if customer.PrimaryClientID != "" && payment.AccountNumber != "" &&
		customer.PrimaryClientID == payment.AccountNumber {
		return true
	}

	return false
}

// hasDirectAccountMatch checks the client's account number against every
// account-like field on the payment.
func hasDirectAccountMatch(payment *model.Payment, client *model.Client) bool {
	if client.AccountNumber == "" {
		return false
	}

	for _, field := range payment.AccountFields() {
		if field != "" && field == client.AccountNumber {
			return true
		}
	}

	return false
}

// accountSimilarity returns the best account similarity across the ordered
// list of payment account fields.
func accountSimilarity(payment *model.Payment, entityAccount string) float64 {
	if entityAccount == "" {
		return 0.0
	}

	best := 0.0
	for _, field := range payment.AccountFields() {
		if field == "" {
			continue
		}
		if score := similarity.AccountScore(field, entityAccount); score > best {
			best = score
		}
	}

	return best
}

func clamp01(v float64) float64 {
	switch {
	case v < 0.0:
		return 0.0
	case v > 1.0:
		return 1.0
	default:
		return v
	}
}
