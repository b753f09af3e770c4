// Package matching decides which customer or client an unapplied payment
// belongs to.
//
// Candidate discovery runs in a fixed priority order and short-circuits on
// the first high-confidence hit. Customers are tried before clients and
// held to the stricter high bar; a customer match is more specific and
// carries lower false-positive risk. Clients are the broader fallback,
// accepted at the medium bar because direct account matches already
// short-circuit to a near-certain score.
//
// The engine performs no writes: it returns a decision and the caller owns
// persistence.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/paymentops/payment-match-backend/internal/domain/confidence"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// Account fields consulted during candidate discovery, in priority order.
var discoveryAccountFields = func(p *model.Payment) []string {
	return []string{p.AccountNumber, p.FullSubAccount, p.ACCT, p.AcctNo}
}

// Engine evaluates payments against customer and client candidates.
type Engine struct {
	customers  CustomerLookup
	clients    ClientLookup
	scorer     *confidence.Scorer
	thresholds confidence.Thresholds
	logger     *slog.Logger

	stats Stats
}

// NewEngine creates a decision engine. The scorer and thresholds are
// injected so callers can tune matching without touching the engine.
func NewEngine(
	customers CustomerLookup,
	clients ClientLookup,
	scorer *confidence.Scorer,
	thresholds confidence.Thresholds,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		customers:  customers,
		clients:    clients,
		scorer:     scorer,
		thresholds: thresholds,
		logger:     logger,
	}
}

// Stats returns a copy of the engine's batch counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// ResetStats zeroes the batch counters. Called at the start of each batch
// so repeated runs over the same data stay deterministic.
func (e *Engine) ResetStats() {
	e.stats = Stats{}
}

// Match evaluates a single payment. The known-accounts set is the
// batch-scoped cache loaded by the caller; it gates repository lookups for
// account-field candidates.
//
// A lookup failure is fatal for this payment and surfaced as an error.
// Malformed identifier fields are not errors; the fuzzy path continues.
func (e *Engine) Match(ctx context.Context, payment *model.Payment, known AccountSet) (*Result, error) {
	e.stats.TotalProcessed++

	customer, customerBD, err := e.findCustomerMatch(ctx, payment, known)
	if err != nil {
		return nil, fmt.Errorf("customer lookup for payment %d: %w", payment.ID, err)
	}

	if customer != nil && e.thresholds.IsHigh(customerBD.Total) {
		e.logger.Info("matched payment to customer",
			"payment_id", payment.ID,
			"customer_id", customer.ID,
			"confidence", customerBD.Total,
		)

		e.stats.CustomerMatches++
		e.countTier(customerBD.Total)

		matchType := model.MatchCustomer
		if customerBD.Direct {
			matchType = model.MatchDirectID
		}

		return &Result{
			Kind:              model.KindCustomer,
			EntityID:          customer.ID,
			Confidence:        customerBD.Total,
			Type:              matchType,
			Tier:              e.thresholds.Tier(customerBD.Total),
			Breakdown:         customerBD,
			BestCustomerScore: customerBD.Total,
		}, nil
	}

	client, clientBD, err := e.findClientMatch(ctx, payment)
	if err != nil {
		return nil, fmt.Errorf("client lookup for payment %d: %w", payment.ID, err)
	}

	if client != nil && e.thresholds.IsMedium(clientBD.Total) {
		e.logger.Info("matched payment to client",
			"payment_id", payment.ID,
			"client_id", client.ID,
			"confidence", clientBD.Total,
		)

		e.stats.ClientMatches++
		e.countTier(clientBD.Total)

		matchType := model.MatchClient
		if clientBD.Direct {
			matchType = model.MatchDirectAccount
		}

		return &Result{
			Kind:              model.KindClient,
			EntityID:          client.ID,
			Confidence:        clientBD.Total,
			Type:              matchType,
			Tier:              e.thresholds.Tier(clientBD.Total),
			Breakdown:         clientBD,
			BestCustomerScore: customerBD.Total,
			BestClientScore:   clientBD.Total,
		}, nil
	}

	e.logger.Warn("no match for payment",
		"payment_id", payment.ID,
		"best_customer_score", customerBD.Total,
		"best_client_score", clientBD.Total,
	)

	e.stats.NoMatches++

	best := customerBD.Total
	if clientBD.Total > best {
		best = clientBD.Total
	}

	return &Result{
		Confidence:        best,
		Type:              model.MatchNone,
		Tier:              e.thresholds.Tier(best),
		BestCustomerScore: customerBD.Total,
		BestClientScore:   clientBD.Total,
	}, nil
}

// findCustomerMatch walks the customer discovery priority order: direct
// id, account-field membership in the known set, name, company. Returns
// the best-scoring candidate seen, short-circuiting on a high hit.
func (e *Engine) findCustomerMatch(
	ctx context.Context,
	payment *model.Payment,
	known AccountSet,
) (*model.Customer, confidence.Breakdown, error) {
	var best *model.Customer
	var bestBD confidence.Breakdown

	consider := func(customer *model.Customer) bool {
		bd := e.scorer.ScoreCustomer(payment, customer)
		if bd.Total > bestBD.Total {
			best = customer
			bestBD = bd
		}
		return e.thresholds.IsHigh(bd.Total)
	}

	// Direct customer id. Non-numeric CustID values (memo text, ACH
	// descriptors) simply skip this shortcut.
	if id, ok := numericID(payment.CustID); ok {
		customer, err := e.customers.CustomerByID(ctx, id)
		if err != nil {
			return nil, bestBD, err
		}
		if customer != nil && consider(customer) {
			return best, bestBD, nil
		}
	} else if payment.CustID != "" {
		e.logger.Debug("non-numeric customer id on payment, skipping direct lookup",
			"payment_id", payment.ID, "cust_id", payment.CustID)
	}

	// Account fields against the known-accounts set.
	for _, field := range discoveryAccountFields(payment) {
		if field == "" || !isDigits(field) || !known.Contains(field) {
			continue
		}

		customers, err := e.customers.CustomersByPrimaryClientID(ctx, field)
		if err != nil {
			return nil, bestBD, err
		}
		for _, customer := range customers {
			if consider(customer) {
				return best, bestBD, nil
			}
		}
	}

	// Name, then company.
	if payment.CustName != "" {
		customers, err := e.customers.CustomersByName(ctx, payment.CustName)
		if err != nil {
			return nil, bestBD, err
		}
		for _, customer := range customers {
			if consider(customer) {
				return best, bestBD, nil
			}
		}
	}

	if payment.CompName != "" {
		customers, err := e.customers.CustomersByCompany(ctx, payment.CompName)
		if err != nil {
			return nil, bestBD, err
		}
		for _, customer := range customers {
			if consider(customer) {
				return best, bestBD, nil
			}
		}
	}

	return best, bestBD, nil
}

// findClientMatch walks the client discovery priority order: direct
// account number, name, company.
func (e *Engine) findClientMatch(
	ctx context.Context,
	payment *model.Payment,
) (*model.Client, confidence.Breakdown, error) {
	var best *model.Client
	var bestBD confidence.Breakdown

	consider := func(client *model.Client) bool {
		bd := e.scorer.ScoreClient(payment, client)
		if bd.Total > bestBD.Total {
			best = client
			bestBD = bd
		}
		return e.thresholds.IsHigh(bd.Total)
	}

	for _, field := range discoveryAccountFields(payment) {
		if field == "" {
			continue
		}

		client, err := e.clients.ClientByAccountNumber(ctx, field)
		if err != nil {
			return nil, bestBD, err
		}
		if client != nil && consider(client) {
			return best, bestBD, nil
		}
	}

	if payment.CustName != "" {
		clients, err := e.clients.ClientsByName(ctx, payment.CustName)
		if err != nil {
			return nil, bestBD, err
		}
		for _, client := range clients {
			if consider(client) {
				return best, bestBD, nil
			}
		}
	}

	if payment.CompName != "" {
		clients, err := e.clients.ClientsByCompany(ctx, payment.CompName)
		if err != nil {
			return nil, bestBD, err
		}
		for _, client := range clients {
			if consider(client) {
				return best, bestBD, nil
			}
		}
	}

	return best, bestBD, nil
}

// countTier updates the tier counters for an accepted match.
func (e *Engine) countTier(score float64) {
	switch e.thresholds.Tier(score) {
	case confidence.TierHigh:
		e.stats.HighConfidence++
	case confidence.TierMedium:
		e.stats.MediumConfidence++
	case confidence.TierLow:
		e.stats.LowConfidence++
	}
}

// numericID parses a strictly numeric identifier field.
func numericID(raw string) (int64, bool) {
	if raw == "" || !isDigits(raw) {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
