// Package batch runs the payment application pipeline: load unapplied
// payments, decide a match for each, and persist the accepted matches.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

// Options holds parameters for one batch run.
type Options struct {
	// Limit caps how many unapplied payments are processed. Zero means
	// no cap.
	Limit int

	// DryRun evaluates and records matches without applying payments.
	DryRun bool
}

// Summary is the outcome of one batch run.
type Summary struct {
	RunID            string `json:"run_id"`
	DryRun           bool   `json:"dry_run"`
	PaymentsFound    int    `json:"payments_found"`
	CustomerMatches  int    `json:"customer_matches"`
	ClientMatches    int    `json:"client_matches"`
	OrderMatches     int    `json:"order_matches"`
	NoMatches        int    `json:"no_matches"`
	Applied          int    `json:"applied"`
	Errors           int    `json:"errors"`
	HighConfidence   int    `json:"high_confidence"`
	MediumConfidence int    `json:"medium_confidence"`
}

// Processor owns one batch pipeline. The engine decides, the processor
// persists; per-payment lookup failures are counted and skipped while
// persistence failures abort the whole batch.
type Processor struct {
	repo   storage.Repository
	engine *matching.Engine
	orders *matching.OrderMatcher // nil disables the order-history fallback
	logger *slog.Logger
}

// NewProcessor creates a batch processor. Pass a nil order matcher to
// run without the order-history fallback.
func NewProcessor(
	repo storage.Repository,
	engine *matching.Engine,
	orders *matching.OrderMatcher,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		repo:   repo,
		engine: engine,
		orders: orders,
		logger: logger,
	}
}

// Run executes one batch. Dry runs still record the run and its match
// audit trail; they only skip applying payments.
func (p *Processor) Run(ctx context.Context, opts Options) (*Summary, error) {
	p.engine.ResetStats()

	accountIDs, err := p.repo.DistinctAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load known accounts: %w", err)
	}
	known := matching.NewAccountSet(accountIDs)

	payments, err := p.repo.UnappliedPayments(ctx, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load unapplied payments: %w", err)
	}

	run := &storage.MatchRun{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Limit:     opts.Limit,
		DryRun:    opts.DryRun,
	}
	if err := p.repo.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	p.logger.Info("starting batch run",
		"run_id", run.ID,
		"payments", len(payments),
		"known_accounts", len(known),
		"dry_run", opts.DryRun,
	)

	summary := &Summary{RunID: run.ID, DryRun: opts.DryRun, PaymentsFound: len(payments)}

	for _, payment := range payments {
		result, err := p.engine.Match(ctx, payment, known)
		if err != nil {
			p.logger.Error("match failed for payment",
				"payment_id", payment.ID, "error", err)
			summary.Errors++
			continue
		}

		if result.Type == model.MatchNone && p.orders != nil {
			orderResult, err := p.orders.Match(ctx, payment, known)
			if err != nil {
				p.logger.Error("order fallback failed for payment",
					"payment_id", payment.ID, "error", err)
				summary.Errors++
				continue
			}
			if orderResult != nil {
				summary.OrderMatches++
				result = orderResult
			}
		}

		if err := p.repo.SaveMatchRecord(ctx, matchRecord(run.ID, payment, result)); err != nil {
			return nil, p.failRun(ctx, run, summary,
				fmt.Errorf("failed to save match record for payment %d: %w", payment.ID, err))
		}

		if !result.Matched() {
			continue
		}

		clientID, ok, err := p.resolveClientID(ctx, result)
		if err != nil {
			p.logger.Error("client resolution failed for payment",
				"payment_id", payment.ID, "error", err)
			summary.Errors++
			continue
		}
		if !ok {
			p.logger.Warn("matched payment has no applicable client, skipping apply",
				"payment_id", payment.ID, "match_type", result.Type)
			continue
		}

		if opts.DryRun {
			p.logger.Info("dry run, would apply payment",
				"payment_id", payment.ID, "client_id", clientID,
				"confidence", result.Confidence)
			summary.Applied++
			continue
		}

		if err := p.applyPayment(ctx, payment, result, clientID); err != nil {
			return nil, p.failRun(ctx, run, summary, err)
		}
		summary.Applied++
	}

	stats := p.engine.Stats()
	summary.CustomerMatches = stats.CustomerMatches
	summary.ClientMatches = stats.ClientMatches
	summary.NoMatches = stats.NoMatches - summary.OrderMatches
	summary.HighConfidence = stats.HighConfidence
	summary.MediumConfidence = stats.MediumConfidence

	run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	run.PaymentsFound = summary.PaymentsFound
	run.CustomerMatches = summary.CustomerMatches
	run.ClientMatches = summary.ClientMatches + summary.OrderMatches
	run.NoMatches = summary.NoMatches
	run.Errors = summary.Errors
	run.HighConfidence = summary.HighConfidence
	run.MediumConfidence = summary.MediumConfidence
	run.Status = "completed"
	if err := p.repo.CompleteRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to complete run %s: %w", run.ID, err)
	}

	p.logger.Info("batch run complete",
		"run_id", run.ID,
		"customer_matches", summary.CustomerMatches,
		"client_matches", summary.ClientMatches,
		"order_matches", summary.OrderMatches,
		"no_matches", summary.NoMatches,
		"applied", summary.Applied,
		"errors", summary.Errors,
	)

	return summary, nil
}

// resolveClientID finds the client to apply the payment against. Client
// matches carry it directly; customer matches go through the customer's
// linked clients, primary first. Order-history matches are audit-only and
// never applied, there is no entity behind them.
func (p *Processor) resolveClientID(ctx context.Context, result *matching.Result) (int64, bool, error) {
	switch result.Kind {
	case model.KindClient:
		if result.EntityID == 0 {
			return 0, false, nil
		}
		return result.EntityID, true, nil

	case model.KindCustomer:
		ids, err := p.repo.ClientIDsForCustomer(ctx, result.EntityID)
		if err != nil {
			return 0, false, fmt.Errorf("failed to resolve clients for customer %d: %w", result.EntityID, err)
		}
		if len(ids) == 0 {
			return 0, false, nil
		}
		return ids[0], true, nil

	default:
		return 0, false, nil
	}
}

// applyPayment persists an accepted match. Failures here abort the batch.
func (p *Processor) applyPayment(
	ctx context.Context,
	payment *model.Payment,
	result *matching.Result,
	clientID int64,
) error {
	applied := &storage.AppliedPayment{
		ClientID:         clientID,
		Amount:           payment.Amount,
		PaymentDate:      payment.Date,
		Notes:            applyNotes(payment, result),
		PaymentReference: payment.Reference(),
	}

	id, created, err := p.repo.UpsertAppliedPayment(ctx, applied)
	if err != nil {
		return fmt.Errorf("failed to apply payment %d: %w", payment.ID, err)
	}
	if err := p.repo.MarkPaymentApplied(ctx, payment.ID); err != nil {
		return fmt.Errorf("failed to mark payment %d applied: %w", payment.ID, err)
	}

	p.logger.Info("applied payment",
		"payment_id", payment.ID,
		"client_id", clientID,
		"applied_id", id,
		"created", created,
		"amount", payment.Amount.String(),
	)
	return nil
}

// failRun marks the run failed before surfacing the batch error. The
// completion write is best-effort; the original error wins.
func (p *Processor) failRun(ctx context.Context, run *storage.MatchRun, summary *Summary, cause error) error {
	stats := p.engine.Stats()
	run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	run.PaymentsFound = summary.PaymentsFound
	run.CustomerMatches = stats.CustomerMatches
	run.ClientMatches = stats.ClientMatches
	run.NoMatches = stats.NoMatches
	run.Errors = summary.Errors + 1
	run.Status = "failed"
	if err := p.repo.CompleteRun(ctx, run); err != nil {
		p.logger.Error("failed to record run failure", "run_id", run.ID, "error", err)
	}
	return cause
}

// matchRecord builds the audit row for one payment evaluation.
func matchRecord(runID string, payment *model.Payment, result *matching.Result) *storage.MatchRecord {
	return &storage.MatchRecord{
		RunID:        runID,
		PaymentID:    payment.ID,
		EntityKind:   string(result.Kind),
		EntityID:     result.EntityID,
		MatchType:    string(result.Type),
		Tier:         string(result.Tier),
		Confidence:   result.Confidence,
		NameScore:    result.Breakdown.Name,
		CompanyScore: result.Breakdown.Company,
		AccountScore: result.Breakdown.Account,
	}
}

// applyNotes summarizes the decision for the applied-payment row.
func applyNotes(payment *model.Payment, result *matching.Result) string {
	source := payment.CustName
	if source == "" {
		source = payment.CompName
	}
	if source == "" {
		source = payment.Reference()
	}
	return fmt.Sprintf("Payment from %s matched via %s (%s confidence %.2f)",
		source, result.Type, result.Tier, result.Confidence)
}
