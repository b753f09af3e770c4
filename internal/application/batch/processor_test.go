package batch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/payment-match-backend/internal/domain/confidence"
	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
	"github.com/paymentops/payment-match-backend/internal/infrastructure/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProcessor(repo *storage.MockRepository, withOrders bool) *Processor {
	logger := testLogger()
	thresholds := confidence.DefaultThresholds()
	engine := matching.NewEngine(repo, repo,
		confidence.NewScorer(confidence.DefaultWeights()), thresholds, logger)

	var orders *matching.OrderMatcher
	if withOrders {
		orders = matching.NewOrderMatcher(repo, thresholds, logger)
	}
	return NewProcessor(repo, engine, orders, logger)
}

func TestProcessor_DirectIDMatchApplies(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.Customers[4021] = &model.Customer{ID: 4021, Name: "John Smith"}
	repo.CustomerClients[4021] = []int64{7, 9}
	repo.Payments[1] = &model.Payment{
		ID:            1,
		CustID:        "4021",
		CustName:      "John Smith",
		Amount:        decimal.NewFromFloat(120.25),
		Date:          time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		BankReference: "REF-100",
	}

	processor := newTestProcessor(repo, false)
	summary, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PaymentsFound)
	assert.Equal(t, 1, summary.CustomerMatches)
	assert.Equal(t, 1, summary.Applied)
	assert.Equal(t, 1, summary.HighConfidence)
	assert.Zero(t, summary.Errors)

	// Applied against the customer's primary client with the bank
	// reference as the idempotency key
	applied := repo.Applied["REF-100"]
	require.NotNil(t, applied)
	assert.Equal(t, int64(7), applied.ClientID)
	assert.True(t, applied.Amount.Equal(decimal.NewFromFloat(120.25)))
	assert.Equal(t, []int64{1}, repo.MarkedApplied)

	require.Len(t, repo.Records, 1)
	assert.Equal(t, string(model.MatchDirectID), repo.Records[0].MatchType)
	assert.Equal(t, summary.RunID, repo.Records[0].RunID)

	run := repo.Runs[summary.RunID]
	require.NotNil(t, run)
	assert.Equal(t, "completed", run.Status)
	assert.Equal(t, 1, run.CustomerMatches)
}

func TestProcessor_DryRunRecordsButDoesNotApply(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.Customers[4021] = &model.Customer{ID: 4021, Name: "John Smith"}
	repo.CustomerClients[4021] = []int64{7}
	repo.Payments[1] = &model.Payment{ID: 1, CustID: "4021", Amount: decimal.NewFromInt(50)}

	processor := newTestProcessor(repo, false)
	summary, err := processor.Run(context.Background(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Applied)
	assert.False(t, repo.UpsertCalled)
	assert.False(t, repo.MarkAppliedCalled)
	assert.False(t, repo.Payments[1].Applied)

	// Audit trail and run bookkeeping still happen on dry runs
	assert.Len(t, repo.Records, 1)
	require.NotNil(t, repo.Runs[summary.RunID])
	assert.True(t, repo.Runs[summary.RunID].DryRun)
}

func TestProcessor_SameReferenceNeverDuplicates(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.Customers[4021] = &model.Customer{ID: 4021, Name: "John Smith"}
	repo.CustomerClients[4021] = []int64{7}
	repo.Payments[1] = &model.Payment{
		ID: 1, CustID: "4021", Amount: decimal.NewFromInt(80), BankReference: "REF-1",
	}

	processor := newTestProcessor(repo, false)
	_, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	// Simulate the source flag being reset upstream; reprocessing the
	// same payment must update the existing applied row, not add one
	repo.Payments[1].Applied = false
	firstID := repo.Applied["REF-1"].ID

	_, err = processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Len(t, repo.Applied, 1)
	assert.Equal(t, firstID, repo.Applied["REF-1"].ID)
}

func TestProcessor_LookupErrorSkipsPaymentAndContinues(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.CustomerByIDErr = errors.New("db gone")
	repo.Clients[3] = &model.Client{ID: 3, AccountNumber: "555123"}
	repo.Payments[1] = &model.Payment{ID: 1, CustID: "999", Amount: decimal.NewFromInt(10)}
	repo.Payments[2] = &model.Payment{ID: 2, AccountNumber: "555123", Amount: decimal.NewFromInt(20)}

	processor := newTestProcessor(repo, false)
	summary, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.ClientMatches)
	assert.Equal(t, 1, summary.Applied)

	// Only the failed payment is missing from the audit trail
	require.Len(t, repo.Records, 1)
	assert.Equal(t, int64(2), repo.Records[0].PaymentID)
}

func TestProcessor_ApplierErrorAbortsBatch(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.UpsertErr = errors.New("disk full")
	repo.Customers[4021] = &model.Customer{ID: 4021}
	repo.CustomerClients[4021] = []int64{7}
	repo.Payments[1] = &model.Payment{ID: 1, CustID: "4021", Amount: decimal.NewFromInt(10)}

	processor := newTestProcessor(repo, false)
	_, err := processor.Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply payment 1")

	require.NotNil(t, repo.LastCompletedRun)
	assert.Equal(t, "failed", repo.LastCompletedRun.Status)
	assert.False(t, repo.Payments[1].Applied)
}

func TestProcessor_CustomerWithoutClientLinkIsNotApplied(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.Customers[4021] = &model.Customer{ID: 4021}
	repo.Payments[1] = &model.Payment{ID: 1, CustID: "4021", Amount: decimal.NewFromInt(10)}

	processor := newTestProcessor(repo, false)
	summary, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.CustomerMatches)
	assert.Zero(t, summary.Applied)
	assert.False(t, repo.UpsertCalled)
	assert.Len(t, repo.Records, 1)
}

func TestProcessor_OrderFallbackIsAuditOnly(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.OrderNames["jane roe"] = true
	repo.Payments[1] = &model.Payment{ID: 1, CustName: "Jane Roe", Amount: decimal.NewFromInt(45)}

	processor := newTestProcessor(repo, true)
	summary, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.OrderMatches)
	assert.Zero(t, summary.NoMatches)
	assert.Zero(t, summary.Applied)
	assert.False(t, repo.UpsertCalled)

	require.Len(t, repo.Records, 1)
	assert.Equal(t, string(model.MatchPaymentHistory), repo.Records[0].MatchType)
	assert.InDelta(t, 0.75, repo.Records[0].Confidence, 1e-9)
}

func TestProcessor_NoOrderFallbackLeavesUnmatched(t *testing.T) {
	repo := storage.NewMockRepository()
	repo.OrderNames["jane roe"] = true
	repo.Payments[1] = &model.Payment{ID: 1, CustName: "Jane Roe", Amount: decimal.NewFromInt(45)}

	processor := newTestProcessor(repo, false)
	summary, err := processor.Run(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.NoMatches)
	assert.Zero(t, summary.OrderMatches)
	assert.Empty(t, repo.OrderMatchRequests)

	require.Len(t, repo.Records, 1)
	assert.Equal(t, string(model.MatchNone), repo.Records[0].MatchType)
}

func TestProcessor_RepeatedRunsAreDeterministic(t *testing.T) {
	seed := func() *storage.MockRepository {
		repo := storage.NewMockRepository()
		repo.Customers[4021] = &model.Customer{ID: 4021, Name: "John Smith", Company: "Acme Corp"}
		repo.CustomerClients[4021] = []int64{7}
		repo.Clients[3] = &model.Client{ID: 3, Name: "Beta LLC", AccountNumber: "555123"}
		repo.Payments[1] = &model.Payment{ID: 1, CustID: "4021", Amount: decimal.NewFromInt(10)}
		repo.Payments[2] = &model.Payment{ID: 2, AccountNumber: "555123", Amount: decimal.NewFromInt(20)}
		repo.Payments[3] = &model.Payment{ID: 3, CustName: "Nobody Known", Amount: decimal.NewFromInt(30)}
		return repo
	}

	run := func() Summary {
		repo := seed()
		processor := newTestProcessor(repo, false)
		summary, err := processor.Run(context.Background(), Options{})
		require.NoError(t, err)
		s := *summary
		s.RunID = ""
		return s
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, first.CustomerMatches)
	assert.Equal(t, 1, first.ClientMatches)
	assert.Equal(t, 1, first.NoMatches)
	assert.Equal(t, 2, first.Applied)
}
