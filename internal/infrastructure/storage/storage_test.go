package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

func createTempDB(t *testing.T) string {
	tmpFile, err := os.CreateTemp("", "test_*.db")
	require.NoError(t, err)
	tmpFile.Close()
	return tmpFile.Name()
}

func openTestStorage(t *testing.T) *Storage {
	tmpDB := createTempDB(t)
	t.Cleanup(func() { os.Remove(tmpDB) })

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedCustomer(t *testing.T, store *Storage, c model.Customer) {
	_, err := store.db.Exec(
		"INSERT INTO customers (id, name, company, primary_client_id) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Company, c.PrimaryClientID)
	require.NoError(t, err)
}

func seedClient(t *testing.T, store *Storage, c model.Client) {
	_, err := store.db.Exec(
		"INSERT INTO clients (id, name, company, account_number) VALUES (?, ?, ?, ?)",
		c.ID, c.Name, c.Company, c.AccountNumber)
	require.NoError(t, err)
}

func seedPayment(t *testing.T, store *Storage, p model.Payment) {
	_, err := store.db.Exec(`
		INSERT INTO wf_payments
		(id, cust_id, cust_name, comp_name, account_number, full_sub_account,
		 acct, acct_no, sub_account, amount, payment_date, bank_reference, applied)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.CustID, p.CustName, p.CompName, p.AccountNumber, p.FullSubAccount,
		p.ACCT, p.AcctNo, p.SubAccount, p.Amount.String(), p.Date, p.BankReference, p.Applied)
	require.NoError(t, err)
}

func TestStorage_MigrationsAreIdempotent(t *testing.T) {
	tmpDB := createTempDB(t)
	defer os.Remove(tmpDB)

	store, err := NewStorage(tmpDB)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs migrations again against the same file
	store, err = NewStorage(tmpDB)
	require.NoError(t, err)
	defer store.Close()

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, len(allMigrations), count)
}

func TestStorage_CustomerLookups(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	seedCustomer(t, store, model.Customer{ID: 101, Name: "John Smith", Company: "Acme Corp", PrimaryClientID: "12345678"})
	seedCustomer(t, store, model.Customer{ID: 102, Name: "Jane Roe", Company: ""})

	got, err := store.CustomerByID(ctx, 101)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "John Smith", got.Name)
	assert.Equal(t, "12345678", got.PrimaryClientID)

	missing, err := store.CustomerByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	byPrimary, err := store.CustomersByPrimaryClientID(ctx, "12345678")
	require.NoError(t, err)
	require.Len(t, byPrimary, 1)
	assert.Equal(t, int64(101), byPrimary[0].ID)

	// Name candidates exclude customers without a name, company candidates
	// exclude customers without a company
	byName, err := store.CustomersByName(ctx, "anything")
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	byCompany, err := store.CustomersByCompany(ctx, "anything")
	require.NoError(t, err)
	require.Len(t, byCompany, 1)
	assert.Equal(t, int64(101), byCompany[0].ID)

	// Empty input short-circuits without hitting the table
	empty, err := store.CustomersByName(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStorage_ClientIDsForCustomer_PrimaryFirst(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	seedCustomer(t, store, model.Customer{ID: 201, Name: "Alice"})
	seedClient(t, store, model.Client{ID: 1, AccountNumber: "111"})
	seedClient(t, store, model.Client{ID: 2, AccountNumber: "222"})
	seedClient(t, store, model.Client{ID: 3, AccountNumber: "333"})

	for _, link := range []struct {
		clientID int64
		primary  int
	}{{1, 0}, {2, 1}, {3, 0}} {
		_, err := store.db.Exec(
			"INSERT INTO customer_clients (customer_id, client_id, is_primary) VALUES (?, ?, ?)",
			201, link.clientID, link.primary)
		require.NoError(t, err)
	}

	ids, err := store.ClientIDsForCustomer(ctx, 201)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 1, 3}, ids)
}

func TestStorage_ClientLookupsAndAccountIDs(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	seedClient(t, store, model.Client{ID: 1, Name: "Acme Corp", Company: "Acme Corp", AccountNumber: "12345678"})
	seedClient(t, store, model.Client{ID: 2, Name: "Beta LLC", AccountNumber: "87654321"})
	seedClient(t, store, model.Client{ID: 3, Name: "No Account"})

	byAccount, err := store.ClientByAccountNumber(ctx, "12345678")
	require.NoError(t, err)
	require.NotNil(t, byAccount)
	assert.Equal(t, int64(1), byAccount.ID)

	missing, err := store.ClientByAccountNumber(ctx, "00000000")
	require.NoError(t, err)
	assert.Nil(t, missing)

	ids, err := store.DistinctAccountIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"12345678", "87654321"}, ids)
}

func TestStorage_UnappliedPayments(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	seedPayment(t, store, model.Payment{
		ID: 1, CustName: "John Smith", Amount: decimal.NewFromFloat(100.50),
		Date: base.AddDate(0, 0, 2), BankReference: "REF-1",
	})
	seedPayment(t, store, model.Payment{
		ID: 2, CustName: "Jane Roe", Amount: decimal.NewFromInt(75),
		Date: base, BankReference: "REF-2",
	})
	seedPayment(t, store, model.Payment{
		ID: 3, CustName: "Already Done", Amount: decimal.NewFromInt(10),
		Date: base, Applied: true,
	})

	payments, err := store.UnappliedPayments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, payments, 2)

	// Oldest first
	assert.Equal(t, int64(2), payments[0].ID)
	assert.Equal(t, int64(1), payments[1].ID)
	assert.True(t, payments[1].Amount.Equal(decimal.NewFromFloat(100.50)))

	limited, err := store.UnappliedPayments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(2), limited[0].ID)

	require.NoError(t, store.MarkPaymentApplied(ctx, 2))
	remaining, err := store.UnappliedPayments(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(1), remaining[0].ID)

	err = store.MarkPaymentApplied(ctx, 999)
	assert.Error(t, err)
}

func TestStorage_UpsertAppliedPayment_SameReferenceUpdatesInPlace(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	applied := &AppliedPayment{
		ClientID:         42,
		Amount:           decimal.NewFromFloat(250.75),
		PaymentDate:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Notes:            "Payment from John Smith",
		PaymentReference: "WF-1001",
	}

	id1, created, err := store.UpsertAppliedPayment(ctx, applied)
	require.NoError(t, err)
	assert.True(t, created)

	// Same reference again with different details updates the existing row
	applied.ClientID = 43
	applied.Amount = decimal.NewFromInt(300)
	id2, created, err := store.UpsertAppliedPayment(ctx, applied)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	var count int
	err = store.db.QueryRow("SELECT COUNT(*) FROM applied_payments").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := store.AppliedPaymentByReference(ctx, "WF-1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(43), got.ClientID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(300)))

	missing, err := store.AppliedPaymentByReference(ctx, "WF-9999")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_MatchRunLifecycle(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	run := &MatchRun{
		ID:        "run-abc",
		StartedAt: time.Now().UTC().Format(time.RFC3339),
		Limit:     50,
		DryRun:    true,
	}
	require.NoError(t, store.StartRun(ctx, run))

	got, err := store.GetRun(ctx, "run-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "running", got.Status)
	assert.True(t, got.DryRun)
	assert.Equal(t, 50, got.Limit)

	run.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	run.PaymentsFound = 10
	run.CustomerMatches = 6
	run.ClientMatches = 2
	run.NoMatches = 2
	run.HighConfidence = 7
	run.MediumConfidence = 1
	run.Status = "completed"
	require.NoError(t, store.CompleteRun(ctx, run))

	got, err = store.GetRun(ctx, "run-abc")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, 10, got.PaymentsFound)
	assert.Equal(t, 6, got.CustomerMatches)
	assert.NotEmpty(t, got.CompletedAt)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	missing, err := store.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStorage_MatchRecordsAndStats(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	run := &MatchRun{ID: "run-1", StartedAt: time.Now().UTC().Format(time.RFC3339)}
	require.NoError(t, store.StartRun(ctx, run))

	records := []MatchRecord{
		{RunID: "run-1", PaymentID: 1, EntityKind: "customer", EntityID: 101,
			MatchType: "direct_id", Tier: "high", Confidence: 1.0},
		{RunID: "run-1", PaymentID: 2, EntityKind: "client", EntityID: 7,
			MatchType: "client_match", Tier: "medium", Confidence: 0.55,
			NameScore: 0.8, CompanyScore: 0.3, AccountScore: 0.5},
		{RunID: "run-1", PaymentID: 3, MatchType: "no_match", Tier: "none"},
	}
	for i := range records {
		require.NoError(t, store.SaveMatchRecord(ctx, &records[i]))
		assert.NotZero(t, records[i].ID)
	}

	all, err := store.ListMatchRecords(ctx, MatchFilters{RunID: "run-1"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	medium, err := store.ListMatchRecords(ctx, MatchFilters{Tier: "medium"})
	require.NoError(t, err)
	require.Len(t, medium, 1)
	assert.Equal(t, int64(2), medium[0].PaymentID)
	assert.InDelta(t, 0.55, medium[0].Confidence, 1e-9)

	byType, err := store.ListMatchRecords(ctx, MatchFilters{MatchType: "direct_id"})
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	stats, err := store.GetMatchStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEvaluated)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Unmatched)
	assert.Equal(t, 1, stats.ByType["direct_id"])
	assert.Equal(t, 1, stats.ByTier["none"])
}

func TestStorage_MatchToOrderPayment(t *testing.T) {
	store := openTestStorage(t)
	ctx := context.Background()

	_, err := store.db.Exec(`
		INSERT INTO order_payments (account_id, customer_name, payment_type, amount)
		VALUES ('12345678', 'John Smith', 1, '99.00'),
		       ('', 'Jane Roe', 2, '45.00')
	`)
	require.NoError(t, err)

	matched, err := store.MatchToOrderPayment(ctx, matching.OrderMatchRequest{AccountID: "12345678"})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = store.MatchToOrderPayment(ctx, matching.OrderMatchRequest{AccountID: "00000000"})
	require.NoError(t, err)
	assert.False(t, matched)

	// Name path is case-insensitive
	matched, err = store.MatchToOrderPayment(ctx, matching.OrderMatchRequest{CustomerName: "JANE ROE"})
	require.NoError(t, err)
	assert.True(t, matched)

	matched, err = store.MatchToOrderPayment(ctx, matching.OrderMatchRequest{CustomerName: "Nobody"})
	require.NoError(t, err)
	assert.False(t, matched)
}
