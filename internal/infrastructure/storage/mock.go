package storage

import (
	"context"
	"strings"
	"time"

	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	Customers       map[int64]*model.Customer
	Clients         map[int64]*model.Client
	CustomerClients map[int64][]int64 // customer id -> linked client ids
	Payments        map[int64]*model.Payment
	Applied         map[string]*AppliedPayment // keyed by payment reference
	Runs            map[string]*MatchRun
	Records         []MatchRecord
	OrderAccounts   map[string]bool // account ids with order history
	OrderNames      map[string]bool // lowercased customer names with order history
	nextAppliedID   int64
	nextRecordID    int64

	// Hooks for test assertions
	UpsertCalled        bool
	LastUpserted        *AppliedPayment
	MarkAppliedCalled   bool
	MarkedApplied       []int64
	StartRunCalled      bool
	CompleteRunCalled   bool
	LastCompletedRun    *MatchRun
	SavedRecordCount    int
	OrderMatchRequests  []matching.OrderMatchRequest
	CustomerByIDCalls   int
	ClientByAccountCall int

	// Error injection for testing error paths
	CustomerByIDErr    error
	CustomersByNameErr error
	ClientByAccountErr error
	UnappliedErr       error
	UpsertErr          error
	MarkAppliedErr     error
	StartRunErr        error
	CompleteRunErr     error
	SaveRecordErr      error
	OrderMatchErr      error
	AccountIDsErr      error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		Customers:       make(map[int64]*model.Customer),
		Clients:         make(map[int64]*model.Client),
		CustomerClients: make(map[int64][]int64),
		Payments:        make(map[int64]*model.Payment),
		Applied:         make(map[string]*AppliedPayment),
		Runs:            make(map[string]*MatchRun),
		OrderAccounts:   make(map[string]bool),
		OrderNames:      make(map[string]bool),
		nextAppliedID:   1,
		nextRecordID:    1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) CustomerByID(_ context.Context, id int64) (*model.Customer, error) {
	m.CustomerByIDCalls++
	if m.CustomerByIDErr != nil {
		return nil, m.CustomerByIDErr
	}
	return m.Customers[id], nil
}

func (m *MockRepository) CustomersByPrimaryClientID(_ context.Context, accountID string) ([]*model.Customer, error) {
	var out []*model.Customer
	for _, c := range m.Customers {
		if c.PrimaryClientID == accountID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockRepository) CustomersByName(_ context.Context, name string) ([]*model.Customer, error) {
	if m.CustomersByNameErr != nil {
		return nil, m.CustomersByNameErr
	}
	if name == "" {
		return nil, nil
	}
	var out []*model.Customer
	for _, c := range m.Customers {
		if c.Name != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockRepository) CustomersByCompany(_ context.Context, company string) ([]*model.Customer, error) {
	if company == "" {
		return nil, nil
	}
	var out []*model.Customer
	for _, c := range m.Customers {
		if c.Company != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockRepository) ClientIDsForCustomer(_ context.Context, customerID int64) ([]int64, error) {
	return m.CustomerClients[customerID], nil
}

func (m *MockRepository) ClientByAccountNumber(_ context.Context, accountNumber string) (*model.Client, error) {
	m.ClientByAccountCall++
	if m.ClientByAccountErr != nil {
		return nil, m.ClientByAccountErr
	}
	for _, c := range m.Clients {
		if c.AccountNumber == accountNumber {
			return c, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) ClientsByName(_ context.Context, name string) ([]*model.Client, error) {
	if name == "" {
		return nil, nil
	}
	var out []*model.Client
	for _, c := range m.Clients {
		if c.Name != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockRepository) ClientsByCompany(_ context.Context, company string) ([]*model.Client, error) {
	if company == "" {
		return nil, nil
	}
	var out []*model.Client
	for _, c := range m.Clients {
		if c.Company != "" {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockRepository) DistinctAccountIDs(_ context.Context) ([]string, error) {
	if m.AccountIDsErr != nil {
		return nil, m.AccountIDsErr
	}
	seen := make(map[string]bool)
	var ids []string
	for _, c := range m.Clients {
		if c.AccountNumber != "" && !seen[c.AccountNumber] {
			seen[c.AccountNumber] = true
			ids = append(ids, c.AccountNumber)
		}
	}
	return ids, nil
}

func (m *MockRepository) UnappliedPayments(_ context.Context, limit int) ([]*model.Payment, error) {
	if m.UnappliedErr != nil {
		return nil, m.UnappliedErr
	}
	var out []*model.Payment
	for _, p := range m.Payments {
		if !p.Applied {
			out = append(out, p)
		}
	}
	// Deterministic order for tests
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].ID < out[i].ID {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) MarkPaymentApplied(_ context.Context, paymentID int64) error {
	m.MarkAppliedCalled = true
	if m.MarkAppliedErr != nil {
		return m.MarkAppliedErr
	}
	if p, ok := m.Payments[paymentID]; ok {
		p.Applied = true
	}
	m.MarkedApplied = append(m.MarkedApplied, paymentID)
	return nil
}

func (m *MockRepository) UpsertAppliedPayment(_ context.Context, applied *AppliedPayment) (int64, bool, error) {
	m.UpsertCalled = true
	m.LastUpserted = applied
	if m.UpsertErr != nil {
		return 0, false, m.UpsertErr
	}
	if existing, ok := m.Applied[applied.PaymentReference]; ok {
		existing.ClientID = applied.ClientID
		existing.Amount = applied.Amount
		existing.PaymentDate = applied.PaymentDate
		existing.Notes = applied.Notes
		existing.UpdatedAt = time.Now()
		return existing.ID, false, nil
	}
	stored := *applied
	stored.ID = m.nextAppliedID
	m.nextAppliedID++
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.Applied[applied.PaymentReference] = &stored
	return stored.ID, true, nil
}

func (m *MockRepository) AppliedPaymentByReference(_ context.Context, reference string) (*AppliedPayment, error) {
	return m.Applied[reference], nil
}

func (m *MockRepository) StartRun(_ context.Context, run *MatchRun) error {
	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	stored := *run
	stored.Status = "running"
	m.Runs[run.ID] = &stored
	return nil
}

func (m *MockRepository) CompleteRun(_ context.Context, run *MatchRun) error {
	m.CompleteRunCalled = true
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	stored := *run
	m.Runs[run.ID] = &stored
	m.LastCompletedRun = &stored
	return nil
}

func (m *MockRepository) GetRun(_ context.Context, id string) (*MatchRun, error) {
	return m.Runs[id], nil
}

func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]MatchRun, error) {
	var out []MatchRun
	for _, run := range m.Runs {
		out = append(out, *run)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockRepository) SaveMatchRecord(_ context.Context, rec *MatchRecord) error {
	if m.SaveRecordErr != nil {
		return m.SaveRecordErr
	}
	rec.ID = m.nextRecordID
	m.nextRecordID++
	m.Records = append(m.Records, *rec)
	m.SavedRecordCount++
	return nil
}

func (m *MockRepository) ListMatchRecords(_ context.Context, filters MatchFilters) ([]MatchRecord, error) {
	var out []MatchRecord
	for _, rec := range m.Records {
		if filters.RunID != "" && rec.RunID != filters.RunID {
			continue
		}
		if filters.Tier != "" && rec.Tier != filters.Tier {
			continue
		}
		if filters.MatchType != "" && rec.MatchType != filters.MatchType {
			continue
		}
		out = append(out, rec)
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (m *MockRepository) GetMatchStats(_ context.Context) (*MatchStats, error) {
	stats := &MatchStats{
		ByType: make(map[string]int),
		ByTier: make(map[string]int),
	}
	for _, rec := range m.Records {
		stats.TotalEvaluated++
		stats.ByType[rec.MatchType]++
		stats.ByTier[rec.Tier]++
		if rec.MatchType == string(model.MatchNone) {
			stats.Unmatched++
		} else {
			stats.Matched++
		}
	}
	return stats, nil
}

func (m *MockRepository) MatchToOrderPayment(_ context.Context, req matching.OrderMatchRequest) (bool, error) {
	m.OrderMatchRequests = append(m.OrderMatchRequests, req)
	if m.OrderMatchErr != nil {
		return false, m.OrderMatchErr
	}
	if req.AccountID != "" {
		return m.OrderAccounts[req.AccountID], nil
	}
	return m.OrderNames[strings.ToLower(req.CustomerName)], nil
}
