package storage

import (
	"context"

	"github.com/paymentops/payment-match-backend/internal/domain/matching"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// Repository defines the complete storage interface. It aggregates the
// per-concern repositories so callers can depend on exactly what they
// need, and makes testing with the in-memory mock straightforward.
type Repository interface {
	CustomerRepository
	ClientRepository
	AccountRepository
	PaymentRepository
	ApplierRepository
	RunRepository
	OrderPaymentRepository
	Close() error
}

// CustomerRepository looks up customer candidates. The lookup methods
// satisfy matching.CustomerLookup.
type CustomerRepository interface {
	CustomerByID(ctx context.Context, id int64) (*model.Customer, error)
	CustomersByPrimaryClientID(ctx context.Context, accountID string) ([]*model.Customer, error)
	CustomersByName(ctx context.Context, name string) ([]*model.Customer, error)
	CustomersByCompany(ctx context.Context, company string) ([]*model.Customer, error)

	// ClientIDsForCustomer returns the ids of clients linked to a
	// customer, primary first.
	ClientIDsForCustomer(ctx context.Context, customerID int64) ([]int64, error)
}

// ClientRepository looks up client candidates; satisfies
// matching.ClientLookup.
type ClientRepository interface {
	ClientByAccountNumber(ctx context.Context, accountNumber string) (*model.Client, error)
	ClientsByName(ctx context.Context, name string) ([]*model.Client, error)
	ClientsByCompany(ctx context.Context, company string) ([]*model.Client, error)
}

// AccountRepository supplies the known-accounts set loaded once per batch.
type AccountRepository interface {
	DistinctAccountIDs(ctx context.Context) ([]string, error)
}

// PaymentRepository is the batch source of unapplied payments.
type PaymentRepository interface {
	// UnappliedPayments returns up to limit payments not yet applied,
	// oldest first.
	UnappliedPayments(ctx context.Context, limit int) ([]*model.Payment, error)

	// MarkPaymentApplied flips the applied flag on a source payment.
	MarkPaymentApplied(ctx context.Context, paymentID int64) error
}

// ApplierRepository persists decided matches.
type ApplierRepository interface {
	// UpsertAppliedPayment creates or updates the applied-payment row
	// keyed by its payment reference. Reports whether a new row was
	// created. The same reference never produces two rows.
	UpsertAppliedPayment(ctx context.Context, applied *AppliedPayment) (int64, bool, error)

	// AppliedPaymentByReference fetches an applied payment, nil when absent.
	AppliedPaymentByReference(ctx context.Context, reference string) (*AppliedPayment, error)
}

// RunRepository tracks batch runs and the per-payment match audit trail.
type RunRepository interface {
	StartRun(ctx context.Context, run *MatchRun) error
	CompleteRun(ctx context.Context, run *MatchRun) error
	GetRun(ctx context.Context, id string) (*MatchRun, error)
	ListRuns(ctx context.Context, limit int) ([]MatchRun, error)

	SaveMatchRecord(ctx context.Context, rec *MatchRecord) error
	ListMatchRecords(ctx context.Context, filters MatchFilters) ([]MatchRecord, error)
	GetMatchStats(ctx context.Context) (*MatchStats, error)
}

// OrderPaymentRepository backs the optional order-history fallback;
// satisfies matching.OrderPaymentLookup.
type OrderPaymentRepository interface {
	MatchToOrderPayment(ctx context.Context, req matching.OrderMatchRequest) (bool, error)
}
