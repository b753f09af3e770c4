package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paymentops/payment-match-backend/internal/domain/confidence"
	"github.com/paymentops/payment-match-backend/internal/domain/model"
)

// Confidence assigned to the two order-history match paths. An exact
// account hit against the order ledger is nearly certain; a name-plus-
// payment-history hit is useful but weaker.
const (
	orderAccountConfidence   = 0.95
	paymentHistoryConfidence = 0.75
)

// OrderMatchRequest carries the payment fields the order repository needs
// to attempt a historical match.
type OrderMatchRequest struct {
	PaymentID    int64
	AccountID    string // empty triggers the payment-history path
	CustomerName string
	Amount       decimal.Decimal
	Date         time.Time
	Reference    string
}

// OrderPaymentLookup is the collaborator for the order-history fallback.
type OrderPaymentLookup interface {
	// MatchToOrderPayment attempts to link the payment to an order
	// payment record; reports whether a link was made.
	MatchToOrderPayment(ctx context.Context, req OrderMatchRequest) (bool, error)
}

// OrderMatcher is an optional fallback that matches payments against
// historical order payment patterns. It sits outside the required
// customer/client decision path; the batch processor only consults it for
// payments the engine left unmatched.
type OrderMatcher struct {
	orders     OrderPaymentLookup
	thresholds confidence.Thresholds
	logger     *slog.Logger
}

// NewOrderMatcher creates the order-history fallback matcher.
func NewOrderMatcher(orders OrderPaymentLookup, thresholds confidence.Thresholds, logger *slog.Logger) *OrderMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderMatcher{orders: orders, thresholds: thresholds, logger: logger}
}

// Match attempts an order-based match for a payment the engine could not
// place. Returns nil when no order match was found.
func (m *OrderMatcher) Match(ctx context.Context, payment *model.Payment, known AccountSet) (*Result, error) {
	accountID := ""
	for _, field := range discoveryAccountFields(payment) {
		if field != "" && isDigits(field) && known.Contains(field) {
			accountID = field
			break
		}
	}

	if accountID == "" && payment.CustName == "" {
		m.logger.Debug("not enough information for order matching", "payment_id", payment.ID)
		return nil, nil
	}

	if accountID != "" {
		matched, err := m.orders.MatchToOrderPayment(ctx, OrderMatchRequest{
			PaymentID:    payment.ID,
			AccountID:    accountID,
			CustomerName: payment.CustName,
			Amount:       payment.Amount,
			Date:         payment.Date,
			Reference:    payment.Reference(),
		})
		if err != nil {
			return nil, fmt.Errorf("order match for payment %d: %w", payment.ID, err)
		}
		if matched {
			m.logger.Info("matched payment by order account",
				"payment_id", payment.ID, "account_id", accountID)
			return &Result{
				Kind:       model.KindClient,
				Confidence: orderAccountConfidence,
				Type:       model.MatchOrderAccount,
				Tier:       m.thresholds.Tier(orderAccountConfidence),
			}, nil
		}
		m.logger.Warn("order account known but no order payment linked",
			"payment_id", payment.ID, "account_id", accountID)
	}

	if payment.CustName != "" {
		matched, err := m.orders.MatchToOrderPayment(ctx, OrderMatchRequest{
			PaymentID:    payment.ID,
			CustomerName: payment.CustName,
			Amount:       payment.Amount,
			Date:         payment.Date,
			Reference:    payment.Reference(),
		})
		if err != nil {
			return nil, fmt.Errorf("payment history match for payment %d: %w", payment.ID, err)
		}
		if matched {
			m.logger.Info("matched payment by payment history",
				"payment_id", payment.ID, "customer_name", payment.CustName)
			return &Result{
				Kind:       model.KindClient,
				Confidence: paymentHistoryConfidence,
				Type:       model.MatchPaymentHistory,
				Tier:       m.thresholds.Tier(paymentHistoryConfidence),
			}, nil
		}
	}

	return nil, nil
}
