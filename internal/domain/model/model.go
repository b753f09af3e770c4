// Package model defines the domain records exchanged between the matching
// core and its repository collaborators.
package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Payment is a raw bank payment record awaiting application. It is an
// immutable input to the matcher; the core never writes to it.
type Payment struct {
	ID             int64
	CustID         string // raw text, possibly non-numeric
	CustName       string
	CompName       string
	AccountNumber  string
	FullSubAccount string
	ACCT           string
	AcctNo         string
	SubAccount     string
	Amount         decimal.Decimal
	Date           time.Time
	BankReference  string
	Applied        bool
}

// AccountFields returns the account-number-like fields in their fixed
// priority order. Scoring takes the maximum across this list.
func (p *Payment) AccountFields() []string {
	return []string{p.AccountNumber, p.FullSubAccount, p.ACCT, p.AcctNo, p.SubAccount}
}

// Reference returns the stable reference used to key applied-payment rows.
// Falls back to the payment id when the bank reference is blank.
func (p *Payment) Reference() string {
	if p.BankReference != "" {
		return p.BankReference
	}
	return "WF-" + strconv.FormatInt(p.ID, 10)
}

// Customer is an individual payer record, linked to one or more clients.
type Customer struct {
	ID              int64
	Name            string
	Company         string
	PrimaryClientID string // account identifier of the customer's primary client
}

// Client is a billing entity that receives payments, identified by an
// account number.
type Client struct {
	ID            int64
	Name          string
	Company       string
	AccountNumber string
}

// EntityKind identifies which kind of entity a match points at.
type EntityKind string

const (
	KindCustomer EntityKind = "customer"
	KindClient   EntityKind = "client"
)

// MatchType tags how a match was established.
type MatchType string

const (
	MatchDirectID       MatchType = "direct_id"
	MatchDirectAccount  MatchType = "direct_account"
	MatchCustomer       MatchType = "customer_match"
	MatchClient         MatchType = "client_match"
	MatchNone           MatchType = "no_match"
	MatchOrderAccount   MatchType = "order_account"
	MatchPaymentHistory MatchType = "payment_history"
)

