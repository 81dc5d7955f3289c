package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType enumerates ledger entry kinds.
type TransactionType string

const (
	TransactionDeposit TransactionType = "deposit"
	TransactionCharge  TransactionType = "charge"
)

// TransactionStatus enumerates ledger entry states. Entries are written
// already completed; there is no pending state.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
)

// MaxAmount is the largest amount or balance a wallet column can hold.
var MaxAmount = decimal.RequireFromString("999999999999.99")

// DefaultCurrency is used when a wallet is created without an explicit currency.
const DefaultCurrency = "RUB"

// Account is the per-user wallet. One account exists per user.
type Account struct {
	UserID    string
	Balance   decimal.Decimal
	Currency  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transaction is an immutable ledger entry. Amount is positive for deposits
// and negative for charges.
type Transaction struct {
	ID        string
	UserID    string
	Amount    decimal.Decimal
	Type      TransactionType
	Plan      string
	Status    TransactionStatus
	PaymentID string
	CreatedAt time.Time
}

// Receipt is returned by balance mutations.
type Receipt struct {
	TransactionID string
	NewBalance    decimal.Decimal
	AmountCharged decimal.Decimal
	CreatedAt     time.Time
}

// SignedAmount returns amount with the sign required by the transaction type.
func SignedAmount(t TransactionType, amount decimal.Decimal) decimal.Decimal {
	abs := amount.Abs()
	if t == TransactionCharge {
		return abs.Neg()
	}
	return abs
}
