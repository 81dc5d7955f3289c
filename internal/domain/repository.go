package domain

import (
	"context"
	"time"
)

// LedgerStore persists wallets and their transactions.
type LedgerStore interface {
	// GetAccount returns ErrNotFound when the user has no wallet.
	GetAccount(ctx context.Context, userID string) (*Account, error)
	// CreateAccount is idempotent: concurrent callers all observe the single
	// persisted row.
	CreateAccount(ctx context.Context, userID, currency string) (*Account, error)
	// PostTransaction appends tx and adjusts the balance by tx.Amount in one
	// atomic unit. A debit that would make the balance negative fails with
	// *InsufficientFundsError and leaves no trace.
	PostTransaction(ctx context.Context, tx *Transaction) (*Receipt, error)
	// ListTransactions returns the newest entries first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
}

// UsageStore persists per-user usage counters.
type UsageStore interface {
	GetCounter(ctx context.Context, userID string) (*UsageCounter, error)
	// CreateCounter is idempotent and never overwrites an existing counter.
	CreateCounter(ctx context.Context, userID string, plan PlanID, today time.Time) (*UsageCounter, error)
	// ResetIfNewPeriod zeroes the counter when today is in a later month than
	// the stored reset date. It reports whether a reset happened.
	ResetIfNewPeriod(ctx context.Context, userID string, today time.Time) (bool, error)
	// AddUsage atomically increments the counter.
	AddUsage(ctx context.Context, userID string, characters int64) (int64, error)
	// ConsumeUsage resets on a period boundary and increments in one atomic step.
	ConsumeUsage(ctx context.Context, userID string, characters int64, today time.Time) (*UsageCounter, bool, error)
	// SetPlan creates the counter if missing and assigns plan.
	SetPlan(ctx context.Context, userID string, plan PlanID, today time.Time) error
}
