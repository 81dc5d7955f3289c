// Package memstore is a process-local implementation of the ledger and usage
// stores. Each method holds one mutex for its whole duration, which gives the
// same atomicity the Postgres adapter gets from a single statement or
// transaction.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"voicehub/internal/domain"
)

// Store keeps wallets, transactions and usage counters in memory.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	accounts map[string]*domain.Account
	txs      map[string][]domain.Transaction
	payments map[string]string
	counters map[string]*domain.UsageCounter
}

// New returns an empty store. A nil clock defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		now:      now,
		accounts: make(map[string]*domain.Account),
		txs:      make(map[string][]domain.Transaction),
		payments: make(map[string]string),
		counters: make(map[string]*domain.UsageCounter),
	}
}

func (s *Store) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("get account", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (s *Store) CreateAccount(ctx context.Context, userID, currency string) (*domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("create account", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[userID]
	if !ok {
		now := s.now().UTC()
		acc = &domain.Account{UserID: userID, Balance: decimal.Zero, Currency: currency, CreatedAt: now, UpdatedAt: now}
		s.accounts[userID] = acc
	}
	out := *acc
	return &out, nil
}

func (s *Store) PostTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("post transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[tx.UserID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if tx.PaymentID != "" {
		if _, dup := s.payments[tx.PaymentID]; dup {
			return nil, domain.ErrDuplicatePayment
		}
	}
	next := acc.Balance.Add(tx.Amount)
	if next.IsNegative() {
		return nil, &domain.InsufficientFundsError{Required: tx.Amount.Abs(), Available: acc.Balance}
	}
	if next.GreaterThan(domain.MaxAmount) {
		return nil, domain.ErrInvalidAmount
	}
	now := s.now().UTC()
	entry := *tx
	entry.Status = domain.TransactionCompleted
	entry.CreatedAt = now
	s.txs[tx.UserID] = append(s.txs[tx.UserID], entry)
	if tx.PaymentID != "" {
		s.payments[tx.PaymentID] = tx.ID
	}
	acc.Balance = next
	acc.UpdatedAt = now
	return &domain.Receipt{TransactionID: tx.ID, NewBalance: next, AmountCharged: tx.Amount.Abs(), CreatedAt: now}, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("list transactions", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.txs[userID]
	if limit <= 0 {
		return []domain.Transaction{}, nil
	}
	out := make([]domain.Transaction, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *Store) GetCounter(ctx context.Context, userID string) (*domain.UsageCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("get usage counter", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (s *Store) CreateCounter(ctx context.Context, userID string, plan domain.PlanID, today time.Time) (*domain.UsageCounter, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.StorageError("create usage counter", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		c = &domain.UsageCounter{UserID: userID, LastResetDate: domain.DateOf(today), Plan: plan, UpdatedAt: s.now().UTC()}
		s.counters[userID] = c
	}
	out := *c
	return &out, nil
}

func (s *Store) ResetIfNewPeriod(ctx context.Context, userID string, today time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.StorageError("reset usage", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	return s.resetLocked(c, today), nil
}

func (s *Store) AddUsage(ctx context.Context, userID string, characters int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.StorageError("add usage", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	c.CharactersUsed += characters
	c.TotalCharacters += characters
	c.TotalGenerations++
	c.UpdatedAt = s.now().UTC()
	return c.CharactersUsed, nil
}

func (s *Store) ConsumeUsage(ctx context.Context, userID string, characters int64, today time.Time) (*domain.UsageCounter, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, domain.StorageError("consume usage", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		return nil, false, domain.ErrNotFound
	}
	reset := s.resetLocked(c, today)
	c.CharactersUsed += characters
	c.TotalCharacters += characters
	c.TotalGenerations++
	c.UpdatedAt = s.now().UTC()
	out := *c
	return &out, reset, nil
}

func (s *Store) SetPlan(ctx context.Context, userID string, plan domain.PlanID, today time.Time) error {
	if err := ctx.Err(); err != nil {
		return domain.StorageError("set plan", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[userID]
	if !ok {
		c = &domain.UsageCounter{UserID: userID, LastResetDate: domain.DateOf(today)}
		s.counters[userID] = c
	}
	c.Plan = plan
	c.UpdatedAt = s.now().UTC()
	return nil
}

func (s *Store) resetLocked(c *domain.UsageCounter, today time.Time) bool {
	if !domain.NeedsReset(c.LastResetDate, today) {
		return false
	}
	c.CharactersUsed = 0
	c.LastResetDate = domain.DateOf(today)
	c.UpdatedAt = s.now().UTC()
	return true
}

var (
	_ domain.LedgerStore = (*Store)(nil)
	_ domain.UsageStore  = (*Store)(nil)
)
