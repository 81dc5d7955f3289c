// Package wallet implements balance deposits, plan charges and transaction
// history on top of a domain.LedgerStore.
package wallet

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"voicehub/internal/domain"
)

const (
	// DefaultHistoryLimit is used when a caller asks for a non-positive limit.
	DefaultHistoryLimit = 10
	// DefaultHistoryMax caps how many entries one history call may return.
	DefaultHistoryMax = 100

	amountPlaces = 2
)

// Options tunes a Service. Zero values fall back to the defaults.
type Options struct {
	Currency       string
	HistoryDefault int
	HistoryMax     int
	NewID          func() string
}

// Service is safe for concurrent use; all coordination happens in the store.
type Service struct {
	store          domain.LedgerStore
	logger         zerolog.Logger
	currency       string
	historyDefault int
	historyMax     int
	newID          func() string
}

// NewService wires a Service over store.
func NewService(store domain.LedgerStore, logger zerolog.Logger, opts Options) *Service {
	s := &Service{
		store:          store,
		logger:         logger,
		currency:       strings.ToUpper(strings.TrimSpace(opts.Currency)),
		historyDefault: opts.HistoryDefault,
		historyMax:     opts.HistoryMax,
		newID:          opts.NewID,
	}
	if s.currency == "" {
		s.currency = domain.DefaultCurrency
	}
	if s.historyDefault <= 0 {
		s.historyDefault = DefaultHistoryLimit
	}
	if s.historyMax < s.historyDefault {
		s.historyMax = max(DefaultHistoryMax, s.historyDefault)
	}
	if s.newID == nil {
		s.newID = func() string { return uuid.NewString() }
	}
	return s
}

// Currency returns the currency new wallets are opened in.
func (s *Service) Currency() string {
	return s.currency
}

// GetOrCreateWallet returns the user's wallet, opening an empty one on first
// access.
func (s *Service) GetOrCreateWallet(ctx context.Context, userID string) (*domain.Account, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, userID)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	acc, err = s.store.CreateAccount(ctx, userID, s.currency)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("user_id", userID).Str("currency", acc.Currency).Msg("wallet opened")
	return acc, nil
}

// Deposit credits amount to the user's wallet.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Receipt, error) {
	return s.deposit(ctx, userID, amount, "")
}

// DepositPayment credits amount on behalf of an external payment. A payment
// reference already on the ledger yields ErrDuplicatePayment and no change.
func (s *Service) DepositPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentRef string) (*domain.Receipt, error) {
	paymentRef = strings.TrimSpace(paymentRef)
	if paymentRef == "" {
		return nil, errors.New("wallet: payment reference is required")
	}
	return s.deposit(ctx, userID, amount, paymentRef)
}

func (s *Service) deposit(ctx context.Context, userID string, amount decimal.Decimal, paymentRef string) (*domain.Receipt, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}
	tx := &domain.Transaction{
		ID:        s.newID(),
		UserID:    userID,
		Amount:    domain.SignedAmount(domain.TransactionDeposit, amount),
		Type:      domain.TransactionDeposit,
		PaymentID: paymentRef,
	}
	receipt, err := s.store.PostTransaction(ctx, tx)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePayment) {
			s.logger.Info().Str("user_id", userID).Str("payment_id", paymentRef).Msg("payment already credited")
		} else {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("deposit failed")
		}
		return nil, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", receipt.TransactionID).
		Str("amount", amount.StringFixed(amountPlaces)).
		Str("payment_id", paymentRef).
		Msg("deposit posted")
	return receipt, nil
}

// Charge debits amount for planID. The wallet is opened even when the charge
// is then rejected for insufficient funds.
func (s *Service) Charge(ctx context.Context, userID string, amount decimal.Decimal, planID string) (*domain.Receipt, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}
	tx := &domain.Transaction{
		ID:     s.newID(),
		UserID: userID,
		Amount: domain.SignedAmount(domain.TransactionCharge, amount),
		Type:   domain.TransactionCharge,
		Plan:   planID,
	}
	receipt, err := s.store.PostTransaction(ctx, tx)
	if err != nil {
		var insufficient *domain.InsufficientFundsError
		if errors.As(err, &insufficient) {
			s.logger.Warn().
				Str("user_id", userID).
				Str("plan", planID).
				Str("required", insufficient.Required.StringFixed(amountPlaces)).
				Str("available", insufficient.Available.StringFixed(amountPlaces)).
				Msg("charge rejected")
		} else {
			s.logger.Error().Err(err).Str("user_id", userID).Str("plan", planID).Msg("charge failed")
		}
		return nil, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("transaction_id", receipt.TransactionID).
		Str("amount", amount.StringFixed(amountPlaces)).
		Str("plan", planID).
		Msg("charge posted")
	return receipt, nil
}

// ListTransactions returns the newest entries first. limit <= 0 selects the
// default; larger values are capped.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, userID, s.clampLimit(limit))
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.historyDefault
	}
	return min(limit, s.historyMax)
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return domain.ErrInvalidUser
	}
	return nil
}

// validateAmount accepts strictly positive amounts with at most two decimals,
// up to domain.MaxAmount.
func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(domain.MaxAmount) {
		return domain.ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return domain.ErrInvalidAmount
	}
	return nil
}

// ParseAmount parses a client-supplied decimal string.
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if err := validateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}
