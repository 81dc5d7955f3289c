package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidUser        = errors.New("invalid user id")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrUnknownPlan        = errors.New("unknown plan")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrDuplicatePayment   = errors.New("duplicate payment")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrRequestTooLarge    = errors.New("request exceeds per-request character limit")
)

// InsufficientFundsError carries the amounts involved in a rejected charge.
type InsufficientFundsError struct {
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required %s, available %s", e.Required.StringFixed(2), e.Available.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// StorageError wraps a failure of the underlying store as ErrStorageUnavailable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
