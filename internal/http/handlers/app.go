package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"voicehub/internal/domain"
	"voicehub/internal/middleware"
	"voicehub/internal/plans"
	"voicehub/internal/quota"
)

const maxBodyBytes = 64 << 10

// WalletService is the wallet behaviour the HTTP layer depends on.
type WalletService interface {
	Currency() string
	GetOrCreateWallet(ctx context.Context, userID string) (*domain.Account, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Receipt, error)
	DepositPayment(ctx context.Context, userID string, amount decimal.Decimal, paymentRef string) (*domain.Receipt, error)
	Charge(ctx context.Context, userID string, amount decimal.Decimal, planID string) (*domain.Receipt, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
}

// QuotaTracker is the usage behaviour the HTTP layer depends on.
type QuotaTracker interface {
	Snapshot(ctx context.Context, userID string) (quota.Snapshot, error)
	Allow(ctx context.Context, userID string, n int64) (quota.Snapshot, error)
	Consume(ctx context.Context, userID string, n int64) (quota.Snapshot, error)
	AssignPlan(ctx context.Context, userID, planID string) (domain.PlanID, error)
}

// App carries the dependencies shared by all handlers.
type App struct {
	Wallet   WalletService
	Quota    QuotaTracker
	Catalog  *plans.Catalog
	Logger   zerolog.Logger
	Validate *validator.Validate

	// Ping reports storage health. Nil means always healthy.
	Ping func(ctx context.Context) error

	YooKassaToken string
	StripeSecret  string
}

func NewApp(wallet WalletService, tracker QuotaTracker, catalog *plans.Catalog, logger zerolog.Logger) *App {
	return &App{
		Wallet:   wallet,
		Quota:    tracker,
		Catalog:  catalog,
		Logger:   logger,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the standard error envelope with a message in the request's
// locale.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	a.errorWith(w, r, status, code, nil)
}

func (a *App) errorWith(w http.ResponseWriter, r *http.Request, status int, code string, extra map[string]any) {
	body := map[string]any{
		"code":    code,
		"message": message(middleware.LocaleFromContext(r.Context()), code),
	}
	for k, v := range extra {
		body[k] = v
	}
	a.json(w, status, map[string]any{"error": body})
}

// domainError maps service errors onto HTTP statuses.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	var insufficient *domain.InsufficientFundsError
	switch {
	case errors.As(err, &insufficient):
		a.errorWith(w, r, http.StatusPaymentRequired, codeInsufficientFunds, map[string]any{
			"required":  money(insufficient.Required),
			"available": money(insufficient.Available),
		})
	case errors.Is(err, domain.ErrInvalidAmount):
		a.error(w, r, http.StatusBadRequest, codeInvalidAmount)
	case errors.Is(err, domain.ErrInvalidUser):
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
	case errors.Is(err, domain.ErrUnknownPlan):
		a.error(w, r, http.StatusBadRequest, codeUnknownPlan)
	case errors.Is(err, domain.ErrQuotaExceeded):
		a.error(w, r, http.StatusForbidden, codeQuotaExceeded)
	case errors.Is(err, domain.ErrRequestTooLarge):
		a.error(w, r, http.StatusBadRequest, codeTextTooLong)
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, r, http.StatusNotFound, codeNotFound)
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("storage unavailable")
		a.error(w, r, http.StatusServiceUnavailable, codeUnavailable)
	default:
		a.Logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.RequestIDFromContext(r.Context())).Msg("unhandled error")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
	}
}

// decode reads a JSON body into dst and validates it.
func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return false
	}
	if err := a.Validate.Struct(dst); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return false
	}
	return true
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
