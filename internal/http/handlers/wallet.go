package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"voicehub/internal/domain"
)

type walletResponse struct {
	UserID    string      `json:"user_id"`
	Balance   json.Number `json:"balance"`
	Currency  string      `json:"currency"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type transactionResponse struct {
	ID        string      `json:"id"`
	Amount    json.Number `json:"amount"`
	Type      string      `json:"type"`
	Plan      *string     `json:"plan"`
	Status    string      `json:"status"`
	PaymentID *string     `json:"payment_id"`
	CreatedAt time.Time   `json:"created_at"`
}

type receiptResponse struct {
	TransactionID string       `json:"transaction_id,omitempty"`
	NewBalance    json.Number  `json:"new_balance"`
	AmountCharged *json.Number `json:"amount_charged,omitempty"`
	Plan          string       `json:"plan,omitempty"`
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type chargeRequest struct {
	Plan string `json:"plan" validate:"required,max=64"`
}

func toWalletResponse(acc *domain.Account) walletResponse {
	return walletResponse{
		UserID:    acc.UserID,
		Balance:   money(acc.Balance),
		Currency:  acc.Currency,
		CreatedAt: acc.CreatedAt,
		UpdatedAt: acc.UpdatedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// GetWallet returns the caller's wallet and recent transactions, opening the
// wallet on first access.
func (a *App) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.error(w, r, http.StatusBadRequest, codeBadRequest)
			return
		}
		limit = n
	}

	acc, err := a.Wallet.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	txs, err := a.Wallet.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionResponse{
			ID:        tx.ID,
			Amount:    money(tx.Amount),
			Type:      string(tx.Type),
			Plan:      optional(tx.Plan),
			Status:    string(tx.Status),
			PaymentID: optional(tx.PaymentID),
			CreatedAt: tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{
		"wallet":       toWalletResponse(acc),
		"transactions": items,
	})
}

// Deposit credits the caller's wallet.
func (a *App) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req depositRequest
	if !a.decode(w, r, &req) {
		return
	}
	receipt, err := a.Wallet.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, receiptResponse{
		TransactionID: receipt.TransactionID,
		NewBalance:    money(receipt.NewBalance),
	})
}

// Charge buys a plan: the catalog price is debited and the plan is assigned
// to the caller's usage counter.
func (a *App) Charge(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req chargeRequest
	if !a.decode(w, r, &req) {
		return
	}
	planID, err := a.Catalog.Resolve(req.Plan)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	price, err := a.Catalog.PriceOf(string(planID))
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	// free plans switch without touching the ledger
	if price.IsZero() {
		if _, err := a.Quota.AssignPlan(r.Context(), userID, string(planID)); err != nil {
			a.domainError(w, r, err)
			return
		}
		acc, err := a.Wallet.GetOrCreateWallet(r.Context(), userID)
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		zero := money(decimal.Zero)
		a.json(w, http.StatusOK, receiptResponse{NewBalance: money(acc.Balance), AmountCharged: &zero, Plan: string(planID)})
		return
	}

	receipt, err := a.Wallet.Charge(r.Context(), userID, price, string(planID))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if _, err := a.Quota.AssignPlan(r.Context(), userID, string(planID)); err != nil {
		// the charge is committed; operators reconcile from this log line
		a.Logger.Error().Err(err).
			Str("user_id", userID).
			Str("transaction_id", receipt.TransactionID).
			Str("plan", string(planID)).
			Msg("plan assignment failed after charge")
	}
	charged := money(receipt.AmountCharged)
	a.json(w, http.StatusOK, receiptResponse{
		TransactionID: receipt.TransactionID,
		NewBalance:    money(receipt.NewBalance),
		AmountCharged: &charged,
		Plan:          string(planID),
	})
}
