package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"voicehub/internal/domain"
	"voicehub/internal/plans"
	"voicehub/internal/wallet"
)

const (
	yookassaPaymentSucceeded   = "payment.succeeded"
	yookassaPaymentCanceled    = "payment.canceled"
	yookassaWaitingForCapture  = "payment.waiting_for_capture"
	stripeCheckoutCompleted    = "checkout.session.completed"
	paymentMetadataUserIDField = "user_id"
)

type yookassaNotification struct {
	Type   string `json:"type"`
	Event  string `json:"event"`
	Object struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Paid   bool   `json:"paid"`
		Amount struct {
			Value    string `json:"value"`
			Currency string `json:"currency"`
		} `json:"amount"`
		Metadata map[string]string `json:"metadata"`
	} `json:"object"`
}

// YooKassaWebhook credits the wallet named in the payment metadata when a
// payment succeeds. Other events are acknowledged and logged. Redeliveries of
// the same payment are acknowledged without a second credit.
func (a *App) YooKassaWebhook(w http.ResponseWriter, r *http.Request) {
	if a.YooKassaToken == "" {
		a.error(w, r, http.StatusNotFound, codeWebhookDisabled)
		return
	}
	token := r.URL.Query().Get("token")
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.YooKassaToken)) != 1 {
		a.error(w, r, http.StatusUnauthorized, codeInvalidSignature)
		return
	}

	var n yookassaNotification
	if !a.decode(w, r, &n) {
		return
	}
	obj := n.Object
	log := a.Logger.With().Str("provider", "yookassa").Str("event", n.Event).Str("payment_id", obj.ID).Logger()

	switch n.Event {
	case yookassaPaymentSucceeded:
		if !obj.Paid {
			log.Warn().Str("status", obj.Status).Msg("succeeded notification without paid flag")
			break
		}
		amount, err := wallet.ParseAmount(obj.Amount.Value)
		if err != nil {
			log.Error().Str("amount", obj.Amount.Value).Msg("payment amount is not creditable")
			break
		}
		a.creditPayment(w, r, "yookassa:"+obj.ID, obj.Metadata[paymentMetadataUserIDField], amount, obj.Amount.Currency)
		return
	case yookassaPaymentCanceled:
		log.Info().Msg("payment canceled")
	case yookassaWaitingForCapture:
		log.Info().Msg("payment waiting for capture")
	default:
		log.Debug().Msg("ignored notification")
	}
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StripeWebhook credits the wallet named in the checkout session metadata
// once the session is paid.
func (a *App) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if a.StripeSecret == "" {
		a.error(w, r, http.StatusNotFound, codeWebhookDisabled)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), a.StripeSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("stripe signature verification failed")
		a.error(w, r, http.StatusBadRequest, codeInvalidSignature)
		return
	}
	log := a.Logger.With().Str("provider", "stripe").Str("event", string(event.Type)).Str("event_id", event.ID).Logger()

	if event.Type != stripeCheckoutCompleted {
		log.Debug().Msg("ignored event")
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		log.Error().Err(err).Msg("invalid checkout.session data")
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	if cs.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		log.Info().Str("session_id", cs.ID).Str("payment_status", string(cs.PaymentStatus)).Msg("checkout not paid yet")
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	amount, err := plans.FromMinorUnits(cs.AmountTotal, string(cs.Currency))
	if err != nil {
		log.Error().Err(err).Str("session_id", cs.ID).Msg("checkout currency is not creditable")
		a.json(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	a.creditPayment(w, r, "stripe:"+cs.ID, cs.Metadata[paymentMetadataUserIDField], amount, string(cs.Currency))
}

// creditPayment applies a confirmed external payment. Problems that a retry
// cannot fix are logged and acknowledged so the provider stops redelivering.
func (a *App) creditPayment(w http.ResponseWriter, r *http.Request, ref, userID string, amount decimal.Decimal, cur string) {
	log := a.Logger.With().Str("payment_ref", ref).Str("user_id", userID).Logger()
	ack := func() { a.json(w, http.StatusOK, map[string]string{"status": "ok"}) }

	if strings.TrimSpace(userID) == "" {
		log.Error().Msg("payment metadata has no user id")
		ack()
		return
	}
	if cur != "" && !strings.EqualFold(cur, a.Wallet.Currency()) {
		log.Error().Str("currency", cur).Str("wallet_currency", a.Wallet.Currency()).Msg("payment currency does not match wallet currency")
		ack()
		return
	}
	receipt, err := a.Wallet.DepositPayment(r.Context(), userID, amount, ref)
	switch {
	case err == nil:
		log.Info().Str("transaction_id", receipt.TransactionID).Str("amount", amount.StringFixed(2)).Msg("payment credited")
		ack()
	case errors.Is(err, domain.ErrDuplicatePayment):
		ack()
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidUser):
		log.Error().Err(err).Msg("payment cannot be credited")
		ack()
	default:
		// storage trouble: a non-2xx makes the provider retry later
		a.domainError(w, r, err)
	}
}
