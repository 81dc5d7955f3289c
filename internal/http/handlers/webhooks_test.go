package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82/webhook"

	"voicehub/internal/adapter/memstore"
	"voicehub/internal/plans"
	"voicehub/internal/quota"
	"voicehub/internal/wallet"
)

func yookassaBody(event, paymentID, userID, amount, currency string, paid bool) string {
	payload := map[string]any{
		"type":  "notification",
		"event": event,
		"object": map[string]any{
			"id":     paymentID,
			"status": "succeeded",
			"paid":   paid,
			"amount": map[string]string{"value": amount, "currency": currency},
			"metadata": map[string]string{
				"user_id":   userID,
				"plan_name": "Стартовый",
			},
		},
	}
	raw, _ := json.Marshal(payload)
	return string(raw)
}

func balanceOf(t *testing.T, env *testEnv, userID string) string {
	t.Helper()
	acc, err := env.store.GetAccount(context.Background(), userID)
	if err != nil {
		return "none"
	}
	return acc.Balance.StringFixed(2)
}

func TestYooKassaWebhookCreditsOnce(t *testing.T) {
	env := newTestEnv(t)
	env.app.YooKassaToken = "tkn"
	body := yookassaBody("payment.succeeded", "2c7f-01", "u1", "490.00", "RUB", true)

	for i := range 2 {
		rr := do(t, env.app.YooKassaWebhook, http.MethodPost, "/v1/webhooks/yookassa?token=tkn", "", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, body %s", i, rr.Code, rr.Body)
		}
	}
	if got := balanceOf(t, env, "u1"); got != "490.00" {
		t.Fatalf("balance = %s, want 490.00", got)
	}
	txs, _ := env.store.ListTransactions(context.Background(), "u1", 10)
	if len(txs) != 1 || txs[0].PaymentID != "yookassa:2c7f-01" {
		t.Fatalf("unexpected ledger: %+v", txs)
	}
}

func TestYooKassaWebhookIgnoresNonCreditableEvents(t *testing.T) {
	env := newTestEnv(t)
	env.app.YooKassaToken = "tkn"
	tests := map[string]string{
		"canceled":       yookassaBody("payment.canceled", "p1", "u1", "490.00", "RUB", false),
		"waiting":        yookassaBody("payment.waiting_for_capture", "p2", "u1", "490.00", "RUB", false),
		"not paid":       yookassaBody("payment.succeeded", "p3", "u1", "490.00", "RUB", false),
		"wrong currency": yookassaBody("payment.succeeded", "p4", "u1", "490.00", "USD", true),
		"no user":        yookassaBody("payment.succeeded", "p5", "", "490.00", "RUB", true),
		"bad amount":     yookassaBody("payment.succeeded", "p6", "u1", "abc", "RUB", true),
		"over ceiling":   yookassaBody("payment.succeeded", "p7", "u1", "1000000000000.00", "RUB", true),
	}
	for name, body := range tests {
		rr := do(t, env.app.YooKassaWebhook, http.MethodPost, "/v1/webhooks/yookassa?token=tkn", "", body)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", name, rr.Code)
		}
	}
	if got := balanceOf(t, env, "u1"); got != "none" {
		t.Fatalf("no event should have credited, balance = %s", got)
	}
}

func TestYooKassaWebhookAuth(t *testing.T) {
	env := newTestEnv(t)
	body := yookassaBody("payment.succeeded", "p1", "u1", "10.00", "RUB", true)

	rr := do(t, env.app.YooKassaWebhook, http.MethodPost, "/v1/webhooks/yookassa", "", body)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("disabled webhook: status = %d, want 404", rr.Code)
	}
	env.app.YooKassaToken = "tkn"
	rr = do(t, env.app.YooKassaWebhook, http.MethodPost, "/v1/webhooks/yookassa?token=nope", "", body)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", rr.Code)
	}
}

func stripeRequest(t *testing.T, secret string, event map[string]any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/stripe", bytes.NewReader(signed.Payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func checkoutEvent(sessionID, userID, status string, amountTotal int64) map[string]any {
	return checkoutEventIn("rub", sessionID, userID, status, amountTotal)
}

func checkoutEventIn(cur, sessionID, userID, status string, amountTotal int64) map[string]any {
	return map[string]any{
		"id":          "evt_" + sessionID,
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": "2020-08-27",
		"data": map[string]any{
			"object": map[string]any{
				"id":             sessionID,
				"object":         "checkout.session",
				"amount_total":   amountTotal,
				"currency":       "rub",
				"payment_status": status,
				"metadata":       map[string]string{"user_id": userID},
			},
		},
	}
}

func TestStripeWebhookCreditsPaidSession(t *testing.T) {
	env := newTestEnv(t)
	env.app.StripeSecret = "whsec_test"

	for i := range 2 {
		rr := httptest.NewRecorder()
		env.app.StripeWebhook(rr, stripeRequest(t, "whsec_test", checkoutEvent("cs_1", "u1", "paid", 199000)))
		if rr.Code != http.StatusOK {
			t.Fatalf("delivery %d: status = %d, body %s", i, rr.Code, rr.Body)
		}
	}
	if got := balanceOf(t, env, "u1"); got != "1990.00" {
		t.Fatalf("balance = %s, want 1990.00", got)
	}
}

func TestStripeWebhookSkipsUnpaidSession(t *testing.T) {
	env := newTestEnv(t)
	env.app.StripeSecret = "whsec_test"
	rr := httptest.NewRecorder()
	env.app.StripeWebhook(rr, stripeRequest(t, "whsec_test", checkoutEvent("cs_2", "u1", "unpaid", 49000)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := balanceOf(t, env, "u1"); got != "none" {
		t.Fatalf("unpaid session credited: %s", got)
	}
}

func TestStripeWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	env.app.StripeSecret = "whsec_test"
	rr := httptest.NewRecorder()
	env.app.StripeWebhook(rr, stripeRequest(t, "whsec_other", checkoutEvent("cs_3", "u1", "paid", 100)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestStripeWebhookZeroDecimalCurrency(t *testing.T) {
	store := memstore.New(func() time.Time { return testNow })
	catalog, err := plans.Default("JPY")
	if err != nil {
		t.Fatalf("plans.Default error: %v", err)
	}
	logger := zerolog.Nop()
	app := NewApp(
		wallet.NewService(store, logger, wallet.Options{Currency: "JPY"}),
		quota.NewTracker(store, catalog, logger, nil),
		catalog,
		logger,
	)
	app.StripeSecret = "whsec_test"

	rr := httptest.NewRecorder()
	app.StripeWebhook(rr, stripeRequest(t, "whsec_test", checkoutEventIn("jpy", "cs_jp", "u1", "paid", 1990)))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	acc, err := store.GetAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("GetAccount error: %v", err)
	}
	if acc.Balance.StringFixed(2) != "1990.00" {
		t.Fatalf("balance = %s, want 1990.00", acc.Balance.StringFixed(2))
	}
}
