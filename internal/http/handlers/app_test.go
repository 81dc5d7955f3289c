package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicehub/internal/adapter/memstore"
	"voicehub/internal/middleware"
	"voicehub/internal/plans"
	"voicehub/internal/quota"
	"voicehub/internal/wallet"
)

var testNow = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	app   *App
	store *memstore.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := func() time.Time { return testNow }
	store := memstore.New(now)
	catalog, err := plans.Default("RUB")
	if err != nil {
		t.Fatalf("plans.Default error: %v", err)
	}
	logger := zerolog.Nop()
	app := NewApp(
		wallet.NewService(store, logger, wallet.Options{Currency: "RUB"}),
		quota.NewTracker(store, catalog, logger, now),
		catalog,
		logger,
	)
	return &testEnv{app: app, store: store}
}

// do runs handler with an optional authenticated user and JSON body.
func do(t *testing.T, handler http.HandlerFunc, method, target, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	ctx := middleware.ContextWithUserID(req.Context(), userID)
	ctx = context.WithValue(ctx, middleware.LocaleKey, middleware.LocaleEN)
	rr := httptest.NewRecorder()
	handler(rr, req.WithContext(ctx))
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	e, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("response has no error envelope: %v", body)
	}
	return e["code"].(string)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, env.app.Health, http.MethodGet, "/v1/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	env.app.Ping = func(context.Context) error { return errors.New("db down") }
	rr = do(t, env.app.Health, http.MethodGet, "/v1/healthz", "", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestListPlans(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, env.app.ListPlans, http.MethodGet, "/v1/plans", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var payload struct {
		Currency string         `json:"currency"`
		Plans    []planResponse `json:"plans"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Currency != "RUB" || len(payload.Plans) != 4 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Plans[1].ID != "starter" || payload.Plans[1].Price.String() != "490.00" {
		t.Fatalf("unexpected starter entry: %+v", payload.Plans[1])
	}
	if !payload.Plans[3].Unlimited || payload.Plans[3].Quota != plans.Unlimited {
		t.Fatalf("business should be unlimited: %+v", payload.Plans[3])
	}
}

func TestMessageFallsBackToEnglish(t *testing.T) {
	if got := message("de", codeUnknownPlan); got != "Unknown plan" {
		t.Fatalf("message(de) = %q", got)
	}
	if got := message(middleware.LocaleRU, codeUnknownPlan); got != "Неизвестный тариф" {
		t.Fatalf("message(ru) = %q", got)
	}
	if got := message("en", "no_such_code"); got != "no_such_code" {
		t.Fatalf("message(unknown) = %q", got)
	}
}
