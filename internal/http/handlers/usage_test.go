package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGetUsageDefaultsToFreePlan(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, env.app.GetUsage, http.MethodGet, "/v1/usage", "u1", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["plan"] != "free" || body["character_limit"].(float64) != 5000 || body["characters_remaining"].(float64) != 5000 {
		t.Fatalf("unexpected usage: %v", body)
	}
	if body["unlimited"].(bool) {
		t.Fatal("free plan reported unlimited")
	}
}

func TestConsumeCountsRunes(t *testing.T) {
	env := newTestEnv(t)
	rr := do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", `{"text": "  Привет, мир  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	body := decodeBody(t, rr)
	if body["characters"].(float64) != 11 {
		t.Fatalf("characters = %v, want 11", body["characters"])
	}
	usage := body["usage"].(map[string]any)
	if usage["characters_used"].(float64) != 11 || usage["characters_remaining"].(float64) != 4989 {
		t.Fatalf("unexpected usage: %v", usage)
	}
}

func TestConsumeRejections(t *testing.T) {
	env := newTestEnv(t)

	rr := do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", `{}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty body: status = %d, want 400", rr.Code)
	}

	long := `{"text": "` + strings.Repeat("a", 5001) + `"}`
	rr = do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", long)
	if rr.Code != http.StatusBadRequest || errorCode(t, rr) != codeTextTooLong {
		t.Fatalf("long text: status = %d, want 400 text_too_long", rr.Code)
	}

	rr = do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", `{"characters": 4990}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("consume 4990: status = %d", rr.Code)
	}
	rr = do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", `{"characters": 11}`)
	if rr.Code != http.StatusForbidden || errorCode(t, rr) != codeQuotaExceeded {
		t.Fatalf("over quota: status = %d, want 403 quota_exceeded", rr.Code)
	}

	rr = do(t, env.app.GetUsage, http.MethodGet, "/v1/usage", "u1", nil)
	if got := decodeBody(t, rr)["characters_used"].(float64); got != 4990 {
		t.Fatalf("rejected requests were counted: used = %v", got)
	}
}

func TestUsageResetsInNewMonth(t *testing.T) {
	env := newTestEnv(t)
	if rr := do(t, env.app.ConsumeUsage, http.MethodPost, "/v1/usage/consume", "u1", `{"characters": 1000}`); rr.Code != http.StatusOK {
		t.Fatalf("consume status = %d", rr.Code)
	}

	saved := testNow
	testNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)
	t.Cleanup(func() { testNow = saved })

	rr := do(t, env.app.GetUsage, http.MethodGet, "/v1/usage", "u1", nil)
	body := decodeBody(t, rr)
	if body["characters_used"].(float64) != 0 {
		t.Fatalf("usage not reset in new month: %v", body)
	}
	if !strings.HasPrefix(body["last_reset_date"].(string), "2024-07-01") {
		t.Fatalf("last_reset_date = %v", body["last_reset_date"])
	}
	if body["total_characters"].(float64) != 1000 || body["total_generations"].(float64) != 1 {
		t.Fatalf("lifetime totals lost on reset: %v", body)
	}
}
