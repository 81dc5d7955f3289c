package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSignAndVerifyJWT(t *testing.T) {
	token, err := SignJWT("s3cret", "voicehub", "user-1", time.Hour)
	if err != nil {
		t.Fatalf("SignJWT error: %v", err)
	}
	claims, err := VerifyJWT("s3cret", "voicehub", token)
	if err != nil {
		t.Fatalf("VerifyJWT error: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Fatalf("subject = %q", claims.Subject)
	}

	if _, err := VerifyJWT("other", "voicehub", token); err == nil {
		t.Fatal("wrong secret should fail")
	}
	if _, err := VerifyJWT("s3cret", "someone-else", token); err == nil {
		t.Fatal("wrong issuer should fail")
	}
	expired, _ := SignJWT("s3cret", "voicehub", "user-1", -time.Minute)
	if _, err := VerifyJWT("s3cret", "voicehub", expired); err == nil {
		t.Fatal("expired token should fail")
	}
	anonymous, _ := SignJWT("s3cret", "voicehub", "", time.Hour)
	if _, err := VerifyJWT("s3cret", "voicehub", anonymous); err == nil {
		t.Fatal("token without subject should fail")
	}
}

func TestAuthJWTMiddleware(t *testing.T) {
	var seen string
	h := AuthJWT("s3cret", "voicehub")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))
	token, _ := SignJWT("s3cret", "voicehub", "user-9", time.Hour)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/v1/wallet", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("status = %d, want %d", rr.Code, tc.status)
			}
			if tc.status == http.StatusOK && seen != "user-9" {
				t.Fatalf("user id in context = %q", seen)
			}
		})
	}
}
