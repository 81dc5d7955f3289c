package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"voicehub/internal/quota"
)

type consumeRequest struct {
	Text       string `json:"text" validate:"required_without=Characters"`
	Characters int64  `json:"characters" validate:"omitempty,gt=0"`
}

type usageResponse struct {
	quota.Snapshot
	Unlimited bool `json:"unlimited"`
}

func toUsageResponse(s quota.Snapshot) usageResponse {
	return usageResponse{Snapshot: s, Unlimited: s.Unlimited()}
}

// GetUsage reports the caller's usage for the current month, applying a
// pending monthly reset first.
func (a *App) GetUsage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	snap, err := a.Quota.Snapshot(r.Context(), userID)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, toUsageResponse(snap))
}

// ConsumeUsage is the synthesis billing hook. The request is checked against
// the per-request ceiling and the remaining quota before it is counted.
func (a *App) ConsumeUsage(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req consumeRequest
	if !a.decode(w, r, &req) {
		return
	}
	n := req.Characters
	if text := strings.TrimSpace(req.Text); text != "" {
		n = int64(utf8.RuneCountInString(text))
	}
	if n <= 0 {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}

	if snap, err := a.Quota.Allow(r.Context(), userID, n); err != nil {
		a.logQuotaRejection(userID, n, snap, err)
		a.domainError(w, r, err)
		return
	}
	snap, err := a.Quota.Consume(r.Context(), userID, n)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"characters": n,
		"usage":      toUsageResponse(snap),
	})
}

func (a *App) logQuotaRejection(userID string, n int64, snap quota.Snapshot, err error) {
	a.Logger.Info().
		Err(err).
		Str("user_id", userID).
		Int64("characters", n).
		Int64("characters_remaining", snap.CharactersRemaining).
		Str("plan", string(snap.Plan)).
		Msg("synthesis request rejected")
}
