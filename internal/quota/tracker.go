// Package quota tracks monthly character usage per user against the quota of
// the user's plan.
package quota

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"voicehub/internal/domain"
	"voicehub/internal/plans"
)

// Snapshot is the usage state reported to clients.
type Snapshot struct {
	Plan                domain.PlanID `json:"plan"`
	CharactersUsed      int64         `json:"characters_used"`
	CharacterLimit      int64         `json:"character_limit"`
	CharactersRemaining int64         `json:"characters_remaining"`
	MaxRequestChars     int           `json:"max_request_chars"`
	LastResetDate       time.Time     `json:"last_reset_date"`
	TotalCharacters     int64         `json:"total_characters"`
	TotalGenerations    int64         `json:"total_generations"`
}

// Unlimited reports whether the snapshot's plan has no cap.
func (s Snapshot) Unlimited() bool {
	return s.CharacterLimit == plans.Unlimited
}

// Allows reports whether n more characters fit in the remaining quota.
func (s Snapshot) Allows(n int64) bool {
	return s.Unlimited() || s.CharactersRemaining >= n
}

// Tracker applies period resets and usage increments through a UsageStore.
type Tracker struct {
	store   domain.UsageStore
	catalog *plans.Catalog
	logger  zerolog.Logger
	now     func() time.Time
}

// NewTracker builds a Tracker. A nil clock defaults to time.Now.
func NewTracker(store domain.UsageStore, catalog *plans.Catalog, logger zerolog.Logger, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: store, catalog: catalog, logger: logger, now: now}
}

func (t *Tracker) today() time.Time {
	return domain.DateOf(t.now().UTC())
}

// CheckAndResetIfNewPeriod zeroes the user's counter when today lies in a
// later calendar month than the last reset. Calling it again within the same
// month reports false and changes nothing.
func (t *Tracker) CheckAndResetIfNewPeriod(ctx context.Context, userID string, today time.Time) (bool, error) {
	if userID == "" {
		return false, domain.ErrInvalidUser
	}
	reset, err := t.store.ResetIfNewPeriod(ctx, userID, domain.DateOf(today))
	if err != nil {
		return false, err
	}
	if reset {
		t.logger.Info().Str("user_id", userID).Time("period", domain.PeriodOf(today)).Msg("usage period reset")
	}
	return reset, nil
}

// RecordUsage adds characters to the current period's counter.
func (t *Tracker) RecordUsage(ctx context.Context, userID string, characters int64) (int64, error) {
	if userID == "" {
		return 0, domain.ErrInvalidUser
	}
	if characters < 0 {
		return 0, domain.ErrInvalidAmount
	}
	return t.store.AddUsage(ctx, userID, characters)
}

// RemainingQuota returns quota minus used for plan, or plans.Unlimited.
// Over-quota usage yields a negative result.
func (t *Tracker) RemainingQuota(plan string, charactersUsed int64) (int64, error) {
	quota, err := t.catalog.QuotaOf(plan)
	if err != nil {
		return 0, err
	}
	if quota == plans.Unlimited {
		return plans.Unlimited, nil
	}
	return quota - charactersUsed, nil
}

// EnsureCounter returns the user's counter, opening one on the free plan.
func (t *Tracker) EnsureCounter(ctx context.Context, userID string) (*domain.UsageCounter, error) {
	if userID == "" {
		return nil, domain.ErrInvalidUser
	}
	c, err := t.store.GetCounter(ctx, userID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return t.store.CreateCounter(ctx, userID, domain.PlanFree, t.today())
}

// Snapshot applies any pending reset and reports the current usage.
func (t *Tracker) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if _, err := t.EnsureCounter(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	if _, err := t.CheckAndResetIfNewPeriod(ctx, userID, t.today()); err != nil {
		return Snapshot{}, err
	}
	c, err := t.store.GetCounter(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	return t.snapshotOf(c), nil
}

// Allow checks a request of n characters against the per-request ceiling and
// the remaining quota without consuming anything.
func (t *Tracker) Allow(ctx context.Context, userID string, n int64) (Snapshot, error) {
	snap, err := t.Snapshot(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if n > int64(snap.MaxRequestChars) {
		return snap, domain.ErrRequestTooLarge
	}
	if !snap.Allows(n) {
		return snap, domain.ErrQuotaExceeded
	}
	return snap, nil
}

// Consume records n characters of synthesis. The period check and increment
// happen in one store operation.
func (t *Tracker) Consume(ctx context.Context, userID string, n int64) (Snapshot, error) {
	if n < 0 {
		return Snapshot{}, domain.ErrInvalidAmount
	}
	if _, err := t.EnsureCounter(ctx, userID); err != nil {
		return Snapshot{}, err
	}
	c, reset, err := t.store.ConsumeUsage(ctx, userID, n, t.today())
	if err != nil {
		return Snapshot{}, err
	}
	if reset {
		t.logger.Info().Str("user_id", userID).Time("period", domain.PeriodOf(c.LastResetDate)).Msg("usage period reset")
	}
	snap := t.snapshotOf(c)
	t.logger.Debug().
		Str("user_id", userID).
		Int64("characters", n).
		Int64("characters_used", snap.CharactersUsed).
		Msg("usage recorded")
	return snap, nil
}

// AssignPlan resolves planID through the catalog and stores it on the user's
// counter.
func (t *Tracker) AssignPlan(ctx context.Context, userID, planID string) (domain.PlanID, error) {
	if userID == "" {
		return "", domain.ErrInvalidUser
	}
	canonical, err := t.catalog.Resolve(planID)
	if err != nil {
		return "", err
	}
	if err := t.store.SetPlan(ctx, userID, canonical, t.today()); err != nil {
		return "", err
	}
	t.logger.Info().Str("user_id", userID).Str("plan", string(canonical)).Msg("plan assigned")
	return canonical, nil
}

func (t *Tracker) snapshotOf(c *domain.UsageCounter) Snapshot {
	p, err := t.catalog.Lookup(string(c.Plan))
	if err != nil {
		t.logger.Warn().Str("user_id", c.UserID).Str("plan", string(c.Plan)).Msg("counter references unknown plan, using free")
		p, _ = t.catalog.Lookup(string(domain.PlanFree))
	}
	remaining, err := t.RemainingQuota(string(p.ID), c.CharactersUsed)
	if err != nil {
		remaining = 0
	}
	return Snapshot{
		Plan:                p.ID,
		CharactersUsed:      c.CharactersUsed,
		CharacterLimit:      p.Quota,
		CharactersRemaining: remaining,
		MaxRequestChars:     p.MaxRequestChars,
		LastResetDate:       c.LastResetDate,
		TotalCharacters:     c.TotalCharacters,
		TotalGenerations:    c.TotalGenerations,
	}
}
