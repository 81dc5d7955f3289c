package domain

import "time"

// PlanID identifies a catalog plan.
type PlanID string

const (
	PlanFree         PlanID = "free"
	PlanStarter      PlanID = "starter"
	PlanProfessional PlanID = "professional"
	PlanBusiness     PlanID = "business"
)

// UsageCounter tracks characters synthesized in the current billing period.
// The lifetime totals are never touched by a period reset.
type UsageCounter struct {
	UserID           string
	CharactersUsed   int64
	LastResetDate    time.Time
	Plan             PlanID
	UpdatedAt        time.Time
	TotalCharacters  int64
	TotalGenerations int64
}

// DateOf truncates t to its calendar date, keeping t's wall-clock fields.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// PeriodOf returns the first day of the calendar month containing t.
func PeriodOf(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// NeedsReset reports whether today falls in a later calendar month than
// lastReset. Any number of elapsed months collapses into one reset.
func NeedsReset(lastReset, today time.Time) bool {
	return PeriodOf(lastReset).Before(PeriodOf(today))
}
