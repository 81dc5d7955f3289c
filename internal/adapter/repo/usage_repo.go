package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"voicehub/internal/domain"
	"voicehub/internal/infra"
	"voicehub/internal/sqlinline"
)

// UsageStorePG implements domain.UsageStore backed by PostgreSQL.
type UsageStorePG struct {
	db infra.SQLExecutor
}

// NewUsageStore creates a new UsageStorePG.
func NewUsageStore(db infra.SQLExecutor) *UsageStorePG {
	return &UsageStorePG{db: db}
}

// GetCounter fetches the usage counter for userID.
func (r *UsageStorePG) GetCounter(ctx context.Context, userID string) (*domain.UsageCounter, error) {
	return scanCounter(r.db.QueryRow(ctx, sqlinline.QSelectUsageCounter, userID))
}

// CreateCounter inserts a fresh counter unless one exists and returns the stored row.
func (r *UsageStorePG) CreateCounter(ctx context.Context, userID string, plan domain.PlanID, today time.Time) (*domain.UsageCounter, error) {
	if _, err := r.db.Exec(ctx, sqlinline.QInsertUsageCounterIfMissing, userID, domain.DateOf(today), string(plan)); err != nil {
		return nil, domain.StorageError("create usage counter", err)
	}
	c, err := r.GetCounter(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.StorageError("create usage counter", fmt.Errorf("counter for %s vanished after insert", userID))
	}
	return c, err
}

// ResetIfNewPeriod zeroes the counter in one conditional update.
func (r *UsageStorePG) ResetIfNewPeriod(ctx context.Context, userID string, today time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QResetUsageIfNewPeriod, userID, domain.DateOf(today))
	if err != nil {
		return false, domain.StorageError("reset usage counter", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := r.GetCounter(ctx, userID); err != nil {
		return false, err
	}
	return false, nil
}

// AddUsage increments the counter with a database-side add.
func (r *UsageStorePG) AddUsage(ctx context.Context, userID string, characters int64) (int64, error) {
	var used int64
	if err := r.db.QueryRow(ctx, sqlinline.QAddUsage, userID, characters).Scan(&used); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrNotFound
		}
		return 0, domain.StorageError("add usage", err)
	}
	return used, nil
}

// ConsumeUsage performs the period check and the increment under one row lock.
func (r *UsageStorePG) ConsumeUsage(ctx context.Context, userID string, characters int64, today time.Time) (*domain.UsageCounter, bool, error) {
	row := r.db.QueryRow(ctx, sqlinline.QConsumeUsage, userID, characters, domain.DateOf(today))
	var (
		c     domain.UsageCounter
		plan  string
		reset bool
	)
	if err := row.Scan(&c.UserID, &c.CharactersUsed, &c.LastResetDate, &plan, &c.UpdatedAt,
		&c.TotalCharacters, &c.TotalGenerations, &reset); err != nil {
		if infra.IsNoRows(err) {
			return nil, false, domain.ErrNotFound
		}
		return nil, false, domain.StorageError("consume usage", err)
	}
	c.Plan = domain.PlanID(plan)
	return &c, reset, nil
}

// SetPlan assigns plan, creating the counter when needed.
func (r *UsageStorePG) SetPlan(ctx context.Context, userID string, plan domain.PlanID, today time.Time) error {
	if _, err := r.db.Exec(ctx, sqlinline.QUpsertUsagePlan, userID, string(plan), domain.DateOf(today)); err != nil {
		return domain.StorageError("set usage plan", err)
	}
	return nil
}

// ResetNow zeroes the counter unconditionally. Used by operator tooling.
func (r *UsageStorePG) ResetNow(ctx context.Context, userID string, today time.Time) error {
	tag, err := r.db.Exec(ctx, sqlinline.QResetUsageNow, userID, domain.DateOf(today))
	if err != nil {
		return domain.StorageError("reset usage counter", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanCounter(row pgx.Row) (*domain.UsageCounter, error) {
	var (
		c    domain.UsageCounter
		plan string
	)
	if err := row.Scan(&c.UserID, &c.CharactersUsed, &c.LastResetDate, &plan, &c.UpdatedAt, &c.TotalCharacters, &c.TotalGenerations); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StorageError("read usage counter", err)
	}
	c.Plan = domain.PlanID(plan)
	return &c, nil
}

var _ domain.UsageStore = (*UsageStorePG)(nil)
