package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"voicehub/internal/domain"
	"voicehub/internal/sqlinline"
)

func TestUsageCreateCounterPassesDate(t *testing.T) {
	db := newScriptedDB()
	today := time.Date(2024, 1, 15, 23, 59, 0, 0, time.UTC)
	db.execs[sqlinline.QInsertUsageCounterIfMissing] = func(args []any) (pgconn.CommandTag, error) {
		day := args[1].(time.Time)
		if !day.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("date arg = %v, want 2024-01-15", day)
		}
		if args[2] != "free" {
			t.Fatalf("plan arg = %v, want free", args[2])
		}
		return pgconn.NewCommandTag("INSERT 0 1"), nil
	}
	db.rows[sqlinline.QSelectUsageCounter] = func([]any) pgx.Row {
		return valuesRow("u1", int64(0), domain.DateOf(today), "free", fixedTime, int64(0), int64(0))
	}

	c, err := NewUsageStore(db).CreateCounter(context.Background(), "u1", domain.PlanFree, today)
	if err != nil {
		t.Fatalf("CreateCounter error: %v", err)
	}
	if c.Plan != domain.PlanFree || c.CharactersUsed != 0 {
		t.Fatalf("unexpected counter: %+v", c)
	}
}

func TestUsageResetIfNewPeriod(t *testing.T) {
	tests := []struct {
		name      string
		affected  string
		exists    bool
		wantReset bool
		wantErr   error
	}{
		{name: "reset applied", affected: "UPDATE 1", exists: true, wantReset: true},
		{name: "same period", affected: "UPDATE 0", exists: true},
		{name: "missing counter", affected: "UPDATE 0", wantErr: domain.ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := newScriptedDB()
			db.execs[sqlinline.QResetUsageIfNewPeriod] = func([]any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag(tc.affected), nil
			}
			db.rows[sqlinline.QSelectUsageCounter] = func([]any) pgx.Row {
				if !tc.exists {
					return simpleRow{}
				}
				return valuesRow("u1", int64(10), fixedTime, "starter", fixedTime, int64(10), int64(1))
			}

			reset, err := NewUsageStore(db).ResetIfNewPeriod(context.Background(), "u1", fixedTime)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
			if reset != tc.wantReset {
				t.Fatalf("reset = %v, want %v", reset, tc.wantReset)
			}
		})
	}
}

func TestUsageAddUsage(t *testing.T) {
	db := newScriptedDB()
	db.rows[sqlinline.QAddUsage] = func(args []any) pgx.Row {
		if args[1] != int64(1200) {
			t.Fatalf("characters arg = %v", args[1])
		}
		return valuesRow(int64(49200))
	}

	used, err := NewUsageStore(db).AddUsage(context.Background(), "u1", 1200)
	if err != nil {
		t.Fatalf("AddUsage error: %v", err)
	}
	if used != 49200 {
		t.Fatalf("used = %d, want 49200", used)
	}
}

func TestUsageAddUsageMissingCounter(t *testing.T) {
	db := newScriptedDB()
	db.rows[sqlinline.QAddUsage] = func([]any) pgx.Row { return simpleRow{} }

	if _, err := NewUsageStore(db).AddUsage(context.Background(), "ghost", 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("AddUsage error = %v, want ErrNotFound", err)
	}
}

func TestUsageConsumeReportsReset(t *testing.T) {
	db := newScriptedDB()
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	db.rows[sqlinline.QConsumeUsage] = func(args []any) pgx.Row {
		return valuesRow("u1", int64(300), feb, "professional", fixedTime, int64(120300), int64(42), true)
	}

	c, reset, err := NewUsageStore(db).ConsumeUsage(context.Background(), "u1", 300, feb)
	if err != nil {
		t.Fatalf("ConsumeUsage error: %v", err)
	}
	if !reset || c.CharactersUsed != 300 || c.Plan != domain.PlanProfessional || !c.LastResetDate.Equal(feb) {
		t.Fatalf("unexpected result: reset=%v counter=%+v", reset, c)
	}
	if c.TotalCharacters != 120300 || c.TotalGenerations != 42 {
		t.Fatalf("lifetime totals = %d/%d, want 120300/42", c.TotalCharacters, c.TotalGenerations)
	}
}

func TestUsageSetPlanStorageFailure(t *testing.T) {
	db := newScriptedDB()
	db.execs[sqlinline.QUpsertUsagePlan] = func([]any) (pgconn.CommandTag, error) {
		return pgconn.CommandTag{}, errors.New("timeout")
	}

	err := NewUsageStore(db).SetPlan(context.Background(), "u1", domain.PlanStarter, fixedTime)
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("SetPlan error = %v, want ErrStorageUnavailable", err)
	}
}

func TestUsageResetNowMissing(t *testing.T) {
	db := newScriptedDB()
	db.execs[sqlinline.QResetUsageNow] = func([]any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag("UPDATE 0"), nil
	}

	if err := NewUsageStore(db).ResetNow(context.Background(), "ghost", fixedTime); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ResetNow error = %v, want ErrNotFound", err)
	}
}
