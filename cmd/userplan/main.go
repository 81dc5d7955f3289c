package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"voicehub/internal/adapter/repo"
	"voicehub/internal/domain"
	"voicehub/internal/infra"
	"voicehub/internal/plans"
	"voicehub/internal/quota"
	"voicehub/internal/wallet"
)

func main() {
	var (
		idFlag        string
		planFlag      string
		keepUsageFlag bool
		creditFlag    string
		refFlag       string
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update")
	flag.StringVar(&planFlag, "plan", "", "plan to assign (free, starter, professional, business or an alias)")
	flag.BoolVar(&keepUsageFlag, "keep-usage", false, "preserve characters used this month instead of resetting to 0")
	flag.StringVar(&creditFlag, "credit", "", "amount to credit to the user's wallet, e.g. 490.00")
	flag.StringVar(&refFlag, "ref", "", "payment reference for -credit; repeated runs with the same reference credit once")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(idFlag)
	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	if strings.TrimSpace(planFlag) == "" && strings.TrimSpace(creditFlag) == "" {
		exitWithError(errors.New("nothing to do: pass -plan and/or -credit"))
	}

	cfg, err := infra.LoadConfig()
	if err != nil {
		exitWithError(err)
	}
	logger := infra.NewLogger("cli", "userplan")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	catalog, err := plans.FromJSON(cfg.WalletCurrency, cfg.PlanCatalog)
	if err != nil {
		exitWithError(err)
	}

	if creditFlag != "" {
		amount, err := wallet.ParseAmount(creditFlag)
		if err != nil {
			exitWithError(fmt.Errorf("-credit %q: %w", creditFlag, err))
		}
		svc := wallet.NewService(repo.NewLedgerStore(runner), logger, wallet.Options{Currency: cfg.WalletCurrency})
		ref := strings.TrimSpace(refFlag)
		if ref == "" {
			ref = fmt.Sprintf("manual:%s:%d", userID, time.Now().UnixNano())
		}
		receipt, err := svc.DepositPayment(ctx, userID, amount, ref)
		switch {
		case errors.Is(err, domain.ErrDuplicatePayment):
			fmt.Printf("payment %s already credited, balance unchanged\n", ref)
		case err != nil:
			exitWithError(fmt.Errorf("failed to credit wallet: %w", err))
		default:
			fmt.Printf("credited %s %s to %s, balance %s (transaction %s)\n",
				amount.StringFixed(2), svc.Currency(), userID, receipt.NewBalance.StringFixed(2), receipt.TransactionID)
		}
	}

	if planFlag != "" {
		usage := repo.NewUsageStore(runner)
		tracker := quota.NewTracker(usage, catalog, logger, nil)
		plan, err := tracker.AssignPlan(ctx, userID, planFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to assign plan: %w", err))
		}
		if !keepUsageFlag {
			if err := usage.ResetNow(ctx, userID, time.Now().UTC()); err != nil {
				exitWithError(fmt.Errorf("failed to reset usage: %w", err))
			}
		}
		snap, err := tracker.Snapshot(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to read usage: %w", err))
		}
		fmt.Printf("User %s updated to plan %s\n", userID, plan)
		fmt.Printf("characters_used=%d\n", snap.CharactersUsed)
		if snap.Unlimited() {
			fmt.Println("character_limit=unlimited")
		} else {
			fmt.Printf("character_limit=%d\n", snap.CharacterLimit)
		}
		fmt.Printf("last_reset_date=%s\n", snap.LastResetDate.Format(time.DateOnly))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
