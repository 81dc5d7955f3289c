package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"voicehub/internal/domain"
	"voicehub/internal/infra"
	"voicehub/internal/sqlinline"
)

// paymentIDConstraint is the partial unique index on transactions.payment_id.
const paymentIDConstraint = "transactions_payment_id_key"

// LedgerStorePG implements domain.LedgerStore backed by PostgreSQL.
type LedgerStorePG struct {
	db infra.Database
}

// NewLedgerStore creates a new LedgerStorePG.
func NewLedgerStore(db infra.Database) *LedgerStorePG {
	return &LedgerStorePG{db: db}
}

// GetAccount fetches the wallet owned by userID.
func (r *LedgerStorePG) GetAccount(ctx context.Context, userID string) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, sqlinline.QSelectWallet, userID))
}

// CreateAccount inserts a zero-balance wallet unless one exists, then reads
// back whichever row won.
func (r *LedgerStorePG) CreateAccount(ctx context.Context, userID, currency string) (*domain.Account, error) {
	if _, err := r.db.Exec(ctx, sqlinline.QInsertWalletIfMissing, userID, currency); err != nil {
		return nil, domain.StorageError("create wallet", err)
	}
	acc, err := r.GetAccount(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.StorageError("create wallet", fmt.Errorf("wallet for %s vanished after insert", userID))
	}
	return acc, err
}

// PostTransaction adjusts the balance and appends the ledger entry inside a
// single database transaction. Debits use a conditional update, so two
// concurrent charges cannot both pass the sufficiency check.
func (r *LedgerStorePG) PostTransaction(ctx context.Context, tx *domain.Transaction) (receipt *domain.Receipt, err error) {
	dbtx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, domain.StorageError("begin ledger transaction", err)
	}
	defer func() {
		if err != nil {
			_ = dbtx.Rollback(ctx)
		}
	}()

	amount := tx.Amount
	var balanceText string
	if amount.IsNegative() {
		err = dbtx.QueryRow(ctx, sqlinline.QDebitWallet, tx.UserID, amount.Abs().String()).Scan(&balanceText)
		if infra.IsNoRows(err) {
			return nil, r.rejectDebit(ctx, dbtx, tx.UserID, amount.Abs())
		}
	} else {
		err = dbtx.QueryRow(ctx, sqlinline.QCreditWallet, tx.UserID, amount.String()).Scan(&balanceText)
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
	}
	if infra.IsNumericOverflow(err) {
		return nil, domain.ErrInvalidAmount
	}
	if err != nil {
		return nil, domain.StorageError("update wallet balance", err)
	}
	newBalance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", balanceText, err)
	}

	var createdAt time.Time
	err = dbtx.QueryRow(ctx, sqlinline.QInsertTransaction,
		tx.ID,
		tx.UserID,
		amount.String(),
		string(tx.Type),
		tx.Plan,
		string(domain.TransactionCompleted),
		tx.PaymentID,
	).Scan(&createdAt)
	if infra.IsUniqueViolation(err, paymentIDConstraint) {
		return nil, domain.ErrDuplicatePayment
	}
	if infra.IsNumericOverflow(err) {
		return nil, domain.ErrInvalidAmount
	}
	if err != nil {
		return nil, domain.StorageError("insert transaction", err)
	}

	if err = dbtx.Commit(ctx); err != nil {
		return nil, domain.StorageError("commit ledger transaction", err)
	}
	return &domain.Receipt{
		TransactionID: tx.ID,
		NewBalance:    newBalance,
		AmountCharged: amount.Abs(),
		CreatedAt:     createdAt,
	}, nil
}

// rejectDebit distinguishes a missing wallet from an insufficient balance
// after the conditional debit matched no row.
func (r *LedgerStorePG) rejectDebit(ctx context.Context, dbtx infra.SQLTx, userID string, required decimal.Decimal) error {
	var availableText string
	err := dbtx.QueryRow(ctx, sqlinline.QSelectWalletBalance, userID).Scan(&availableText)
	if infra.IsNoRows(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return domain.StorageError("read wallet balance", err)
	}
	available, err := decimal.NewFromString(availableText)
	if err != nil {
		return fmt.Errorf("parse wallet balance %q: %w", availableText, err)
	}
	return &domain.InsufficientFundsError{Required: required, Available: available}
}

// ListTransactions returns the newest ledger entries for userID.
func (r *LedgerStorePG) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListTransactions, userID, limit)
	if err != nil {
		return nil, domain.StorageError("list transactions", err)
	}
	defer rows.Close()

	items := []domain.Transaction{}
	for rows.Next() {
		var (
			t          domain.Transaction
			amountText string
			txType     string
			status     string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &amountText, &txType, &t.Plan, &status, &t.PaymentID, &t.CreatedAt); err != nil {
			return nil, domain.StorageError("scan transaction", err)
		}
		if t.Amount, err = decimal.NewFromString(amountText); err != nil {
			return nil, fmt.Errorf("parse transaction amount %q: %w", amountText, err)
		}
		t.Type = domain.TransactionType(txType)
		t.Status = domain.TransactionStatus(status)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate transactions", err)
	}
	return items, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acc         domain.Account
		balanceText string
	)
	if err := row.Scan(&acc.UserID, &balanceText, &acc.Currency, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.StorageError("read wallet", err)
	}
	balance, err := decimal.NewFromString(balanceText)
	if err != nil {
		return nil, fmt.Errorf("parse wallet balance %q: %w", balanceText, err)
	}
	acc.Balance = balance
	return &acc, nil
}

var _ domain.LedgerStore = (*LedgerStorePG)(nil)
