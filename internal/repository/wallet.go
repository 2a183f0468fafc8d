package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/wallet"
)

const (
	getBalanceSQL = `SELECT balance FROM wallets WHERE user_id = $1`

	creditWalletSQL = `INSERT INTO wallets (user_id, balance, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = wallets.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING balance`

	insertTransactionSQL = `INSERT INTO wallet_transactions (id, user_id, title, amount, refunded, checkout_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	listTransactionsSQL = `SELECT id, user_id, title, amount, refunded, COALESCE(checkout_id, ''), created_at
		FROM wallet_transactions WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2`
)

var _ wallet.Repository = (*WalletRepository)(nil)

// WalletRepository implements wallet.Repository backed by PostgreSQL.
type WalletRepository struct {
	pool *pgxpool.Pool
}

// NewWalletRepository returns a WalletRepository that uses the given pool.
func NewWalletRepository(pool *pgxpool.Pool) *WalletRepository {
	return &WalletRepository{pool: pool}
}

// Balance returns the user's balance, zero for users without a wallet row.
func (r *WalletRepository) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := r.pool.QueryRow(ctx, getBalanceSQL, userID).Scan(&b)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("getting balance for %q: %w", userID, err)
	}
	return b, nil
}

// TopUp credits tx.Amount and records tx atomically.
func (r *WalletRepository) TopUp(ctx context.Context, tx wallet.Transaction) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
		if err := dbtx.QueryRow(ctx, creditWalletSQL, tx.UserID, tx.Amount, tx.CreatedAt).Scan(&balance); err != nil {
			return fmt.Errorf("crediting wallet: %w", err)
		}
		return insertTransaction(ctx, dbtx, tx)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Transactions returns the user's ledger newest first.
func (r *WalletRepository) Transactions(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error) {
	rows, err := r.pool.Query(ctx, listTransactionsSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (wallet.Transaction, error) {
		var t wallet.Transaction
		err := row.Scan(&t.ID, &t.UserID, &t.Title, &t.Amount, &t.Refunded, &t.CheckoutID, &t.CreatedAt)
		return t, err
	})
}

func insertTransaction(ctx context.Context, dbtx pgx.Tx, t wallet.Transaction) error {
	_, err := dbtx.Exec(ctx, insertTransactionSQL,
		t.ID, t.UserID, t.Title, t.Amount, t.Refunded, t.CheckoutID, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording transaction: %w", err)
	}
	return nil
}
