// Package wallet holds user balances and the transaction ledger.
package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ledger titles.
const (
	TitleOrder = "Order"
	TitleTopUp = "Top Up"
)

// DefaultTopUp is credited when a top-up request carries no amount.
var DefaultTopUp = decimal.NewFromInt(50000)

// ErrInvalidAmount is returned for negative top-up amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

// Transaction is a ledger entry. Amount is always positive; Title tells
// whether it was a debit (Order) or a credit (Top Up).
type Transaction struct {
	ID         string
	UserID     string
	Title      string
	Amount     decimal.Decimal
	Refunded   bool
	CheckoutID string
	CreatedAt  time.Time
}

// Repository persists balances and ledger entries.
type Repository interface {
	// Balance returns the user's balance, zero when no wallet exists yet.
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// TopUp credits amount and records tx in one database transaction,
	// returning the new balance.
	TopUp(ctx context.Context, tx Transaction) (decimal.Decimal, error)
	// Transactions lists ledger entries newest first.
	Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error)
}

// Notifier fans balance changes out to watchers.
type Notifier interface {
	PublishBalance(ctx context.Context, userID string, balance decimal.Decimal) error
	WatchBalance(ctx context.Context, userID string) (<-chan decimal.Decimal, error)
}
