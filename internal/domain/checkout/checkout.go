// Package checkout turns a cart into a paid order.
//
// A checkout is quoted from the current cart snapshot, then committed in a
// single store transaction that records the checkout, debits the wallet,
// consumes the voucher and writes the ledger entry. Removing the paid lines
// from the cart happens afterwards; a checkout whose cart could not be
// settled stays in StatusPaid until the Reconciler completes it, and the cart
// cannot be checked out again meanwhile.
package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/delivery"
	"github.com/christianyoga13/vego/internal/domain/pricing"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

var (
	// ErrEmptyCart is returned when quoting or committing an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrMissingID is returned when a commit carries no idempotency key.
	ErrMissingID = errors.New("checkout id required")
	// ErrIDConflict is returned when a checkout id belongs to another user.
	ErrIDConflict = errors.New("checkout id already used")
	// ErrNotFound is returned by Store.Get for unknown ids.
	ErrNotFound = errors.New("checkout not found")
	// ErrDuplicate is returned by Store.Pay when the id already exists.
	ErrDuplicate = errors.New("checkout already exists")
	// ErrInsufficientFunds is returned by Store.Pay when the conditional
	// debit matched no row. The transaction is rolled back.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrCheckoutPending is returned while an earlier checkout of the same
	// cart is paid but its items are still in the cart.
	ErrCheckoutPending = errors.New("previous checkout still pending")
)

// Status is the lifecycle state of a checkout.
type Status string

const (
	// StatusInsufficientFunds is reported for rejected commits. Such
	// checkouts are never stored.
	StatusInsufficientFunds Status = "insufficient_funds"
	// StatusPaid means the wallet was debited but the cart is not yet cleared.
	StatusPaid Status = "paid"
	// StatusCompleted means every side effect has been applied.
	StatusCompleted Status = "completed"
)

// Request selects what to check out.
type Request struct {
	RestaurantID string
	DeliveryName string
	VoucherCode  string
}

// Quote is a priced view of the current cart.
type Quote struct {
	Cart      *cart.Cart
	Delivery  delivery.Option
	Voucher   *voucher.Voucher
	Totals    pricing.Totals
	Balance   decimal.Decimal
	CanAfford bool
}

// Checkout is a committed order.
type Checkout struct {
	ID           string
	UserID       string
	RestaurantID string
	DeliveryName string
	VoucherCode  string
	Items        []cart.Item
	Totals       pricing.Totals
	Status       Status
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Key returns the key of the cart this checkout was made from.
func (c *Checkout) Key() cart.Key {
	return cart.Key{UserID: c.UserID, RestaurantID: c.RestaurantID}
}

// Result is the outcome of Commit.
type Result struct {
	Status   Status
	Checkout *Checkout
	Quote    *Quote
	Balance  decimal.Decimal
	// Replayed is set when the id had already been committed.
	Replayed bool
}

// Event is published once a checkout completes.
type Event struct {
	CheckoutID   string
	UserID       string
	RestaurantID string
	FinalTotal   decimal.Decimal
	ItemCount    int
	CompletedAt  time.Time
}

// Store persists checkouts.
type Store interface {
	// Pay inserts c, debits the wallet by c.Totals.FinalTotal only if the
	// balance covers it, deletes the claimed voucher (if any) and records tx,
	// all in one transaction. It returns the new balance, or
	// ErrCheckoutPending when the cart already has a paid checkout.
	Pay(ctx context.Context, c *Checkout, tx wallet.Transaction) (decimal.Decimal, error)
	Get(ctx context.Context, id string) (*Checkout, error)
	// Pending returns the paid checkout of the cart, or ErrNotFound.
	Pending(ctx context.Context, key cart.Key) (*Checkout, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, reason string) error
	// ListStale returns paid checkouts last updated before the given time.
	ListStale(ctx context.Context, before time.Time, limit int) ([]Checkout, error)
}

// Carts is the cart access checkout needs.
type Carts interface {
	Get(ctx context.Context, key cart.Key) (*cart.Cart, error)
	// Settle removes the paid lines of checkoutID from the cart.
	Settle(ctx context.Context, key cart.Key, checkoutID string, paid []cart.Item) error
}

// Vouchers resolves the voucher selected for checkout.
type Vouchers interface {
	Select(ctx context.Context, userID, code string) (*voucher.Voucher, error)
}

// Balances reads wallet balances.
type Balances interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
}

// BalancePublisher announces balance changes.
type BalancePublisher interface {
	PublishBalance(ctx context.Context, userID string, balance decimal.Decimal) error
}

// EventPublisher announces completed checkouts.
type EventPublisher interface {
	PublishCompleted(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) PublishCompleted(context.Context, Event) error { return nil }
