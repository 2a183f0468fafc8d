package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/checkout"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

const (
	checkoutColumns = `id, user_id, restaurant_id, delivery_name, voucher_code,
		subtotal, delivery_fee, tax, grand_total, discount, final_total,
		status, last_error, created_at, updated_at`

	insertCheckoutSQL = `INSERT INTO checkouts (` + checkoutColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	ensureWalletSQL = `INSERT INTO wallets (user_id, updated_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING`

	debitWalletSQL = `UPDATE wallets SET balance = balance - $2, updated_at = $3
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`

	consumeVoucherSQL = `DELETE FROM user_vouchers WHERE user_id = $1 AND code = $2`

	getCheckoutSQL = `SELECT ` + checkoutColumns + ` FROM checkouts WHERE id = $1`

	pendingCheckoutSQL = `SELECT ` + checkoutColumns + ` FROM checkouts
		WHERE user_id = $1 AND restaurant_id = $2 AND status = 'paid'`

	getCheckoutItemsSQL = `SELECT name, unit_price, quantity
		FROM checkout_items WHERE checkout_id = $1 ORDER BY name`

	markCompletedSQL = `UPDATE checkouts SET status = 'completed', last_error = '', updated_at = $2
		WHERE id = $1`

	markFailedSQL = `UPDATE checkouts SET last_error = $2, updated_at = $3
		WHERE id = $1 AND status = 'paid'`

	listStaleSQL = `SELECT ` + checkoutColumns + ` FROM checkouts
		WHERE status = 'paid' AND updated_at < $1
		ORDER BY updated_at LIMIT $2`
)

// pendingCartIndex allows one paid checkout per cart.
const pendingCartIndex = "checkouts_pending_cart_idx"

var _ checkout.Store = (*CheckoutRepository)(nil)

// CheckoutRepository implements checkout.Store backed by PostgreSQL.
type CheckoutRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewCheckoutRepository returns a CheckoutRepository that uses the given pool.
func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{pool: pool, now: time.Now}
}

// Pay records the checkout and applies its wallet and voucher effects in a
// single transaction. Nothing is written unless every step succeeds.
func (r *CheckoutRepository) Pay(ctx context.Context, c *checkout.Checkout, tx wallet.Transaction) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := pgx.BeginFunc(ctx, r.pool, func(dbtx pgx.Tx) error {
		t := c.Totals
		if _, err := dbtx.Exec(ctx, insertCheckoutSQL,
			c.ID, c.UserID, c.RestaurantID, c.DeliveryName, c.VoucherCode,
			t.Subtotal, t.DeliveryFee, t.Tax, t.GrandTotal, t.Discount, t.FinalTotal,
			string(c.Status), c.LastError, c.CreatedAt, c.UpdatedAt,
		); err != nil {
			switch {
			case violates(err, pendingCartIndex):
				return checkout.ErrCheckoutPending
			case isUniqueViolation(err):
				return checkout.ErrDuplicate
			}
			return fmt.Errorf("inserting checkout %q: %w", c.ID, err)
		}

		rows := make([][]any, len(c.Items))
		for i, it := range c.Items {
			rows[i] = []any{c.ID, it.Name, it.UnitPrice, it.Quantity}
		}
		if _, err := dbtx.CopyFrom(ctx,
			pgx.Identifier{"checkout_items"},
			[]string{"checkout_id", "name", "unit_price", "quantity"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("inserting checkout items: %w", err)
		}

		// A user who never topped up has no wallet row yet; a fully
		// discounted order must still be payable.
		if _, err := dbtx.Exec(ctx, ensureWalletSQL, c.UserID, c.UpdatedAt); err != nil {
			return fmt.Errorf("creating wallet: %w", err)
		}
		err := dbtx.QueryRow(ctx, debitWalletSQL, c.UserID, t.FinalTotal, c.UpdatedAt).Scan(&balance)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return checkout.ErrInsufficientFunds
			}
			return fmt.Errorf("debiting wallet: %w", err)
		}

		if c.VoucherCode != "" {
			tag, err := dbtx.Exec(ctx, consumeVoucherSQL, c.UserID, c.VoucherCode)
			if err != nil {
				return fmt.Errorf("consuming voucher: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return voucher.ErrVoucherNotFound
			}
		}

		return insertTransaction(ctx, dbtx, tx)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// Get returns a checkout with its items.
func (r *CheckoutRepository) Get(ctx context.Context, id string) (*checkout.Checkout, error) {
	rows, err := r.pool.Query(ctx, getCheckoutSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting checkout %q: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCheckout)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting checkout %q: %w", id, err)
	}

	if err := r.loadItems(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Pending returns the paid checkout of key, if any.
func (r *CheckoutRepository) Pending(ctx context.Context, key cart.Key) (*checkout.Checkout, error) {
	rows, err := r.pool.Query(ctx, pendingCheckoutSQL, key.UserID, key.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("getting pending checkout: %w", err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCheckout)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting pending checkout: %w", err)
	}

	if err := r.loadItems(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// MarkCompleted moves a checkout to completed.
func (r *CheckoutRepository) MarkCompleted(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, markCompletedSQL, id, r.now().UTC()); err != nil {
		return fmt.Errorf("completing checkout %q: %w", id, err)
	}
	return nil
}

// MarkFailed records why a paid checkout could not be completed.
func (r *CheckoutRepository) MarkFailed(ctx context.Context, id, reason string) error {
	if _, err := r.pool.Exec(ctx, markFailedSQL, id, reason, r.now().UTC()); err != nil {
		return fmt.Errorf("recording checkout failure %q: %w", id, err)
	}
	return nil
}

// ListStale returns paid checkouts not touched since before, oldest first.
func (r *CheckoutRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]checkout.Checkout, error) {
	rows, err := r.pool.Query(ctx, listStaleSQL, before, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stale checkouts: %w", err)
	}
	cs, err := pgx.CollectRows(rows, scanCheckout)
	if err != nil {
		return nil, fmt.Errorf("listing stale checkouts: %w", err)
	}
	for i := range cs {
		if err := r.loadItems(ctx, &cs[i]); err != nil {
			return nil, err
		}
	}
	return cs, nil
}

func (r *CheckoutRepository) loadItems(ctx context.Context, c *checkout.Checkout) error {
	rows, err := r.pool.Query(ctx, getCheckoutItemsSQL, c.ID)
	if err != nil {
		return fmt.Errorf("getting checkout items %q: %w", c.ID, err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var (
			it  cart.Item
			qty int32
		)
		err := row.Scan(&it.Name, &it.UnitPrice, &qty)
		it.Quantity = int(qty)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("getting checkout items %q: %w", c.ID, err)
	}
	c.Items = items
	return nil
}

func scanCheckout(row pgx.CollectableRow) (checkout.Checkout, error) {
	var (
		c      checkout.Checkout
		status string
	)
	t := &c.Totals
	err := row.Scan(
		&c.ID, &c.UserID, &c.RestaurantID, &c.DeliveryName, &c.VoucherCode,
		&t.Subtotal, &t.DeliveryFee, &t.Tax, &t.GrandTotal, &t.Discount, &t.FinalTotal,
		&status, &c.LastError, &c.CreatedAt, &c.UpdatedAt,
	)
	c.Status = checkout.Status(status)
	return c, err
}
