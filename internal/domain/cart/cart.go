// Package cart manages per-restaurant shopping carts.
//
// A cart belongs to one user and one restaurant. Line items are keyed by
// menu item name and never carry a non-positive quantity: setting a quantity
// to zero or below removes the line instead.
package cart

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/pricing"
)

// MaxQuantity bounds the quantity of a single cart line.
const MaxQuantity = 999

var (
	// ErrEmptyName is returned when a line item name is blank.
	ErrEmptyName = errors.New("item name required")
	// ErrQuantityTooLarge is returned when a line would exceed MaxQuantity.
	ErrQuantityTooLarge = errors.New("quantity too large")
)

// ItemNotFoundError indicates the cart has no line with the given name.
type ItemNotFoundError struct {
	Name string
}

func (e *ItemNotFoundError) Error() string {
	return "item " + e.Name + " not in cart"
}

// Key identifies a cart.
type Key struct {
	UserID       string
	RestaurantID string
}

// Item is a cart line.
type Item struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Cart is a full snapshot of a cart. Version increases with every mutation
// so that consumers can discard stale snapshots.
type Cart struct {
	Key
	Items   []Item
	Version int64
}

// Empty reports whether the cart has no lines.
func (c *Cart) Empty() bool {
	return len(c.Items) == 0
}

// LineItems converts the cart to pricing line items.
func (c *Cart) LineItems() []pricing.LineItem {
	out := make([]pricing.LineItem, len(c.Items))
	for i, it := range c.Items {
		out[i] = pricing.LineItem{
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		}
	}
	return out
}

// Normalize drops non-positive lines and orders items by name.
func (c *Cart) Normalize() {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.Quantity > 0 {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	sort.Slice(c.Items, func(i, j int) bool { return c.Items[i].Name < c.Items[j].Name })
}

// Store persists carts and publishes a full snapshot after every mutation.
type Store interface {
	Get(ctx context.Context, key Key) (*Cart, error)
	// Increment adds one unit of the named item, creating the line at
	// unitPrice when it does not exist yet. A line already at MaxQuantity
	// yields ErrQuantityTooLarge.
	Increment(ctx context.Context, key Key, name string, unitPrice decimal.Decimal) error
	// SetQuantity sets the quantity of an existing line; n <= 0 removes it.
	SetQuantity(ctx context.Context, key Key, name string, n int) error
	Remove(ctx context.Context, key Key, name string) error
	Clear(ctx context.Context, key Key) error
	// Settle subtracts the quantities of paid from the cart, dropping lines
	// that reach zero. Lines added after payment are kept. Settling the same
	// checkoutID again is a no-op.
	Settle(ctx context.Context, key Key, checkoutID string, paid []Item) error
	// Watch delivers the current snapshot and then one snapshot per change
	// until ctx is cancelled.
	Watch(ctx context.Context, key Key) (<-chan Cart, error)
}
