// Package pricing computes order totals: subtotal, delivery fee, tax,
// voucher discount and the final amount charged against a wallet.
//
// Tax is levied on subtotal plus delivery fee, and the voucher discount is
// taken from the post-tax grand total. All arithmetic is exact; rounding is
// left to presentation.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	// TaxRate is the flat tax applied to subtotal plus delivery fee.
	TaxRate = decimal.RequireFromString("0.11")

	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// MaxPercentage is the upper bound of a voucher discount percentage.
const MaxPercentage = 100

// LineItem is a single cart line used for subtotal calculation.
type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// Total returns UnitPrice * Quantity.
func (i LineItem) Total() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Totals is the derived price breakdown of an order.
type Totals struct {
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Tax         decimal.Decimal
	GrandTotal  decimal.Decimal
	Discount    decimal.Decimal
	FinalTotal  decimal.Decimal
}

// ClampPercentage bounds p to [0, MaxPercentage].
func ClampPercentage(p int) int {
	switch {
	case p < 0:
		return 0
	case p > MaxPercentage:
		return MaxPercentage
	default:
		return p
	}
}

// Subtotal returns the sum of UnitPrice * Quantity across all items.
func Subtotal(items []LineItem) decimal.Decimal {
	sum := zero
	for _, item := range items {
		sum = sum.Add(item.Total())
	}
	return sum
}

// Tax returns (subtotal + deliveryFee) * TaxRate.
func Tax(subtotal, deliveryFee decimal.Decimal) decimal.Decimal {
	return subtotal.Add(deliveryFee).Mul(TaxRate)
}

// GrandTotal returns the pre-discount total.
func GrandTotal(subtotal, deliveryFee, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Add(deliveryFee).Add(tax)
}

// Discount returns grandTotal * percentage / 100, or zero when the
// percentage is not positive. Percentages above MaxPercentage are clamped.
func Discount(grandTotal decimal.Decimal, percentage int) decimal.Decimal {
	if percentage <= 0 {
		return zero
	}
	p := decimal.NewFromInt(int64(ClampPercentage(percentage)))
	return grandTotal.Mul(p).Div(hundred)
}

// FinalTotal returns grandTotal - discount.
func FinalTotal(grandTotal, discount decimal.Decimal) decimal.Decimal {
	return grandTotal.Sub(discount)
}

// CanAfford reports whether balance covers finalTotal.
func CanAfford(balance, finalTotal decimal.Decimal) bool {
	return balance.GreaterThanOrEqual(finalTotal)
}

// Compute derives the full breakdown for the given items, delivery fee and
// voucher percentage. A percentage of zero means no monetary discount.
func Compute(items []LineItem, deliveryFee decimal.Decimal, percentage int) Totals {
	subtotal := Subtotal(items)
	tax := Tax(subtotal, deliveryFee)
	grand := GrandTotal(subtotal, deliveryFee, tax)
	discount := Discount(grand, percentage)

	return Totals{
		Subtotal:    subtotal,
		DeliveryFee: deliveryFee,
		Tax:         tax,
		GrandTotal:  grand,
		Discount:    discount,
		FinalTotal:  FinalTotal(grand, discount),
	}
}
