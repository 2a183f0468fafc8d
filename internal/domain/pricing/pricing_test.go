package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, want.Equal(got), "%s: expected %s, got %s", field, want, got)
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name        string
		items       []LineItem
		deliveryFee decimal.Decimal
		percentage  int
		want        Totals
	}{
		{
			name: "two items, regular delivery, ten percent voucher",
			items: []LineItem{
				{Name: "Tempeh Bowl", UnitPrice: d("20000"), Quantity: 2},
			},
			deliveryFee: d("10000"),
			percentage:  10,
			want: Totals{
				Subtotal:    d("40000"),
				DeliveryFee: d("10000"),
				Tax:         d("5500"),
				GrandTotal:  d("55500"),
				Discount:    d("5550"),
				FinalTotal:  d("49950"),
			},
		},
		{
			name: "no voucher leaves grand total untouched",
			items: []LineItem{
				{Name: "Tempeh Bowl", UnitPrice: d("20000"), Quantity: 2},
			},
			deliveryFee: d("10000"),
			percentage:  0,
			want: Totals{
				Subtotal:    d("40000"),
				DeliveryFee: d("10000"),
				Tax:         d("5500"),
				GrandTotal:  d("55500"),
				Discount:    d("0"),
				FinalTotal:  d("55500"),
			},
		},
		{
			name: "mixed items, sharing delivery",
			items: []LineItem{
				{Name: "Gado Gado", UnitPrice: d("15000"), Quantity: 1},
				{Name: "Es Teh", UnitPrice: d("5000"), Quantity: 3},
			},
			deliveryFee: d("5000"),
			percentage:  20,
			want: Totals{
				Subtotal:    d("30000"),
				DeliveryFee: d("5000"),
				Tax:         d("3850"),
				GrandTotal:  d("38850"),
				Discount:    d("7770"),
				FinalTotal:  d("31080"),
			},
		},
		{
			name:        "empty cart still charges delivery and tax",
			deliveryFee: d("20000"),
			want: Totals{
				Subtotal:    d("0"),
				DeliveryFee: d("20000"),
				Tax:         d("2200"),
				GrandTotal:  d("22200"),
				Discount:    d("0"),
				FinalTotal:  d("22200"),
			},
		},
		{
			name: "fractional tax is kept exact",
			items: []LineItem{
				{Name: "Tahu", UnitPrice: d("1234"), Quantity: 1},
			},
			deliveryFee: d("0"),
			percentage:  15,
			want: Totals{
				Subtotal:    d("1234"),
				DeliveryFee: d("0"),
				Tax:         d("135.74"),
				GrandTotal:  d("1369.74"),
				Discount:    d("205.461"),
				FinalTotal:  d("1164.279"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.items, tt.deliveryFee, tt.percentage)

			assertDecimal(t, tt.want.Subtotal, got.Subtotal, "subtotal")
			assertDecimal(t, tt.want.DeliveryFee, got.DeliveryFee, "delivery fee")
			assertDecimal(t, tt.want.Tax, got.Tax, "tax")
			assertDecimal(t, tt.want.GrandTotal, got.GrandTotal, "grand total")
			assertDecimal(t, tt.want.Discount, got.Discount, "discount")
			assertDecimal(t, tt.want.FinalTotal, got.FinalTotal, "final total")
		})
	}
}

func TestTax(t *testing.T) {
	for _, tc := range []struct{ s, d, want string }{
		{"0", "0", "0"},
		{"40000", "10000", "5500"},
		{"100", "0", "11"},
		{"1", "0", "0.11"},
		{"99999", "20000", "13199.89"},
	} {
		assertDecimal(t, d(tc.want), Tax(d(tc.s), d(tc.d)), tc.s+"+"+tc.d)
	}
}

func TestDiscount(t *testing.T) {
	grand := d("55500")

	assertDecimal(t, d("0"), Discount(grand, 0), "zero percent")
	assertDecimal(t, d("0"), Discount(grand, -5), "negative percent")
	assertDecimal(t, d("5550"), Discount(grand, 10), "ten percent")
	assertDecimal(t, d("55500"), Discount(grand, 100), "full percent")
	assertDecimal(t, d("55500"), Discount(grand, 250), "clamped above max")
}

func TestFinalTotalNeverNegativeWithinRange(t *testing.T) {
	grand := d("12345.67")
	for p := -10; p <= 150; p++ {
		final := FinalTotal(grand, Discount(grand, p))
		assert.False(t, final.IsNegative(), "percentage %d produced %s", p, final)
	}
}

func TestClampPercentage(t *testing.T) {
	assert.Equal(t, 0, ClampPercentage(-1))
	assert.Equal(t, 0, ClampPercentage(0))
	assert.Equal(t, 50, ClampPercentage(50))
	assert.Equal(t, 100, ClampPercentage(100))
	assert.Equal(t, 100, ClampPercentage(101))
}

func TestCanAfford(t *testing.T) {
	assert.False(t, CanAfford(d("40000"), d("49950")))
	assert.True(t, CanAfford(d("49950"), d("49950")))
	assert.True(t, CanAfford(d("50000"), d("49950")))
	assert.True(t, CanAfford(d("0"), d("0")))
}

func TestLineItemTotal(t *testing.T) {
	item := LineItem{Name: "Sate", UnitPrice: d("12500"), Quantity: 4}
	assertDecimal(t, d("50000"), item.Total(), "line total")
	assertDecimal(t, d("50000"), Subtotal([]LineItem{item}), "subtotal")
}
