package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_Normalize(t *testing.T) {
	c := &Cart{Items: []Item{
		{Name: "z", Quantity: 1},
		{Name: "gone", Quantity: 0},
		{Name: "a", Quantity: 2},
		{Name: "neg", Quantity: -1},
	}}
	c.Normalize()

	require.Len(t, c.Items, 2)
	assert.Equal(t, "a", c.Items[0].Name)
	assert.Equal(t, "z", c.Items[1].Name)
}

func TestCart_LineItems(t *testing.T) {
	c := &Cart{Items: []Item{{Name: "a", UnitPrice: decimal.NewFromInt(20000), Quantity: 2}}}
	li := c.LineItems()

	require.Len(t, li, 1)
	assert.True(t, decimal.NewFromInt(40000).Equal(li[0].Total()))
}
