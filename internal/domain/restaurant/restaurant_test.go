package restaurant

import (
	"math"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMenuItem(t *testing.T) {
	r := &Restaurant{
		ID:   "r1",
		Name: "Warung Hijau",
		Menu: []MenuItem{
			{Name: "Gado Gado", Price: decimal.NewFromInt(15000)},
			{Name: "Es Teh", Price: decimal.NewFromInt(5000)},
		},
	}

	item, err := r.FindMenuItem("Es Teh")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(5000).Equal(item.Price))

	_, err = r.FindMenuItem("Rendang")
	var nf *MenuItemNotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "Rendang", nf.Name)
	assert.Equal(t, "menu item Rendang not found in restaurant r1", err.Error())
}

func TestDistance(t *testing.T) {
	monas := Point{Lat: -6.1754, Lng: 106.8272}

	tests := []struct {
		name string
		to   Point
		want float64
	}{
		{name: "same point", to: monas, want: 0},
		{name: "bundaran hi", to: Point{Lat: -6.1950, Lng: 106.8230}, want: 2.23},
		{name: "bandung", to: Point{Lat: -6.9175, Lng: 107.6191}, want: 120.26},
		{name: "antipode", to: Point{Lat: 6.1754, Lng: -73.1728}, want: math.Pi * earthRadiusKm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(monas, tt.to)
			assert.InDelta(t, tt.want, got, tt.want*0.01+0.01)
			assert.InDelta(t, got, Distance(tt.to, monas), 1e-9, "symmetric")
		})
	}
}

func TestPointValid(t *testing.T) {
	assert.True(t, Point{Lat: -6.2, Lng: 106.8}.Valid())
	assert.True(t, Point{Lat: 90, Lng: -180}.Valid())
	assert.False(t, Point{Lat: 91, Lng: 0}.Valid())
	assert.False(t, Point{Lat: 0, Lng: 180.5}.Valid())
}
