// Package delivery holds the fixed set of delivery options offered at
// checkout.
package delivery

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrUnknownOption is returned when a delivery option name is not offered.
var ErrUnknownOption = errors.New("unknown delivery option")

// Option is a named delivery method with a flat fee.
type Option struct {
	Name  string
	Price decimal.Decimal
}

// None is used when the customer has not picked a delivery option.
var None = Option{Name: "None", Price: decimal.Zero}

var options = []Option{
	{Name: "Sharing Delivery", Price: decimal.NewFromInt(5000)},
	{Name: "Regular Delivery", Price: decimal.NewFromInt(10000)},
	{Name: "Premium Delivery", Price: decimal.NewFromInt(20000)},
}

// Options returns the delivery options in display order.
func Options() []Option {
	out := make([]Option, len(options))
	copy(out, options)
	return out
}

// Lookup returns the option with the given name. An empty name resolves to
// None.
func Lookup(name string) (Option, error) {
	if name == "" || name == None.Name {
		return None, nil
	}
	for _, o := range options {
		if o.Name == name {
			return o, nil
		}
	}
	return Option{}, errors.Wrapf(ErrUnknownOption, "%q", name)
}
