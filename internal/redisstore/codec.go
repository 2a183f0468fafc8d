package redisstore

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/cart"
)

// encodeCart writes a full cart snapshot.
func encodeCart(c cart.Cart) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("user_id")
	e.Str(c.UserID)
	e.FieldStart("restaurant_id")
	e.Str(c.RestaurantID)
	e.FieldStart("version")
	e.Int64(c.Version)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range c.Items {
		e.ObjStart()
		e.FieldStart("name")
		e.Str(it.Name)
		e.FieldStart("unit_price")
		e.Str(it.UnitPrice.String())
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
	return e.Bytes()
}

// decodeCart parses a snapshot. Any missing or malformed field rejects the
// whole snapshot.
func decodeCart(data []byte) (cart.Cart, error) {
	var (
		c    cart.Cart
		seen = map[string]bool{}
	)
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user_id":
			c.UserID, err = d.Str()
		case "restaurant_id":
			c.RestaurantID, err = d.Str()
		case "version":
			c.Version, err = d.Int64()
		case "items":
			c.Items = []cart.Item{}
			err = d.Arr(func(d *jx.Decoder) error {
				it, err := decodeItem(d)
				if err != nil {
					return err
				}
				c.Items = append(c.Items, it)
				return nil
			})
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		seen[key] = true
		return nil
	})
	if err != nil {
		return cart.Cart{}, errors.Wrap(err, "decode cart snapshot")
	}
	for _, f := range []string{"user_id", "restaurant_id", "version", "items"} {
		if !seen[f] {
			return cart.Cart{}, errors.Errorf("decode cart snapshot: missing %q", f)
		}
	}
	if c.UserID == "" || c.RestaurantID == "" {
		return cart.Cart{}, errors.New("decode cart snapshot: empty key")
	}
	return c, nil
}

func decodeItem(d *jx.Decoder) (cart.Item, error) {
	var it cart.Item
	var hasName, hasPrice, hasQty bool
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "name":
			s, err := d.Str()
			if err != nil {
				return err
			}
			it.Name, hasName = s, true
		case "unit_price":
			s, err := d.Str()
			if err != nil {
				return err
			}
			p, err := decimal.NewFromString(s)
			if err != nil {
				return errors.Wrap(err, "unit_price")
			}
			if p.IsNegative() {
				return errors.New("negative unit_price")
			}
			it.UnitPrice, hasPrice = p, true
		case "quantity":
			n, err := d.Int()
			if err != nil {
				return err
			}
			it.Quantity, hasQty = n, true
		default:
			return d.Skip()
		}
		return nil
	})
	if err != nil {
		return cart.Item{}, err
	}
	switch {
	case !hasName || it.Name == "":
		return cart.Item{}, errors.New("item without name")
	case !hasPrice:
		return cart.Item{}, errors.Errorf("item %q without unit_price", it.Name)
	case !hasQty || it.Quantity <= 0:
		return cart.Item{}, errors.Errorf("item %q with invalid quantity", it.Name)
	}
	return it, nil
}

// encodeBalance writes a balance update.
func encodeBalance(userID string, balance decimal.Decimal) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("user_id")
	e.Str(userID)
	e.FieldStart("balance")
	e.Str(balance.String())
	e.ObjEnd()
	return e.Bytes()
}

func decodeBalance(data []byte) (string, decimal.Decimal, error) {
	var (
		userID  string
		balance decimal.Decimal
		hasBal  bool
	)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "user_id":
			s, err := d.Str()
			userID = s
			return err
		case "balance":
			s, err := d.Str()
			if err != nil {
				return err
			}
			balance, err = decimal.NewFromString(s)
			hasBal = err == nil
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", decimal.Zero, errors.Wrap(err, "decode balance")
	}
	if userID == "" || !hasBal {
		return "", decimal.Zero, errors.New("decode balance: incomplete payload")
	}
	return userID, balance, nil
}
