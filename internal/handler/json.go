package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/pricing"
)

const maxBodyBytes = 1 << 20

// badRequestError marks malformed request bodies.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return "invalid request body: " + e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }

// decoder is implemented by request bodies.
type decoder interface {
	Decode(d *jx.Decoder) error
}

// readJSON decodes the body into v and validates its struct tags.
func (h *Handler) readJSON(r *http.Request, v decoder) error {
	data, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return &badRequestError{err: err}
	}
	if len(data) > 0 {
		if err := v.Decode(jx.DecodeBytes(data)); err != nil {
			return &badRequestError{err: err}
		}
	}
	return h.validate.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// decodeMoney reads an amount given either as a JSON string or number.
func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Zero, errors.New("amount must be a string or number")
	}
}

// Amounts are rendered as strings with two decimals.
func money(e *jx.Encoder, d decimal.Decimal) {
	e.Str(d.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeTotals(e *jx.Encoder, t pricing.Totals) {
	e.ObjStart()
	e.FieldStart("subtotal")
	money(e, t.Subtotal)
	e.FieldStart("delivery_fee")
	money(e, t.DeliveryFee)
	e.FieldStart("tax")
	money(e, t.Tax)
	e.FieldStart("grand_total")
	money(e, t.GrandTotal)
	e.FieldStart("discount")
	money(e, t.Discount)
	e.FieldStart("final_total")
	money(e, t.FinalTotal)
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c cart.Cart) {
	e.ObjStart()
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
		money(e, it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("total")
		money(e, it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("subtotal")
	money(e, pricing.Subtotal(c.LineItems()))
	e.ObjEnd()
}
