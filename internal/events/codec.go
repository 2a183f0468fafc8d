package events

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

// TypeCheckoutCompleted is the event type header value.
const TypeCheckoutCompleted = "checkout.completed"

func encodeCompleted(e checkout.Event) []byte {
	var w jx.Encoder
	w.ObjStart()
	w.FieldStart("checkout_id")
	w.Str(e.CheckoutID)
	w.FieldStart("user_id")
	w.Str(e.UserID)
	w.FieldStart("restaurant_id")
	w.Str(e.RestaurantID)
	w.FieldStart("final_total")
	w.Str(e.FinalTotal.String())
	w.FieldStart("item_count")
	w.Int(e.ItemCount)
	w.FieldStart("completed_at")
	w.Str(e.CompletedAt.UTC().Format(time.RFC3339Nano))
	w.ObjEnd()
	return w.Bytes()
}

func decodeCompleted(data []byte) (checkout.Event, error) {
	var e checkout.Event
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "checkout_id":
			e.CheckoutID, err = d.Str()
		case "user_id":
			e.UserID, err = d.Str()
		case "restaurant_id":
			e.RestaurantID, err = d.Str()
		case "final_total":
			var s string
			if s, err = d.Str(); err == nil {
				e.FinalTotal, err = decimal.NewFromString(s)
			}
		case "item_count":
			e.ItemCount, err = d.Int()
		case "completed_at":
			var s string
			if s, err = d.Str(); err == nil {
				e.CompletedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		return checkout.Event{}, errors.Wrap(err, "decode checkout event")
	}
	if e.CheckoutID == "" || e.UserID == "" {
		return checkout.Event{}, errors.New("decode checkout event: missing ids")
	}
	return e, nil
}
