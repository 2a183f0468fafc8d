package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

// IdempotencyHeader carries the client-chosen checkout ID.
const IdempotencyHeader = "Idempotency-Key"

type checkoutRequest struct {
	RestaurantID string `validate:"required,max=64"`
	Delivery     string `validate:"max=64"`
	VoucherCode  string `validate:"max=64"`
}

func (c *checkoutRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "restaurant_id":
			c.RestaurantID, err = d.Str()
		case "delivery":
			c.Delivery, err = d.Str()
		case "voucher_code":
			c.VoucherCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

func (c *checkoutRequest) request() checkout.Request {
	return checkout.Request{
		RestaurantID: c.RestaurantID,
		DeliveryName: c.Delivery,
		VoucherCode:  c.VoucherCode,
	}
}

func encodeQuote(e *jx.Encoder, q *checkout.Quote) {
	e.ObjStart()
	e.FieldStart("cart")
	encodeCart(e, *q.Cart)
	e.FieldStart("delivery")
	encodeDelivery(e, q.Delivery)
	if q.Voucher != nil {
		e.FieldStart("voucher")
		encodeVoucher(e, *q.Voucher)
	}
	e.FieldStart("totals")
	encodeTotals(e, q.Totals)
	e.FieldStart("balance")
	money(e, q.Balance)
	e.FieldStart("can_afford")
	e.Bool(q.CanAfford)
	e.ObjEnd()
}

func encodeCheckout(e *jx.Encoder, c *checkout.Checkout) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("restaurant_id")
	e.Str(c.RestaurantID)
	e.FieldStart("delivery")
	e.Str(c.DeliveryName)
	if c.VoucherCode != "" {
		e.FieldStart("voucher_code")
		e.Str(c.VoucherCode)
	}
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
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("totals")
	encodeTotals(e, c.Totals)
	e.FieldStart("status")
	e.Str(string(c.Status))
	e.FieldStart("created_at")
	timestamp(e, c.CreatedAt)
	e.ObjEnd()
}

func encodeResult(e *jx.Encoder, res *checkout.Result) {
	e.ObjStart()
	e.FieldStart("status")
	e.Str(string(res.Status))
	if res.Checkout != nil {
		e.FieldStart("checkout")
		encodeCheckout(e, res.Checkout)
	}
	if res.Quote != nil {
		e.FieldStart("quote")
		encodeQuote(e, res.Quote)
	}
	e.FieldStart("balance")
	money(e, res.Balance)
	e.FieldStart("replayed")
	e.Bool(res.Replayed)
	e.ObjEnd()
}

func (h *Handler) quote(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	q, err := h.Checkouts.Quote(r.Context(), sess, req.request())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeQuote(&e, q)
	writeJSON(w, http.StatusOK, &e)
}

// commit pays for the cart. Rejections for insufficient funds are answered
// with 402 and carry the quote that could not be afforded.
func (h *Handler) commit(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req checkoutRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := r.Header.Get(IdempotencyHeader)
	res, err := h.Checkouts.Commit(r.Context(), sess, id, req.request())
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Status == checkout.StatusInsufficientFunds {
		status = http.StatusPaymentRequired
	}

	var e jx.Encoder
	encodeResult(&e, res)
	writeJSON(w, status, &e)
}
