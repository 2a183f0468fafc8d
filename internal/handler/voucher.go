package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/christianyoga13/vego/internal/domain/delivery"
	"github.com/christianyoga13/vego/internal/domain/voucher"
)

type claimRequest struct {
	Code string `validate:"required,max=64"`
}

func (c *claimRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "code" {
			return d.Skip()
		}
		var err error
		c.Code, err = d.Str()
		return err
	})
}

func encodeVoucher(e *jx.Encoder, v voucher.Voucher) {
	e.ObjStart()
	e.FieldStart("code")
	e.Str(v.Code)
	e.FieldStart("discount_percentage")
	e.Int(v.DiscountPercentage)
	e.FieldStart("description")
	e.Str(v.Description)
	if !v.ClaimedAt.IsZero() {
		e.FieldStart("claimed_at")
		timestamp(e, v.ClaimedAt)
	}
	e.ObjEnd()
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	list, err := h.Vouchers.Catalog(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, v := range list {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(v.Code)
		e.FieldStart("discount_percentage")
		e.Int(v.DiscountPercentage)
		e.FieldStart("description")
		e.Str(v.Description)
		if v.ValidUntil != nil {
			e.FieldStart("valid_until")
			timestamp(&e, *v.ValidUntil)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listClaimed(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Vouchers.Claimed(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, v := range list {
		encodeVoucher(&e, v)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) claimVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req claimRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := h.Vouchers.Claim(r.Context(), sess.UserID, req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeVoucher(&e, *v)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) deleteVoucher(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Vouchers.Delete(r.Context(), sess.UserID, chi.URLParam(r, "code")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeDelivery(e *jx.Encoder, o delivery.Option) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(o.Name)
	e.FieldStart("price")
	money(e, o.Price)
	e.ObjEnd()
}

func (h *Handler) listDeliveryOptions(w http.ResponseWriter, _ *http.Request) {
	var e jx.Encoder
	e.ArrStart()
	for _, o := range delivery.Options() {
		encodeDelivery(&e, o)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}
