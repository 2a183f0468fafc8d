package handler

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/christianyoga13/vego/internal/domain/cart"
)

type addItemRequest struct {
	Name string `validate:"required,max=200"`
}

func (a *addItemRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "name" {
			return d.Skip()
		}
		var err error
		a.Name, err = d.Str()
		return err
	})
}

// Quantity may be zero or negative; such updates remove the line.
type setQuantityRequest struct {
	Quantity *int `validate:"required,max=999"`
}

func (s *setQuantityRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		n, err := d.Int()
		if err != nil {
			return err
		}
		s.Quantity = &n
		return nil
	})
}

// itemName returns the {name} path parameter, unescaped.
func itemName(r *http.Request) string {
	raw := chi.URLParam(r, "name")
	if name, err := url.PathUnescape(raw); err == nil {
		return name
	}
	return raw
}

func (h *Handler) writeCart(w http.ResponseWriter, c *cart.Cart) {
	var e jx.Encoder
	encodeCart(&e, *c)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Get(r.Context(), cartKey(r, sess))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Carts.Clear(r.Context(), cartKey(r, sess)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addItemRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Add(r.Context(), cartKey(r, sess), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req setQuantityRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.SetQuantity(r.Context(), cartKey(r, sess), itemName(r), *req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.Carts.Remove(r.Context(), cartKey(r, sess), itemName(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeCart(w, c)
}

// watchCart streams a snapshot event on every cart change.
func (h *Handler) watchCart(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := h.Carts.Watch(r.Context(), cartKey(r, sess))
	if err != nil {
		writeError(w, r, err)
		return
	}
	stream(r.Context(), h.done, w, h.keepAlive, "cart", ch, encodeCart)
}
