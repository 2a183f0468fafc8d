package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/wallet"
)

type topUpRequest struct {
	Amount decimal.Decimal `validate:"-"`
}

func (t *topUpRequest) Decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "amount" {
			return d.Skip()
		}
		var err error
		t.Amount, err = decodeMoney(d)
		return err
	})
}

func encodeBalance(e *jx.Encoder, b decimal.Decimal) {
	e.ObjStart()
	e.FieldStart("balance")
	money(e, b)
	e.ObjEnd()
}

func encodeTransaction(e *jx.Encoder, tx wallet.Transaction) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(tx.ID)
	e.FieldStart("title")
	e.Str(tx.Title)
	e.FieldStart("amount")
	money(e, tx.Amount)
	e.FieldStart("refunded")
	e.Bool(tx.Refunded)
	if tx.CheckoutID != "" {
		e.FieldStart("checkout_id")
		e.Str(tx.CheckoutID)
	}
	e.FieldStart("created_at")
	timestamp(e, tx.CreatedAt)
	e.ObjEnd()
}

func (h *Handler) getBalance(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Wallets.Balance(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeBalance(&e, b)
	writeJSON(w, http.StatusOK, &e)
}

// topUp credits the wallet. An empty body tops up the default amount.
func (h *Handler) topUp(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req topUpRequest
	if err := h.readJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	tx, balance, err := h.Wallets.TopUp(r.Context(), sess.UserID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("transaction")
	encodeTransaction(&e, *tx)
	e.FieldStart("balance")
	money(&e, balance)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil {
			writeError(w, r, &badRequestError{err: err})
			return
		}
	}

	txs, err := h.Wallets.Transactions(r.Context(), sess.UserID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, tx := range txs {
		encodeTransaction(&e, tx)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// watchBalance streams a balance event on every wallet change.
func (h *Handler) watchBalance(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ch, err := h.Wallets.Watch(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stream(r.Context(), h.done, w, h.keepAlive, "balance", ch, encodeBalance)
}
