package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	sess, err := session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := h.Notifications.List(r.Context(), sess.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, n := range list {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(n.ID)
		e.FieldStart("title")
		e.Str(n.Title)
		e.FieldStart("body")
		e.Str(n.Body)
		e.FieldStart("created_at")
		timestamp(&e, n.CreatedAt)
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}
