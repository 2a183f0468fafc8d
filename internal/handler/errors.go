package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/checkout"
	"github.com/christianyoga13/vego/internal/domain/delivery"
	"github.com/christianyoga13/vego/internal/domain/restaurant"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	var (
		bad        *badRequestError
		invalid    validator.ValidationErrors
		noLine     *cart.ItemNotFoundError
		noMenuItem *restaurant.MenuItemNotFoundError
	)
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized, "not_authenticated"
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.As(err, &bad), errors.As(err, &invalid),
		errors.Is(err, cart.ErrEmptyName),
		errors.Is(err, cart.ErrQuantityTooLarge),
		errors.Is(err, checkout.ErrMissingID),
		errors.Is(err, wallet.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, restaurant.ErrNotFound):
		return http.StatusNotFound, "restaurant_not_found"
	case errors.As(err, &noLine):
		return http.StatusNotFound, "item_not_found"
	case errors.As(err, &noMenuItem):
		return http.StatusUnprocessableEntity, "menu_item_not_found"
	case errors.Is(err, delivery.ErrUnknownOption):
		return http.StatusUnprocessableEntity, "unknown_delivery_option"
	case errors.Is(err, voucher.ErrVoucherNotFound):
		return http.StatusUnprocessableEntity, "invalid_voucher"
	case errors.Is(err, voucher.ErrVoucherExpired):
		return http.StatusUnprocessableEntity, "voucher_expired"
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(err, voucher.ErrAlreadyClaimed):
		return http.StatusConflict, "voucher_already_claimed"
	case errors.Is(err, restaurant.ErrMenuItemExists):
		return http.StatusConflict, "menu_item_exists"
	case errors.Is(err, checkout.ErrIDConflict):
		return http.StatusConflict, "checkout_id_conflict"
	case errors.Is(err, checkout.ErrCheckoutPending):
		return http.StatusConflict, "checkout_pending"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError renders err as {"code","message"}. Server errors are logged and
// their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal server error"
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}
