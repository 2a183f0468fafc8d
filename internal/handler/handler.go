// Package handler exposes the checkout backend over HTTP/JSON.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/checkout"
	"github.com/christianyoga13/vego/internal/domain/notification"
	"github.com/christianyoga13/vego/internal/domain/restaurant"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

// Carts is the cart API the handler serves.
type Carts interface {
	Get(ctx context.Context, key cart.Key) (*cart.Cart, error)
	Add(ctx context.Context, key cart.Key, name string) (*cart.Cart, error)
	SetQuantity(ctx context.Context, key cart.Key, name string, n int) (*cart.Cart, error)
	Remove(ctx context.Context, key cart.Key, name string) (*cart.Cart, error)
	Clear(ctx context.Context, key cart.Key) error
	Watch(ctx context.Context, key cart.Key) (<-chan cart.Cart, error)
}

// Checkouts quotes and commits orders.
type Checkouts interface {
	Quote(ctx context.Context, sess auth.Session, req checkout.Request) (*checkout.Quote, error)
	Commit(ctx context.Context, sess auth.Session, id string, req checkout.Request) (*checkout.Result, error)
}

// Wallets serves balances and the ledger.
type Wallets interface {
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	TopUp(ctx context.Context, userID string, amount decimal.Decimal) (*wallet.Transaction, decimal.Decimal, error)
	Transactions(ctx context.Context, userID string, limit int) ([]wallet.Transaction, error)
	Watch(ctx context.Context, userID string) (<-chan decimal.Decimal, error)
}

// Vouchers serves the catalog and claimed vouchers.
type Vouchers interface {
	Catalog(ctx context.Context) ([]voucher.CatalogVoucher, error)
	Claim(ctx context.Context, userID, code string) (*voucher.Voucher, error)
	Claimed(ctx context.Context, userID string) ([]voucher.Voucher, error)
	Delete(ctx context.Context, userID, code string) error
}

// Notifications lists a user's notifications.
type Notifications interface {
	List(ctx context.Context, userID string) ([]notification.Notification, error)
}

// Deps are the services behind the API.
type Deps struct {
	Restaurants   restaurant.Repository
	Carts         Carts
	Checkouts     Checkouts
	Wallets       Wallets
	Vouchers      Vouchers
	Notifications Notifications
}

// Config holds non-dependency settings.
type Config struct {
	// KeepAlive is the interval between SSE comment frames.
	KeepAlive time.Duration
	// Done ends open event streams when closed, typically on shutdown.
	Done <-chan struct{}
}

// Handler serves the /api routes.
type Handler struct {
	Deps
	keepAlive time.Duration
	done      <-chan struct{}
	validate  *validator.Validate
	now       func() time.Time
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	return &Handler{
		Deps:      deps,
		keepAlive: cfg.KeepAlive,
		done:      cfg.Done,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		now:       time.Now,
	}
}

// Routes mounts every endpoint on r. authn must place an auth.Session in
// the request context.
func (h *Handler) Routes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Get("/restaurants", h.listRestaurants)
		r.Get("/restaurants/{id}", h.getRestaurant)
		r.With(requireAdmin).Post("/restaurants", h.createRestaurant)
		r.With(requireAdmin).Post("/restaurants/{id}/menu", h.addMenuItem)
		r.With(requireAdmin).Delete("/restaurants/{id}", h.deleteRestaurant)

		r.Route("/carts/{restaurantID}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items/{name}", h.setCartItem)
			r.Delete("/items/{name}", h.removeCartItem)
			r.Get("/events", h.watchCart)
		})

		r.Get("/delivery-options", h.listDeliveryOptions)

		r.Get("/vouchers", h.listCatalog)
		r.Get("/me/vouchers", h.listClaimed)
		r.Post("/me/vouchers", h.claimVoucher)
		r.Delete("/me/vouchers/{code}", h.deleteVoucher)

		r.Get("/wallet", h.getBalance)
		r.Post("/wallet/top-up", h.topUp)
		r.Get("/wallet/transactions", h.listTransactions)
		r.Get("/wallet/events", h.watchBalance)

		r.Post("/checkout/quote", h.quote)
		r.Post("/checkout", h.commit)

		r.Get("/notifications", h.listNotifications)
	})
}

// session returns the authenticated session; the auth middleware guarantees
// one on every /api route.
func session(r *http.Request) (auth.Session, error) {
	return auth.FromContext(r.Context())
}

func cartKey(r *http.Request, sess auth.Session) cart.Key {
	return cart.Key{UserID: sess.UserID, RestaurantID: chi.URLParam(r, "restaurantID")}
}
