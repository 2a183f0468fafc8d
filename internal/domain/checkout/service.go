package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/delivery"
	"github.com/christianyoga13/vego/internal/domain/pricing"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

const instrumentationName = "github.com/christianyoga13/vego/internal/domain/checkout"

// Deps are the collaborators of a Service. Events, TracerProvider and
// MeterProvider are optional.
type Deps struct {
	Store    Store
	Carts    Carts
	Vouchers Vouchers
	Balances Balances
	Notifier BalancePublisher
	Events   EventPublisher

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Service quotes and commits checkouts.
type Service struct {
	store    Store
	carts    Carts
	vouchers Vouchers
	balances Balances
	notifier BalancePublisher
	events   EventPublisher

	tracer    trace.Tracer
	completed metric.Int64Counter
	rejected  metric.Int64Counter
	now       func() time.Time
}

// NewService creates a checkout Service.
func NewService(d Deps) (*Service, error) {
	if d.Events == nil {
		d.Events = nopPublisher{}
	}
	if d.TracerProvider == nil {
		d.TracerProvider = tracenoop.NewTracerProvider()
	}
	if d.MeterProvider == nil {
		d.MeterProvider = metricnoop.NewMeterProvider()
	}

	meter := d.MeterProvider.Meter(instrumentationName)
	completed, err := meter.Int64Counter("vego.checkout.completed",
		metric.WithDescription("Checkouts that reached the completed state"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "completed counter")
	}
	rejected, err := meter.Int64Counter("vego.checkout.rejected",
		metric.WithDescription("Commits rejected for insufficient funds"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}

	return &Service{
		store:     d.Store,
		carts:     d.Carts,
		vouchers:  d.Vouchers,
		balances:  d.Balances,
		notifier:  d.Notifier,
		events:    d.Events,
		tracer:    d.TracerProvider.Tracer(instrumentationName),
		completed: completed,
		rejected:  rejected,
		now:       time.Now,
	}, nil
}

// Quote prices the user's current cart for req.
func (s *Service) Quote(ctx context.Context, sess auth.Session, req Request) (*Quote, error) {
	if sess.UserID == "" {
		return nil, auth.ErrNotAuthenticated
	}

	opt, err := delivery.Lookup(req.DeliveryName)
	if err != nil {
		return nil, err
	}

	key := cart.Key{UserID: sess.UserID, RestaurantID: req.RestaurantID}
	switch pending, err := s.store.Pending(ctx, key); {
	case err == nil:
		zctx.From(ctx).Info("Cart has a pending checkout", zap.String("checkout_id", pending.ID))
		return nil, ErrCheckoutPending
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "get pending checkout")
	}

	c, err := s.carts.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}

	v, err := s.vouchers.Select(ctx, sess.UserID, req.VoucherCode)
	if err != nil {
		return nil, errors.Wrap(err, "select voucher")
	}
	percentage := 0
	if v != nil {
		percentage = v.DiscountPercentage
	}

	totals := pricing.Compute(c.LineItems(), opt.Price, percentage)

	balance, err := s.balances.Balance(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "get balance")
	}

	return &Quote{
		Cart:      c,
		Delivery:  opt,
		Voucher:   v,
		Totals:    totals,
		Balance:   balance,
		CanAfford: pricing.CanAfford(balance, totals.FinalTotal),
	}, nil
}

// Commit pays for the user's cart under the idempotency key id. An
// unaffordable order yields StatusInsufficientFunds without touching any
// state. Committing an id again returns the stored checkout.
func (s *Service) Commit(ctx context.Context, sess auth.Session, id string, req Request) (_ *Result, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Commit",
		trace.WithAttributes(attribute.String("checkout.id", id)),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if sess.UserID == "" {
		return nil, auth.ErrNotAuthenticated
	}
	if id == "" {
		return nil, ErrMissingID
	}

	existing, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return s.replay(sess, existing)
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "get checkout")
	}

	q, err := s.Quote(ctx, sess, req)
	if err != nil {
		return nil, err
	}
	if !q.CanAfford {
		return s.reject(ctx, q), nil
	}

	now := s.now().UTC()
	c := &Checkout{
		ID:           id,
		UserID:       sess.UserID,
		RestaurantID: req.RestaurantID,
		DeliveryName: q.Delivery.Name,
		Items:        q.Cart.Items,
		Totals:       q.Totals,
		Status:       StatusPaid,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if q.Voucher != nil {
		c.VoucherCode = q.Voucher.Code
	}
	tx := wallet.Transaction{
		ID:         uuid.New().String(),
		UserID:     sess.UserID,
		Title:      wallet.TitleOrder,
		Amount:     q.Totals.FinalTotal,
		CheckoutID: id,
		CreatedAt:  now,
	}

	balance, err := s.store.Pay(ctx, c, tx)
	switch {
	case errors.Is(err, ErrDuplicate):
		existing, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "get checkout")
		}
		return s.replay(sess, existing)
	case errors.Is(err, ErrInsufficientFunds):
		return s.reject(ctx, q), nil
	case errors.Is(err, ErrCheckoutPending):
		return nil, err
	case err != nil:
		return nil, errors.Wrap(err, "pay")
	}

	lg := zctx.From(ctx).With(zap.String("checkout_id", id))
	lg.Info("Checkout paid", zap.String("total", q.Totals.FinalTotal.StringFixed(2)))

	if err := s.notifier.PublishBalance(ctx, sess.UserID, balance); err != nil {
		lg.Warn("Publish balance failed", zap.Error(err))
	}
	if err := s.complete(ctx, c); err != nil {
		lg.Warn("Checkout left for reconciliation", zap.Error(err))
	}

	return &Result{
		Status:   c.Status,
		Checkout: c,
		Quote:    q,
		Balance:  balance,
	}, nil
}

func (s *Service) replay(sess auth.Session, c *Checkout) (*Result, error) {
	if c.UserID != sess.UserID {
		return nil, ErrIDConflict
	}
	return &Result{Status: c.Status, Checkout: c, Replayed: true}, nil
}

func (s *Service) reject(ctx context.Context, q *Quote) *Result {
	s.rejected.Add(ctx, 1)
	zctx.From(ctx).Info("Checkout rejected",
		zap.String("balance", q.Balance.StringFixed(2)),
		zap.String("total", q.Totals.FinalTotal.StringFixed(2)),
	)
	return &Result{Status: StatusInsufficientFunds, Quote: q, Balance: q.Balance}
}

// complete removes the paid lines from the cart, marks the checkout
// completed and publishes the completion event. On a cart failure the
// checkout stays paid with the failure recorded.
func (s *Service) complete(ctx context.Context, c *Checkout) error {
	if err := s.carts.Settle(ctx, c.Key(), c.ID, c.Items); err != nil {
		c.LastError = err.Error()
		if mErr := s.store.MarkFailed(ctx, c.ID, c.LastError); mErr != nil {
			zctx.From(ctx).Error("Record checkout failure", zap.String("checkout_id", c.ID), zap.Error(mErr))
		}
		return errors.Wrap(err, "settle cart")
	}
	if err := s.store.MarkCompleted(ctx, c.ID); err != nil {
		return errors.Wrap(err, "mark completed")
	}
	c.Status = StatusCompleted
	c.LastError = ""
	s.completed.Add(ctx, 1)

	e := Event{
		CheckoutID:   c.ID,
		UserID:       c.UserID,
		RestaurantID: c.RestaurantID,
		FinalTotal:   c.Totals.FinalTotal,
		ItemCount:    itemCount(c.Items),
		CompletedAt:  s.now().UTC(),
	}
	if err := s.events.PublishCompleted(ctx, e); err != nil {
		zctx.From(ctx).Warn("Publish checkout event failed", zap.String("checkout_id", c.ID), zap.Error(err))
	}
	return nil
}

func itemCount(items []cart.Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
