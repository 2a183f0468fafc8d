package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianyoga13/vego/internal/domain/auth"
	"github.com/christianyoga13/vego/internal/domain/cart"
	"github.com/christianyoga13/vego/internal/domain/delivery"
	"github.com/christianyoga13/vego/internal/domain/voucher"
	"github.com/christianyoga13/vego/internal/domain/wallet"
)

// --- Mock implementations ---

type mockStore struct {
	checkouts map[string]*Checkout
	balances  map[string]decimal.Decimal
	vouchers  map[string]bool
	ledger    []wallet.Transaction

	payErr    error
	getErr    error
	completed []string
	failed    []string
}

func newMockStore() *mockStore {
	return &mockStore{
		checkouts: make(map[string]*Checkout),
		balances:  make(map[string]decimal.Decimal),
		vouchers:  make(map[string]bool),
	}
}

func (m *mockStore) Pay(_ context.Context, c *Checkout, tx wallet.Transaction) (decimal.Decimal, error) {
	if m.payErr != nil {
		return decimal.Zero, m.payErr
	}
	if _, ok := m.checkouts[c.ID]; ok {
		return decimal.Zero, ErrDuplicate
	}
	if _, err := m.Pending(context.Background(), c.Key()); err == nil {
		return decimal.Zero, ErrCheckoutPending
	}
	b := m.balances[c.UserID]
	if b.LessThan(c.Totals.FinalTotal) {
		return decimal.Zero, ErrInsufficientFunds
	}
	if c.VoucherCode != "" {
		if !m.vouchers[c.VoucherCode] {
			return decimal.Zero, voucher.ErrVoucherNotFound
		}
		delete(m.vouchers, c.VoucherCode)
	}
	b = b.Sub(c.Totals.FinalTotal)
	m.balances[c.UserID] = b
	stored := *c
	m.checkouts[c.ID] = &stored
	m.ledger = append(m.ledger, tx)
	return b, nil
}

func (m *mockStore) Get(_ context.Context, id string) (*Checkout, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.checkouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockStore) Pending(_ context.Context, key cart.Key) (*Checkout, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, c := range m.checkouts {
		if c.Status == StatusPaid && c.Key() == key {
			out := *c
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockStore) MarkCompleted(_ context.Context, id string) error {
	m.completed = append(m.completed, id)
	m.checkouts[id].Status = StatusCompleted
	m.checkouts[id].LastError = ""
	return nil
}

func (m *mockStore) MarkFailed(_ context.Context, id, reason string) error {
	m.failed = append(m.failed, id)
	m.checkouts[id].LastError = reason
	return nil
}

func (m *mockStore) ListStale(_ context.Context, before time.Time, limit int) ([]Checkout, error) {
	var out []Checkout
	for _, c := range m.checkouts {
		if c.Status == StatusPaid && c.UpdatedAt.Before(before) && len(out) < limit {
			out = append(out, *c)
		}
	}
	return out, nil
}

type mockCarts struct {
	carts     map[cart.Key]*cart.Cart
	settleErr error
	settled   []string
	// beforeSettle simulates a cart change racing the checkout.
	beforeSettle func(c *cart.Cart)
}

func (m *mockCarts) Get(_ context.Context, key cart.Key) (*cart.Cart, error) {
	c, ok := m.carts[key]
	if !ok {
		return &cart.Cart{Key: key}, nil
	}
	out := *c
	out.Items = append([]cart.Item(nil), c.Items...)
	return &out, nil
}

func (m *mockCarts) Settle(_ context.Context, key cart.Key, checkoutID string, paid []cart.Item) error {
	if m.settleErr != nil {
		return m.settleErr
	}
	m.settled = append(m.settled, checkoutID)
	c, ok := m.carts[key]
	if !ok {
		return nil
	}
	if m.beforeSettle != nil {
		m.beforeSettle(c)
	}
	for _, p := range paid {
		for i := range c.Items {
			if c.Items[i].Name == p.Name {
				c.Items[i].Quantity -= p.Quantity
			}
		}
	}
	c.Normalize()
	return nil
}

type mockVouchers struct {
	claimed map[string]voucher.Voucher
}

func (m *mockVouchers) Select(_ context.Context, _ string, code string) (*voucher.Voucher, error) {
	if code == "" {
		return nil, nil
	}
	v, ok := m.claimed[code]
	if !ok {
		return nil, voucher.ErrVoucherNotFound
	}
	return &v, nil
}

type balancesFromStore struct{ store *mockStore }

func (b balancesFromStore) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	return b.store.balances[userID], nil
}

type mockNotifier struct {
	published []decimal.Decimal
}

func (m *mockNotifier) PublishBalance(_ context.Context, _ string, b decimal.Decimal) error {
	m.published = append(m.published, b)
	return nil
}

type mockEvents struct {
	events []Event
	err    error
}

func (m *mockEvents) PublishCompleted(_ context.Context, e Event) error {
	m.events = append(m.events, e)
	return m.err
}

// --- Helpers ---

var (
	testSession = auth.Session{ID: "s1", UserID: "u1"}
	testKey     = cart.Key{UserID: "u1", RestaurantID: "r1"}
	fixedNow    = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	svc      *Service
	store    *mockStore
	carts    *mockCarts
	notifier *mockNotifier
	events   *mockEvents
}

// newFixture builds a service whose u1 cart at r1 holds 2 x 20000, and whose
// u1 wallet holds balance. The user has claimed DISCOUNT10.
func newFixture(t *testing.T, balance int64) *fixture {
	t.Helper()

	store := newMockStore()
	store.balances["u1"] = decimal.NewFromInt(balance)
	store.vouchers["DISCOUNT10"] = true

	carts := &mockCarts{carts: map[cart.Key]*cart.Cart{
		testKey: {
			Key:   testKey,
			Items: []cart.Item{{Name: "Nasi Goreng", UnitPrice: decimal.NewFromInt(20000), Quantity: 2}},
		},
	}}
	vouchers := &mockVouchers{claimed: map[string]voucher.Voucher{
		"DISCOUNT10": voucher.New("DISCOUNT10", 10),
		"FREESHIP50": voucher.New("FREESHIP50", 0),
	}}
	notifier := &mockNotifier{}
	events := &mockEvents{}

	svc, err := NewService(Deps{
		Store:    store,
		Carts:    carts,
		Vouchers: vouchers,
		Balances: balancesFromStore{store: store},
		Notifier: notifier,
		Events:   events,
	})
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }

	return &fixture{svc: svc, store: store, carts: carts, notifier: notifier, events: events}
}

var regularWithDiscount = Request{
	RestaurantID: "r1",
	DeliveryName: "Regular Delivery",
	VoucherCode:  "DISCOUNT10",
}

// --- Tests ---

func TestService_Quote(t *testing.T) {
	tests := []struct {
		name         string
		req          Request
		wantTax      string
		wantDiscount string
		wantFinal    string
	}{
		{
			name:         "regular delivery with ten percent voucher",
			req:          regularWithDiscount,
			wantTax:      "5500",
			wantDiscount: "5550",
			wantFinal:    "49950",
		},
		{
			name:         "no voucher",
			req:          Request{RestaurantID: "r1", DeliveryName: "Regular Delivery"},
			wantTax:      "5500",
			wantDiscount: "0",
			wantFinal:    "55500",
		},
		{
			name:         "free shipping voucher has no monetary discount",
			req:          Request{RestaurantID: "r1", DeliveryName: "Sharing Delivery", VoucherCode: "FREESHIP50"},
			wantTax:      "4950",
			wantDiscount: "0",
			wantFinal:    "49950",
		},
		{
			name:         "no delivery option",
			req:          Request{RestaurantID: "r1"},
			wantTax:      "4400",
			wantDiscount: "0",
			wantFinal:    "44400",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100000)

			q, err := f.svc.Quote(context.Background(), testSession, tt.req)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantTax).Equal(q.Totals.Tax), "tax %s", q.Totals.Tax)
			assert.True(t, decimal.RequireFromString(tt.wantDiscount).Equal(q.Totals.Discount), "discount %s", q.Totals.Discount)
			assert.True(t, decimal.RequireFromString(tt.wantFinal).Equal(q.Totals.FinalTotal), "final %s", q.Totals.FinalTotal)
			assert.True(t, q.CanAfford)
		})
	}
}

func TestService_QuoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		sess    auth.Session
		req     Request
		wantErr error
	}{
		{name: "no session", sess: auth.Session{}, req: regularWithDiscount, wantErr: auth.ErrNotAuthenticated},
		{name: "unknown delivery", sess: testSession, req: Request{RestaurantID: "r1", DeliveryName: "Drone"}, wantErr: delivery.ErrUnknownOption},
		{name: "empty cart", sess: testSession, req: Request{RestaurantID: "other"}, wantErr: ErrEmptyCart},
		{name: "unclaimed voucher", sess: testSession, req: Request{RestaurantID: "r1", VoucherCode: "CASHBACK20"}, wantErr: voucher.ErrVoucherNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100000)
			_, err := f.svc.Quote(context.Background(), tt.sess, tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_CommitCompletes(t *testing.T) {
	f := newFixture(t, 100000)

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.False(t, res.Replayed)
	assert.True(t, decimal.NewFromInt(50050).Equal(res.Balance), "balance %s", res.Balance)

	// Ledger entry titled Order for the final total.
	require.Len(t, f.store.ledger, 1)
	assert.Equal(t, wallet.TitleOrder, f.store.ledger[0].Title)
	assert.True(t, decimal.NewFromInt(49950).Equal(f.store.ledger[0].Amount))
	assert.Equal(t, "c1", f.store.ledger[0].CheckoutID)

	// Voucher consumed, cart settled, balance published, event sent.
	assert.False(t, f.store.vouchers["DISCOUNT10"])
	assert.Equal(t, []string{"c1"}, f.carts.settled)
	assert.Equal(t, []string{"c1"}, f.store.completed)
	require.Len(t, f.notifier.published, 1)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, 2, f.events.events[0].ItemCount)
	assert.Equal(t, StatusCompleted, f.store.checkouts["c1"].Status)
}

func TestService_CommitInsufficientFunds(t *testing.T) {
	f := newFixture(t, 40000)

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)

	assert.Equal(t, StatusInsufficientFunds, res.Status)
	assert.Nil(t, res.Checkout)
	assert.True(t, decimal.NewFromInt(49950).Equal(res.Quote.Totals.FinalTotal))

	// Nothing changed.
	assert.True(t, decimal.NewFromInt(40000).Equal(f.store.balances["u1"]))
	assert.True(t, f.store.vouchers["DISCOUNT10"])
	assert.Empty(t, f.store.ledger)
	assert.Empty(t, f.store.checkouts)
	assert.Empty(t, f.carts.settled)
	assert.Empty(t, f.notifier.published)
	assert.Empty(t, f.events.events)
}

func TestService_CommitLosesRaceOnDebit(t *testing.T) {
	f := newFixture(t, 100000)
	f.store.payErr = ErrInsufficientFunds

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)
	assert.Equal(t, StatusInsufficientFunds, res.Status)
	assert.Empty(t, f.carts.settled)
}

func TestService_CommitIsIdempotent(t *testing.T) {
	f := newFixture(t, 200000)
	ctx := context.Background()

	first, err := f.svc.Commit(ctx, testSession, "c1", Request{RestaurantID: "r1"})
	require.NoError(t, err)

	second, err := f.svc.Commit(ctx, testSession, "c1", Request{RestaurantID: "r1"})
	require.NoError(t, err)

	assert.True(t, second.Replayed)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Equal(t, first.Checkout.ID, second.Checkout.ID)
	assert.Len(t, f.store.ledger, 1)
}

func TestService_CommitIDOwnedByAnotherUser(t *testing.T) {
	f := newFixture(t, 200000)
	f.store.checkouts["c1"] = &Checkout{ID: "c1", UserID: "u2", Status: StatusCompleted}

	_, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.ErrorIs(t, err, ErrIDConflict)
}

func TestService_CommitValidation(t *testing.T) {
	f := newFixture(t, 100000)

	_, err := f.svc.Commit(context.Background(), auth.Session{}, "c1", regularWithDiscount)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)

	_, err = f.svc.Commit(context.Background(), testSession, "", regularWithDiscount)
	require.ErrorIs(t, err, ErrMissingID)

	assert.Empty(t, f.store.ledger)
}

func TestService_CommitStoreError(t *testing.T) {
	f := newFixture(t, 100000)
	f.store.payErr = errors.New("connection reset")

	_, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.Error(t, err)
	assert.Empty(t, f.carts.settled)
	assert.Empty(t, f.events.events)
}

func TestService_CommitClearFailureLeavesPaid(t *testing.T) {
	f := newFixture(t, 100000)
	f.carts.settleErr = errors.New("redis timeout")

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)

	assert.Equal(t, StatusPaid, res.Status)
	assert.Equal(t, "redis timeout", res.Checkout.LastError)
	assert.Equal(t, []string{"c1"}, f.store.failed)
	assert.Empty(t, f.events.events)
	// Payment still went through.
	assert.True(t, decimal.NewFromInt(50050).Equal(f.store.balances["u1"]))
}

func TestService_CommitRefusedWhileCheckoutPending(t *testing.T) {
	f := newFixture(t, 200000)
	f.carts.settleErr = errors.New("redis timeout")
	ctx := context.Background()

	first, err := f.svc.Commit(ctx, testSession, "c1", regularWithDiscount)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, first.Status)

	// The paid items are still in the cart; a new key must not pay for them again.
	_, err = f.svc.Commit(ctx, testSession, "c2", Request{RestaurantID: "r1", DeliveryName: "Regular Delivery"})
	require.ErrorIs(t, err, ErrCheckoutPending)
	_, err = f.svc.Quote(ctx, testSession, Request{RestaurantID: "r1"})
	require.ErrorIs(t, err, ErrCheckoutPending)

	assert.Len(t, f.store.ledger, 1)
	assert.True(t, decimal.NewFromInt(150050).Equal(f.store.balances["u1"]), "balance %s", f.store.balances["u1"])

	// Retrying the first key still replays.
	again, err := f.svc.Commit(ctx, testSession, "c1", regularWithDiscount)
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	// Other carts of the same user are unaffected.
	_, err = f.svc.Quote(ctx, testSession, Request{RestaurantID: "other"})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestService_CommitPendingRace(t *testing.T) {
	f := newFixture(t, 200000)
	f.store.payErr = ErrCheckoutPending

	_, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.ErrorIs(t, err, ErrCheckoutPending)
	assert.Empty(t, f.carts.settled)
}

func TestService_CommitKeepsItemsAddedAfterQuote(t *testing.T) {
	f := newFixture(t, 100000)
	f.carts.beforeSettle = func(c *cart.Cart) {
		c.Items = append(c.Items, cart.Item{Name: "Es Teh", UnitPrice: decimal.NewFromInt(5000), Quantity: 1})
	}

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.Status)
	require.Len(t, res.Checkout.Items, 1)

	c, err := f.carts.Get(context.Background(), testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Es Teh", c.Items[0].Name)
}

func TestService_CommitEventFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, 100000)
	f.events.err = errors.New("broker down")

	res, err := f.svc.Commit(context.Background(), testSession, "c1", regularWithDiscount)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
}
