package notification

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianyoga13/vego/internal/domain/checkout"
)

type mockRepo struct {
	byID map[string]Notification
}

func (m *mockRepo) Create(_ context.Context, n Notification) error {
	if _, ok := m.byID[n.ID]; ok {
		return nil
	}
	m.byID[n.ID] = n
	return nil
}

func (m *mockRepo) List(_ context.Context, userID string, _ int) ([]Notification, error) {
	var out []Notification
	for _, n := range m.byID {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestService_HandleCheckoutCompleted(t *testing.T) {
	repo := &mockRepo{byID: make(map[string]Notification)}
	svc := NewService(repo)
	ctx := context.Background()

	e := checkout.Event{
		CheckoutID:  "c1",
		UserID:      "u1",
		FinalTotal:  decimal.NewFromInt(49950),
		CompletedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	// Redelivery must not duplicate.
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, e))
	require.NoError(t, svc.HandleCheckoutCompleted(ctx, e))

	ns, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "Order paid", ns[0].Title)
	assert.Equal(t, "Your order of 49950.00 has been paid.", ns[0].Body)
}

func TestService_HandleCheckoutCompletedRequiresUser(t *testing.T) {
	svc := NewService(&mockRepo{byID: make(map[string]Notification)})
	require.Error(t, svc.HandleCheckoutCompleted(context.Background(), checkout.Event{CheckoutID: "c1"}))
}

func TestFromCheckout_StableID(t *testing.T) {
	a := FromCheckout(checkout.Event{CheckoutID: "c1", UserID: "u1"})
	b := FromCheckout(checkout.Event{CheckoutID: "c1", UserID: "u1"})
	c := FromCheckout(checkout.Event{CheckoutID: "c2", UserID: "u1"})

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}
