package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianyoga13/vego/internal/domain/cart"
)

var testKey = cart.Key{UserID: "u1", RestaurantID: "r1"}

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestCartStore_Lifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, time.Hour)
	ctx := context.Background()

	c, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.Zero(t, c.Version)

	require.NoError(t, s.Increment(ctx, testKey, "Nasi Goreng", decimal.NewFromInt(20000)))
	require.NoError(t, s.Increment(ctx, testKey, "Nasi Goreng", decimal.NewFromInt(99999)))
	require.NoError(t, s.Increment(ctx, testKey, "Es Teh", decimal.NewFromInt(5000)))

	c, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "Es Teh", c.Items[0].Name)
	assert.Equal(t, "Nasi Goreng", c.Items[1].Name)
	assert.Equal(t, 2, c.Items[1].Quantity)
	// Price is fixed when the line is created.
	assert.True(t, decimal.NewFromInt(20000).Equal(c.Items[1].UnitPrice))
	assert.Equal(t, int64(3), c.Version)

	require.NoError(t, s.SetQuantity(ctx, testKey, "Es Teh", 4))
	require.NoError(t, s.SetQuantity(ctx, testKey, "Nasi Goreng", 0))

	c, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 4, c.Items[0].Quantity)

	require.NoError(t, s.Clear(ctx, testKey))
	c, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.Equal(t, int64(6), c.Version)
}

func TestCartStore_SetQuantityMissing(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, 0)
	ctx := context.Background()

	err := s.SetQuantity(ctx, testKey, "ghost", 2)
	var nf *cart.ItemNotFoundError
	require.ErrorAs(t, err, &nf)

	// Removing a missing line is a no-op.
	require.NoError(t, s.Remove(ctx, testKey, "ghost"))
	c, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.Zero(t, c.Version)
}

func TestCartStore_NegativeQuantityRemoves(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, 0)
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, testKey, "a", decimal.NewFromInt(1)))
	require.NoError(t, s.SetQuantity(ctx, testKey, "a", -5))

	c, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCartStore_KeysAreIsolated(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, 0)
	ctx := context.Background()
	other := cart.Key{UserID: "u1", RestaurantID: "r2"}

	require.NoError(t, s.Increment(ctx, testKey, "a", decimal.NewFromInt(1)))

	c, err := s.Get(ctx, other)
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestCartStore_SetsTTL(t *testing.T) {
	client, mr := newTestClient(t)
	s := NewCartStore(client, time.Hour)

	require.NoError(t, s.Increment(context.Background(), testKey, "a", decimal.NewFromInt(1)))
	for _, k := range cartKeys(testKey) {
		assert.Equal(t, time.Hour, mr.TTL(k), k)
	}
}

func TestCartStore_Watch(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Increment(ctx, testKey, "a", decimal.NewFromInt(1)))

	ch, err := s.Watch(ctx, testKey)
	require.NoError(t, err)

	first := <-ch
	assert.Equal(t, int64(1), first.Version)
	require.Len(t, first.Items, 1)

	require.NoError(t, s.Increment(ctx, testKey, "a", decimal.NewFromInt(1)))

	select {
	case c := <-ch:
		assert.Equal(t, int64(2), c.Version)
		assert.Equal(t, 2, c.Items[0].Quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}

	// Malformed payloads are ignored.
	require.NoError(t, client.Publish(ctx, cartChannel(testKey), "garbage").Err())
	require.NoError(t, s.Clear(ctx, testKey))

	select {
	case c := <-ch:
		assert.True(t, c.Empty())
		assert.Equal(t, int64(3), c.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot received")
	}
}

func TestCartStore_QuantityBound(t *testing.T) {
	client, _ := newTestClient(t)
	s := NewCartStore(client, 0)
	ctx := context.Background()

	require.NoError(t, s.Increment(ctx, testKey, "Es Teh", decimal.NewFromInt(5000)))

	err := s.SetQuantity(ctx, testKey, "Es Teh", 123456789012345678)
	require.ErrorIs(t, err, cart.ErrQuantityTooLarge)

	require.NoError(t, s.SetQuantity(ctx, testKey, "Es Teh", cart.MaxQuantity))
	raw, err := client.HGet(ctx, cartKeys(testKey)[0], "Es Teh").Result()
	require.NoError(t, err)
	assert.Equal(t, "999", raw)

	// Already at the bound.
	err = s.Increment(ctx, testKey, "Es Teh", decimal.NewFromInt(5000))
	require.ErrorIs(t, err, cart.ErrQuantityTooLarge)

	c, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, cart.MaxQuantity, c.Items[0].Quantity)
}

func TestCartStore_Settle(t *testing.T) {
	client, mr := newTestClient(t)
	s := NewCartStore(client, time.Hour)
	ctx := context.Background()

	for _, name := range []string{"Nasi Goreng", "Nasi Goreng", "Sate Ayam"} {
		require.NoError(t, s.Increment(ctx, testKey, name, decimal.NewFromInt(20000)))
	}
	paid := []cart.Item{
		{Name: "Nasi Goreng", UnitPrice: decimal.NewFromInt(20000), Quantity: 2},
		{Name: "Sate Ayam", UnitPrice: decimal.NewFromInt(20000), Quantity: 1},
	}

	// Added after the checkout was paid.
	require.NoError(t, s.Increment(ctx, testKey, "Es Teh", decimal.NewFromInt(5000)))

	require.NoError(t, s.Settle(ctx, testKey, "c1", paid))
	require.NoError(t, s.Settle(ctx, testKey, "c1", paid))

	c, err := s.Get(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Es Teh", c.Items[0].Name)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Equal(t, int64(5), c.Version)
	assert.Equal(t, time.Hour, mr.TTL(settledKey(testKey)))

	// A line the user already removed does not come back negative.
	require.NoError(t, s.Settle(ctx, testKey, "c2", []cart.Item{{Name: "Nasi Goreng", Quantity: 1}}))
	c, err = s.Get(ctx, testKey)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Es Teh", c.Items[0].Name)
}
