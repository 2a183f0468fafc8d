//go:build integration

package redisstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/christianyoga13/vego/internal/domain/cart"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate redis: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client, err := Connect(ctx, Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedis_CartStore(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := NewCartStore(client, time.Minute)
	key := cart.Key{UserID: "u-int", RestaurantID: "r-int"}

	t.Run("ConcurrentIncrements", func(t *testing.T) {
		const n = 50
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, s.Increment(ctx, key, "Sate Ayam", decimal.NewFromInt(25000)))
			}()
		}
		wg.Wait()

		c, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, n, c.Items[0].Quantity)
		assert.Equal(t, int64(n), c.Version)
	})
	t.Run("TTL", func(t *testing.T) {
		for _, k := range cartKeys(key) {
			ttl, err := client.TTL(ctx, k).Result()
			require.NoError(t, err)
			assert.Greater(t, ttl, time.Duration(0), k)
			assert.LessOrEqual(t, ttl, time.Minute, k)
		}
	})
	t.Run("Watch", func(t *testing.T) {
		wctx, wcancel := context.WithCancel(ctx)
		defer wcancel()

		ch, err := s.Watch(wctx, key)
		require.NoError(t, err)

		initial := <-ch
		require.NoError(t, s.SetQuantity(ctx, key, "Sate Ayam", 3))

		select {
		case c := <-ch:
			assert.Greater(t, c.Version, initial.Version)
			require.Len(t, c.Items, 1)
			assert.Equal(t, 3, c.Items[0].Quantity)
		case <-ctx.Done():
			t.Fatal("no snapshot received")
		}

		wcancel()
		for range ch {
		}
	})
	t.Run("Settle", func(t *testing.T) {
		require.NoError(t, s.Increment(ctx, key, "Es Teh", decimal.NewFromInt(5000)))
		paid := []cart.Item{{Name: "Sate Ayam", UnitPrice: decimal.NewFromInt(25000), Quantity: 3}}
		require.NoError(t, s.Settle(ctx, key, "c-int", paid))
		require.NoError(t, s.Settle(ctx, key, "c-int", paid))

		c, err := s.Get(ctx, key)
		require.NoError(t, err)
		require.Len(t, c.Items, 1)
		assert.Equal(t, "Es Teh", c.Items[0].Name)
	})
	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx, key))
		c, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, c.Empty())
		assert.Positive(t, c.Version)
	})
}

func TestRedis_BalanceNotifier(t *testing.T) {
	client := startRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n := NewBalanceNotifier(client)
	ch, err := n.WatchBalance(ctx, "u-bal")
	require.NoError(t, err)

	require.NoError(t, n.PublishBalance(ctx, "someone-else", decimal.NewFromInt(1)))
	require.NoError(t, n.PublishBalance(ctx, "u-bal", decimal.NewFromInt(75000)))

	select {
	case b := <-ch:
		assert.True(t, b.Equal(decimal.NewFromInt(75000)), b.String())
	case <-ctx.Done():
		t.Fatal("no balance received")
	}
}
