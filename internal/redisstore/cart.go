// Package redisstore keeps realtime state in Redis: carts and the balance
// fan-out channel.
package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/cart"
)

// DefaultCartTTL is how long an untouched cart is kept.
const DefaultCartTTL = 30 * 24 * time.Hour

// Each cart lives in three keys: a hash of quantities, a hash of unit
// prices and a version counter. The scripts below keep them consistent.
var (
	incrementScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[1], ARGV[1]) or '0')
if cur >= tonumber(ARGV[4]) then return -1 end
local q = redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
if q == 1 then
	redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
end
local v = redis.call('INCR', KEYS[3])
for i = 1, 3 do redis.call('EXPIRE', KEYS[i], ARGV[3]) end
return v
`)

	setQuantityScript = redis.NewScript(`
local n = tonumber(ARGV[2])
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 0 then
	if n <= 0 then return 0 end
	return -1
end
if n <= 0 then
	redis.call('HDEL', KEYS[1], ARGV[1])
	redis.call('HDEL', KEYS[2], ARGV[1])
else
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
local v = redis.call('INCR', KEYS[3])
for i = 1, 3 do redis.call('EXPIRE', KEYS[i], ARGV[3]) end
return v
`)

	// KEYS[4] is the set of checkout ids already settled against the cart.
	// ARGV holds the checkout id, the ttl and then name, -quantity pairs.
	settleScript = redis.NewScript(`
if redis.call('SADD', KEYS[4], ARGV[1]) == 0 then return 0 end
for i = 3, #ARGV, 2 do
	local q = redis.call('HINCRBY', KEYS[1], ARGV[i], ARGV[i + 1])
	if q <= 0 then
		redis.call('HDEL', KEYS[1], ARGV[i])
		redis.call('HDEL', KEYS[2], ARGV[i])
	end
end
local v = redis.call('INCR', KEYS[3])
for i = 1, 4 do redis.call('EXPIRE', KEYS[i], ARGV[2]) end
return v
`)

	clearScript = redis.NewScript(`
redis.call('DEL', KEYS[1], KEYS[2])
local v = redis.call('INCR', KEYS[3])
redis.call('EXPIRE', KEYS[3], ARGV[1])
return v
`)
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store on Redis hashes and pub/sub.
type CartStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartStore returns a CartStore. A zero ttl uses DefaultCartTTL.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	if ttl <= 0 {
		ttl = DefaultCartTTL
	}
	return &CartStore{client: client, ttl: ttl}
}

func cartPrefix(key cart.Key) string {
	return "vego:cart:{" + key.UserID + ":" + key.RestaurantID + "}"
}

func cartKeys(key cart.Key) []string {
	p := cartPrefix(key)
	return []string{p + ":qty", p + ":price", p + ":ver"}
}

func settledKey(key cart.Key) string {
	return cartPrefix(key) + ":settled"
}

func cartChannel(key cart.Key) string {
	return cartPrefix(key) + ":snapshots"
}

func (s *CartStore) ttlSeconds() int64 {
	return int64(s.ttl / time.Second)
}

// Get reads the current snapshot. A cart that was never written is empty at
// version zero.
func (s *CartStore) Get(ctx context.Context, key cart.Key) (*cart.Cart, error) {
	keys := cartKeys(key)

	var (
		qty   *redis.MapStringStringCmd
		price *redis.MapStringStringCmd
		ver   *redis.StringCmd
	)
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		qty = p.HGetAll(ctx, keys[0])
		price = p.HGetAll(ctx, keys[1])
		ver = p.Get(ctx, keys[2])
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "read cart")
	}

	c := &cart.Cart{Key: key, Items: []cart.Item{}}
	if v, err := ver.Int64(); err == nil {
		c.Version = v
	} else if !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "parse cart version")
	}

	prices := price.Val()
	for name, q := range qty.Val() {
		n, err := strconv.Atoi(q)
		if err != nil {
			return nil, errors.Wrapf(err, "parse quantity of %q", name)
		}
		p, ok := prices[name]
		if !ok {
			return nil, errors.Errorf("cart line %q has no price", name)
		}
		unit, err := decimal.NewFromString(p)
		if err != nil {
			return nil, errors.Wrapf(err, "parse price of %q", name)
		}
		c.Items = append(c.Items, cart.Item{Name: name, UnitPrice: unit, Quantity: n})
	}
	c.Normalize()
	return c, nil
}

// Increment adds one unit of name, creating the line at unitPrice.
func (s *CartStore) Increment(ctx context.Context, key cart.Key, name string, unitPrice decimal.Decimal) error {
	v, err := incrementScript.Run(ctx, s.client, cartKeys(key), name, unitPrice.String(), s.ttlSeconds(), cart.MaxQuantity).Int64()
	if err != nil {
		return errors.Wrap(err, "increment")
	}
	if v == -1 {
		return cart.ErrQuantityTooLarge
	}
	return s.publish(ctx, key)
}

// SetQuantity sets the quantity of an existing line; n <= 0 removes it.
func (s *CartStore) SetQuantity(ctx context.Context, key cart.Key, name string, n int) error {
	if n > cart.MaxQuantity {
		return cart.ErrQuantityTooLarge
	}
	v, err := setQuantityScript.Run(ctx, s.client, cartKeys(key), name, n, s.ttlSeconds()).Int64()
	if err != nil {
		return errors.Wrap(err, "set quantity")
	}
	switch v {
	case -1:
		return &cart.ItemNotFoundError{Name: name}
	case 0:
		return nil
	}
	return s.publish(ctx, key)
}

// Remove deletes the line.
func (s *CartStore) Remove(ctx context.Context, key cart.Key, name string) error {
	return s.SetQuantity(ctx, key, name, 0)
}

// Clear deletes every line.
func (s *CartStore) Clear(ctx context.Context, key cart.Key) error {
	if err := clearScript.Run(ctx, s.client, cartKeys(key), s.ttlSeconds()).Err(); err != nil {
		return errors.Wrap(err, "clear")
	}
	return s.publish(ctx, key)
}

// Settle subtracts the paid quantities once per checkout id.
func (s *CartStore) Settle(ctx context.Context, key cart.Key, checkoutID string, paid []cart.Item) error {
	keys := append(cartKeys(key), settledKey(key))
	args := make([]any, 0, 2+2*len(paid))
	args = append(args, checkoutID, s.ttlSeconds())
	for _, it := range paid {
		args = append(args, it.Name, -it.Quantity)
	}

	v, err := settleScript.Run(ctx, s.client, keys, args...).Int64()
	if err != nil {
		return errors.Wrap(err, "settle")
	}
	if v == 0 {
		return nil
	}
	return s.publish(ctx, key)
}

func (s *CartStore) publish(ctx context.Context, key cart.Key) error {
	c, err := s.Get(ctx, key)
	if err != nil {
		return errors.Wrap(err, "snapshot")
	}
	if err := s.client.Publish(ctx, cartChannel(key), encodeCart(*c)).Err(); err != nil {
		return errors.Wrap(err, "publish snapshot")
	}
	return nil
}

// Watch delivers the current snapshot and then every newer one until ctx is
// done. Only the latest undelivered snapshot is kept for slow readers, and
// snapshots older than the last delivered version are dropped.
func (s *CartStore) Watch(ctx context.Context, key cart.Key) (<-chan cart.Cart, error) {
	sub := s.client.Subscribe(ctx, cartChannel(key))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "subscribe")
	}

	current, err := s.Get(ctx, key)
	if err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan cart.Cart, 1)
	out <- *current

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		lg := zctx.From(ctx)
		last := current.Version
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c, err := decodeCart([]byte(msg.Payload))
				if err != nil {
					lg.Warn("Dropping cart snapshot", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				if c.Key != key || c.Version <= last {
					continue
				}
				last = c.Version
				offer(out, c)
			}
		}
	}()
	return out, nil
}

// offer replaces any undelivered value in ch with v. ch must have capacity
// one and a single sender.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
