package redisstore

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/christianyoga13/vego/internal/domain/wallet"
)

var _ wallet.Notifier = (*BalanceNotifier)(nil)

// BalanceNotifier fans wallet balance changes out over Redis pub/sub.
type BalanceNotifier struct {
	client *redis.Client
}

// NewBalanceNotifier returns a BalanceNotifier.
func NewBalanceNotifier(client *redis.Client) *BalanceNotifier {
	return &BalanceNotifier{client: client}
}

func balanceChannel(userID string) string {
	return "vego:wallet:{" + userID + "}:balance"
}

// PublishBalance announces the user's new balance.
func (n *BalanceNotifier) PublishBalance(ctx context.Context, userID string, balance decimal.Decimal) error {
	if err := n.client.Publish(ctx, balanceChannel(userID), encodeBalance(userID, balance)).Err(); err != nil {
		return errors.Wrap(err, "publish balance")
	}
	return nil
}

// WatchBalance streams balance updates until ctx is done. Slow readers only
// see the latest balance.
func (n *BalanceNotifier) WatchBalance(ctx context.Context, userID string) (<-chan decimal.Decimal, error) {
	sub := n.client.Subscribe(ctx, balanceChannel(userID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrap(err, "subscribe")
	}

	out := make(chan decimal.Decimal, 1)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				uid, b, err := decodeBalance([]byte(msg.Payload))
				if err != nil || uid != userID {
					zctx.From(ctx).Warn("Dropping balance update", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				offer(out, b)
			}
		}
	}()
	return out, nil
}
