package wallet

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// Service implements wallet operations.
type Service struct {
	repo         Repository
	notifier     Notifier
	topUpDefault decimal.Decimal
	now          func() time.Time
}

// NewService creates a wallet Service. A zero topUpDefault falls back to
// DefaultTopUp.
func NewService(repo Repository, notifier Notifier, topUpDefault decimal.Decimal) *Service {
	if !topUpDefault.IsPositive() {
		topUpDefault = DefaultTopUp
	}
	return &Service{
		repo:         repo,
		notifier:     notifier,
		topUpDefault: topUpDefault,
		now:          time.Now,
	}
}

// Balance returns the user's current balance.
func (s *Service) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	b, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "get balance")
	}
	return b, nil
}

// TopUp credits the wallet. A zero amount credits the configured default.
func (s *Service) TopUp(ctx context.Context, userID string, amount decimal.Decimal) (*Transaction, decimal.Decimal, error) {
	if amount.IsNegative() {
		return nil, decimal.Zero, ErrInvalidAmount
	}
	if amount.IsZero() {
		amount = s.topUpDefault
	}

	tx := Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     TitleTopUp,
		Amount:    amount,
		CreatedAt: s.now().UTC(),
	}
	balance, err := s.repo.TopUp(ctx, tx)
	if err != nil {
		return nil, decimal.Zero, errors.Wrap(err, "top up")
	}

	if err := s.notifier.PublishBalance(ctx, userID, balance); err != nil {
		zctx.From(ctx).Warn("Publish balance failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return &tx, balance, nil
}

// Transactions lists the user's ledger newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	txs, err := s.repo.Transactions(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list transactions")
	}
	return txs, nil
}

// Watch streams the current balance followed by every change until ctx is
// done.
func (s *Service) Watch(ctx context.Context, userID string) (<-chan decimal.Decimal, error) {
	updates, err := s.notifier.WatchBalance(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "watch balance")
	}
	current, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan decimal.Decimal, 1)
	out <- current
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case b, ok := <-updates:
				if !ok {
					return
				}
				select {
				case out <- b:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
