package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWalletRepo struct {
	balances map[string]decimal.Decimal
	txs      []Transaction
	err      error
	limit    int
}

func (m *mockWalletRepo) Balance(_ context.Context, userID string) (decimal.Decimal, error) {
	return m.balances[userID], m.err
}

func (m *mockWalletRepo) TopUp(_ context.Context, tx Transaction) (decimal.Decimal, error) {
	if m.err != nil {
		return decimal.Zero, m.err
	}
	b := m.balances[tx.UserID].Add(tx.Amount)
	m.balances[tx.UserID] = b
	m.txs = append(m.txs, tx)
	return b, nil
}

func (m *mockWalletRepo) Transactions(_ context.Context, _ string, limit int) ([]Transaction, error) {
	m.limit = limit
	return m.txs, m.err
}

type mockNotifier struct {
	published []decimal.Decimal
	updates   chan decimal.Decimal
	err       error
}

func (m *mockNotifier) PublishBalance(_ context.Context, _ string, b decimal.Decimal) error {
	m.published = append(m.published, b)
	return m.err
}

func (m *mockNotifier) WatchBalance(context.Context, string) (<-chan decimal.Decimal, error) {
	return m.updates, nil
}

func newTestService() (*Service, *mockWalletRepo, *mockNotifier) {
	repo := &mockWalletRepo{balances: map[string]decimal.Decimal{"u1": decimal.NewFromInt(1000)}}
	n := &mockNotifier{updates: make(chan decimal.Decimal)}
	return NewService(repo, n, decimal.Zero), repo, n
}

func TestService_TopUp(t *testing.T) {
	tests := []struct {
		name        string
		amount      decimal.Decimal
		wantCredit  decimal.Decimal
		wantBalance decimal.Decimal
		wantErr     error
	}{
		{
			name:        "explicit amount",
			amount:      decimal.NewFromInt(20000),
			wantCredit:  decimal.NewFromInt(20000),
			wantBalance: decimal.NewFromInt(21000),
		},
		{
			name:        "zero uses default",
			amount:      decimal.Zero,
			wantCredit:  decimal.NewFromInt(50000),
			wantBalance: decimal.NewFromInt(51000),
		},
		{
			name:    "negative rejected",
			amount:  decimal.NewFromInt(-1),
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, n := newTestService()

			tx, balance, err := svc.TopUp(context.Background(), "u1", tt.amount)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, repo.txs)
				assert.Empty(t, n.published)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, TitleTopUp, tx.Title)
			assert.True(t, tt.wantCredit.Equal(tx.Amount))
			assert.True(t, tt.wantBalance.Equal(balance))
			require.Len(t, n.published, 1)
			assert.True(t, tt.wantBalance.Equal(n.published[0]))
		})
	}
}

func TestService_TopUpPublishFailureIsNotFatal(t *testing.T) {
	svc, _, n := newTestService()
	n.err = errors.New("redis down")

	_, balance, err := svc.TopUp(context.Background(), "u1", decimal.NewFromInt(1))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1001).Equal(balance))
}

func TestService_TopUpRepoError(t *testing.T) {
	svc, repo, n := newTestService()
	repo.err = errors.New("tx aborted")

	_, _, err := svc.TopUp(context.Background(), "u1", decimal.NewFromInt(1))
	require.Error(t, err)
	assert.Empty(t, n.published)
}

func TestService_TransactionsLimit(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Transactions(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, repo.limit)

	_, err = svc.Transactions(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.limit)
}

func TestService_Watch(t *testing.T) {
	svc, _, n := newTestService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := svc.Watch(ctx, "u1")
	require.NoError(t, err)

	first := <-ch
	assert.True(t, decimal.NewFromInt(1000).Equal(first))

	n.updates <- decimal.NewFromInt(500)
	select {
	case b := <-ch:
		assert.True(t, decimal.NewFromInt(500).Equal(b))
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-ch
		return !ok
	}, time.Second, 10*time.Millisecond)
}
