package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ledger/internal/infrastructure/database/dbtest"
	"ledger/internal/model"
	"ledger/internal/provider"
	"ledger/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ---- fakes ----

type fakeProvider struct {
	mu         sync.Mutex
	requestErr error
	stateErr   error
	states     map[string]provider.WithdrawalState
	requested  []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{states: make(map[string]provider.WithdrawalState)}
}

func (p *fakeProvider) RequestWithdrawal(ctx context.Context, withdrawalID, address string, amount decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.requestErr != nil {
		return p.requestErr
	}
	p.requested = append(p.requested, withdrawalID)
	return nil
}

func (p *fakeProvider) GetRequestState(ctx context.Context, withdrawalID string) (provider.WithdrawalState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stateErr != nil {
		return provider.StatePending, p.stateErr
	}
	return p.states[withdrawalID], nil
}

func (p *fakeProvider) setState(withdrawalID string, state provider.WithdrawalState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[withdrawalID] = state
}

// recordingBalanceStore 记录 Debit/Credit 的调用顺序
type recordingBalanceStore struct {
	BalanceStore
	mu  sync.Mutex
	ops []string
}

func (r *recordingBalanceStore) Debit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	r.record(fmt.Sprintf("debit:%d", accountID))
	return r.BalanceStore.Debit(ctx, tx, accountID, amount)
}

func (r *recordingBalanceStore) Credit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	r.record(fmt.Sprintf("credit:%d", accountID))
	return r.BalanceStore.Credit(ctx, tx, accountID, amount)
}

func (r *recordingBalanceStore) record(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingBalanceStore) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.ops
	r.ops = nil
	return ops
}

// ---- fixture ----

type fixture struct {
	svc         *TransferService
	db          *gorm.DB
	balances    *repository.BalanceRepository
	withdrawals *repository.WithdrawalRepository
	provider    *fakeProvider
}

const testTopic = "ledger_events"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	p := newFakeProvider()

	f := &fixture{
		svc:         NewTransferService(db, p, testTopic, zap.NewNop()),
		db:          db,
		balances:    repository.NewBalanceRepository(db),
		withdrawals: repository.NewWithdrawalRepository(db),
		provider:    p,
	}

	ctx := context.Background()
	require.NoError(t, f.balances.SetupAccount(ctx, 1, 1, decimal.NewFromInt(1000000)))
	for id := int64(2); id <= 5; id++ {
		require.NoError(t, f.balances.SetupAccount(ctx, id, id, decimal.Zero))
	}
	return f
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := f.balances.GetBalance(context.Background(), nil, accountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Balance
}

func (f *fixture) total(t *testing.T) decimal.Decimal {
	t.Helper()
	accounts, err := f.balances.ListBalances(context.Background())
	require.NoError(t, err)
	sum := decimal.Zero
	for _, a := range accounts {
		sum = sum.Add(a.Balance)
	}
	return sum
}

func (f *fixture) logs(t *testing.T, accountID int64) []*model.TransactionLog {
	t.Helper()
	logs, err := f.balances.ListLogs(context.Background(), accountID)
	require.NoError(t, err)
	return logs
}

func (f *fixture) outbox(t *testing.T) []*model.OutboxMessage {
	t.Helper()
	var msgs []*model.OutboxMessage
	require.NoError(t, f.db.Order("id ASC").Find(&msgs).Error)
	return msgs
}

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func requireBalance(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, want.Equal(got), "balance want %s, got %s", want, got)
}
