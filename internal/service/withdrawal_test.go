package service

import (
	"context"
	"errors"
	"testing"

	"ledger/internal/model"
	"ledger/internal/provider"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 转账后 account1 = 999500，再提现 100
func requestScenarioWithdrawal(t *testing.T, f *fixture) string {
	t.Helper()
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, 1, 2, dec(500))
	require.NoError(t, err)

	receipt, err := f.svc.RequestWithdrawal(ctx, 1, dec(100), "addr")
	require.NoError(t, err)
	require.NotEmpty(t, receipt.WithdrawalID)
	return receipt.WithdrawalID
}

func TestRequestWithdrawal_Success(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)

	requireBalance(t, dec(999400), f.balance(t, 1))

	req, err := f.withdrawals.GetByWithdrawalID(context.Background(), nil, id)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.True(t, req.Status.IsPending())
	assert.Equal(t, int64(1), req.FromAccountID)
	assert.Equal(t, "addr", req.ToAddress)
	requireBalance(t, dec(100), req.Amount)

	assert.Equal(t, []string{id}, f.provider.requested)

	logs := f.logs(t, 1)
	require.Len(t, logs, 2)
	assert.Equal(t, model.TransactionLogWithdraw, logs[1].Type)
	requireBalance(t, dec(100), logs[1].Amount)

	msgs := f.outbox(t)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.EventWithdrawalRequested, msgs[1].EventType)
	assert.Equal(t, id, msgs[1].MessageKey)
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestWithdrawal(ctx, 1, dec(0), "addr")
	assert.Equal(t, CodeValidationError, CodeOf(err))

	_, err = f.svc.RequestWithdrawal(ctx, 1, dec(10), "  ")
	assert.Equal(t, CodeValidationError, CodeOf(err))

	assert.Empty(t, f.provider.requested)
	requireBalance(t, dec(1000000), f.balance(t, 1))
}

func TestRequestWithdrawal_InsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.RequestWithdrawal(ctx, 2, dec(10), "addr")
	assert.Equal(t, CodeInsufficientBalance, CodeOf(err))

	ids, err := f.svc.GetListPendingWithdrawalRequest(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.provider.requested)
}

func TestRequestWithdrawal_ProviderFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.provider.requestErr = errors.New("provider unavailable")
	ctx := context.Background()

	_, err := f.svc.RequestWithdrawal(ctx, 1, dec(100), "addr")
	require.Error(t, err)
	assert.Equal(t, CodeSystemError, CodeOf(err))
	assert.NotContains(t, err.Error(), "provider unavailable")

	requireBalance(t, dec(1000000), f.balance(t, 1))
	ids, err := f.svc.GetListPendingWithdrawalRequest(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, f.logs(t, 1))
	assert.Empty(t, f.outbox(t))
}

func TestRequestWithdrawal_DuplicateIDRejected(t *testing.T) {
	f := newFixture(t)
	f.svc.newWithdrawalID = func() string { return "fixed-id" }
	ctx := context.Background()

	_, err := f.svc.RequestWithdrawal(ctx, 1, dec(100), "addr")
	require.NoError(t, err)

	_, err = f.svc.RequestWithdrawal(ctx, 1, dec(100), "addr")
	assert.Equal(t, CodeSystemError, CodeOf(err))

	// 第二次整体回滚，只扣了一次
	requireBalance(t, dec(999900), f.balance(t, 1))
}

func TestSyncWithdrawal_Failed_CompensatesOnce(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)
	ctx := context.Background()

	f.provider.setState(id, provider.StateFailed)

	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(ctx, id))
	requireBalance(t, dec(999500), f.balance(t, 1))

	// 重复对账不会重复退款
	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(ctx, id))
	requireBalance(t, dec(999500), f.balance(t, 1))

	view, err := f.svc.GetWithdrawalRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusFailed, view.Status)

	reversals := 0
	for _, l := range f.logs(t, 1) {
		if l.Type == model.TransactionLogDeposit {
			reversals++
			requireBalance(t, dec(100), l.Amount)
		}
	}
	assert.Equal(t, 1, reversals)

	ids, err := f.svc.GetListPendingWithdrawalRequest(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSyncWithdrawal_Completed(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)
	ctx := context.Background()

	f.provider.setState(id, provider.StateCompleted)
	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(ctx, id))

	view, err := f.svc.GetWithdrawalRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusSuccess, view.Status)
	requireBalance(t, dec(999400), f.balance(t, 1))

	// SUCCESS 之后渠道再报 FAILED 也不回退
	f.provider.setState(id, provider.StateFailed)
	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(ctx, id))
	view, err = f.svc.GetWithdrawalRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusSuccess, view.Status)
	requireBalance(t, dec(999400), f.balance(t, 1))

	msgs := f.outbox(t)
	assert.Equal(t, model.EventWithdrawalSettled, msgs[len(msgs)-1].EventType)
}

func TestSyncWithdrawal_StillPending(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(ctx, id))

	ids, err := f.svc.GetListPendingWithdrawalRequest(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestSyncWithdrawal_UnknownIDIsNoop(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.SyncWithdrawalRequestStatus(context.Background(), "does-not-exist"))
}

func TestSyncWithdrawal_ProviderErrorLeavesPending(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)
	ctx := context.Background()

	f.provider.stateErr = errors.New("timeout")
	err := f.svc.SyncWithdrawalRequestStatus(ctx, id)
	assert.Equal(t, CodeSystemError, CodeOf(err))

	view, err := f.svc.GetWithdrawalRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.WithdrawalStatusRequested, view.Status)
}

func TestSyncWithdrawal_CompensationFailureRollsBackStatus(t *testing.T) {
	f := newFixture(t)
	id := requestScenarioWithdrawal(t, f)
	ctx := context.Background()

	// 源账户被删除，退款加款失败，状态也必须回滚
	require.NoError(t, f.db.Where("account_id = ?", 1).Delete(&model.AccountBalance{}).Error)
	f.provider.setState(id, provider.StateFailed)

	err := f.svc.SyncWithdrawalRequestStatus(ctx, id)
	assert.Equal(t, CodeAccountNotFound, CodeOf(err))

	view, err := f.svc.GetWithdrawalRequest(ctx, id)
	require.NoError(t, err)
	assert.True(t, view.Status.IsPending())
}

func TestGetWithdrawalRequest_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetWithdrawalRequest(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, CodeResourceNotFound, CodeOf(err))
}
