package repository

import (
	"context"
	"testing"

	"ledger/internal/infrastructure/database/dbtest"
	"ledger/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newBalanceRepo(t *testing.T) (*BalanceRepository, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	repo := NewBalanceRepository(db)

	ctx := context.Background()
	require.NoError(t, repo.SetupAccount(ctx, 1, 1, decimal.NewFromInt(1000)))
	require.NoError(t, repo.SetupAccount(ctx, 2, 2, decimal.Zero))
	return repo, db
}

func balanceOf(t *testing.T, repo *BalanceRepository, accountID int64) decimal.Decimal {
	t.Helper()
	account, err := repo.GetBalance(context.Background(), nil, accountID)
	require.NoError(t, err)
	require.NotNil(t, account)
	return account.Balance
}

func TestBalanceRepository_Debit(t *testing.T) {
	repo, _ := newBalanceRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Debit(ctx, nil, 1, decimal.NewFromInt(400)))
	assert.True(t, decimal.NewFromInt(600).Equal(balanceOf(t, repo, 1)))

	// 恰好扣完
	require.NoError(t, repo.Debit(ctx, nil, 1, decimal.NewFromInt(600)))
	assert.True(t, decimal.Zero.Equal(balanceOf(t, repo, 1)))
}

func TestBalanceRepository_DebitInsufficient(t *testing.T) {
	repo, _ := newBalanceRepo(t)
	ctx := context.Background()

	err := repo.Debit(ctx, nil, 1, decimal.NewFromInt(1001))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, decimal.NewFromInt(1000).Equal(balanceOf(t, repo, 1)))
}

func TestBalanceRepository_DebitMissingAccountReportsInsufficient(t *testing.T) {
	repo, _ := newBalanceRepo(t)

	err := repo.Debit(context.Background(), nil, 99, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestBalanceRepository_Credit(t *testing.T) {
	repo, _ := newBalanceRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Credit(ctx, nil, 2, decimal.RequireFromString("12.5")))
	assert.True(t, decimal.RequireFromString("12.5").Equal(balanceOf(t, repo, 2)))

	err := repo.Credit(ctx, nil, 99, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestBalanceRepository_RollbackDiscardsDebit(t *testing.T) {
	repo, db := newBalanceRepo(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Debit(ctx, tx, 1, decimal.NewFromInt(100)); err != nil {
			return err
		}
		return repo.Credit(ctx, tx, 99, decimal.NewFromInt(100))
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
	assert.True(t, decimal.NewFromInt(1000).Equal(balanceOf(t, repo, 1)))
}

func TestBalanceRepository_AppendLog(t *testing.T) {
	repo, _ := newBalanceRepo(t)
	ctx := context.Background()

	first, err := repo.AppendLog(ctx, nil, &model.TransactionLog{
		AccountID: 1,
		Amount:    decimal.NewFromInt(500),
		Type:      model.TransactionLogTransfer,
		Details:   "transfer to account 2",
	})
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := repo.AppendLog(ctx, nil, &model.TransactionLog{
		AccountID: 1,
		Amount:    decimal.NewFromInt(10),
		Type:      model.TransactionLogWithdraw,
	})
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)

	logs, err := repo.ListLogs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.TransactionLogTransfer, logs[0].Type)
	assert.Equal(t, "transfer to account 2", logs[0].Details)
	assert.True(t, decimal.NewFromInt(500).Equal(logs[0].Amount))
	assert.Equal(t, model.TransactionLogWithdraw, logs[1].Type)
}

func TestBalanceRepository_GetBalanceMissing(t *testing.T) {
	repo, _ := newBalanceRepo(t)

	account, err := repo.GetBalance(context.Background(), nil, 42)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestBalanceRepository_SetupAccountResets(t *testing.T) {
	repo, _ := newBalanceRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SetupAccount(ctx, 1, 7, decimal.NewFromInt(5)))
	account, err := repo.GetBalance(ctx, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(7), account.UserID)
	assert.True(t, decimal.NewFromInt(5).Equal(account.Balance))

	accounts, err := repo.ListBalances(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, int64(1), accounts[0].AccountID)
	assert.Equal(t, int64(2), accounts[1].AccountID)
}

func TestBalanceRepository_FractionalAmountsStayExact(t *testing.T) {
	repo, db := newBalanceRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.SetupAccount(ctx, 3, 3, decimal.RequireFromString("0.3")))

	tenth := decimal.RequireFromString("0.1")
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Debit(ctx, nil, 3, tenth), "debit #%d", i+1)
	}
	assert.True(t, decimal.Zero.Equal(balanceOf(t, repo, 3)), "got %s", balanceOf(t, repo, 3))
	assert.ErrorIs(t, repo.Debit(ctx, nil, 3, decimal.RequireFromString("0.00000001")), ErrInsufficientBalance)

	require.NoError(t, repo.Credit(ctx, nil, 3, decimal.RequireFromString("0.12345678")))
	require.NoError(t, repo.Credit(ctx, nil, 3, decimal.RequireFromString("0.00000001")))
	assert.Equal(t, "0.12345679", balanceOf(t, repo, 3).String())

	var storage string
	require.NoError(t, db.Raw("SELECT typeof(balance) FROM account_balances WHERE account_id = ?", 3).Scan(&storage).Error)
	assert.Equal(t, "text", storage)
}

func TestBalanceRepository_CreditMissingAccountOnTextPath(t *testing.T) {
	repo, _ := newBalanceRepo(t)

	err := repo.Credit(context.Background(), nil, 99, decimal.RequireFromString("0.5"))
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
