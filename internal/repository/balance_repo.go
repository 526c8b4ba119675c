package repository

import (
	"context"
	"errors"

	"ledger/internal/infrastructure/database"
	"ledger/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound     = errors.New("账户不存在")
	ErrInsufficientBalance = errors.New("余额不足")
	ErrBalanceConflict     = errors.New("余额并发更新冲突")
)

const casMaxAttempts = 3

type BalanceRepository struct {
	db *gorm.DB
	// SQLite 上金额按 TEXT 存储，加减在 Go 里完成
	textAmounts bool
}

func NewBalanceRepository(db *gorm.DB) *BalanceRepository {
	return &BalanceRepository{
		db:          db,
		textAmounts: db.Dialector.Name() == database.DialectSQLite,
	}
}

func (r *BalanceRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Debit 条件扣减余额
//
// MySQL 上检查和扣减在同一条 UPDATE 里完成，不需要先查再改；SQLite 上走 compareAndSet。
// 两条路径下账户不存在都返回 ErrInsufficientBalance。
func (r *BalanceRepository) Debit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	if r.textAmounts {
		return r.compareAndSet(ctx, tx, accountID, ErrInsufficientBalance, func(current decimal.Decimal) (decimal.Decimal, error) {
			if current.LessThan(amount) {
				return decimal.Zero, ErrInsufficientBalance
			}
			return current.Sub(amount), nil
		})
	}

	result := r.conn(tx).WithContext(ctx).
		Model(&model.AccountBalance{}).
		Where("account_id = ? AND balance >= ?", accountID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrInsufficientBalance
	}

	return nil
}

// Credit 增加余额，账户不存在时返回 ErrAccountNotFound
func (r *BalanceRepository) Credit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error {
	if r.textAmounts {
		return r.compareAndSet(ctx, tx, accountID, ErrAccountNotFound, func(current decimal.Decimal) (decimal.Decimal, error) {
			return current.Add(amount), nil
		})
	}

	result := r.conn(tx).WithContext(ctx).
		Model(&model.AccountBalance{}).
		Where("account_id = ?", accountID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}

// compareAndSet 读出余额，用 apply 算出新值，再以旧值为条件写回
// 旧值已被别的写入改掉时重读重算，最多 casMaxAttempts 次
func (r *BalanceRepository) compareAndSet(ctx context.Context, tx *gorm.DB, accountID int64, missing error, apply func(current decimal.Decimal) (decimal.Decimal, error)) error {
	db := r.conn(tx).WithContext(ctx)

	for attempt := 0; attempt < casMaxAttempts; attempt++ {
		var account model.AccountBalance
		err := db.Where("account_id = ?", accountID).Take(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return missing
		}
		if err != nil {
			return err
		}

		next, err := apply(account.Balance)
		if err != nil {
			return err
		}

		result := db.Model(&model.AccountBalance{}).
			Where("account_id = ? AND balance = ?", accountID, account.Balance).
			Update("balance", next)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 1 {
			return nil
		}
	}

	return ErrBalanceConflict
}

// AppendLog 写入一条流水，返回带自增ID的记录
func (r *BalanceRepository) AppendLog(ctx context.Context, tx *gorm.DB, entry *model.TransactionLog) (*model.TransactionLog, error) {
	if err := r.conn(tx).WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// GetBalance 账户不存在时返回 nil, nil
func (r *BalanceRepository) GetBalance(ctx context.Context, tx *gorm.DB, accountID int64) (*model.AccountBalance, error) {
	var account model.AccountBalance
	err := r.conn(tx).WithContext(ctx).Where("account_id = ?", accountID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *BalanceRepository) ListBalances(ctx context.Context) ([]*model.AccountBalance, error) {
	var accounts []*model.AccountBalance
	err := r.db.WithContext(ctx).Order("account_id ASC").Find(&accounts).Error
	return accounts, err
}

func (r *BalanceRepository) ListLogs(ctx context.Context, accountID int64) ([]*model.TransactionLog, error) {
	var logs []*model.TransactionLog
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("id ASC").
		Find(&logs).Error
	return logs, err
}

// SetupAccount 重置账户余额，仅用于开发环境初始化和测试
func (r *BalanceRepository) SetupAccount(ctx context.Context, accountID, userID int64, balance decimal.Decimal) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("account_id = ?", accountID).Delete(&model.AccountBalance{}).Error; err != nil {
			return err
		}
		return tx.Create(&model.AccountBalance{
			AccountID: accountID,
			UserID:    userID,
			Balance:   balance,
		}).Error
	})
}
