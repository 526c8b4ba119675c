package service

import (
	"context"
	"errors"
	"fmt"

	"ledger/internal/model"
	"ledger/internal/provider"
	"ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BalanceStore 余额与流水的存储原语，tx 为 nil 时不在事务内执行
type BalanceStore interface {
	Debit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error
	Credit(ctx context.Context, tx *gorm.DB, accountID int64, amount decimal.Decimal) error
	AppendLog(ctx context.Context, tx *gorm.DB, entry *model.TransactionLog) (*model.TransactionLog, error)
	GetBalance(ctx context.Context, tx *gorm.DB, accountID int64) (*model.AccountBalance, error)
	ListBalances(ctx context.Context) ([]*model.AccountBalance, error)
}

// WithdrawalRequestStore 提现申请存储
type WithdrawalRequestStore interface {
	Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error
	ListPendingIDs(ctx context.Context) ([]string, error)
	TransitionStatus(ctx context.Context, tx *gorm.DB, withdrawalID string, to model.WithdrawalStatus) (bool, error)
	GetByWithdrawalID(ctx context.Context, tx *gorm.DB, withdrawalID string) (*model.WithdrawalRequest, error)
}

// EventStore outbox 写入，与余额变更共用同一个事务
type EventStore interface {
	Create(ctx context.Context, tx *gorm.DB, msg *model.OutboxMessage) error
}

// TransferService 转账与提现编排
//
// 每个写操作都在一个数据库事务里完成：任何一步失败整体回滚，成功才提交。
// 进程内不加锁，余额互斥依赖数据库隔离级别和 Debit 的条件更新。
type TransferService struct {
	db          *gorm.DB
	balances    BalanceStore
	withdrawals WithdrawalRequestStore
	events      EventStore
	provider    provider.WithdrawalProvider
	eventTopic  string
	log         *zap.Logger

	newWithdrawalID func() string
}

// NewTransferService eventTopic 为空时不写 outbox 事件
func NewTransferService(db *gorm.DB, p provider.WithdrawalProvider, eventTopic string, log *zap.Logger) *TransferService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TransferService{
		db:              db,
		balances:        repository.NewBalanceRepository(db),
		withdrawals:     repository.NewWithdrawalRepository(db),
		events:          repository.NewOutboxRepository(db),
		provider:        p,
		eventTopic:      eventTopic,
		log:             log.Named("service.transfer"),
		newWithdrawalID: uuid.NewString,
	}
}

// Transfer 账户间转账
//
// 为避免死锁，所有转账都先动 account_id 较小的那一行：
// from > to 时先给 to 加款再扣 from，否则先扣 from 再给 to 加款。
func (s *TransferService) Transfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal) (*model.TransactionLog, error) {
	if err := validateAccountID(fromAccountID); err != nil {
		return nil, err
	}
	if err := validateAccountID(toAccountID); err != nil {
		return nil, err
	}
	if fromAccountID == toAccountID {
		return nil, validationError("不能给自己转账")
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var entry *model.TransactionLog
	err := s.inTx(ctx, "transfer", func(ctx context.Context, tx *gorm.DB) error {
		debit := func() error { return s.balances.Debit(ctx, tx, fromAccountID, amount) }
		credit := func() error { return s.balances.Credit(ctx, tx, toAccountID, amount) }

		first, second := debit, credit
		if fromAccountID > toAccountID {
			first, second = credit, debit
		}
		if err := first(); err != nil {
			return err
		}
		if err := second(); err != nil {
			return err
		}

		var err error
		entry, err = s.balances.AppendLog(ctx, tx, &model.TransactionLog{
			AccountID: fromAccountID,
			Amount:    amount,
			Type:      model.TransactionLogTransfer,
			Details:   fmt.Sprintf("transfer to account %d", toAccountID),
		})
		if err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return s.publish(ctx, tx, model.EventTransferCompleted, accountKey(fromAccountID), ledgerEvent{
			AccountID:      fromAccountID,
			CounterpartyID: toAccountID,
			Amount:         amount,
			LogID:          entry.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("转账成功",
		zap.Int64("from_account_id", fromAccountID),
		zap.Int64("to_account_id", toAccountID),
		zap.String("amount", amount.String()),
		zap.Int64("log_id", entry.ID),
	)
	return entry, nil
}

// Deposit 外部入账
func (s *TransferService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal) (*model.TransactionLog, error) {
	if err := validateAccountID(accountID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var entry *model.TransactionLog
	err := s.inTx(ctx, "deposit", func(ctx context.Context, tx *gorm.DB) error {
		if err := s.balances.Credit(ctx, tx, accountID, amount); err != nil {
			return err
		}

		var err error
		entry, err = s.balances.AppendLog(ctx, tx, &model.TransactionLog{
			AccountID: accountID,
			Amount:    amount,
			Type:      model.TransactionLogDeposit,
			Details:   "external deposit",
		})
		if err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		return s.publish(ctx, tx, model.EventDepositCompleted, accountKey(accountID), ledgerEvent{
			AccountID: accountID,
			Amount:    amount,
			LogID:     entry.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("入账成功", zap.Int64("account_id", accountID), zap.String("amount", amount.String()))
	return entry, nil
}

// GetBalances 所有账户余额快照
func (s *TransferService) GetBalances(ctx context.Context) ([]*model.AccountBalance, error) {
	accounts, err := s.balances.ListBalances(ctx)
	if err != nil {
		return nil, s.mapError("list_balances", err)
	}
	return accounts, nil
}

// inTx 在事务中执行 fn
//
// 事务一旦开启就不再响应调用方取消，只会提交或回滚。
// 回滚由 gorm 完成，回滚本身的错误不会覆盖 fn 的原始错误。
func (s *TransferService) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *gorm.DB) error) error {
	txCtx := context.WithoutCancel(ctx)
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		return fn(txCtx, tx)
	})
	if err != nil {
		return s.mapError(op, err)
	}
	return nil
}

// mapError 把存储层错误转换为服务层错误，原始错误只记日志
func (s *TransferService) mapError(op string, err error) error {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr
	case errors.Is(err, repository.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	default:
		s.log.Error("操作失败", zap.String("op", op), zap.Error(err))
		return ErrSystem
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return validationError("invalid amount")
	}
	return nil
}

func validateAccountID(accountID int64) error {
	if accountID <= 0 {
		return validationError("invalid account id %d", accountID)
	}
	return nil
}
