package service

import (
	"context"
	"fmt"
	"strings"

	"ledger/internal/model"
	"ledger/internal/provider"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type WithdrawalReceipt struct {
	WithdrawalID string `json:"withdrawal_id"`
}

type WithdrawalView struct {
	ID            int64                  `json:"id"`
	FromAccountID int64                  `json:"from_account_id"`
	WithdrawalID  string                 `json:"withdrawal_id"`
	ToAddress     string                 `json:"to_address"`
	Amount        decimal.Decimal        `json:"amount"`
	Status        model.WithdrawalStatus `json:"status"`
}

// RequestWithdrawal 发起提现
//
// 申请落库、扣款、记流水和调用渠道在同一个事务里。渠道受理之后才提交，
// 任何一步失败都会回滚，资金从未离开账户，不需要补偿。
// 最终结果由对账任务通过 SyncWithdrawalRequestStatus 异步更新。
func (s *TransferService) RequestWithdrawal(ctx context.Context, fromAccountID int64, amount decimal.Decimal, address string) (*WithdrawalReceipt, error) {
	if err := validateAccountID(fromAccountID); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, validationError("invalid address")
	}

	withdrawalID := s.newWithdrawalID()

	err := s.inTx(ctx, "request_withdrawal", func(ctx context.Context, tx *gorm.DB) error {
		req := &model.WithdrawalRequest{
			FromAccountID: fromAccountID,
			WithdrawalID:  withdrawalID,
			ToAddress:     address,
			Amount:        amount,
			Status:        model.WithdrawalStatusRequested,
		}
		if err := s.withdrawals.Create(ctx, tx, req); err != nil {
			return fmt.Errorf("创建提现申请失败: %w", err)
		}

		if err := s.balances.Debit(ctx, tx, fromAccountID, amount); err != nil {
			return err
		}

		if _, err := s.balances.AppendLog(ctx, tx, &model.TransactionLog{
			AccountID: fromAccountID,
			Amount:    amount,
			Type:      model.TransactionLogWithdraw,
			Details:   fmt.Sprintf("withdrawal %s to %s", withdrawalID, address),
		}); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if err := s.publish(ctx, tx, model.EventWithdrawalRequested, withdrawalID, ledgerEvent{
			AccountID:    fromAccountID,
			WithdrawalID: withdrawalID,
			Amount:       amount,
			Status:       model.WithdrawalStatusRequested.String(),
		}); err != nil {
			return err
		}

		if err := s.provider.RequestWithdrawal(ctx, withdrawalID, address, amount); err != nil {
			return fmt.Errorf("渠道受理提现失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("提现已受理",
		zap.String("withdrawal_id", withdrawalID),
		zap.Int64("from_account_id", fromAccountID),
		zap.String("amount", amount.String()),
	)
	return &WithdrawalReceipt{WithdrawalID: withdrawalID}, nil
}

// GetListPendingWithdrawalRequest 尚未到达终态的提现ID，供对账任务轮询
func (s *TransferService) GetListPendingWithdrawalRequest(ctx context.Context) ([]string, error) {
	ids, err := s.withdrawals.ListPendingIDs(ctx)
	if err != nil {
		return nil, s.mapError("list_pending_withdrawals", err)
	}
	return ids, nil
}

// SyncWithdrawalRequestStatus 根据渠道状态推进提现
//
// COMPLETED -> SUCCESS；FAILED -> FAILED 并把金额退回原账户，这是系统里唯一的补偿交易。
// 状态推进是条件更新，只有真正把记录从 pending 推走的那次调用才会退款，重复对账不会重复退款。
// 失败时整体回滚，记录仍为 pending，下一轮对账重试。
func (s *TransferService) SyncWithdrawalRequestStatus(ctx context.Context, withdrawalID string) error {
	var settled model.WithdrawalStatus
	err := s.inTx(ctx, "sync_withdrawal", func(ctx context.Context, tx *gorm.DB) error {
		req, err := s.withdrawals.GetByWithdrawalID(ctx, tx, withdrawalID)
		if err != nil {
			return fmt.Errorf("查询提现申请失败: %w", err)
		}
		if req == nil || !req.Status.IsPending() {
			return nil
		}

		state, err := s.provider.GetRequestState(ctx, withdrawalID)
		if err != nil {
			return fmt.Errorf("查询渠道状态失败: %w", err)
		}

		var target model.WithdrawalStatus
		switch state {
		case provider.StateCompleted:
			target = model.WithdrawalStatusSuccess
		case provider.StateFailed:
			target = model.WithdrawalStatusFailed
		default:
			return nil
		}

		moved, err := s.withdrawals.TransitionStatus(ctx, tx, withdrawalID, target)
		if err != nil {
			return fmt.Errorf("更新提现状态失败: %w", err)
		}
		if !moved {
			return nil
		}

		if target == model.WithdrawalStatusFailed {
			if err := s.balances.Credit(ctx, tx, req.FromAccountID, req.Amount); err != nil {
				return err
			}
			if _, err := s.balances.AppendLog(ctx, tx, &model.TransactionLog{
				AccountID: req.FromAccountID,
				Amount:    req.Amount,
				Type:      model.TransactionLogDeposit,
				Details:   fmt.Sprintf("reversal of withdrawal %s", withdrawalID),
			}); err != nil {
				return fmt.Errorf("记录流水失败: %w", err)
			}
		}

		settled = target
		return s.publish(ctx, tx, model.EventWithdrawalSettled, withdrawalID, ledgerEvent{
			AccountID:    req.FromAccountID,
			WithdrawalID: withdrawalID,
			Amount:       req.Amount,
			Status:       target.String(),
		})
	})
	if err != nil {
		return err
	}

	if settled.IsTerminal() {
		s.log.Info("提现已结算",
			zap.String("withdrawal_id", withdrawalID),
			zap.Stringer("status", settled),
		)
	}
	return nil
}

// GetWithdrawalRequest 查询提现详情
func (s *TransferService) GetWithdrawalRequest(ctx context.Context, withdrawalID string) (*WithdrawalView, error) {
	req, err := s.withdrawals.GetByWithdrawalID(ctx, nil, withdrawalID)
	if err != nil {
		return nil, s.mapError("get_withdrawal", err)
	}
	if req == nil {
		return nil, notFoundError("withdrawal not found")
	}

	return &WithdrawalView{
		ID:            req.ID,
		FromAccountID: req.FromAccountID,
		WithdrawalID:  req.WithdrawalID,
		ToAddress:     req.ToAddress,
		Amount:        req.Amount,
		Status:        model.WithdrawalStatusFromCode(int(req.Status)),
	}, nil
}
