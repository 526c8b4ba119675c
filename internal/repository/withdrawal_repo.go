package repository

import (
	"context"
	"errors"

	"ledger/internal/model"

	"gorm.io/gorm"
)

var (
	ErrWithdrawalNotCreated = errors.New("创建提现申请失败")
	ErrStatusInvalid        = errors.New("提现状态不合法")
)

type WithdrawalRepository struct {
	db *gorm.DB
}

func NewWithdrawalRepository(db *gorm.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

func (r *WithdrawalRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

// Create withdrawal_id 上有唯一索引，重复插入由数据库拒绝
func (r *WithdrawalRepository) Create(ctx context.Context, tx *gorm.DB, req *model.WithdrawalRequest) error {
	result := r.conn(tx).WithContext(ctx).Create(req)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWithdrawalNotCreated
	}
	return nil
}

func (r *WithdrawalRepository) ListPendingIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("status IN ?", model.PendingWithdrawalStatuses).
		Order("id ASC").
		Pluck("withdrawal_id", &ids).Error
	return ids, err
}

// SetStatus 无条件更新状态
func (r *WithdrawalRepository) SetStatus(ctx context.Context, tx *gorm.DB, withdrawalID string, status model.WithdrawalStatus) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("withdrawal_id = ?", withdrawalID).
		Update("status", status).Error
}

// TransitionStatus 按状态表只推进仍处于可迁移状态的申请，即 pending 到终态
//
// 返回 false 表示记录已不是 pending（被并发的对账先处理了），调用方不能再做补偿。
func (r *WithdrawalRepository) TransitionStatus(ctx context.Context, tx *gorm.DB, withdrawalID string, to model.WithdrawalStatus) (bool, error) {
	from := model.TransitionSources(to)
	if len(from) == 0 {
		return false, ErrStatusInvalid
	}

	result := r.conn(tx).WithContext(ctx).
		Model(&model.WithdrawalRequest{}).
		Where("withdrawal_id = ? AND status IN ?", withdrawalID, from).
		Update("status", to)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// GetByWithdrawalID 不存在时返回 nil, nil
func (r *WithdrawalRepository) GetByWithdrawalID(ctx context.Context, tx *gorm.DB, withdrawalID string) (*model.WithdrawalRequest, error) {
	var req model.WithdrawalRequest
	err := r.conn(tx).WithContext(ctx).Where("withdrawal_id = ?", withdrawalID).First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}
