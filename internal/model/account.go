package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance 账户余额
// 余额只能通过 BalanceRepository 的 Debit/Credit 条件更新来修改
type AccountBalance struct {
	AccountID int64           `gorm:"column:account_id;primaryKey;autoIncrement:false" json:"account_id"`
	UserID    int64           `gorm:"not null;index" json:"user_id"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"balance"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (AccountBalance) TableName() string {
	return "account_balances"
}
