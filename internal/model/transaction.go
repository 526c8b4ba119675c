package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionLogType 流水类型，按整数落库
type TransactionLogType int

const (
	TransactionLogTransfer TransactionLogType = 0
	TransactionLogDeposit  TransactionLogType = 1
	TransactionLogWithdraw TransactionLogType = 2
)

var transactionLogTypeNames = map[TransactionLogType]string{
	TransactionLogTransfer: "TRANSFER",
	TransactionLogDeposit:  "DEPOSIT",
	TransactionLogWithdraw: "WITHDRAW",
}

func (t TransactionLogType) String() string {
	if name, ok := transactionLogTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TransactionLogType(%d)", int(t))
}

func (t TransactionLogType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// TransactionLog 账户流水
//
// 只追加，不修改，不删除。仓储层不提供任何更新或删除方法。
type TransactionLog struct {
	ID        int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64              `gorm:"not null;index" json:"account_id"`
	Amount    decimal.Decimal    `gorm:"type:decimal(20,8);not null" json:"amount"`
	Type      TransactionLogType `gorm:"not null;default:0" json:"type"`
	Details   string             `gorm:"type:varchar(256)" json:"details"`
	CreatedAt time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_logs"
}
