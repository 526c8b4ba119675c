package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalStatus 提现状态，按整数落库
type WithdrawalStatus int

const (
	WithdrawalStatusUnknown   WithdrawalStatus = -1
	WithdrawalStatusCreated   WithdrawalStatus = 0
	WithdrawalStatusRequested WithdrawalStatus = 1
	WithdrawalStatusSuccess   WithdrawalStatus = 2
	WithdrawalStatusFailed    WithdrawalStatus = 3
)

// PendingWithdrawalStatuses 尚未到达终态的状态
var PendingWithdrawalStatuses = []WithdrawalStatus{
	WithdrawalStatusCreated,
	WithdrawalStatusRequested,
}

// WithdrawalStatusFromCode 未识别的状态码统一视为 UNKNOWN
func WithdrawalStatusFromCode(code int) WithdrawalStatus {
	switch s := WithdrawalStatus(code); s {
	case WithdrawalStatusCreated, WithdrawalStatusRequested, WithdrawalStatusSuccess, WithdrawalStatusFailed:
		return s
	default:
		return WithdrawalStatusUnknown
	}
}

func (s WithdrawalStatus) String() string {
	switch s {
	case WithdrawalStatusCreated:
		return "CREATED"
	case WithdrawalStatusRequested:
		return "REQUESTED"
	case WithdrawalStatusSuccess:
		return "SUCCESS"
	case WithdrawalStatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

func (s WithdrawalStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s WithdrawalStatus) IsPending() bool {
	return s == WithdrawalStatusCreated || s == WithdrawalStatusRequested
}

func (s WithdrawalStatus) IsTerminal() bool {
	return s == WithdrawalStatusSuccess || s == WithdrawalStatusFailed
}

// CanTransitionTo 状态只能从 pending 走向 SUCCESS 或 FAILED，终态不可逆
func (s WithdrawalStatus) CanTransitionTo(target WithdrawalStatus) bool {
	return s.IsPending() && target.IsTerminal()
}

// TransitionSources 可以推进到 target 的全部状态，target 不可达时为空
func TransitionSources(target WithdrawalStatus) []WithdrawalStatus {
	var sources []WithdrawalStatus
	for _, s := range []WithdrawalStatus{
		WithdrawalStatusCreated,
		WithdrawalStatusRequested,
		WithdrawalStatusSuccess,
		WithdrawalStatusFailed,
	} {
		if s.CanTransitionTo(target) {
			sources = append(sources, s)
		}
	}
	return sources
}

// WithdrawalRequest 提现申请
// WithdrawalID 由服务端生成，全局唯一且不可变，同时作为支付渠道的幂等键
type WithdrawalRequest struct {
	ID            int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	FromAccountID int64            `gorm:"not null;index" json:"from_account_id"`
	WithdrawalID  string           `gorm:"type:varchar(64);uniqueIndex:withdrawal_requests_withdrawal_id_uindex;not null" json:"withdrawal_id"`
	ToAddress     string           `gorm:"type:varchar(256);not null" json:"to_address"`
	Amount        decimal.Decimal  `gorm:"type:decimal(20,8);not null" json:"amount"`
	Status        WithdrawalStatus `gorm:"not null;default:0;index" json:"status"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (WithdrawalRequest) TableName() string {
	return "withdrawal_requests"
}
