// Package provider 定义外部出款渠道接口以及开发环境使用的内存桩实现
package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// WithdrawalState 渠道侧的出款状态
type WithdrawalState int

const (
	StatePending WithdrawalState = iota
	StateCompleted
	StateFailed
)

func (s WithdrawalState) String() string {
	switch s {
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "PENDING"
	}
}

var (
	ErrInvalidAddress     = errors.New("出款地址不合法")
	ErrWithdrawalConflict = errors.New("同一提现ID的出款参数不一致")
	ErrUnknownWithdrawal  = errors.New("渠道不存在该提现")
)

// WithdrawalProvider 外部出款渠道
//
// RequestWithdrawal 以 withdrawalID 作为幂等键，重复调用相同参数视为成功。
type WithdrawalProvider interface {
	RequestWithdrawal(ctx context.Context, withdrawalID, address string, amount decimal.Decimal) error
	GetRequestState(ctx context.Context, withdrawalID string) (WithdrawalState, error)
}

type stubEntry struct {
	address     string
	amount      decimal.Decimal
	requestedAt time.Time
	state       WithdrawalState
}

// Stub 内存出款渠道
// 受理后经过 settleAfter 自动变为 COMPLETED，测试可用 SetState 指定结果
type Stub struct {
	mu          sync.Mutex
	entries     map[string]*stubEntry
	settleAfter time.Duration
	now         func() time.Time
}

func NewStub(settleAfter time.Duration) *Stub {
	return &Stub{
		entries:     make(map[string]*stubEntry),
		settleAfter: settleAfter,
		now:         time.Now,
	}
}

func (s *Stub) RequestWithdrawal(ctx context.Context, withdrawalID, address string, amount decimal.Decimal) error {
	if address == "" {
		return ErrInvalidAddress
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[withdrawalID]; ok {
		if existing.address != address || !existing.amount.Equal(amount) {
			return ErrWithdrawalConflict
		}
		return nil
	}

	s.entries[withdrawalID] = &stubEntry{
		address:     address,
		amount:      amount,
		requestedAt: s.now(),
		state:       StatePending,
	}
	return nil
}

func (s *Stub) GetRequestState(ctx context.Context, withdrawalID string) (WithdrawalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[withdrawalID]
	if !ok {
		return StatePending, ErrUnknownWithdrawal
	}

	if entry.state == StatePending && s.now().Sub(entry.requestedAt) >= s.settleAfter {
		entry.state = StateCompleted
	}
	return entry.state, nil
}

// SetState 强制指定某笔出款的渠道状态
func (s *Stub) SetState(withdrawalID string, state WithdrawalState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[withdrawalID]; ok {
		entry.state = state
		return
	}
	s.entries[withdrawalID] = &stubEntry{requestedAt: s.now(), state: state}
}
