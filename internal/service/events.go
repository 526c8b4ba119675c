package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ledger/internal/model"
	"ledger/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ledgerEvent struct {
	EventNo        string          `json:"event_no"`
	EventType      string          `json:"event_type"`
	AccountID      int64           `json:"account_id"`
	CounterpartyID int64           `json:"counterparty_id,omitempty"`
	WithdrawalID   string          `json:"withdrawal_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Status         string          `json:"status,omitempty"`
	LogID          int64           `json:"log_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func accountKey(accountID int64) string {
	return strconv.FormatInt(accountID, 10)
}

// publish 在当前事务内写 outbox，事务回滚时事件一并丢弃
func (s *TransferService) publish(ctx context.Context, tx *gorm.DB, eventType, key string, evt ledgerEvent) error {
	if s.eventTopic == "" {
		return nil
	}

	evt.EventNo = idgen.GenerateEventNo()
	evt.EventType = eventType
	evt.OccurredAt = time.Now().UTC()

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := &model.OutboxMessage{
		EventNo:    evt.EventNo,
		EventType:  eventType,
		MessageKey: key,
		Topic:      s.eventTopic,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	}
	if err := s.events.Create(ctx, tx, msg); err != nil {
		return fmt.Errorf("写入消息失败: %w", err)
	}
	return nil
}
