package job

import (
	"context"
	"sync"
	"time"

	"ledger/internal/config"
	"ledger/internal/model"

	"go.uber.org/zap"
)

type OutboxStore interface {
	GetPendingMessages(ctx context.Context, limit int) ([]*model.OutboxMessage, error)
	MarkAsSent(ctx context.Context, id int64) error
	IncrementRetryCount(ctx context.Context, id int64) error
	MarkAsFailed(ctx context.Context, id int64) error
}

type MessageSender interface {
	SendMessage(topic, key, value string, headers map[string]string) error
}

// OutboxSender 把账本事件从 outbox 表投递到 Kafka
// 至少一次投递，消费方按 event_no 去重
type OutboxSender struct {
	outbox        OutboxStore
	sender        MessageSender
	log           *zap.Logger
	stopCh        chan struct{}
	stopOnce      sync.Once
	interval      time.Duration
	batchSize     int
	maxRetryCount int
}

func NewOutboxSender(outbox OutboxStore, sender MessageSender, cfg *config.BusinessConfig, log *zap.Logger) *OutboxSender {
	return &OutboxSender{
		outbox:        outbox,
		sender:        sender,
		log:           log.Named("job.outbox_sender"),
		stopCh:        make(chan struct{}),
		interval:      cfg.OutboxInterval,
		batchSize:     cfg.OutboxBatchSize,
		maxRetryCount: cfg.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.log.Info("消息发送任务启动", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.log.Info("任务停止")
			return
		case <-ticker.C:
			s.ProcessPendingMessages(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// ProcessPendingMessages 投递一批消息，返回发送成功的条数
func (s *OutboxSender) ProcessPendingMessages(ctx context.Context) int {
	messages, err := s.outbox.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.log.Error("查询消息失败", zap.Error(err))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	headers := map[string]string{
		"event_no":   msg.EventNo,
		"event_type": msg.EventType,
	}
	err := s.sender.SendMessage(msg.Topic, msg.MessageKey, msg.Payload, headers)

	if err == nil {
		if updateErr := s.outbox.MarkAsSent(ctx, msg.ID); updateErr != nil {
			s.log.Error("更新消息状态失败", zap.Int64("id", msg.ID), zap.Error(updateErr))
		}
		return true
	}

	s.log.Warn("消息发送失败", zap.Int64("id", msg.ID), zap.String("event_no", msg.EventNo), zap.Error(err))

	if err := s.outbox.IncrementRetryCount(ctx, msg.ID); err != nil {
		s.log.Error("增加重试次数失败", zap.Int64("id", msg.ID), zap.Error(err))
	}

	if msg.RetryCount+1 >= s.maxRetryCount {
		if err := s.outbox.MarkAsFailed(ctx, msg.ID); err != nil {
			s.log.Error("标记消息失败状态失败", zap.Int64("id", msg.ID), zap.Error(err))
		} else {
			s.log.Warn("消息超过最大重试次数，标记为失败", zap.Int64("id", msg.ID))
		}
	}
	return false
}
