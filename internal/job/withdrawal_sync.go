package job

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ledger/internal/config"
	"ledger/internal/infrastructure/lock"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WithdrawalSyncer 对账任务依赖的服务能力
type WithdrawalSyncer interface {
	GetListPendingWithdrawalRequest(ctx context.Context) ([]string, error)
	SyncWithdrawalRequestStatus(ctx context.Context, withdrawalID string) error
}

// WithdrawalSyncJob 定时对账 pending 提现
//
// 单 goroutine 串行执行，上一轮没跑完时 ticker 丢弃多余的 tick，轮次不会重叠。
// 单笔失败只记日志，不影响同一轮的其他提现，也不影响下一轮。
// 配置了 Redis 时按提现ID加分布式锁，多节点部署下同一笔提现同一时刻只有一个节点在对账。
type WithdrawalSyncJob struct {
	syncer      WithdrawalSyncer
	redisClient *redis.Client
	owner       string
	lockTTL     time.Duration
	interval    time.Duration
	log         *zap.Logger
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func NewWithdrawalSyncJob(syncer WithdrawalSyncer, redisClient *redis.Client, cfg *config.BusinessConfig, log *zap.Logger) *WithdrawalSyncJob {
	return &WithdrawalSyncJob{
		syncer:      syncer,
		redisClient: redisClient,
		owner:       uuid.NewString(),
		lockTTL:     cfg.WithdrawalSyncLockTTL,
		interval:    cfg.WithdrawalSyncInterval,
		log:         log.Named("job.withdrawal_sync"),
		stopCh:      make(chan struct{}),
	}
}

func (j *WithdrawalSyncJob) Start(ctx context.Context) {
	j.log.Info("提现对账任务启动", zap.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.log.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.log.Info("任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *WithdrawalSyncJob) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// RunOnce 执行一轮对账，返回成功处理的笔数
func (j *WithdrawalSyncJob) RunOnce(ctx context.Context) int {
	ids, err := j.syncer.GetListPendingWithdrawalRequest(ctx)
	if err != nil {
		j.log.Error("查询待对账提现失败", zap.Error(err))
		return 0
	}

	if len(ids) == 0 {
		return 0
	}

	j.log.Debug("发现待对账提现", zap.Int("count", len(ids)))

	synced := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := j.syncOne(ctx, id); err != nil {
			j.log.Warn("提现对账失败", zap.String("withdrawal_id", id), zap.Error(err))
			continue
		}
		synced++
	}
	return synced
}

func (j *WithdrawalSyncJob) syncOne(ctx context.Context, withdrawalID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if j.redisClient != nil {
		l := lock.NewWithdrawalSyncLock(j.redisClient, withdrawalID, j.owner, j.lockTTL)
		ok, err := l.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("获取对账锁失败: %w", err)
		}
		if !ok {
			return fmt.Errorf("其他节点正在对账")
		}
		defer func() {
			if unlockErr := l.Unlock(ctx); unlockErr != nil {
				j.log.Warn("释放对账锁失败", zap.String("withdrawal_id", withdrawalID), zap.Error(unlockErr))
			}
		}()
	}

	return j.syncer.SyncWithdrawalRequestStatus(ctx, withdrawalID)
}
