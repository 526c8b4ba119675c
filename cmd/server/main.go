package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"ledger/internal/config"
	"ledger/internal/handler"
	"ledger/internal/infrastructure/cache"
	"ledger/internal/infrastructure/database"
	"ledger/internal/infrastructure/mq"
	"ledger/internal/job"
	"ledger/internal/provider"
	"ledger/internal/repository"
	"ledger/internal/service"
	"ledger/pkg/idgen"
	"ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	workerID := flag.Int64("worker-id", 1, "snowflake workerID")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, *workerID, log); err != nil {
		log.Fatal("服务异常退出", zap.Error(err))
	}
}

func run(cfg *config.Config, workerID int64, log *zap.Logger) error {
	if err := idgen.Init(workerID); err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	log.Info("数据库连接成功", zap.String("driver", cfg.Database.Driver))

	if cfg.Seed.Enabled {
		if err := seedAccounts(db, cfg.Seed.Accounts, log); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.InitRedis(&cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Info("Redis 连接成功", zap.String("host", cfg.Redis.Host))
	}

	var producer *mq.Producer
	eventTopic := ""
	if cfg.Kafka.Enabled() {
		producer, err = mq.InitKafka(&cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		eventTopic = cfg.Kafka.Topic.LedgerEvents
		log.Info("Kafka 连接成功", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	// 未对接真实提现渠道，使用内存桩，受理后一分钟自动完成
	svc := service.NewTransferService(db, provider.NewStub(time.Minute), eventTopic, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	syncJob := job.NewWithdrawalSyncJob(svc, redisClient, &cfg.Business, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		syncJob.Start(ctx)
	}()

	if producer != nil {
		outboxSender := job.NewOutboxSender(repository.NewOutboxRepository(db), producer, &cfg.Business, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			outboxSender.Start(ctx)
		}()
	}

	if cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.SetupRouter(svc, log)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("服务启动", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		cancel()
		wg.Wait()
		return fmt.Errorf("服务启动失败: %w", err)
	}

	log.Info("正在关闭服务...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("服务关闭异常", zap.Error(err))
	}

	// 等后台任务跑完当前一轮再关连接
	wg.Wait()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info("服务已关闭")
	return nil
}

func seedAccounts(db *gorm.DB, accounts []config.SeedAccount, log *zap.Logger) error {
	repo := repository.NewBalanceRepository(db)
	for _, a := range accounts {
		balance, err := decimal.NewFromString(a.Balance)
		if err != nil {
			return fmt.Errorf("账户 %d 初始余额格式错误: %w", a.AccountID, err)
		}
		if err := repo.SetupAccount(context.Background(), a.AccountID, a.UserID, balance); err != nil {
			return fmt.Errorf("初始化账户 %d 失败: %w", a.AccountID, err)
		}
	}
	log.Info("初始化账户完成", zap.Int("count", len(accounts)))
	return nil
}
