package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
	Seed     SeedConfig     `mapstructure:"seed"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig Driver 支持 mysql 与 sqlite
// sqlite 时只使用 DSN（文件路径或 file::memory: 形式）
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"`
}

// RedisConfig Host 为空时不连接 Redis，对账任务不加分布式锁
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

// KafkaConfig Brokers 为空时不启动 outbox 投递
type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

func (c KafkaConfig) Enabled() bool {
	return len(c.Brokers) > 0
}

type KafkaTopicConfig struct {
	LedgerEvents string `mapstructure:"ledger_events"`
}

type BusinessConfig struct {
	WithdrawalSyncInterval time.Duration `mapstructure:"withdrawal_sync_interval"`
	WithdrawalSyncLockTTL  time.Duration `mapstructure:"withdrawal_sync_lock_ttl"`
	OutboxInterval         time.Duration `mapstructure:"outbox_interval"`
	OutboxBatchSize        int           `mapstructure:"outbox_batch_size"`
	MaxRetryCount          int           `mapstructure:"max_retry_count"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// SeedConfig 仅用于开发和测试环境，启动时重置这些账户
type SeedConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Accounts []SeedAccount `mapstructure:"accounts"`
}

type SeedAccount struct {
	AccountID int64  `mapstructure:"account_id"`
	UserID    int64  `mapstructure:"user_id"`
	Balance   string `mapstructure:"balance"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "ledger")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})

	v.SetDefault("kafka.topic.ledger_events", "ledger_events")

	v.SetDefault("business.withdrawal_sync_interval", 10*time.Second)
	v.SetDefault("business.withdrawal_sync_lock_ttl", 30*time.Second)
	v.SetDefault("business.outbox_interval", time.Second)
	v.SetDefault("business.outbox_batch_size", 100)
	v.SetDefault("business.max_retry_count", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("seed.enabled", false)
}

// LoadConfig 加载配置文件，环境变量 LEDGER_* 覆盖文件中的同名配置
// configPath 为空时只使用默认值和环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	if c.Business.WithdrawalSyncInterval <= 0 {
		return fmt.Errorf("business.withdrawal_sync_interval 必须大于0")
	}
	if c.Business.OutboxInterval <= 0 {
		return fmt.Errorf("business.outbox_interval 必须大于0")
	}
	return nil
}
