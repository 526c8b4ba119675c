package database

import (
	"fmt"

	"gorm.io/gorm"
)

const DialectSQLite = "sqlite"

// SQLite 没有定点数类型，decimal(20,8) 会得到 NUMERIC 亲和性，金额被存成 REAL。
// 这里金额列一律声明为 TEXT，按 decimal 的字符串形式原样保存，
// 余额的加减由仓储层在 Go 里用 decimal 计算后条件写回。
//
// 表名、列名、索引名与 AutoMigrate 在 MySQL 上生成的保持一致。
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id INTEGER PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		balance    TEXT NOT NULL DEFAULT '0',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_account_balances_user_id ON account_balances (user_id)`,

	`CREATE TABLE IF NOT EXISTS transaction_logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id INTEGER NOT NULL,
		amount     TEXT NOT NULL,
		type       INTEGER NOT NULL DEFAULT 0,
		details    TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_logs_account_id ON transaction_logs (account_id)`,

	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		from_account_id INTEGER NOT NULL,
		withdrawal_id   TEXT NOT NULL,
		to_address      TEXT NOT NULL,
		amount          TEXT NOT NULL,
		status          INTEGER NOT NULL DEFAULT 0,
		created_at      DATETIME,
		updated_at      DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS withdrawal_requests_withdrawal_id_uindex ON withdrawal_requests (withdrawal_id)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_from_account_id ON withdrawal_requests (from_account_id)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawal_requests_status ON withdrawal_requests (status)`,

	`CREATE TABLE IF NOT EXISTS outbox_messages (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		event_no    TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		message_key TEXT NOT NULL,
		topic       TEXT NOT NULL,
		payload     TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'PENDING',
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at  DATETIME,
		updated_at  DATETIME
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_messages_event_no ON outbox_messages (event_no)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_messages_status ON outbox_messages (status)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_messages_created_at ON outbox_messages (created_at)`,
}

func migrateSQLite(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, stmt := range sqliteSchema {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("初始化 SQLite 表结构失败: %w", err)
			}
		}
		return nil
	})
}
