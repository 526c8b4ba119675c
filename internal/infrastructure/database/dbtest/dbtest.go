// Package dbtest 为各包测试提供独立的内存 SQLite 库，只应被 _test.go 引用
package dbtest

import (
	"fmt"
	"testing"

	"ledger/internal/config"
	"ledger/internal/infrastructure/database"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Open 打开一个已迁移的内存库，测试结束时关闭
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Open(&config.DatabaseConfig{
		Driver:   "sqlite",
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
