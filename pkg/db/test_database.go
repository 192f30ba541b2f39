package db

import (
	"fmt"
	"testing"

	"crew/pkg/config"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewTestDB 为单个测试创建独立的内存sqlite数据库并完成迁移
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	gdb, err := Open(config.DatabaseConfig{
		Driver:       "sqlite",
		DSN:          fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { Close(gdb) })

	return gdb
}
