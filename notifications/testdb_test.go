package notifications

import (
	"fmt"
	"strings"
	"testing"

	"github.com/John-Prabu-A/budgetzen-backend/config"
	"github.com/John-Prabu-A/budgetzen-backend/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB swaps the global DB handle for an in-memory SQLite database so
// queue semantics can run without MySQL. The DSN is shared-cache and named
// per test: gorm pools connections, and a plain :memory: DSN would give each
// pooled connection its own empty database. TranslateError makes the sqlite
// driver report unique violations as gorm.ErrDuplicatedKey, matching what the
// MySQL path reports through the 1062 check.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&models.NotificationQueueEntry{},
		&models.ProcessorRunLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(nil)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
