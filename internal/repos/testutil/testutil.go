package testutil

import (
  "fmt"
  "sync"
  "testing"

  "github.com/google/uuid"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  gormLogger "gorm.io/gorm/logger"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

var (
  logOnce sync.Once
  logg    *logger.Logger
  logErr  error
)

func Logger(tb testing.TB) *logger.Logger {
  tb.Helper()
  logOnce.Do(func() {
    logg, logErr = logger.New("test")
  })
  if logErr != nil {
    tb.Fatalf("failed to init logger: %v", logErr)
  }
  return logg
}

// DB opens a fresh in-memory sqlite database per test. The shared-cache
// DSN keeps every pooled connection on the same database; without it each
// connection would see its own empty schema.
func DB(tb testing.TB) *gorm.DB {
  tb.Helper()

  dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
    Logger: gormLogger.Default.LogMode(gormLogger.Silent),
  })
  if err != nil {
    tb.Fatalf("failed to open test db: %v", err)
  }
  sqlDB, err := db.DB()
  if err != nil {
    tb.Fatalf("failed to access sql db: %v", err)
  }
  sqlDB.SetMaxOpenConns(1)
  tb.Cleanup(func() {
    _ = sqlDB.Close()
  })

  if err := autoMigrateAll(db); err != nil {
    tb.Fatalf("failed to migrate test db: %v", err)
  }
  return db
}

func autoMigrateAll(db *gorm.DB) error {
  return db.AutoMigrate(
    &types.Member{},
    &types.KpiWeek{},
    &types.RuleCooldown{},
    &types.AutomationLogEntry{},
    &types.Task{},
    &types.Note{},
    &types.ScheduledMessage{},
    &types.FeedbackJob{},
  )
}
