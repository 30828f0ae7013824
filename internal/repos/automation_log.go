package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type AutomationLogRepo interface {
  Append(ctx context.Context, tx *gorm.DB, entry *types.AutomationLogEntry) error
  ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.AutomationLogEntry, error)
  ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AutomationLogEntry, error)
}

type automationLogRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewAutomationLogRepo(db *gorm.DB, baseLog *logger.Logger) AutomationLogRepo {
  return &automationLogRepo{db: db, log: baseLog.With("repo", "AutomationLogRepo")}
}

// Append inserts one immutable audit row. There is no update or delete on
// this table anywhere in the codebase.
func (r *automationLogRepo) Append(ctx context.Context, tx *gorm.DB, entry *types.AutomationLogEntry) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if entry.ID == uuid.Nil {
    entry.ID = uuid.New()
  }
  return transaction.WithContext(ctx).Create(entry).Error
}

func (r *automationLogRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.AutomationLogEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 50
  }
  var out []*types.AutomationLogEntry
  if err := transaction.WithContext(ctx).
    Where("member_id = ?", memberID).
    Order("fired_at DESC").
    Limit(limit).
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *automationLogRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.AutomationLogEntry, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 50
  }
  var out []*types.AutomationLogEntry
  if err := transaction.WithContext(ctx).
    Order("fired_at DESC").
    Limit(limit).
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}
