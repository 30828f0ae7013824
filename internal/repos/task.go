package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type TaskRepo interface {
  Create(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Task, error)
  // HasOpenForRule reports an open task for the same member and rule newer
  // than the cutoff; the dispatcher uses it to avoid stacking duplicates.
  HasOpenForRule(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string, since time.Time) (bool, error)
  MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Task, error)
}

type taskRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
  return &taskRepo{db: db, log: baseLog.With("repo", "TaskRepo")}
}

func (r *taskRepo) Create(ctx context.Context, tx *gorm.DB, task *types.Task) (*types.Task, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if task.ID == uuid.Nil {
    task.ID = uuid.New()
  }
  if task.Status == "" {
    task.Status = types.TaskStatusOpen
  }
  if task.Priority == "" {
    task.Priority = types.TaskPriorityMedium
  }
  if err := transaction.WithContext(ctx).Create(task).Error; err != nil {
    return nil, err
  }
  return task, nil
}

func (r *taskRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Task, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var t types.Task
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&t).Error
  if err != nil {
    return nil, err
  }
  if t.ID == uuid.Nil {
    return nil, nil
  }
  return &t, nil
}

func (r *taskRepo) HasOpenForRule(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string, since time.Time) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var count int64
  if err := transaction.WithContext(ctx).
    Model(&types.Task{}).
    Where("member_id = ? AND rule_id = ? AND status = ? AND created_at >= ?", memberID, ruleID, types.TaskStatusOpen, since).
    Count(&count).Error; err != nil {
    return false, err
  }
  return count > 0, nil
}

func (r *taskRepo) MarkDone(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Task, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  res := transaction.WithContext(ctx).
    Model(&types.Task{}).
    Where("id = ? AND status = ?", id, types.TaskStatusOpen).
    Updates(map[string]interface{}{
      "status":       types.TaskStatusDone,
      "completed_at": now,
      "updated_at":   now,
    })
  if res.Error != nil {
    return nil, res.Error
  }
  if res.RowsAffected == 0 {
    return nil, nil
  }
  return r.GetByID(ctx, transaction, id)
}
