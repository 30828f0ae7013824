package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type ScheduledMessageRepo interface {
  Create(ctx context.Context, tx *gorm.DB, msg *types.ScheduledMessage) (*types.ScheduledMessage, error)
  // ClaimNextDue picks the oldest pending message whose scheduled_for has
  // passed and bumps its attempt counter in the same transaction, so
  // concurrent sweep workers never pick up the same row.
  ClaimNextDue(ctx context.Context, tx *gorm.DB, now time.Time, maxAttempts int) (*types.ScheduledMessage, error)
  MarkSent(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
  MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string, retryAt time.Time) error
  Reschedule(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error
}

type scheduledMessageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewScheduledMessageRepo(db *gorm.DB, baseLog *logger.Logger) ScheduledMessageRepo {
  return &scheduledMessageRepo{db: db, log: baseLog.With("repo", "ScheduledMessageRepo")}
}

func (r *scheduledMessageRepo) Create(ctx context.Context, tx *gorm.DB, msg *types.ScheduledMessage) (*types.ScheduledMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if msg.ID == uuid.Nil {
    msg.ID = uuid.New()
  }
  if msg.Status == "" {
    msg.Status = types.MessageStatusPending
  }
  if err := transaction.WithContext(ctx).Create(msg).Error; err != nil {
    return nil, err
  }
  return msg, nil
}

func (r *scheduledMessageRepo) ClaimNextDue(ctx context.Context, tx *gorm.DB, now time.Time, maxAttempts int) (*types.ScheduledMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var claimed *types.ScheduledMessage
  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var msg types.ScheduledMessage
    q := txx.
      Where("status = ? AND scheduled_for <= ? AND attempts < ?", types.MessageStatusPending, now, maxAttempts).
      Order("scheduled_for ASC")
    if txx.Dialector.Name() == "postgres" {
      q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
    }
    qErr := q.First(&msg).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }
    uErr := txx.Model(&types.ScheduledMessage{}).
      Where("id = ?", msg.ID).
      Updates(map[string]interface{}{
        "attempts":   gorm.Expr("attempts + 1"),
        "updated_at": now,
      }).Error
    if uErr != nil {
      return uErr
    }
    claimed = &msg
    return nil
  })
  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *scheduledMessageRepo) MarkSent(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  return transaction.WithContext(ctx).
    Model(&types.ScheduledMessage{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "status":     types.MessageStatusSent,
      "sent_at":    now,
      "updated_at": now,
    }).Error
}

func (r *scheduledMessageRepo) MarkFailed(ctx context.Context, tx *gorm.DB, id uuid.UUID, reason string, retryAt time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(reason) > 500 {
    reason = reason[:500]
  }
  return transaction.WithContext(ctx).
    Model(&types.ScheduledMessage{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "status":        types.MessageStatusPending,
      "last_error":    reason,
      "scheduled_for": retryAt,
      "updated_at":    time.Now(),
    }).Error
}

func (r *scheduledMessageRepo) Reschedule(ctx context.Context, tx *gorm.DB, id uuid.UUID, at time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Model(&types.ScheduledMessage{}).
    Where("id = ?", id).
    Updates(map[string]interface{}{
      "scheduled_for": at,
      "updated_at":    time.Now(),
    }).Error
}
