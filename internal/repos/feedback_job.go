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

type FeedbackJobRepo interface {
  Enqueue(ctx context.Context, tx *gorm.DB, job *types.FeedbackJob) (*types.FeedbackJob, error)
  // ClaimNextRunnable picks the oldest queued job, or a failed one whose
  // retry delay has passed, or a running one with a stale heartbeat, and
  // flips it to running in the same transaction.
  ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.FeedbackJob, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  GetLatestByKpiWeek(ctx context.Context, tx *gorm.DB, kpiWeekID uuid.UUID) (*types.FeedbackJob, error)
}

type feedbackJobRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewFeedbackJobRepo(db *gorm.DB, baseLog *logger.Logger) FeedbackJobRepo {
  return &feedbackJobRepo{db: db, log: baseLog.With("repo", "FeedbackJobRepo")}
}

func (r *feedbackJobRepo) Enqueue(ctx context.Context, tx *gorm.DB, job *types.FeedbackJob) (*types.FeedbackJob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if job.ID == uuid.Nil {
    job.ID = uuid.New()
  }
  if job.Status == "" {
    job.Status = types.FeedbackJobQueued
  }
  if err := transaction.WithContext(ctx).Create(job).Error; err != nil {
    return nil, err
  }
  return job, nil
}

func (r *feedbackJobRepo) ClaimNextRunnable(ctx context.Context, tx *gorm.DB, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*types.FeedbackJob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  retryCutoff := now.Add(-retryDelay)
  staleCutoff := now.Add(-staleRunning)
  var claimed *types.FeedbackJob
  err := transaction.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
    var job types.FeedbackJob
    q := txx.
      Where(`
        (
          status = ?
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, types.FeedbackJobQueued, types.FeedbackJobFailed, maxAttempts, retryCutoff, types.FeedbackJobRunning, staleCutoff).
      Order("created_at ASC")
    if txx.Dialector.Name() == "postgres" {
      q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
    }
    qErr := q.First(&job).Error
    if errors.Is(qErr, gorm.ErrRecordNotFound) {
      return nil
    }
    if qErr != nil {
      return qErr
    }
    uErr := txx.Model(&types.FeedbackJob{}).
      Where("id = ?", job.ID).
      Updates(map[string]interface{}{
        "status":       types.FeedbackJobRunning,
        "attempts":     gorm.Expr("attempts + 1"),
        "locked_at":    now,
        "heartbeat_at": now,
        "updated_at":   now,
      }).Error
    if uErr != nil {
      return uErr
    }
    claimed = &job
    return nil
  })
  if err != nil {
    return nil, err
  }
  return claimed, nil
}

func (r *feedbackJobRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  updates["updated_at"] = time.Now()
  return transaction.WithContext(ctx).
    Model(&types.FeedbackJob{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func (r *feedbackJobRepo) GetLatestByKpiWeek(ctx context.Context, tx *gorm.DB, kpiWeekID uuid.UUID) (*types.FeedbackJob, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var job types.FeedbackJob
  err := transaction.WithContext(ctx).
    Where("kpi_week_id = ?", kpiWeekID).
    Order("created_at DESC").
    Limit(1).
    Find(&job).Error
  if err != nil {
    return nil, err
  }
  if job.ID == uuid.Nil {
    return nil, nil
  }
  return &job, nil
}
