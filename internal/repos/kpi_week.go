package repos

import (
  "context"
  "errors"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

// ErrDuplicateWeek signals a second submission for the same member+week;
// KpiWeek rows are immutable, so this is always a caller error.
var ErrDuplicateWeek = errors.New("kpi week already submitted for this member and week")

type KpiWeekRepo interface {
  Create(ctx context.Context, tx *gorm.DB, wk *types.KpiWeek) (*types.KpiWeek, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.KpiWeek, error)
  GetRecentByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.KpiWeek, error)
  UpdateFeedbackFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type kpiWeekRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewKpiWeekRepo(db *gorm.DB, baseLog *logger.Logger) KpiWeekRepo {
  return &kpiWeekRepo{db: db, log: baseLog.With("repo", "KpiWeekRepo")}
}

func (r *kpiWeekRepo) Create(ctx context.Context, tx *gorm.DB, wk *types.KpiWeek) (*types.KpiWeek, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if wk.ID == uuid.Nil {
    wk.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(wk).Error; err != nil {
    if isUniqueViolation(err) {
      return nil, ErrDuplicateWeek
    }
    return nil, err
  }
  return wk, nil
}

func (r *kpiWeekRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.KpiWeek, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var wk types.KpiWeek
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&wk).Error
  if err != nil {
    return nil, err
  }
  if wk.ID == uuid.Nil {
    return nil, nil
  }
  return &wk, nil
}

// GetRecentByMember returns submissions newest-first, ordered by the ISO
// week they report on, not by insertion time.
func (r *kpiWeekRepo) GetRecentByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.KpiWeek, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 12
  }
  var out []*types.KpiWeek
  if err := transaction.WithContext(ctx).
    Where("member_id = ?", memberID).
    Order("year DESC, week DESC").
    Limit(limit).
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

// UpdateFeedbackFields is the only mutation allowed on a KpiWeek row: the
// KPI payload stays immutable, only the AI-feedback state moves.
func (r *kpiWeekRepo) UpdateFeedbackFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  for col := range updates {
    if !strings.HasPrefix(col, "ai_feedback_") {
      return errors.New("kpi week updates are limited to ai_feedback_* columns")
    }
  }
  updates["updated_at"] = time.Now()
  return transaction.WithContext(ctx).
    Model(&types.KpiWeek{}).
    Where("id = ?", id).
    Updates(updates).Error
}

func isUniqueViolation(err error) bool {
  if err == nil {
    return false
  }
  if errors.Is(err, gorm.ErrDuplicatedKey) {
    return true
  }
  msg := strings.ToLower(err.Error())
  return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
