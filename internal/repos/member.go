package repos

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type MemberRepo interface {
  Create(ctx context.Context, tx *gorm.DB, members []*types.Member) ([]*types.Member, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Member, error)
  ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Member, error)
  SetFlag(ctx context.Context, tx *gorm.DB, id uuid.UUID, flag string, value bool) (bool, error)
}

type memberRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
  return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) Create(ctx context.Context, tx *gorm.DB, members []*types.Member) ([]*types.Member, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(members) == 0 {
    return []*types.Member{}, nil
  }
  for _, m := range members {
    if m.ID == uuid.Nil {
      m.ID = uuid.New()
    }
  }
  if err := transaction.WithContext(ctx).Create(&members).Error; err != nil {
    return nil, err
  }
  return members, nil
}

func (r *memberRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Member, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var m types.Member
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&m).Error
  if err != nil {
    return nil, err
  }
  if m.ID == uuid.Nil {
    return nil, nil
  }
  return &m, nil
}

func (r *memberRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]*types.Member, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.Member
  if err := transaction.WithContext(ctx).
    Order("created_at ASC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

var flagColumns = map[string]bool{
  "churn_risk":       true,
  "upsell_candidate": true,
  "needs_review":     true,
  "danger_zone":      true,
}

// SetFlag flips one member flag and reports whether the row actually
// changed. Setting an already-set flag affects zero rows, which is how the
// dispatcher keeps flag actions idempotent.
func (r *memberRepo) SetFlag(ctx context.Context, tx *gorm.DB, id uuid.UUID, flag string, value bool) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if !flagColumns[flag] {
    return false, fmt.Errorf("unknown member flag %q", flag)
  }
  res := transaction.WithContext(ctx).
    Model(&types.Member{}).
    Where("id = ? AND "+flag+" = ?", id, !value).
    Updates(map[string]interface{}{
      flag:         value,
      "updated_at": time.Now(),
    })
  if res.Error != nil {
    return false, res.Error
  }
  return res.RowsAffected > 0, nil
}
