package repos

import (
  "context"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type CooldownRepo interface {
  // ActiveUntil returns the expiry of a live cooldown, or nil when no row
  // exists or the row has lapsed. Expired rows stay in place; expiry is
  // checked lazily.
  ActiveUntil(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) (*time.Time, error)
  // Acquire claims the cooldown window in a single atomic statement:
  // insert, or take over an expired row. It reports false when another
  // dispatch holds a live window. This is the at-most-once gate; callers
  // must not split it into a read followed by a write.
  Acquire(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string, d time.Duration) (bool, time.Time, error)
  // Release drops the row, used when an execute acquired the window but
  // the rule did not trigger.
  Release(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) error
  // Clear is the admin override. An empty ruleID clears every cooldown of
  // the member.
  Clear(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) (int64, error)
}

type cooldownRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewCooldownRepo(db *gorm.DB, baseLog *logger.Logger) CooldownRepo {
  return &cooldownRepo{db: db, log: baseLog.With("repo", "CooldownRepo")}
}

func (r *cooldownRepo) ActiveUntil(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) (*time.Time, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var row types.RuleCooldown
  err := transaction.WithContext(ctx).
    Where("member_id = ? AND rule_id = ? AND expires_at > ?", memberID, ruleID, time.Now()).
    Limit(1).
    Find(&row).Error
  if err != nil {
    return nil, err
  }
  if row.ID == uuid.Nil {
    return nil, nil
  }
  expires := row.ExpiresAt
  return &expires, nil
}

func (r *cooldownRepo) Acquire(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string, d time.Duration) (bool, time.Time, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  now := time.Now()
  expires := now.Add(d)
  row := &types.RuleCooldown{
    ID:        uuid.New(),
    MemberID:  memberID,
    RuleID:    ruleID,
    ExpiresAt: expires,
  }
  res := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns: []clause.Column{{Name: "member_id"}, {Name: "rule_id"}},
      DoUpdates: clause.Assignments(map[string]interface{}{
        "expires_at": expires,
        "updated_at": now,
      }),
      // Only take over rows whose window has lapsed; a live row makes the
      // whole statement a no-op with zero affected rows.
      Where: clause.Where{Exprs: []clause.Expression{
        clause.Lte{Column: clause.Column{Table: "rule_cooldown", Name: "expires_at"}, Value: now},
      }},
    }).
    Create(row)
  if res.Error != nil {
    return false, time.Time{}, res.Error
  }
  return res.RowsAffected > 0, expires, nil
}

func (r *cooldownRepo) Release(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return transaction.WithContext(ctx).
    Where("member_id = ? AND rule_id = ?", memberID, ruleID).
    Delete(&types.RuleCooldown{}).Error
}

func (r *cooldownRepo) Clear(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, ruleID string) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  q := transaction.WithContext(ctx).Where("member_id = ?", memberID)
  if ruleID != "" {
    q = q.Where("rule_id = ?", ruleID)
  }
  res := q.Delete(&types.RuleCooldown{})
  if res.Error != nil {
    return 0, res.Error
  }
  return res.RowsAffected, nil
}
