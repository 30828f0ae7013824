package types

import (
  "time"

  "github.com/google/uuid"
)

// RuleCooldown gates re-dispatch of a rule for a member. The unique index
// on (member_id, rule_id) is what makes the at-most-once guarantee hold
// under concurrent execute attempts. Expired rows are treated as absent;
// nothing reaps them.
type RuleCooldown struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_rule_cooldown_member_rule,priority:1" json:"member_id"`
  RuleID    string    `gorm:"not null;uniqueIndex:idx_rule_cooldown_member_rule,priority:2" json:"rule_id"`
  ExpiresAt time.Time `gorm:"not null;index" json:"expires_at"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RuleCooldown) TableName() string {
  return "rule_cooldown"
}
