package types

import (
  "encoding/json"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
)

// AutomationLogEntry is the append-only audit record written for every
// dispatch, anomaly block and feedback scheduling event. Dashboards and
// daily summaries consume this shape; it must stay stable.
type AutomationLogEntry struct {
  ID           uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID     *uuid.UUID         `gorm:"type:uuid;index" json:"member_id,omitempty"`
  RuleID       string             `gorm:"not null;index" json:"rule_id"`
  RuleName     string             `gorm:"not null" json:"rule_name"`
  Triggered    bool               `gorm:"not null" json:"triggered"`
  ActionsTaken datatypes.JSON     `gorm:"column:actions_taken" json:"actions_taken"`
  Details      datatypes.JSONMap  `gorm:"column:details" json:"details"`
  FiredAt      time.Time          `gorm:"not null;index" json:"fired_at"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (AutomationLogEntry) TableName() string {
  return "automation_log"
}

func (e *AutomationLogEntry) SetActions(actions []string) {
  if actions == nil {
    actions = []string{}
  }
  raw, _ := json.Marshal(actions)
  e.ActionsTaken = datatypes.JSON(raw)
}

func (e *AutomationLogEntry) Actions() []string {
  var out []string
  if len(e.ActionsTaken) == 0 {
    return out
  }
  _ = json.Unmarshal(e.ActionsTaken, &out)
  return out
}
