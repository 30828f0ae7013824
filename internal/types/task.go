package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  TaskPriorityLow    = "low"
  TaskPriorityMedium = "medium"
  TaskPriorityHigh   = "high"

  TaskStatusOpen = "open"
  TaskStatusDone = "done"
)

// Task is a side-effect entity created by the dispatcher and the feedback
// scheduler. The core only reads tasks back to suppress duplicates and to
// resolve review tasks against their blocked submission.
type Task struct {
  ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID    *uuid.UUID `gorm:"type:uuid;index" json:"member_id,omitempty"`
  RuleID      string     `gorm:"index" json:"rule_id"`
  KpiWeekID   *uuid.UUID `gorm:"type:uuid;index" json:"kpi_week_id,omitempty"`
  Title       string     `gorm:"not null" json:"title"`
  Description string     `json:"description"`
  Priority    string     `gorm:"not null;default:medium" json:"priority"`
  Status      string     `gorm:"not null;default:open;index" json:"status"`
  CompletedAt *time.Time `json:"completed_at,omitempty"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string {
  return "task"
}
