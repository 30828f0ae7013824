package types

import (
  "time"

  "github.com/google/uuid"
)

type Note struct {
  ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
  RuleID   string    `gorm:"index" json:"rule_id"`
  Body     string    `gorm:"not null" json:"body"`
  Pinned   bool      `json:"pinned"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Note) TableName() string {
  return "note"
}
