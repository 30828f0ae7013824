package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  ChannelEmail    = "email"
  ChannelWhatsApp = "whatsapp"

  MessageStatusPending = "pending"
  MessageStatusSent    = "sent"
  MessageStatusFailed  = "failed"
)

// ScheduledMessage is advisory state for the delivery sweep: the dispatcher
// and feedback scheduler only persist a scheduled_for timestamp, they never
// send anything themselves. Force marks messages from manual triggers that
// bypass the quiet-hours guard.
type ScheduledMessage struct {
  ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID     uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
  RuleID       string    `gorm:"index" json:"rule_id"`
  Channel      string    `gorm:"not null" json:"channel"`
  TemplateKey  string    `gorm:"not null" json:"template_key"`
  Body         string    `json:"body"`
  Force        bool      `json:"force"`
  ScheduledFor time.Time `gorm:"not null;index" json:"scheduled_for"`
  Status       string    `gorm:"not null;default:pending;index" json:"status"`
  Attempts     int       `gorm:"not null;default:0" json:"attempts"`
  LastError    string    `json:"last_error"`
  SentAt       *time.Time `json:"sent_at,omitempty"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ScheduledMessage) TableName() string {
  return "scheduled_message"
}
