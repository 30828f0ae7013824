package types

import (
  "time"

  "github.com/google/uuid"
)

const (
  FeedbackJobQueued  = "queued"
  FeedbackJobRunning = "running"
  FeedbackJobDone    = "done"
  FeedbackJobFailed  = "failed"
)

// FeedbackJob is the independent unit of work that decouples text
// generation from the submission write. Workers claim rows via
// ClaimNextRunnable; a generation failure lands here and in a review
// Task, never in the submission-creation response.
type FeedbackJob struct {
  ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  KpiWeekID uuid.UUID `gorm:"type:uuid;not null;index" json:"kpi_week_id"`
  MemberID  uuid.UUID `gorm:"type:uuid;not null;index" json:"member_id"`
  Status    string    `gorm:"not null;default:queued;index" json:"status"`
  // Retry marks jobs re-enqueued after a review task was completed; a
  // successful retry additionally clears the member's review flag.
  Retry bool `gorm:"not null;default:false" json:"retry"`

  Attempts    int        `gorm:"not null;default:0" json:"attempts"`
  LastError   string     `json:"last_error"`
  LastErrorAt *time.Time `json:"last_error_at,omitempty"`
  HeartbeatAt *time.Time `json:"heartbeat_at,omitempty"`
  LockedAt    *time.Time `json:"locked_at,omitempty"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FeedbackJob) TableName() string {
  return "feedback_job"
}
