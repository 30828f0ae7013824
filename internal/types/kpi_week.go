package types

import (
  "time"

  "github.com/google/uuid"
)

// KpiWeek is one immutable weekly submission per (member, ISO week).
// Actual values ("Ist") are pointers so an unreported metric stays
// distinguishable from a reported zero. The *_soll_snap columns are the
// goal snapshot captured at submission time; performance percentages are
// always computed from the snapshot, never from the member's live targets.
type KpiWeek struct {
  ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  MemberID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_kpi_week_member_week,priority:1" json:"member_id"`
  Year     int       `gorm:"not null;uniqueIndex:idx_kpi_week_member_week,priority:2" json:"year"`
  Week     int       `gorm:"not null;uniqueIndex:idx_kpi_week_member_week,priority:3" json:"week"`

  UmsatzIst               *float64 `gorm:"column:umsatz_ist" json:"umsatz_ist"`
  KontakteIst             *float64 `gorm:"column:kontakte_ist" json:"kontakte_ist"`
  EntscheiderIst          *float64 `gorm:"column:entscheider_ist" json:"entscheider_ist"`
  TermineVereinbartIst    *float64 `gorm:"column:termine_vereinbart_ist" json:"termine_vereinbart_ist"`
  TermineStattgefundenIst *float64 `gorm:"column:termine_stattgefunden_ist" json:"termine_stattgefunden_ist"`
  AbschlussTermineIst     *float64 `gorm:"column:abschluss_termine_ist" json:"abschluss_termine_ist"`
  EinheitenIst            *float64 `gorm:"column:einheiten_ist" json:"einheiten_ist"`
  EmpfehlungenIst         *float64 `gorm:"column:empfehlungen_ist" json:"empfehlungen_ist"`
  NoShowQuote             *float64 `gorm:"column:no_show_quote" json:"no_show_quote"`

  Feeling   int    `gorm:"not null" json:"feeling"`
  Heldentat string `gorm:"column:heldentat" json:"heldentat"`
  Blocker   string `gorm:"column:blocker" json:"blocker"`
  Challenge string `gorm:"column:challenge" json:"challenge"`

  UmsatzSollSnap               float64 `gorm:"column:umsatz_soll_snap" json:"umsatz_soll_snap"`
  KontakteSollSnap             float64 `gorm:"column:kontakte_soll_snap" json:"kontakte_soll_snap"`
  EntscheiderSollSnap          float64 `gorm:"column:entscheider_soll_snap" json:"entscheider_soll_snap"`
  TermineVereinbartSollSnap    float64 `gorm:"column:termine_vereinbart_soll_snap" json:"termine_vereinbart_soll_snap"`
  TermineStattgefundenSollSnap float64 `gorm:"column:termine_stattgefunden_soll_snap" json:"termine_stattgefunden_soll_snap"`
  AbschlussTermineSollSnap     float64 `gorm:"column:abschluss_termine_soll_snap" json:"abschluss_termine_soll_snap"`
  EinheitenSollSnap            float64 `gorm:"column:einheiten_soll_snap" json:"einheiten_soll_snap"`
  EmpfehlungenSollSnap         float64 `gorm:"column:empfehlungen_soll_snap" json:"empfehlungen_soll_snap"`

  AIFeedbackGenerated    bool       `gorm:"column:ai_feedback_generated" json:"ai_feedback_generated"`
  AIFeedbackBlocked      bool       `gorm:"column:ai_feedback_blocked" json:"ai_feedback_blocked"`
  AIFeedbackBlockReason  string     `gorm:"column:ai_feedback_block_reason" json:"ai_feedback_block_reason"`
  AIFeedbackText         string     `gorm:"column:ai_feedback_text" json:"ai_feedback_text"`
  AIFeedbackStyle        string     `gorm:"column:ai_feedback_style" json:"ai_feedback_style"`
  AIFeedbackScheduledFor *time.Time `gorm:"column:ai_feedback_scheduled_for" json:"ai_feedback_scheduled_for"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (KpiWeek) TableName() string {
  return "kpi_week"
}
