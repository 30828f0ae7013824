package types

import (
  "time"

  "github.com/google/uuid"
)

// Member carries the targets ("Soll"), tracking toggles and mutable flags
// the automation core reads. The surrounding CRM owns the rest of the
// member lifecycle.
type Member struct {
  ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
  Name  string    `gorm:"not null;column:name" json:"name"`
  Email string    `gorm:"column:email" json:"email"`
  Phone string    `gorm:"column:phone" json:"phone"`

  // Weekly targets. Zero means "no target set".
  UmsatzSoll               float64 `gorm:"column:umsatz_soll" json:"umsatz_soll"`
  KontakteSoll             float64 `gorm:"column:kontakte_soll" json:"kontakte_soll"`
  EntscheiderSoll          float64 `gorm:"column:entscheider_soll" json:"entscheider_soll"`
  TermineVereinbartSoll    float64 `gorm:"column:termine_vereinbart_soll" json:"termine_vereinbart_soll"`
  TermineStattgefundenSoll float64 `gorm:"column:termine_stattgefunden_soll" json:"termine_stattgefunden_soll"`
  AbschlussTermineSoll     float64 `gorm:"column:abschluss_termine_soll" json:"abschluss_termine_soll"`
  EinheitenSoll            float64 `gorm:"column:einheiten_soll" json:"einheiten_soll"`
  EmpfehlungenSoll         float64 `gorm:"column:empfehlungen_soll" json:"empfehlungen_soll"`
  AbschlussquoteSoll       float64 `gorm:"column:abschlussquote_soll" json:"abschlussquote_soll"`

  // Which metrics this member is expected to report.
  TrackUmsatz       bool `gorm:"column:track_umsatz;default:true" json:"track_umsatz"`
  TrackKontakte     bool `gorm:"column:track_kontakte;default:true" json:"track_kontakte"`
  TrackEntscheider  bool `gorm:"column:track_entscheider" json:"track_entscheider"`
  TrackTermine      bool `gorm:"column:track_termine" json:"track_termine"`
  TrackEinheiten    bool `gorm:"column:track_einheiten" json:"track_einheiten"`
  TrackEmpfehlungen bool `gorm:"column:track_empfehlungen" json:"track_empfehlungen"`

  // Flags set by rule actions, read by the surrounding dashboards.
  ChurnRisk       bool `gorm:"column:churn_risk;index" json:"churn_risk"`
  UpsellCandidate bool `gorm:"column:upsell_candidate;index" json:"upsell_candidate"`
  NeedsReview     bool `gorm:"column:needs_review;index" json:"needs_review"`
  DangerZone      bool `gorm:"column:danger_zone;index" json:"danger_zone"`

  CreatedAt time.Time `gorm:"not null" json:"created_at"`
  UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Member) TableName() string {
  return "member"
}
