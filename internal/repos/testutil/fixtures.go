package testutil

import (
  "context"
  "testing"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/types"
)

func F(v float64) *float64 {
  return &v
}

// SeedMember creates a member with sensible weekly targets; tests mutate
// it through the mutators before insert.
func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, mutators ...func(*types.Member)) *types.Member {
  tb.Helper()
  m := &types.Member{
    ID:            uuid.New(),
    Name:          "Test Mitglied",
    Email:         "mitglied@example.com",
    Phone:         "+491700000000",
    UmsatzSoll:    1000,
    KontakteSoll:  50,
    TrackUmsatz:   true,
    TrackKontakte: true,
  }
  for _, fn := range mutators {
    fn(m)
  }
  if err := tx.WithContext(ctx).Create(m).Error; err != nil {
    tb.Fatalf("seed member: %v", err)
  }
  return m
}

// SeedKpiWeek creates a submission whose goal snapshot is copied from the
// member's current targets, the same way the intake path does it.
func SeedKpiWeek(tb testing.TB, ctx context.Context, tx *gorm.DB, m *types.Member, year, week int, mutators ...func(*types.KpiWeek)) *types.KpiWeek {
  tb.Helper()
  wk := &types.KpiWeek{
    ID:       uuid.New(),
    MemberID: m.ID,
    Year:     year,
    Week:     week,
    Feeling:  7,

    UmsatzSollSnap:               m.UmsatzSoll,
    KontakteSollSnap:             m.KontakteSoll,
    EntscheiderSollSnap:          m.EntscheiderSoll,
    TermineVereinbartSollSnap:    m.TermineVereinbartSoll,
    TermineStattgefundenSollSnap: m.TermineStattgefundenSoll,
    AbschlussTermineSollSnap:     m.AbschlussTermineSoll,
    EinheitenSollSnap:            m.EinheitenSoll,
    EmpfehlungenSollSnap:         m.EmpfehlungenSoll,
  }
  for _, fn := range mutators {
    fn(wk)
  }
  if err := tx.WithContext(ctx).Create(wk).Error; err != nil {
    tb.Fatalf("seed kpi week: %v", err)
  }
  return wk
}
