package repos

import (
  "context"
  "errors"
  "testing"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/types"
)

func TestKpiWeekDuplicateWeekRejected(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewKpiWeekRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)

  first := &types.KpiWeek{MemberID: m.ID, Year: 2025, Week: 10, Feeling: 7}
  if _, err := repo.Create(ctx, nil, first); err != nil {
    t.Fatalf("first create: %v", err)
  }

  dup := &types.KpiWeek{MemberID: m.ID, Year: 2025, Week: 10, Feeling: 3}
  _, err := repo.Create(ctx, nil, dup)
  if !errors.Is(err, ErrDuplicateWeek) {
    t.Fatalf("duplicate week error = %v, want ErrDuplicateWeek", err)
  }

  // Same week for another member is fine.
  other := testutil.SeedMember(t, ctx, db)
  if _, err := repo.Create(ctx, nil, &types.KpiWeek{MemberID: other.ID, Year: 2025, Week: 10, Feeling: 7}); err != nil {
    t.Fatalf("other member same week: %v", err)
  }
}

func TestKpiWeekRecentOrderedByReportedWeek(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewKpiWeekRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)

  // Inserted out of order on purpose; ordering must follow year/week.
  testutil.SeedKpiWeek(t, ctx, db, m, 2025, 8)
  testutil.SeedKpiWeek(t, ctx, db, m, 2024, 52)
  testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10)
  testutil.SeedKpiWeek(t, ctx, db, m, 2025, 9)

  got, err := repo.GetRecentByMember(ctx, nil, m.ID, 3)
  if err != nil {
    t.Fatalf("recent: %v", err)
  }
  if len(got) != 3 {
    t.Fatalf("got %d rows, want 3", len(got))
  }
  wantWeeks := []int{10, 9, 8}
  for i, wk := range got {
    if wk.Week != wantWeeks[i] || wk.Year != 2025 {
      t.Fatalf("row %d is KW %d/%d, want KW %d/2025", i, wk.Week, wk.Year, wantWeeks[i])
    }
  }
}

func TestKpiWeekUpdateRestrictedToFeedbackColumns(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewKpiWeekRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)
  wk := testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10, func(w *types.KpiWeek) {
    w.UmsatzIst = testutil.F(900)
  })

  if err := repo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "ai_feedback_generated": true,
    "ai_feedback_text":      "Starke Woche!",
  }); err != nil {
    t.Fatalf("feedback update: %v", err)
  }

  // The KPI payload is immutable through this path.
  err := repo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "umsatz_ist": 999999,
  })
  if err == nil {
    t.Fatalf("non-feedback column update must be rejected")
  }

  got, err := repo.GetByID(ctx, nil, wk.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if !got.AIFeedbackGenerated || got.AIFeedbackText != "Starke Woche!" {
    t.Fatalf("feedback fields not persisted: %+v", got)
  }
  if got.UmsatzIst == nil || *got.UmsatzIst != 900 {
    t.Fatalf("kpi payload changed: %+v", got.UmsatzIst)
  }
}

func TestKpiWeekSnapshotSurvivesTargetChanges(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewKpiWeekRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)
  wk := testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10)

  // Raising the member's live target must not move the stored snapshot.
  if err := db.Model(&types.Member{}).Where("id = ?", m.ID).
    Update("umsatz_soll", 5000).Error; err != nil {
    t.Fatalf("update member target: %v", err)
  }

  got, err := repo.GetByID(ctx, nil, wk.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if got.UmsatzSollSnap != 1000 {
    t.Fatalf("snapshot changed to %.0f, want 1000", got.UmsatzSollSnap)
  }
}
