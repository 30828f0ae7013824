package repos

import (
  "context"
  "testing"

  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/rules"
)

func TestMemberSetFlagReportsChange(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewMemberRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)

  changed, err := repo.SetFlag(ctx, nil, m.ID, rules.FlagChurnRisk, true)
  if err != nil {
    t.Fatalf("set flag: %v", err)
  }
  if !changed {
    t.Fatalf("first set must report a change")
  }

  // Setting the flag again is a no-op.
  changed, err = repo.SetFlag(ctx, nil, m.ID, rules.FlagChurnRisk, true)
  if err != nil {
    t.Fatalf("second set: %v", err)
  }
  if changed {
    t.Fatalf("second set must not report a change")
  }

  got, err := repo.GetByID(ctx, nil, m.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if !got.ChurnRisk {
    t.Fatalf("flag not persisted")
  }

  changed, err = repo.SetFlag(ctx, nil, m.ID, rules.FlagChurnRisk, false)
  if err != nil || !changed {
    t.Fatalf("clear flag: changed=%v err=%v", changed, err)
  }
}

func TestMemberSetFlagRejectsUnknownColumn(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewMemberRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)

  if _, err := repo.SetFlag(ctx, nil, m.ID, "name", true); err == nil {
    t.Fatalf("arbitrary column names must be rejected")
  }
}

func TestMemberGetByIDMissing(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewMemberRepo(db, testutil.Logger(t))

  got, err := repo.GetByID(ctx, nil, uuid.New())
  if err != nil {
    t.Fatalf("get missing: %v", err)
  }
  if got != nil {
    t.Fatalf("missing member must come back nil, got %+v", got)
  }
}
