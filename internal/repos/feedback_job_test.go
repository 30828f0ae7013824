package repos

import (
  "context"
  "testing"
  "time"

  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/types"
)

func TestFeedbackJobClaimFlipsToRunning(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewFeedbackJobRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)
  wk := testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10)

  job, err := repo.Enqueue(ctx, nil, &types.FeedbackJob{KpiWeekID: wk.ID, MemberID: m.ID})
  if err != nil {
    t.Fatalf("enqueue: %v", err)
  }

  claimed, err := repo.ClaimNextRunnable(ctx, nil, 5, time.Minute, 10*time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if claimed == nil || claimed.ID != job.ID {
    t.Fatalf("claimed %+v, want job %s", claimed, job.ID)
  }

  reloaded, err := repo.GetLatestByKpiWeek(ctx, nil, wk.ID)
  if err != nil {
    t.Fatalf("reload: %v", err)
  }
  if reloaded.Status != types.FeedbackJobRunning || reloaded.Attempts != 1 {
    t.Fatalf("claimed job is %s with %d attempts, want running/1", reloaded.Status, reloaded.Attempts)
  }

  // A running job with a fresh heartbeat is not claimable again.
  again, err := repo.ClaimNextRunnable(ctx, nil, 5, time.Minute, 10*time.Minute)
  if err != nil {
    t.Fatalf("second claim: %v", err)
  }
  if again != nil {
    t.Fatalf("running job claimed twice")
  }
}

func TestFeedbackJobFailedRetryRespectsDelayAndAttempts(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewFeedbackJobRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)
  wk := testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10)

  recent := time.Now().Add(-10 * time.Second)
  failed := &types.FeedbackJob{
    ID:          uuid.New(),
    KpiWeekID:   wk.ID,
    MemberID:    m.ID,
    Status:      types.FeedbackJobFailed,
    Attempts:    1,
    LastError:   "timeout",
    LastErrorAt: &recent,
  }
  if err := db.Create(failed).Error; err != nil {
    t.Fatalf("seed failed job: %v", err)
  }

  // The retry delay has not passed yet.
  got, err := repo.ClaimNextRunnable(ctx, nil, 5, time.Minute, 10*time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if got != nil {
    t.Fatalf("job claimed before its retry delay elapsed")
  }

  // After the delay it becomes runnable again.
  got, err = repo.ClaimNextRunnable(ctx, nil, 5, 5*time.Second, 10*time.Minute)
  if err != nil {
    t.Fatalf("claim after delay: %v", err)
  }
  if got == nil || got.ID != failed.ID {
    t.Fatalf("failed job not reclaimed after delay")
  }

  // Exhausted attempts stay dead.
  if err := repo.UpdateFields(ctx, nil, failed.ID, map[string]interface{}{
    "status":   types.FeedbackJobFailed,
    "attempts": 5,
  }); err != nil {
    t.Fatalf("exhaust attempts: %v", err)
  }
  got, err = repo.ClaimNextRunnable(ctx, nil, 5, 0, 10*time.Minute)
  if err != nil {
    t.Fatalf("claim exhausted: %v", err)
  }
  if got != nil {
    t.Fatalf("job with exhausted attempts claimed")
  }
}

func TestFeedbackJobStaleRunningReclaimed(t *testing.T) {
  ctx := context.Background()
  db := testutil.DB(t)
  repo := NewFeedbackJobRepo(db, testutil.Logger(t))
  m := testutil.SeedMember(t, ctx, db)
  wk := testutil.SeedKpiWeek(t, ctx, db, m, 2025, 10)

  stale := time.Now().Add(-time.Hour)
  job := &types.FeedbackJob{
    ID:          uuid.New(),
    KpiWeekID:   wk.ID,
    MemberID:    m.ID,
    Status:      types.FeedbackJobRunning,
    Attempts:    1,
    HeartbeatAt: &stale,
  }
  if err := db.Create(job).Error; err != nil {
    t.Fatalf("seed stale job: %v", err)
  }

  got, err := repo.ClaimNextRunnable(ctx, nil, 5, time.Minute, 10*time.Minute)
  if err != nil {
    t.Fatalf("claim: %v", err)
  }
  if got == nil || got.ID != job.ID {
    t.Fatalf("stale running job not reclaimed")
  }
}
