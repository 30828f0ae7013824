package services

import (
  "context"
  "strings"
  "testing"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/types"
)

func seedLowFeelingHistory(t *testing.T, s *testStack) *types.Member {
  t.Helper()
  ctx := context.Background()
  m := testutil.SeedMember(t, ctx, s.db)
  for _, wkNo := range []int{10, 9, 8} {
    testutil.SeedKpiWeek(t, ctx, s.db, m, 2025, wkNo, func(wk *types.KpiWeek) {
      wk.Feeling = 3
    })
  }
  return m
}

func TestExecuteTriggersOnceWithinCooldown(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := seedLowFeelingHistory(t, s)

  first, err := s.engine.Execute(ctx, m.ID, rules.RuleLowFeelingStreak, ExecuteOptions{})
  if err != nil {
    t.Fatalf("first execute: %v", err)
  }
  if !first.Executed || !first.Triggered {
    t.Fatalf("first execute = %+v, want executed and triggered", first)
  }
  if first.CooldownUntil == nil {
    t.Fatalf("triggered execute must report the cooldown expiry")
  }
  if len(first.ActionsTaken) == 0 {
    t.Fatalf("triggered execute took no actions")
  }

  // Second execute hits the live cooldown and performs nothing.
  second, err := s.engine.Execute(ctx, m.ID, rules.RuleLowFeelingStreak, ExecuteOptions{})
  if err != nil {
    t.Fatalf("second execute: %v", err)
  }
  if second.Executed || second.Triggered {
    t.Fatalf("second execute = %+v, want skipped", second)
  }
  if !strings.Contains(second.Reason, "Cooldown") {
    t.Fatalf("skip reason %q does not mention the cooldown", second.Reason)
  }

  entries := s.auditEntries(t, rules.RuleLowFeelingStreak)
  if len(entries) != 1 {
    t.Fatalf("%d audit entries written, want exactly 1", len(entries))
  }
  if got := entries[0].Details["reason"]; got == nil || got == "" {
    t.Fatalf("audit entry carries no reason: %+v", entries[0].Details)
  }

  if n := s.countRows(t, &types.Task{}); n != 1 {
    t.Fatalf("%d tasks created, want 1", n)
  }
}

func TestExecuteClearCooldownFirstRearms(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := seedLowFeelingHistory(t, s)

  if _, err := s.engine.Execute(ctx, m.ID, rules.RuleLowFeelingStreak, ExecuteOptions{}); err != nil {
    t.Fatalf("prime execute: %v", err)
  }
  res, err := s.engine.Execute(ctx, m.ID, rules.RuleLowFeelingStreak, ExecuteOptions{ClearCooldownFirst: true})
  if err != nil {
    t.Fatalf("re-execute: %v", err)
  }
  if !res.Executed || !res.Triggered {
    t.Fatalf("cleared cooldown must allow a re-run, got %+v", res)
  }
  if len(s.auditEntries(t, rules.RuleLowFeelingStreak)) != 2 {
    t.Fatalf("re-run must write a second audit entry")
  }
}

func TestExecuteReleasesCooldownWhenNotTriggered(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := testutil.SeedMember(t, ctx, s.db)
  testutil.SeedKpiWeek(t, ctx, s.db, m, 2025, 10) // no heldentat

  res, err := s.engine.Execute(ctx, m.ID, rules.RuleHeldentatAmplify, ExecuteOptions{})
  if err != nil {
    t.Fatalf("execute: %v", err)
  }
  if !res.Executed || res.Triggered {
    t.Fatalf("execute = %+v, want evaluated but not triggered", res)
  }

  // The provisional window must be gone; a real trigger right after works.
  testutil.SeedKpiWeek(t, ctx, s.db, m, 2025, 11, func(wk *types.KpiWeek) {
    wk.Heldentat = "Referenzkunde gewonnen"
  })
  res, err = s.engine.Execute(ctx, m.ID, rules.RuleHeldentatAmplify, ExecuteOptions{})
  if err != nil {
    t.Fatalf("second execute: %v", err)
  }
  if !res.Triggered {
    t.Fatalf("released cooldown must not block a later trigger, got %+v", res)
  }
}

func TestEvaluateIsSideEffectFree(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := seedLowFeelingHistory(t, s)

  results, err := s.engine.Evaluate(ctx, m.ID, RuleIDAll)
  if err != nil {
    t.Fatalf("evaluate: %v", err)
  }
  if len(results) != 14 {
    t.Fatalf("%d results, want one per rule", len(results))
  }
  var wouldTrigger bool
  for _, r := range results {
    if r.RuleID == rules.RuleLowFeelingStreak && r.WouldTrigger {
      wouldTrigger = true
    }
  }
  if !wouldTrigger {
    t.Fatalf("dry run must report the low-feeling streak")
  }

  for _, probe := range []struct {
    name  string
    model interface{}
  }{
    {"tasks", &types.Task{}},
    {"notes", &types.Note{}},
    {"messages", &types.ScheduledMessage{}},
    {"audit entries", &types.AutomationLogEntry{}},
    {"cooldowns", &types.RuleCooldown{}},
  } {
    if n := s.countRows(t, probe.model); n != 0 {
      t.Fatalf("dry run created %d %s", n, probe.name)
    }
  }

  // Dry-running a single triggered rule must not arm its cooldown.
  exec, err := s.engine.Execute(ctx, m.ID, rules.RuleLowFeelingStreak, ExecuteOptions{})
  if err != nil {
    t.Fatalf("execute after dry run: %v", err)
  }
  if !exec.Triggered {
    t.Fatalf("execute after dry run must still trigger, got %+v", exec)
  }
}

func TestExecuteUnknownRuleAndMember(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := seedLowFeelingHistory(t, s)

  if _, err := s.engine.Execute(ctx, m.ID, "NO_SUCH_RULE", ExecuteOptions{}); err == nil {
    t.Fatalf("unknown rule must error")
  }
  if _, err := s.engine.Evaluate(ctx, m.ID, "NO_SUCH_RULE"); err == nil {
    t.Fatalf("unknown rule must error on evaluate")
  }
}
