package services

import (
  "context"
  "testing"
  "time"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/types"
)

// windowAround builds a quiet-hours window that contains now.
func windowAround(now time.Time) schedule.Window {
  minute := now.Hour()*60 + now.Minute()
  return schedule.Window{
    StartMinute: (minute + 1440 - 60) % 1440,
    EndMinute:   (minute + 60) % 1440,
  }
}

// windowAway builds a quiet-hours window well clear of now.
func windowAway(now time.Time) schedule.Window {
  minute := now.Hour()*60 + now.Minute()
  return schedule.Window{
    StartMinute: (minute + 300) % 1440,
    EndMinute:   (minute + 360) % 1440,
  }
}

func TestDispatchDefersWhatsAppInQuietHours(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  dispatcher := NewActionDispatcher(s.db, testutil.Logger(t), s.cfg, s.members, s.tasks, s.notes, s.messages, s.audit)

  m := testutil.SeedMember(t, ctx, s.db)
  rule, _ := rules.ByID(rules.RuleFeldFehltAberGetrackt)
  outcome := dispatcher.Dispatch(ctx, m, rule, rules.Decision{Triggered: true, Reason: "Getrackte Felder ohne Wert"}, false)
  if outcome.PartialErr != nil {
    t.Fatalf("dispatch: %v", outcome.PartialErr)
  }

  var msg types.ScheduledMessage
  if err := s.db.Where("rule_id = ?", rule.ID).First(&msg).Error; err != nil {
    t.Fatalf("message missing: %v", err)
  }
  if !msg.ScheduledFor.After(time.Now()) {
    t.Fatalf("whatsapp message inside quiet hours must be deferred, scheduled for %s", msg.ScheduledFor)
  }
  if schedule.InQuietHours(msg.ScheduledFor, s.cfg.QuietHours) {
    t.Fatalf("deferred schedule %s still inside the window", msg.ScheduledFor)
  }
}

func TestDispatchForceBypassesQuietHours(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  dispatcher := NewActionDispatcher(s.db, testutil.Logger(t), s.cfg, s.members, s.tasks, s.notes, s.messages, s.audit)

  m := testutil.SeedMember(t, ctx, s.db)
  rule, _ := rules.ByID(rules.RuleFeldFehltAberGetrackt)
  if out := dispatcher.Dispatch(ctx, m, rule, rules.Decision{Triggered: true, Reason: "manueller Testlauf"}, true); out.PartialErr != nil {
    t.Fatalf("dispatch: %v", out.PartialErr)
  }

  var msg types.ScheduledMessage
  if err := s.db.Where("rule_id = ?", rule.ID).First(&msg).Error; err != nil {
    t.Fatalf("message missing: %v", err)
  }
  if !msg.Force {
    t.Fatalf("force must be persisted for the delivery sweep")
  }
  if msg.ScheduledFor.After(time.Now().Add(time.Minute)) {
    t.Fatalf("forced message must not be deferred, scheduled for %s", msg.ScheduledFor)
  }
}

func TestDispatchEmailIgnoresQuietHours(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  dispatcher := NewActionDispatcher(s.db, testutil.Logger(t), s.cfg, s.members, s.tasks, s.notes, s.messages, s.audit)

  m := testutil.SeedMember(t, ctx, s.db)
  rule, _ := rules.ByID(rules.RuleMomentumStreak)
  if out := dispatcher.Dispatch(ctx, m, rule, rules.Decision{Triggered: true, Reason: "Momentum"}, false); out.PartialErr != nil {
    t.Fatalf("dispatch: %v", out.PartialErr)
  }

  var msg types.ScheduledMessage
  if err := s.db.Where("rule_id = ? AND channel = ?", rule.ID, types.ChannelEmail).First(&msg).Error; err != nil {
    t.Fatalf("email message missing: %v", err)
  }
  if msg.ScheduledFor.After(time.Now().Add(time.Minute)) {
    t.Fatalf("email must never be deferred, scheduled for %s", msg.ScheduledFor)
  }
}

func TestDispatchSuppressesDuplicateOpenTask(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := testutil.SeedMember(t, ctx, s.db)
  rule, _ := rules.ByID(rules.RuleBlockadeAktiv)
  decision := rules.Decision{Triggered: true, Reason: "Aktive Blockade"}

  first := s.dispatcher.Dispatch(ctx, m, rule, decision, false)
  second := s.dispatcher.Dispatch(ctx, m, rule, decision, false)
  if first.PartialErr != nil || second.PartialErr != nil {
    t.Fatalf("dispatch errors: %v / %v", first.PartialErr, second.PartialErr)
  }

  if n := s.countRows(t, &types.Task{}); n != 1 {
    t.Fatalf("%d tasks, want 1 (duplicate suppressed)", n)
  }
  // Both dispatches are audited, but only the first lists the task action.
  entries := s.auditEntries(t, rule.ID)
  if len(entries) != 2 {
    t.Fatalf("%d audit entries, want 2", len(entries))
  }
  if len(entries[1].Actions()) != 0 {
    t.Fatalf("second dispatch reported actions %v, want none", entries[1].Actions())
  }
}

func TestDispatchFlagActionIdempotent(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  m := testutil.SeedMember(t, ctx, s.db, func(mm *types.Member) { mm.DangerZone = true })
  rule, _ := rules.ByID(rules.RuleLeistungsabfall)

  out := s.dispatcher.Dispatch(ctx, m, rule, rules.Decision{Triggered: true, Reason: "Leistungsabfall"}, false)
  if out.PartialErr != nil {
    t.Fatalf("dispatch: %v", out.PartialErr)
  }
  for _, tag := range out.ActionsTaken {
    if tag == "SET_FLAG:danger_zone" {
      t.Fatalf("already-set flag reported as taken: %v", out.ActionsTaken)
    }
  }
}
