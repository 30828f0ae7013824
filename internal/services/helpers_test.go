package services

import (
  "context"
  "errors"
  "math/rand"
  "sync"
  "testing"

  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/types"
)

// fakeGenerator counts calls and returns a canned text or a canned error.
type fakeGenerator struct {
  mu    sync.Mutex
  calls int
  text  string
  err   error
}

func (g *fakeGenerator) Generate(ctx context.Context, member *types.Member, wk *types.KpiWeek) (string, string, error) {
  g.mu.Lock()
  defer g.mu.Unlock()
  g.calls++
  if g.err != nil {
    return "", "", g.err
  }
  if g.text == "" {
    return "Starke Woche, weiter so!", "motivierend", nil
  }
  return g.text, "motivierend", nil
}

func (g *fakeGenerator) callCount() int {
  g.mu.Lock()
  defer g.mu.Unlock()
  return g.calls
}

type sentMessage struct {
  Channel   string
  Recipient string
  Body      string
}

// fakeTransport records sends and optionally fails them.
type fakeTransport struct {
  mu   sync.Mutex
  sent []sentMessage
  err  error
}

func (t *fakeTransport) Send(ctx context.Context, channel, recipient, body string) error {
  t.mu.Lock()
  defer t.mu.Unlock()
  if t.err != nil {
    return t.err
  }
  t.sent = append(t.sent, sentMessage{Channel: channel, Recipient: recipient, Body: body})
  return nil
}

func (t *fakeTransport) sentCount() int {
  t.mu.Lock()
  defer t.mu.Unlock()
  return len(t.sent)
}

// testStack wires the full service graph against an in-memory database.
type testStack struct {
  db        *gorm.DB
  cfg       settings.Settings
  members   repos.MemberRepo
  kpiWeeks  repos.KpiWeekRepo
  cooldowns repos.CooldownRepo
  audit     repos.AutomationLogRepo
  tasks     repos.TaskRepo
  notes     repos.NoteRepo
  messages  repos.ScheduledMessageRepo
  jobs      repos.FeedbackJobRepo

  dispatcher ActionDispatcher
  engine     RuleEngineService
  generator  *fakeGenerator
  feedback   FeedbackService
  submission SubmissionService
}

func newTestStack(t *testing.T) *testStack {
  t.Helper()
  db := testutil.DB(t)
  log := testutil.Logger(t)

  cfg := settings.Defaults()
  w, err := schedule.ParseWindow(cfg.QuietHoursStart, cfg.QuietHoursEnd)
  if err != nil {
    t.Fatalf("parse default quiet hours: %v", err)
  }
  cfg.QuietHours = w

  s := &testStack{
    db:        db,
    cfg:       cfg,
    members:   repos.NewMemberRepo(db, log),
    kpiWeeks:  repos.NewKpiWeekRepo(db, log),
    cooldowns: repos.NewCooldownRepo(db, log),
    audit:     repos.NewAutomationLogRepo(db, log),
    tasks:     repos.NewTaskRepo(db, log),
    notes:     repos.NewNoteRepo(db, log),
    messages:  repos.NewScheduledMessageRepo(db, log),
    jobs:      repos.NewFeedbackJobRepo(db, log),
    generator: &fakeGenerator{},
  }
  s.dispatcher = NewActionDispatcher(db, log, cfg, s.members, s.tasks, s.notes, s.messages, s.audit)
  s.engine = NewRuleEngineService(db, log, cfg, s.members, s.kpiWeeks, s.cooldowns, s.dispatcher)
  s.feedback = NewFeedbackService(db, log, cfg, s.members, s.kpiWeeks, s.tasks, s.messages, s.audit, s.jobs, s.generator, rand.New(rand.NewSource(1)))
  s.submission = NewSubmissionService(db, log, s.members, s.kpiWeeks, s.engine, s.feedback)
  return s
}

func (s *testStack) countRows(t *testing.T, model interface{}) int64 {
  t.Helper()
  var n int64
  if err := s.db.Model(model).Count(&n).Error; err != nil {
    t.Fatalf("count rows: %v", err)
  }
  return n
}

func (s *testStack) auditEntries(t *testing.T, ruleID string) []*types.AutomationLogEntry {
  t.Helper()
  var out []*types.AutomationLogEntry
  if err := s.db.Where("rule_id = ?", ruleID).Order("fired_at ASC").Find(&out).Error; err != nil {
    t.Fatalf("load audit entries: %v", err)
  }
  return out
}

var errGeneratorDown = errors.New("model endpoint unreachable")
