package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "time"

  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/types"
)

// taskDuplicateWindow suppresses a second open task for the same member
// and rule created shortly after the first.
const taskDuplicateWindow = 7 * 24 * time.Hour

type DispatchOutcome struct {
  ActionsTaken []string
  PartialErr   error
}

// ActionDispatcher applies a triggered rule's action list best-effort and
// writes exactly one audit entry. It never touches the cooldown store;
// the engine acquires the window atomically before dispatching.
type ActionDispatcher interface {
  Dispatch(ctx context.Context, member *types.Member, rule rules.Rule, decision rules.Decision, force bool) *DispatchOutcome
}

type actionDispatcher struct {
  db         *gorm.DB
  log        *logger.Logger
  cfg        settings.Settings
  memberRepo repos.MemberRepo
  taskRepo   repos.TaskRepo
  noteRepo   repos.NoteRepo
  msgRepo    repos.ScheduledMessageRepo
  auditRepo  repos.AutomationLogRepo
}

func NewActionDispatcher(
  db *gorm.DB,
  baseLog *logger.Logger,
  cfg settings.Settings,
  memberRepo repos.MemberRepo,
  taskRepo repos.TaskRepo,
  noteRepo repos.NoteRepo,
  msgRepo repos.ScheduledMessageRepo,
  auditRepo repos.AutomationLogRepo,
) ActionDispatcher {
  return &actionDispatcher{
    db:         db,
    log:        baseLog.With("service", "ActionDispatcher"),
    cfg:        cfg,
    memberRepo: memberRepo,
    taskRepo:   taskRepo,
    noteRepo:   noteRepo,
    msgRepo:    msgRepo,
    auditRepo:  auditRepo,
  }
}

func (d *actionDispatcher) Dispatch(ctx context.Context, member *types.Member, rule rules.Rule, decision rules.Decision, force bool) *DispatchOutcome {
  var taken []string
  var errs []error

  for _, action := range rule.Actions {
    switch a := action.(type) {
    case rules.SetFlagAction:
      changed, err := d.memberRepo.SetFlag(ctx, nil, member.ID, a.Flag, true)
      if err != nil {
        errs = append(errs, fmt.Errorf("set flag %s: %w", a.Flag, err))
        continue
      }
      // Setting an already-set flag is a no-op and not reported as taken.
      if changed {
        taken = append(taken, a.Tag())
      }
    case rules.CreateTaskAction:
      exists, err := d.taskRepo.HasOpenForRule(ctx, nil, member.ID, rule.ID, time.Now().Add(-taskDuplicateWindow))
      if err != nil {
        errs = append(errs, fmt.Errorf("task lookup: %w", err))
        continue
      }
      if exists {
        continue
      }
      memberID := member.ID
      _, err = d.taskRepo.Create(ctx, nil, &types.Task{
        MemberID:    &memberID,
        RuleID:      rule.ID,
        Title:       a.Title,
        Description: decision.Reason,
        Priority:    a.Priority,
      })
      if err != nil {
        errs = append(errs, fmt.Errorf("create task: %w", err))
        continue
      }
      taken = append(taken, a.Tag())
    case rules.CreateNoteAction:
      body := a.Body
      if decision.Reason != "" {
        body = body + "\n\n" + decision.Reason
      }
      _, err := d.noteRepo.Create(ctx, nil, &types.Note{
        MemberID: member.ID,
        RuleID:   rule.ID,
        Body:     body,
        Pinned:   a.Pinned,
      })
      if err != nil {
        errs = append(errs, fmt.Errorf("create note: %w", err))
        continue
      }
      taken = append(taken, a.Tag())
    case rules.ScheduleMessageAction:
      now := time.Now()
      scheduledFor := now
      // WhatsApp respects the quiet-hours window at enqueue time; the
      // delivery sweep re-checks at send time. Email is never suppressed.
      if a.Channel == types.ChannelWhatsApp && !force && schedule.InQuietHours(now, d.cfg.QuietHours) {
        scheduledFor = schedule.NextAllowed(now, d.cfg.QuietHours)
      }
      _, err := d.msgRepo.Create(ctx, nil, &types.ScheduledMessage{
        MemberID:     member.ID,
        RuleID:       rule.ID,
        Channel:      a.Channel,
        TemplateKey:  a.TemplateKey,
        Force:        force,
        ScheduledFor: scheduledFor,
      })
      if err != nil {
        errs = append(errs, fmt.Errorf("schedule message: %w", err))
        continue
      }
      taken = append(taken, a.Tag())
    default:
      errs = append(errs, fmt.Errorf("unknown action %T", action))
    }
  }

  d.writeAudit(ctx, member, rule, decision, taken)

  return &DispatchOutcome{
    ActionsTaken: taken,
    PartialErr:   errors.Join(errs...),
  }
}

// writeAudit appends the single audit entry for this dispatch. A failed
// audit write must never fail the dispatch itself.
func (d *actionDispatcher) writeAudit(ctx context.Context, member *types.Member, rule rules.Rule, decision rules.Decision, taken []string) {
  memberID := member.ID
  entry := &types.AutomationLogEntry{
    MemberID:  &memberID,
    RuleID:    rule.ID,
    RuleName:  rule.Name,
    Triggered: true,
    Details:   decision.Details,
    FiredAt:   time.Now(),
  }
  if entry.Details == nil {
    entry.Details = map[string]interface{}{}
  }
  entry.Details["reason"] = decision.Reason
  entry.SetActions(taken)
  if err := d.auditRepo.Append(ctx, nil, entry); err != nil {
    d.log.Warn("Audit entry write failed",
      "rule_id", rule.ID,
      "member_id", member.ID,
      "actions", strings.Join(taken, ","),
      "error", err,
    )
  }
}
