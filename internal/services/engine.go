package services

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/settings"
)

// RuleIDAll asks Evaluate to run the whole catalog.
const RuleIDAll = "all"

type EvaluationResult struct {
  RuleID       string         `json:"rule_id"`
  RuleName     string         `json:"rule_name"`
  WouldTrigger bool           `json:"would_trigger"`
  Reason       string         `json:"reason"`
  Details      map[string]any `json:"details,omitempty"`
}

type ExecuteOptions struct {
  ClearCooldownFirst bool
  Force              bool
}

type ExecuteResult struct {
  Executed      bool       `json:"executed"`
  Triggered     bool       `json:"triggered"`
  Reason        string     `json:"reason"`
  ActionsTaken  []string   `json:"actions_taken"`
  CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
  Error         string     `json:"error,omitempty"`
}

// RuleEngineService is the single entry point for both the dry-run and the
// side-effecting path. Both consume the same rule table; Evaluate never
// writes anything.
type RuleEngineService interface {
  Evaluate(ctx context.Context, memberID uuid.UUID, ruleID string) ([]EvaluationResult, error)
  Execute(ctx context.Context, memberID uuid.UUID, ruleID string, opts ExecuteOptions) (*ExecuteResult, error)
  ClearCooldown(ctx context.Context, memberID uuid.UUID, ruleID string) (int64, error)
}

type ruleEngineService struct {
  db         *gorm.DB
  log        *logger.Logger
  cfg        settings.Settings
  memberRepo repos.MemberRepo
  kpiRepo    repos.KpiWeekRepo
  cooldowns  repos.CooldownRepo
  dispatcher ActionDispatcher
}

func NewRuleEngineService(
  db *gorm.DB,
  baseLog *logger.Logger,
  cfg settings.Settings,
  memberRepo repos.MemberRepo,
  kpiRepo repos.KpiWeekRepo,
  cooldowns repos.CooldownRepo,
  dispatcher ActionDispatcher,
) RuleEngineService {
  return &ruleEngineService{
    db:         db,
    log:        baseLog.With("service", "RuleEngineService"),
    cfg:        cfg,
    memberRepo: memberRepo,
    kpiRepo:    kpiRepo,
    cooldowns:  cooldowns,
    dispatcher: dispatcher,
  }
}

func (s *ruleEngineService) buildInput(ctx context.Context, memberID uuid.UUID) (rules.Input, error) {
  member, err := s.memberRepo.GetByID(ctx, nil, memberID)
  if err != nil {
    return rules.Input{}, fmt.Errorf("load member: %w", err)
  }
  if member == nil {
    return rules.Input{}, fmt.Errorf("member %s not found", memberID)
  }
  history, err := s.kpiRepo.GetRecentByMember(ctx, nil, memberID, rules.MaxHistory)
  if err != nil {
    return rules.Input{}, fmt.Errorf("load history: %w", err)
  }
  return rules.Input{
    Member:   member,
    History:  history,
    Settings: s.cfg,
    Now:      time.Now(),
  }, nil
}

func (s *ruleEngineService) Evaluate(ctx context.Context, memberID uuid.UUID, ruleID string) ([]EvaluationResult, error) {
  var subset []rules.Rule
  if ruleID == RuleIDAll || ruleID == "" {
    subset = rules.Catalog()
  } else {
    rule, ok := rules.ByID(ruleID)
    if !ok {
      return nil, fmt.Errorf("unknown rule %q", ruleID)
    }
    subset = []rules.Rule{rule}
  }

  in, err := s.buildInput(ctx, memberID)
  if err != nil {
    return nil, err
  }

  out := make([]EvaluationResult, 0, len(subset))
  for _, rule := range subset {
    decision := rule.Evaluate(in)
    out = append(out, EvaluationResult{
      RuleID:       rule.ID,
      RuleName:     rule.Name,
      WouldTrigger: decision.Triggered,
      Reason:       decision.Reason,
      Details:      decision.Details,
    })
  }
  return out, nil
}

func (s *ruleEngineService) Execute(ctx context.Context, memberID uuid.UUID, ruleID string, opts ExecuteOptions) (*ExecuteResult, error) {
  rule, ok := rules.ByID(ruleID)
  if !ok {
    return nil, fmt.Errorf("unknown rule %q", ruleID)
  }

  in, err := s.buildInput(ctx, memberID)
  if err != nil {
    return nil, err
  }

  if opts.ClearCooldownFirst {
    if _, err := s.cooldowns.Clear(ctx, nil, memberID, rule.ID); err != nil {
      return nil, fmt.Errorf("clear cooldown: %w", err)
    }
  }

  // The cooldown window is claimed before evaluating. Concurrent executes
  // for the same (member, rule) race on the unique index inside a single
  // upsert; exactly one of them proceeds to dispatch.
  acquired, expires, err := s.cooldowns.Acquire(ctx, nil, memberID, rule.ID, rule.Cooldown)
  if err != nil {
    return nil, fmt.Errorf("acquire cooldown: %w", err)
  }
  if !acquired {
    active, lookupErr := s.cooldowns.ActiveUntil(ctx, nil, memberID, rule.ID)
    if lookupErr != nil {
      s.log.Warn("Cooldown lookup after failed acquire", "rule_id", rule.ID, "error", lookupErr)
    }
    res := &ExecuteResult{
      Executed:  false,
      Triggered: false,
      Reason:    "Cooldown aktiv, Regel wird übersprungen",
    }
    res.CooldownUntil = active
    return res, nil
  }

  decision := rule.Evaluate(in)
  if !decision.Triggered {
    // A non-firing evaluation must not burn the window for a later real
    // trigger, so the provisional claim is released again.
    if err := s.cooldowns.Release(ctx, nil, memberID, rule.ID); err != nil {
      s.log.Warn("Cooldown release failed", "rule_id", rule.ID, "member_id", memberID, "error", err)
    }
    return &ExecuteResult{
      Executed:  true,
      Triggered: false,
      Reason:    decision.Reason,
    }, nil
  }

  outcome := s.dispatcher.Dispatch(ctx, in.Member, rule, decision, opts.Force)

  res := &ExecuteResult{
    Executed:      true,
    Triggered:     true,
    Reason:        decision.Reason,
    ActionsTaken:  outcome.ActionsTaken,
    CooldownUntil: &expires,
  }
  if outcome.PartialErr != nil {
    s.log.Warn("Dispatch completed with partial errors", "rule_id", rule.ID, "member_id", memberID, "error", outcome.PartialErr)
    res.Error = outcome.PartialErr.Error()
  }
  return res, nil
}

func (s *ruleEngineService) ClearCooldown(ctx context.Context, memberID uuid.UUID, ruleID string) (int64, error) {
  return s.cooldowns.Clear(ctx, nil, memberID, ruleID)
}
