package rules

import (
  "time"

  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/types"
)

// MaxHistory is the length of the recent-submission window a rule may see.
const MaxHistory = 12

// Input is everything a predicate is allowed to look at. History is
// ordered newest-first and holds at most MaxHistory entries. Settings and
// Now are passed explicitly so evaluation stays a pure function.
type Input struct {
  Member   *types.Member
  History  []*types.KpiWeek
  Settings settings.Settings
  Now      time.Time
}

func (in Input) Latest() *types.KpiWeek {
  if len(in.History) == 0 {
    return nil
  }
  return in.History[0]
}

// Decision is the outcome of evaluating one rule. Triggered=false is the
// normal NoTrigger case (including insufficient history), never an error.
type Decision struct {
  Triggered bool
  Reason    string
  Details   map[string]any
}

func notTriggered(reason string) Decision {
  return Decision{Triggered: false, Reason: reason}
}

// Member flag columns addressable by rule actions.
const (
  FlagChurnRisk       = "churn_risk"
  FlagUpsellCandidate = "upsell_candidate"
  FlagNeedsReview     = "needs_review"
  FlagDangerZone      = "danger_zone"
)

// Action is a declarative side effect attached to a rule. The dispatcher
// interprets actions in order; predicates never execute them.
type Action interface {
  Tag() string
}

type SetFlagAction struct {
  Flag string
}

func (a SetFlagAction) Tag() string { return "SET_FLAG:" + a.Flag }

type CreateTaskAction struct {
  Label    string
  Title    string
  Priority string
}

func (a CreateTaskAction) Tag() string { return "CREATE_TASK:" + a.Label }

type CreateNoteAction struct {
  Body   string
  Pinned bool
}

func (a CreateNoteAction) Tag() string { return "CREATE_NOTE" }

type ScheduleMessageAction struct {
  Channel     string
  TemplateKey string
}

func (a ScheduleMessageAction) Tag() string { return "SCHEDULE_MESSAGE:" + a.Channel }

// Rule binds an identifier to its predicate, action list and cooldown.
// Dry-run and execute consume the same table; there is no second
// evaluation path.
type Rule struct {
  ID        string
  Name      string
  Category  string
  Cooldown  time.Duration
  SweepOnly bool
  Actions   []Action
  Evaluate  func(in Input) Decision
}
