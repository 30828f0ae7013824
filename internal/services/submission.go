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
  "github.com/salescoach/crm-backend/internal/types"
)

// CreateKpiWeekInput is the submission payload. Nil Ist values mean "not
// reported this week"; Year/Week zero means the current ISO week.
type CreateKpiWeekInput struct {
  MemberID uuid.UUID `json:"member_id"`
  Year     int       `json:"year"`
  Week     int       `json:"week"`

  UmsatzIst               *float64 `json:"umsatz_ist"`
  KontakteIst             *float64 `json:"kontakte_ist"`
  EntscheiderIst          *float64 `json:"entscheider_ist"`
  TermineVereinbartIst    *float64 `json:"termine_vereinbart_ist"`
  TermineStattgefundenIst *float64 `json:"termine_stattgefunden_ist"`
  AbschlussTermineIst     *float64 `json:"abschluss_termine_ist"`
  EinheitenIst            *float64 `json:"einheiten_ist"`
  EmpfehlungenIst         *float64 `json:"empfehlungen_ist"`
  NoShowQuote             *float64 `json:"no_show_quote"`

  Feeling   int    `json:"feeling"`
  Heldentat string `json:"heldentat"`
  Blocker   string `json:"blocker"`
  Challenge string `json:"challenge"`
}

type CreateKpiWeekResult struct {
  KpiWeek     *types.KpiWeek  `json:"kpi_week"`
  RuleResults []ExecuteResult `json:"rule_results"`
}

// SubmissionService persists the weekly check-in and kicks off everything
// downstream: the anomaly gate, the feedback pipeline and the
// submission-scoped rules. The write itself succeeds or fails on its own;
// downstream failures never roll it back.
type SubmissionService interface {
  CreateKpiWeek(ctx context.Context, in CreateKpiWeekInput) (*CreateKpiWeekResult, error)
}

type submissionService struct {
  db         *gorm.DB
  log        *logger.Logger
  memberRepo repos.MemberRepo
  kpiRepo    repos.KpiWeekRepo
  engine     RuleEngineService
  feedback   FeedbackService
}

func NewSubmissionService(
  db *gorm.DB,
  baseLog *logger.Logger,
  memberRepo repos.MemberRepo,
  kpiRepo repos.KpiWeekRepo,
  engine RuleEngineService,
  feedback FeedbackService,
) SubmissionService {
  return &submissionService{
    db:         db,
    log:        baseLog.With("service", "SubmissionService"),
    memberRepo: memberRepo,
    kpiRepo:    kpiRepo,
    engine:     engine,
    feedback:   feedback,
  }
}

func (s *submissionService) CreateKpiWeek(ctx context.Context, in CreateKpiWeekInput) (*CreateKpiWeekResult, error) {
  if in.Feeling < 1 || in.Feeling > 10 {
    return nil, fmt.Errorf("feeling must be between 1 and 10, got %d", in.Feeling)
  }

  member, err := s.memberRepo.GetByID(ctx, nil, in.MemberID)
  if err != nil {
    return nil, fmt.Errorf("load member: %w", err)
  }
  if member == nil {
    return nil, fmt.Errorf("member %s not found", in.MemberID)
  }

  year, week := in.Year, in.Week
  if year == 0 || week == 0 {
    year, week = time.Now().ISOWeek()
  }
  if week < 1 || week > 53 {
    return nil, fmt.Errorf("week must be between 1 and 53, got %d", week)
  }

  wk := &types.KpiWeek{
    MemberID: member.ID,
    Year:     year,
    Week:     week,

    UmsatzIst:               in.UmsatzIst,
    KontakteIst:             in.KontakteIst,
    EntscheiderIst:          in.EntscheiderIst,
    TermineVereinbartIst:    in.TermineVereinbartIst,
    TermineStattgefundenIst: in.TermineStattgefundenIst,
    AbschlussTermineIst:     in.AbschlussTermineIst,
    EinheitenIst:            in.EinheitenIst,
    EmpfehlungenIst:         in.EmpfehlungenIst,
    NoShowQuote:             in.NoShowQuote,

    Feeling:   in.Feeling,
    Heldentat: in.Heldentat,
    Blocker:   in.Blocker,
    Challenge: in.Challenge,

    // Targets are frozen into the row at submission time. Later target
    // edits must not rewrite how past weeks are judged.
    UmsatzSollSnap:               member.UmsatzSoll,
    KontakteSollSnap:             member.KontakteSoll,
    EntscheiderSollSnap:          member.EntscheiderSoll,
    TermineVereinbartSollSnap:    member.TermineVereinbartSoll,
    TermineStattgefundenSollSnap: member.TermineStattgefundenSoll,
    AbschlussTermineSollSnap:     member.AbschlussTermineSoll,
    EinheitenSollSnap:            member.EinheitenSoll,
    EmpfehlungenSollSnap:         member.EmpfehlungenSoll,
  }

  created, err := s.kpiRepo.Create(ctx, nil, wk)
  if err != nil {
    return nil, err
  }

  // Gate plus feedback enqueue. Generation problems surface as blocked
  // state and review tasks, never as submission errors.
  if err := s.feedback.OnSubmissionCreated(ctx, created.ID); err != nil {
    s.log.Error("Post-submission feedback handling failed", "kpi_week_id", created.ID, "error", err)
  }

  results := s.runSubmissionRules(ctx, member.ID)

  return &CreateKpiWeekResult{
    KpiWeek:     created,
    RuleResults: results,
  }, nil
}

// runSubmissionRules executes every submission-scoped rule once. Each rule
// fails or fires on its own; one broken rule never stops the rest.
func (s *submissionService) runSubmissionRules(ctx context.Context, memberID uuid.UUID) []ExecuteResult {
  catalog := rules.SubmissionRules()
  out := make([]ExecuteResult, 0, len(catalog))
  for _, rule := range catalog {
    res, err := s.engine.Execute(ctx, memberID, rule.ID, ExecuteOptions{})
    if err != nil {
      s.log.Warn("Submission rule execution failed", "rule_id", rule.ID, "member_id", memberID, "error", err)
      out = append(out, ExecuteResult{
        Executed: false,
        Reason:   "Regelausführung fehlgeschlagen",
        Error:    err.Error(),
      })
      continue
    }
    out = append(out, *res)
  }
  return out
}
