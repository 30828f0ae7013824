package services

import (
  "context"
  "fmt"

  "github.com/robfig/cron"
  "golang.org/x/sync/errgroup"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/utils"
)

// sweepConcurrency bounds the member fan-out so a large roster cannot
// exhaust the database pool.
const sweepConcurrency = 8

// SweepService runs the time-based rules (silence, churn risk) across the
// whole roster. Submission-scoped rules are excluded; they already ran
// when their submission arrived.
type SweepService interface {
  // RunOnce sweeps every member and returns how many rules fired.
  RunOnce(ctx context.Context) (int, error)
  Start(ctx context.Context) error
}

type sweepService struct {
  db         *gorm.DB
  log        *logger.Logger
  memberRepo repos.MemberRepo
  engine     RuleEngineService
  cronSpec   string
  c          *cron.Cron
}

func NewSweepService(
  db *gorm.DB,
  baseLog *logger.Logger,
  memberRepo repos.MemberRepo,
  engine RuleEngineService,
) SweepService {
  log := baseLog.With("service", "SweepService")
  return &sweepService{
    db:         db,
    log:        log,
    memberRepo: memberRepo,
    engine:     engine,
    cronSpec:   utils.GetEnv("SWEEP_CRON", "@hourly", log),
  }
}

func (s *sweepService) Start(ctx context.Context) error {
  s.c = cron.New()
  err := s.c.AddFunc(s.cronSpec, func() {
    fired, runErr := s.RunOnce(ctx)
    if runErr != nil {
      s.log.Warn("Scheduled sweep finished with errors", "fired", fired, "error", runErr)
      return
    }
    s.log.Info("Scheduled sweep finished", "fired", fired)
  })
  if err != nil {
    return fmt.Errorf("invalid sweep cron spec %q: %w", s.cronSpec, err)
  }
  s.c.Start()
  go func() {
    <-ctx.Done()
    s.c.Stop()
  }()
  return nil
}

func (s *sweepService) RunOnce(ctx context.Context) (int, error) {
  members, err := s.memberRepo.ListAll(ctx, nil)
  if err != nil {
    return 0, fmt.Errorf("list members: %w", err)
  }
  sweepRules := rules.SweepRules()

  g, gCtx := errgroup.WithContext(ctx)
  g.SetLimit(sweepConcurrency)
  fired := make(chan int, len(members))

  for _, member := range members {
    member := member
    g.Go(func() error {
      count := 0
      for _, rule := range sweepRules {
        res, execErr := s.engine.Execute(gCtx, member.ID, rule.ID, ExecuteOptions{})
        if execErr != nil {
          // One member's failure must not abort the roster sweep.
          s.log.Warn("Sweep rule execution failed", "rule_id", rule.ID, "member_id", member.ID, "error", execErr)
          continue
        }
        if res.Executed && res.Triggered {
          count++
        }
      }
      fired <- count
      return nil
    })
  }

  if err := g.Wait(); err != nil {
    return 0, err
  }
  close(fired)
  total := 0
  for n := range fired {
    total += n
  }
  return total, nil
}
