package services

import (
  "context"
  "fmt"
  "math/rand"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/types"
)

// blockReasonMaxLen caps stored failure reasons so a misbehaving
// collaborator cannot grow rows without bound.
const blockReasonMaxLen = 500

const reviewTaskTitle = "Review: Datenanomalie in KPI-Meldung"

// FeedbackService owns the submission-quality gate and the delayed
// feedback scheduler. Generation runs as an independent unit of work
// (FeedbackJob) so its failure can never reach the submission writer.
type FeedbackService interface {
  // OnSubmissionCreated runs the anomaly gate and, for clean data,
  // enqueues the generation job. It never returns generation errors.
  OnSubmissionCreated(ctx context.Context, kpiWeekID uuid.UUID) error
  // OnReviewTaskCompleted re-queues generation for the blocked submission
  // a review task points at.
  OnReviewTaskCompleted(ctx context.Context, taskID uuid.UUID) error
  // ProcessNext claims and handles one job; it reports whether a job was
  // found. The worker loop calls it, tests call it directly.
  ProcessNext(ctx context.Context) (bool, error)
  StartWorker(ctx context.Context)
}

type feedbackService struct {
  db         *gorm.DB
  log        *logger.Logger
  cfg        settings.Settings
  memberRepo repos.MemberRepo
  kpiRepo    repos.KpiWeekRepo
  taskRepo   repos.TaskRepo
  msgRepo    repos.ScheduledMessageRepo
  auditRepo  repos.AutomationLogRepo
  jobRepo    repos.FeedbackJobRepo
  generator  TextGenerator
  rng        *rand.Rand
  genTimeout time.Duration
}

func NewFeedbackService(
  db *gorm.DB,
  baseLog *logger.Logger,
  cfg settings.Settings,
  memberRepo repos.MemberRepo,
  kpiRepo repos.KpiWeekRepo,
  taskRepo repos.TaskRepo,
  msgRepo repos.ScheduledMessageRepo,
  auditRepo repos.AutomationLogRepo,
  jobRepo repos.FeedbackJobRepo,
  generator TextGenerator,
  rng *rand.Rand,
) FeedbackService {
  if rng == nil {
    rng = rand.New(rand.NewSource(time.Now().UnixNano()))
  }
  return &feedbackService{
    db:         db,
    log:        baseLog.With("service", "FeedbackService"),
    cfg:        cfg,
    memberRepo: memberRepo,
    kpiRepo:    kpiRepo,
    taskRepo:   taskRepo,
    msgRepo:    msgRepo,
    auditRepo:  auditRepo,
    jobRepo:    jobRepo,
    generator:  generator,
    rng:        rng,
    genTimeout: 90 * time.Second,
  }
}

func (s *feedbackService) OnSubmissionCreated(ctx context.Context, kpiWeekID uuid.UUID) error {
  wk, err := s.kpiRepo.GetByID(ctx, nil, kpiWeekID)
  if err != nil {
    return fmt.Errorf("load kpi week: %w", err)
  }
  if wk == nil {
    return fmt.Errorf("kpi week %s not found", kpiWeekID)
  }

  if finding, anomalous := rules.CheckAnomalies(wk); anomalous {
    s.blockForAnomaly(ctx, wk, finding)
    return nil
  }

  if _, err := s.jobRepo.Enqueue(ctx, nil, &types.FeedbackJob{
    KpiWeekID: wk.ID,
    MemberID:  wk.MemberID,
  }); err != nil {
    // The submission itself already succeeded; a queue hiccup is
    // surfaced for operators, not for the submitting member.
    s.log.Error("Feedback job enqueue failed", "kpi_week_id", wk.ID, "error", err)
  }
  return nil
}

// blockForAnomaly handles a gate match: block feedback, flag the member,
// open a review task, write the audit entry. All local, best-effort.
func (s *feedbackService) blockForAnomaly(ctx context.Context, wk *types.KpiWeek, finding rules.Finding) {
  if err := s.kpiRepo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "ai_feedback_blocked":      true,
    "ai_feedback_generated":    false,
    "ai_feedback_block_reason": truncateReason(finding.Reason),
  }); err != nil {
    s.log.Error("Anomaly block update failed", "kpi_week_id", wk.ID, "error", err)
  }
  if _, err := s.memberRepo.SetFlag(ctx, nil, wk.MemberID, rules.FlagNeedsReview, true); err != nil {
    s.log.Warn("Review flag update failed", "member_id", wk.MemberID, "error", err)
  }
  memberID := wk.MemberID
  weekID := wk.ID
  if _, err := s.taskRepo.Create(ctx, nil, &types.Task{
    MemberID:    &memberID,
    RuleID:      rules.PseudoRuleAnomalyGate,
    KpiWeekID:   &weekID,
    Title:       reviewTaskTitle,
    Description: finding.Reason,
    Priority:    types.TaskPriorityHigh,
  }); err != nil {
    s.log.Warn("Review task creation failed", "kpi_week_id", wk.ID, "error", err)
  }

  entry := &types.AutomationLogEntry{
    MemberID:  &memberID,
    RuleID:    rules.PseudoRuleAnomalyGate,
    RuleName:  "Anomalie-Gate",
    Triggered: true,
    Details: map[string]interface{}{
      "reason":      finding.Reason,
      "check":       finding.Code,
      "kpi_week_id": wk.ID.String(),
    },
    FiredAt: time.Now(),
  }
  entry.SetActions([]string{"BLOCK_AI_FEEDBACK", "SET_FLAG:review", "CREATE_TASK:Review"})
  if err := s.auditRepo.Append(ctx, nil, entry); err != nil {
    s.log.Warn("Anomaly audit write failed", "kpi_week_id", wk.ID, "error", err)
  }
}

func (s *feedbackService) OnReviewTaskCompleted(ctx context.Context, taskID uuid.UUID) error {
  task, err := s.taskRepo.MarkDone(ctx, nil, taskID)
  if err != nil {
    return fmt.Errorf("complete task: %w", err)
  }
  if task == nil {
    return fmt.Errorf("task %s not found or already completed", taskID)
  }
  if task.KpiWeekID == nil {
    return nil
  }
  wk, err := s.kpiRepo.GetByID(ctx, nil, *task.KpiWeekID)
  if err != nil {
    return fmt.Errorf("load kpi week: %w", err)
  }
  if wk == nil || !wk.AIFeedbackBlocked {
    return nil
  }

  if err := s.kpiRepo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "ai_feedback_blocked":      false,
    "ai_feedback_block_reason": "",
  }); err != nil {
    return fmt.Errorf("unblock feedback: %w", err)
  }
  if _, err := s.jobRepo.Enqueue(ctx, nil, &types.FeedbackJob{
    KpiWeekID: wk.ID,
    MemberID:  wk.MemberID,
    Retry:     true,
  }); err != nil {
    return fmt.Errorf("enqueue retry job: %w", err)
  }
  return nil
}

func (s *feedbackService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(2 * time.Second)
    defer ticker.Stop()
    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        if _, err := s.ProcessNext(ctx); err != nil {
          s.log.Warn("Feedback job processing failed", "error", err)
        }
      }
    }
  }()
}

func (s *feedbackService) ProcessNext(ctx context.Context) (bool, error) {
  const maxAttempts = 5
  job, err := s.jobRepo.ClaimNextRunnable(ctx, nil, maxAttempts, 30*time.Second, 10*time.Minute)
  if err != nil {
    return false, err
  }
  if job == nil {
    return false, nil
  }

  wk, err := s.kpiRepo.GetByID(ctx, nil, job.KpiWeekID)
  if err != nil {
    s.failJob(ctx, job.ID, err)
    return true, err
  }
  member, err := s.memberRepo.GetByID(ctx, nil, job.MemberID)
  if err != nil || member == nil {
    if err == nil {
      err = fmt.Errorf("member %s not found", job.MemberID)
    }
    s.failJob(ctx, job.ID, err)
    return true, err
  }
  if wk == nil || wk.AIFeedbackGenerated || wk.AIFeedbackBlocked {
    // Already resolved elsewhere; nothing left for this job.
    s.finishJob(ctx, job.ID, "")
    return true, nil
  }

  genCtx, cancel := context.WithTimeout(ctx, s.genTimeout)
  text, style, genErr := s.generator.Generate(genCtx, member, wk)
  cancel()

  if genErr != nil {
    s.blockForGenerationFailure(ctx, wk, genErr)
    // The failure is fully handled (blocked + review task); the job is
    // closed rather than retried, recovery goes through the review task.
    s.finishJob(ctx, job.ID, genErr.Error())
    return true, nil
  }

  s.scheduleGenerated(ctx, member, wk, text, style, job.Retry)
  s.finishJob(ctx, job.ID, "")
  return true, nil
}

func (s *feedbackService) scheduleGenerated(ctx context.Context, member *types.Member, wk *types.KpiWeek, text, style string, retry bool) {
  now := time.Now()
  delay := schedule.PickDelay(s.cfg.FeedbackDelayMinMinutes, s.cfg.FeedbackDelayMaxMinutes, s.rng)
  scheduledFor := now.Add(delay)

  if err := s.kpiRepo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "ai_feedback_generated":     true,
    "ai_feedback_blocked":       false,
    "ai_feedback_block_reason":  "",
    "ai_feedback_text":          text,
    "ai_feedback_style":         style,
    "ai_feedback_scheduled_for": scheduledFor,
  }); err != nil {
    s.log.Error("Feedback persist failed", "kpi_week_id", wk.ID, "error", err)
    return
  }

  if _, err := s.msgRepo.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     member.ID,
    RuleID:       rules.PseudoRuleAIFeedback,
    Channel:      types.ChannelWhatsApp,
    TemplateKey:  "ai_weekly_feedback",
    Body:         text,
    ScheduledFor: scheduledFor,
  }); err != nil {
    s.log.Warn("Feedback message scheduling failed", "kpi_week_id", wk.ID, "error", err)
  }

  actions := []string{"GENERATE_FEEDBACK", "SCHEDULE_MESSAGE:whatsapp"}
  details := map[string]interface{}{
    "style":         style,
    "delay_minutes": int(delay / time.Minute),
    "scheduled_for": scheduledFor.Format(time.RFC3339),
    "kpi_week_id":   wk.ID.String(),
  }
  if retry {
    // A successful retry also resolves the member-level review state and
    // is audited distinctly from the original block.
    if _, err := s.memberRepo.SetFlag(ctx, nil, member.ID, rules.FlagNeedsReview, false); err != nil {
      s.log.Warn("Review flag clear failed", "member_id", member.ID, "error", err)
    }
    actions = append(actions, "CLEAR_FLAG:review")
    details["retry"] = true
  }

  memberID := member.ID
  entry := &types.AutomationLogEntry{
    MemberID:  &memberID,
    RuleID:    rules.PseudoRuleAIFeedback,
    RuleName:  "KI-Feedback",
    Triggered: true,
    Details:   details,
    FiredAt:   now,
  }
  entry.SetActions(actions)
  if err := s.auditRepo.Append(ctx, nil, entry); err != nil {
    s.log.Warn("Feedback audit write failed", "kpi_week_id", wk.ID, "error", err)
  }
}

func (s *feedbackService) blockForGenerationFailure(ctx context.Context, wk *types.KpiWeek, genErr error) {
  reason := truncateReason(genErr.Error())
  if err := s.kpiRepo.UpdateFeedbackFields(ctx, nil, wk.ID, map[string]interface{}{
    "ai_feedback_blocked":      true,
    "ai_feedback_generated":    false,
    "ai_feedback_block_reason": reason,
  }); err != nil {
    s.log.Error("Generation block update failed", "kpi_week_id", wk.ID, "error", err)
  }

  memberID := wk.MemberID
  weekID := wk.ID
  if _, err := s.taskRepo.Create(ctx, nil, &types.Task{
    MemberID:    &memberID,
    RuleID:      rules.PseudoRuleAIFeedback,
    KpiWeekID:   &weekID,
    Title:       "KI-Feedback fehlgeschlagen: manuell prüfen",
    Description: reason,
    Priority:    types.TaskPriorityMedium,
  }); err != nil {
    s.log.Warn("Generation review task creation failed", "kpi_week_id", wk.ID, "error", err)
  }

  entry := &types.AutomationLogEntry{
    MemberID:  &memberID,
    RuleID:    rules.PseudoRuleAIFeedback,
    RuleName:  "KI-Feedback",
    Triggered: false,
    Details: map[string]interface{}{
      "error":       reason,
      "kpi_week_id": wk.ID.String(),
    },
    FiredAt: time.Now(),
  }
  entry.SetActions([]string{"BLOCK_AI_FEEDBACK", "CREATE_TASK:Review"})
  if err := s.auditRepo.Append(ctx, nil, entry); err != nil {
    s.log.Warn("Generation audit write failed", "kpi_week_id", wk.ID, "error", err)
  }
}

func (s *feedbackService) finishJob(ctx context.Context, id uuid.UUID, lastError string) {
  updates := map[string]interface{}{
    "status":    types.FeedbackJobDone,
    "locked_at": nil,
  }
  if lastError != "" {
    updates["last_error"] = truncateReason(lastError)
  }
  if err := s.jobRepo.UpdateFields(ctx, nil, id, updates); err != nil {
    s.log.Warn("Feedback job finish update failed", "job_id", id, "error", err)
  }
}

func (s *feedbackService) failJob(ctx context.Context, id uuid.UUID, cause error) {
  now := time.Now()
  if err := s.jobRepo.UpdateFields(ctx, nil, id, map[string]interface{}{
    "status":        types.FeedbackJobFailed,
    "last_error":    truncateReason(cause.Error()),
    "last_error_at": now,
    "locked_at":     nil,
  }); err != nil {
    s.log.Warn("Feedback job fail update failed", "job_id", id, "error", err)
  }
}

func truncateReason(s string) string {
  if len(s) > blockReasonMaxLen {
    return s[:blockReasonMaxLen]
  }
  return s
}
