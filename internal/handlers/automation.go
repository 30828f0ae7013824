package handlers

import (
  "errors"
  "net/http"
  "strconv"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/services"
)

type AutomationHandler struct {
  log       *logger.Logger
  engine    services.RuleEngineService
  auditRepo repos.AutomationLogRepo
}

func NewAutomationHandler(log *logger.Logger, engine services.RuleEngineService, auditRepo repos.AutomationLogRepo) *AutomationHandler {
  return &AutomationHandler{
    log:       log.With("handler", "AutomationHandler"),
    engine:    engine,
    auditRepo: auditRepo,
  }
}

type evaluateRequest struct {
  MemberID uuid.UUID `json:"member_id"`
  RuleID   string    `json:"rule_id"`
}

// POST /api/automation/evaluate
// Dry run only. Same predicates and same history window as execute, no
// writes of any kind.
func (h *AutomationHandler) Evaluate(c *gin.Context) {
  var in evaluateRequest
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if in.MemberID == uuid.Nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("member_id is required"))
    return
  }
  results, err := h.engine.Evaluate(c.Request.Context(), in.MemberID, in.RuleID)
  if err != nil {
    status, code := classifyEngineErr(err)
    RespondError(c, status, code, err)
    return
  }
  RespondOK(c, gin.H{"results": results})
}

type executeRequest struct {
  MemberID           uuid.UUID `json:"member_id"`
  RuleID             string    `json:"rule_id"`
  ClearCooldownFirst bool      `json:"clear_cooldown_first"`
  Force              bool      `json:"force"`
}

// POST /api/automation/execute
func (h *AutomationHandler) Execute(c *gin.Context) {
  var in executeRequest
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if in.MemberID == uuid.Nil || in.RuleID == "" {
    RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("member_id and rule_id are required"))
    return
  }
  result, err := h.engine.Execute(c.Request.Context(), in.MemberID, in.RuleID, services.ExecuteOptions{
    ClearCooldownFirst: in.ClearCooldownFirst,
    Force:              in.Force,
  })
  if err != nil {
    status, code := classifyEngineErr(err)
    RespondError(c, status, code, err)
    return
  }
  RespondOK(c, result)
}

// DELETE /api/automation/cooldowns?member_id=&rule_id=
// Empty rule_id clears every cooldown the member holds.
func (h *AutomationHandler) ClearCooldowns(c *gin.Context) {
  memberID, err := uuid.Parse(c.Query("member_id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", err)
    return
  }
  cleared, err := h.engine.ClearCooldown(c.Request.Context(), memberID, c.Query("rule_id"))
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  RespondOK(c, gin.H{"cleared": cleared})
}

// GET /api/automation/log?member_id=&limit=
func (h *AutomationHandler) ListLog(c *gin.Context) {
  limit := 50
  if v := c.Query("limit"); v != "" {
    parsed, err := strconv.Atoi(v)
    if err != nil || parsed < 1 || parsed > 500 {
      RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be between 1 and 500"))
      return
    }
    limit = parsed
  }
  if raw := c.Query("member_id"); raw != "" {
    memberID, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_id", err)
      return
    }
    entries, err := h.auditRepo.ListByMember(c.Request.Context(), nil, memberID, limit)
    if err != nil {
      RespondError(c, http.StatusInternalServerError, "storage_error", err)
      return
    }
    RespondOK(c, gin.H{"entries": entries})
    return
  }
  entries, err := h.auditRepo.ListRecent(c.Request.Context(), nil, limit)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  RespondOK(c, gin.H{"entries": entries})
}

func classifyEngineErr(err error) (int, string) {
  msg := err.Error()
  switch {
  case strings.Contains(msg, "unknown rule"):
    return http.StatusBadRequest, "unknown_rule"
  case strings.Contains(msg, "not found"):
    return http.StatusNotFound, "member_not_found"
  default:
    return http.StatusInternalServerError, "automation_error"
  }
}
