package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/rules"
  "github.com/salescoach/crm-backend/internal/services"
)

type SubmissionHandler struct {
  log               *logger.Logger
  submissionService services.SubmissionService
  kpiRepo           repos.KpiWeekRepo
}

func NewSubmissionHandler(log *logger.Logger, svc services.SubmissionService, kpiRepo repos.KpiWeekRepo) *SubmissionHandler {
  return &SubmissionHandler{
    log:               log.With("handler", "SubmissionHandler"),
    submissionService: svc,
    kpiRepo:           kpiRepo,
  }
}

// POST /api/members/:id/kpi-weeks
// A duplicate week is a conflict; everything downstream of the write
// (gate, feedback, rules) already happened or was queued by the time the
// response goes out.
func (h *SubmissionHandler) CreateKpiWeek(c *gin.Context) {
  memberID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", err)
    return
  }
  var in services.CreateKpiWeekInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  in.MemberID = memberID

  result, err := h.submissionService.CreateKpiWeek(c.Request.Context(), in)
  if err != nil {
    switch {
    case errors.Is(err, repos.ErrDuplicateWeek):
      RespondError(c, http.StatusConflict, "duplicate_week", err)
    default:
      RespondError(c, http.StatusBadRequest, "submission_rejected", err)
    }
    return
  }
  c.JSON(http.StatusCreated, result)
}

// GET /api/members/:id/kpi-weeks
func (h *SubmissionHandler) ListKpiWeeks(c *gin.Context) {
  memberID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", err)
    return
  }
  weeks, err := h.kpiRepo.GetRecentByMember(c.Request.Context(), nil, memberID, rules.MaxHistory)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  RespondOK(c, gin.H{"kpi_weeks": weeks})
}
