package handlers

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/services"
)

type TaskHandler struct {
  log      *logger.Logger
  feedback services.FeedbackService
}

func NewTaskHandler(log *logger.Logger, feedback services.FeedbackService) *TaskHandler {
  return &TaskHandler{
    log:      log.With("handler", "TaskHandler"),
    feedback: feedback,
  }
}

// POST /api/tasks/:id/complete
// Completing a review task unblocks the submission it points at and
// re-queues feedback generation.
func (h *TaskHandler) CompleteTask(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", err)
    return
  }
  if err := h.feedback.OnReviewTaskCompleted(c.Request.Context(), id); err != nil {
    if strings.Contains(err.Error(), "not found") {
      RespondError(c, http.StatusNotFound, "task_not_found", err)
      return
    }
    RespondError(c, http.StatusInternalServerError, "task_error", err)
    return
  }
  RespondOK(c, gin.H{"completed": true})
}
