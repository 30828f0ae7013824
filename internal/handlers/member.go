package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/types"
)

type MemberHandler struct {
  log        *logger.Logger
  memberRepo repos.MemberRepo
}

func NewMemberHandler(log *logger.Logger, memberRepo repos.MemberRepo) *MemberHandler {
  return &MemberHandler{
    log:        log.With("handler", "MemberHandler"),
    memberRepo: memberRepo,
  }
}

// POST /api/members
// Minimal intake: name plus targets and tracking toggles. The surrounding
// CRM owns the rest of the member lifecycle.
func (h *MemberHandler) CreateMember(c *gin.Context) {
  var in types.Member
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  if in.Name == "" {
    RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("name is required"))
    return
  }
  in.ID = uuid.Nil
  created, err := h.memberRepo.Create(c.Request.Context(), nil, []*types.Member{&in})
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"member": created[0]})
}

// GET /api/members
func (h *MemberHandler) ListMembers(c *gin.Context) {
  members, err := h.memberRepo.ListAll(c.Request.Context(), nil)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  RespondOK(c, gin.H{"members": members})
}

// GET /api/members/:id
func (h *MemberHandler) GetMember(c *gin.Context) {
  id, err := uuid.Parse(c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", err)
    return
  }
  member, err := h.memberRepo.GetByID(c.Request.Context(), nil, id)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "storage_error", err)
    return
  }
  if member == nil {
    RespondError(c, http.StatusNotFound, "member_not_found", errors.New("member not found"))
    return
  }
  RespondOK(c, gin.H{"member": member})
}
