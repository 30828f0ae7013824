package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/types"
)

type NoteRepo interface {
  Create(ctx context.Context, tx *gorm.DB, note *types.Note) (*types.Note, error)
  ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.Note, error)
}

type noteRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewNoteRepo(db *gorm.DB, baseLog *logger.Logger) NoteRepo {
  return &noteRepo{db: db, log: baseLog.With("repo", "NoteRepo")}
}

func (r *noteRepo) Create(ctx context.Context, tx *gorm.DB, note *types.Note) (*types.Note, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if note.ID == uuid.Nil {
    note.ID = uuid.New()
  }
  if err := transaction.WithContext(ctx).Create(note).Error; err != nil {
    return nil, err
  }
  return note, nil
}

func (r *noteRepo) ListByMember(ctx context.Context, tx *gorm.DB, memberID uuid.UUID, limit int) ([]*types.Note, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 50
  }
  var out []*types.Note
  if err := transaction.WithContext(ctx).
    Where("member_id = ?", memberID).
    Order("created_at DESC").
    Limit(limit).
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}
