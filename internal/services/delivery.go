package services

import (
  "context"
  "fmt"
  "time"

  "gorm.io/gorm"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/types"
)

const (
  deliveryPollInterval = 30 * time.Second
  deliveryMaxAttempts  = 5
  deliveryRetryDelay   = 15 * time.Minute
)

// DeliveryService drains due scheduled messages through the transport.
// It owns the send-time quiet-hours re-check: a WhatsApp message that was
// legal at enqueue time can still land inside the window by the time the
// sweep picks it up.
type DeliveryService interface {
  // ProcessNext claims and handles one due message; it reports whether a
  // message was found.
  ProcessNext(ctx context.Context) (bool, error)
  StartWorker(ctx context.Context)
}

type deliveryService struct {
  db         *gorm.DB
  log        *logger.Logger
  cfg        settings.Settings
  memberRepo repos.MemberRepo
  msgRepo    repos.ScheduledMessageRepo
  transport  MessageTransport
}

func NewDeliveryService(
  db *gorm.DB,
  baseLog *logger.Logger,
  cfg settings.Settings,
  memberRepo repos.MemberRepo,
  msgRepo repos.ScheduledMessageRepo,
  transport MessageTransport,
) DeliveryService {
  return &deliveryService{
    db:         db,
    log:        baseLog.With("service", "DeliveryService"),
    cfg:        cfg,
    memberRepo: memberRepo,
    msgRepo:    msgRepo,
    transport:  transport,
  }
}

func (s *deliveryService) StartWorker(ctx context.Context) {
  go func() {
    ticker := time.NewTicker(deliveryPollInterval)
    defer ticker.Stop()
    for {
      select {
      case <-ctx.Done():
        return
      case <-ticker.C:
        for {
          found, err := s.ProcessNext(ctx)
          if err != nil {
            s.log.Warn("Message delivery failed", "error", err)
            break
          }
          if !found {
            break
          }
        }
      }
    }
  }()
}

func (s *deliveryService) ProcessNext(ctx context.Context) (bool, error) {
  now := time.Now()
  msg, err := s.msgRepo.ClaimNextDue(ctx, nil, now, deliveryMaxAttempts)
  if err != nil {
    return false, err
  }
  if msg == nil {
    return false, nil
  }

  // Send-time guard. Force bypasses the window; email always goes out.
  if msg.Channel == types.ChannelWhatsApp && !msg.Force && schedule.InQuietHours(now, s.cfg.QuietHours) {
    next := schedule.NextAllowed(now, s.cfg.QuietHours)
    if err := s.msgRepo.Reschedule(ctx, nil, msg.ID, next); err != nil {
      return true, fmt.Errorf("reschedule message %s: %w", msg.ID, err)
    }
    s.log.Info("Message deferred past quiet hours", "message_id", msg.ID, "scheduled_for", next)
    return true, nil
  }

  recipient, err := s.recipientFor(ctx, msg)
  if err != nil {
    if markErr := s.msgRepo.MarkFailed(ctx, nil, msg.ID, err.Error(), now.Add(deliveryRetryDelay)); markErr != nil {
      s.log.Warn("Message failure update failed", "message_id", msg.ID, "error", markErr)
    }
    return true, err
  }

  if sendErr := s.transport.Send(ctx, msg.Channel, recipient, msg.Body); sendErr != nil {
    if markErr := s.msgRepo.MarkFailed(ctx, nil, msg.ID, sendErr.Error(), now.Add(deliveryRetryDelay)); markErr != nil {
      s.log.Warn("Message failure update failed", "message_id", msg.ID, "error", markErr)
    }
    return true, sendErr
  }

  if err := s.msgRepo.MarkSent(ctx, nil, msg.ID); err != nil {
    return true, fmt.Errorf("mark message %s sent: %w", msg.ID, err)
  }
  s.log.Info("Message delivered", "message_id", msg.ID, "channel", msg.Channel, "rule_id", msg.RuleID)
  return true, nil
}

func (s *deliveryService) recipientFor(ctx context.Context, msg *types.ScheduledMessage) (string, error) {
  member, err := s.memberRepo.GetByID(ctx, nil, msg.MemberID)
  if err != nil {
    return "", fmt.Errorf("load member: %w", err)
  }
  if member == nil {
    return "", fmt.Errorf("member %s not found", msg.MemberID)
  }
  switch msg.Channel {
  case types.ChannelWhatsApp:
    if member.Phone == "" {
      return "", fmt.Errorf("member %s has no phone number", member.ID)
    }
    return member.Phone, nil
  case types.ChannelEmail:
    if member.Email == "" {
      return "", fmt.Errorf("member %s has no email address", member.ID)
    }
    return member.Email, nil
  default:
    return "", fmt.Errorf("unknown channel %q", msg.Channel)
  }
}
