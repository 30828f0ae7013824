package services

import (
  "context"
  "testing"
  "time"

  "github.com/salescoach/crm-backend/internal/repos/testutil"
  "github.com/salescoach/crm-backend/internal/types"
)

func newDelivery(t *testing.T, s *testStack, transport *fakeTransport) DeliveryService {
  t.Helper()
  return NewDeliveryService(s.db, testutil.Logger(t), s.cfg, s.members, s.messages, transport)
}

func TestDeliveryDefersWhatsAppAtSendTime(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  transport := &fakeTransport{}
  delivery := newDelivery(t, s, transport)

  m := testutil.SeedMember(t, ctx, s.db)
  // Legal at enqueue time, due now, but the window has since opened.
  msg, err := s.messages.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     m.ID,
    Channel:      types.ChannelWhatsApp,
    TemplateKey:  "low_feeling_checkin",
    Body:         "Kurzer Check-in?",
    ScheduledFor: time.Now().Add(-time.Minute),
  })
  if err != nil {
    t.Fatalf("seed message: %v", err)
  }

  found, err := delivery.ProcessNext(ctx)
  if err != nil {
    t.Fatalf("process: %v", err)
  }
  if !found {
    t.Fatalf("due message not picked up")
  }
  if transport.sentCount() != 0 {
    t.Fatalf("transport called during quiet hours")
  }

  var reloaded types.ScheduledMessage
  if err := s.db.Where("id = ?", msg.ID).First(&reloaded).Error; err != nil {
    t.Fatalf("reload: %v", err)
  }
  if reloaded.Status != types.MessageStatusPending {
    t.Fatalf("deferred message status %s, want pending", reloaded.Status)
  }
  if !reloaded.ScheduledFor.After(time.Now()) {
    t.Fatalf("deferred message still due: %s", reloaded.ScheduledFor)
  }
}

func TestDeliveryForceBypassesQuietHours(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  transport := &fakeTransport{}
  delivery := newDelivery(t, s, transport)

  m := testutil.SeedMember(t, ctx, s.db)
  if _, err := s.messages.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     m.ID,
    Channel:      types.ChannelWhatsApp,
    TemplateKey:  "manual_test",
    Body:         "Testnachricht",
    Force:        true,
    ScheduledFor: time.Now().Add(-time.Minute),
  }); err != nil {
    t.Fatalf("seed message: %v", err)
  }

  if found, err := delivery.ProcessNext(ctx); err != nil || !found {
    t.Fatalf("process: found=%v err=%v", found, err)
  }
  if transport.sentCount() != 1 {
    t.Fatalf("forced message not sent, %d sends", transport.sentCount())
  }
  if transport.sent[0].Recipient != m.Phone {
    t.Fatalf("whatsapp recipient %q, want member phone", transport.sent[0].Recipient)
  }
}

func TestDeliverySendsEmailOutsideQuietRules(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAround(time.Now())
  transport := &fakeTransport{}
  delivery := newDelivery(t, s, transport)

  m := testutil.SeedMember(t, ctx, s.db)
  msg, err := s.messages.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     m.ID,
    Channel:      types.ChannelEmail,
    TemplateKey:  "momentum_congrats",
    Body:         "Glückwunsch!",
    ScheduledFor: time.Now().Add(-time.Minute),
  })
  if err != nil {
    t.Fatalf("seed message: %v", err)
  }

  if found, err := delivery.ProcessNext(ctx); err != nil || !found {
    t.Fatalf("process: found=%v err=%v", found, err)
  }
  if transport.sentCount() != 1 || transport.sent[0].Recipient != m.Email {
    t.Fatalf("email not delivered to member address: %+v", transport.sent)
  }

  var reloaded types.ScheduledMessage
  if err := s.db.Where("id = ?", msg.ID).First(&reloaded).Error; err != nil {
    t.Fatalf("reload: %v", err)
  }
  if reloaded.Status != types.MessageStatusSent {
    t.Fatalf("status %s, want sent", reloaded.Status)
  }
}

func TestDeliveryFailureKeepsMessageForRetry(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAway(time.Now())
  transport := &fakeTransport{err: errGeneratorDown}
  delivery := newDelivery(t, s, transport)

  m := testutil.SeedMember(t, ctx, s.db)
  msg, err := s.messages.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     m.ID,
    Channel:      types.ChannelWhatsApp,
    TemplateKey:  "silent_member_reminder",
    Body:         "Alles ok?",
    ScheduledFor: time.Now().Add(-time.Minute),
  })
  if err != nil {
    t.Fatalf("seed message: %v", err)
  }

  found, err := delivery.ProcessNext(ctx)
  if !found || err == nil {
    t.Fatalf("failed send must surface: found=%v err=%v", found, err)
  }

  var reloaded types.ScheduledMessage
  if err := s.db.Where("id = ?", msg.ID).First(&reloaded).Error; err != nil {
    t.Fatalf("reload: %v", err)
  }
  if reloaded.Status != types.MessageStatusPending || reloaded.LastError == "" {
    t.Fatalf("failure state wrong: %+v", reloaded)
  }
  if !reloaded.ScheduledFor.After(time.Now()) {
    t.Fatalf("failed message must be pushed out for retry")
  }
}

func TestDeliveryMissingRecipient(t *testing.T) {
  ctx := context.Background()
  s := newTestStack(t)
  s.cfg.QuietHours = windowAway(time.Now())
  transport := &fakeTransport{}
  delivery := newDelivery(t, s, transport)

  m := testutil.SeedMember(t, ctx, s.db, func(mm *types.Member) { mm.Phone = "" })
  if _, err := s.messages.Create(ctx, nil, &types.ScheduledMessage{
    MemberID:     m.ID,
    Channel:      types.ChannelWhatsApp,
    TemplateKey:  "low_feeling_checkin",
    ScheduledFor: time.Now().Add(-time.Minute),
  }); err != nil {
    t.Fatalf("seed message: %v", err)
  }

  found, err := delivery.ProcessNext(ctx)
  if !found || err == nil {
    t.Fatalf("missing recipient must fail the attempt: found=%v err=%v", found, err)
  }
  if transport.sentCount() != 0 {
    t.Fatalf("transport called without a recipient")
  }
}
