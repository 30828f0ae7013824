package main

import (
  "context"
  "fmt"
  "os"

  "github.com/salescoach/crm-backend/internal/db"
  "github.com/salescoach/crm-backend/internal/handlers"
  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/repos"
  "github.com/salescoach/crm-backend/internal/server"
  "github.com/salescoach/crm-backend/internal/services"
  "github.com/salescoach/crm-backend/internal/settings"
  "github.com/salescoach/crm-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Settings
  log.Info("Loading automation settings from main...")
  cfg, err := settings.Load(log)
  if err != nil {
    log.Error("Settings load failed", "error", err)
    os.Exit(1)
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Postgres auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  memberRepo := repos.NewMemberRepo(thePG, log)
  kpiWeekRepo := repos.NewKpiWeekRepo(thePG, log)
  cooldownRepo := repos.NewCooldownRepo(thePG, log)
  automationLogRepo := repos.NewAutomationLogRepo(thePG, log)
  taskRepo := repos.NewTaskRepo(thePG, log)
  noteRepo := repos.NewNoteRepo(thePG, log)
  scheduledMessageRepo := repos.NewScheduledMessageRepo(thePG, log)
  feedbackJobRepo := repos.NewFeedbackJobRepo(thePG, log)

  // Services
  log.Info("Setting up Services from main...")
  dispatcher := services.NewActionDispatcher(thePG, log, cfg, memberRepo, taskRepo, noteRepo, scheduledMessageRepo, automationLogRepo)
  engine := services.NewRuleEngineService(thePG, log, cfg, memberRepo, kpiWeekRepo, cooldownRepo, dispatcher)
  generator := services.NewOpenAITextGenerator(log)
  feedbackService := services.NewFeedbackService(
    thePG,
    log,
    cfg,
    memberRepo,
    kpiWeekRepo,
    taskRepo,
    scheduledMessageRepo,
    automationLogRepo,
    feedbackJobRepo,
    generator,
    nil,
  )
  submissionService := services.NewSubmissionService(thePG, log, memberRepo, kpiWeekRepo, engine, feedbackService)
  sweepService := services.NewSweepService(thePG, log, memberRepo, engine)

  // Workers
  log.Info("Starting background workers from main...")
  ctx := context.Background()
  feedbackService.StartWorker(ctx)
  if err := sweepService.Start(ctx); err != nil {
    log.Error("Sweep scheduler failed to start", "error", err)
    os.Exit(1)
  }
  transport, err := services.NewHTTPMessageTransport(log)
  if err != nil {
    // Without a gateway the delivery worker stays off and pending
    // messages simply wait in the table.
    log.Warn("Message transport not configured, delivery worker disabled", "error", err)
  } else {
    deliveryService := services.NewDeliveryService(thePG, log, cfg, memberRepo, scheduledMessageRepo, transport)
    deliveryService.StartWorker(ctx)
  }

  // Handlers
  log.Info("Setting up handlers from main...")
  memberHandler := handlers.NewMemberHandler(log, memberRepo)
  submissionHandler := handlers.NewSubmissionHandler(log, submissionService, kpiWeekRepo)
  automationHandler := handlers.NewAutomationHandler(log, engine, automationLogRepo)
  taskHandler := handlers.NewTaskHandler(log, feedbackService)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    MemberHandler:     memberHandler,
    SubmissionHandler: submissionHandler,
    AutomationHandler: automationHandler,
    TaskHandler:       taskHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
