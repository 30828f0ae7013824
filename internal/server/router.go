package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/salescoach/crm-backend/internal/handlers"
)

type RouterConfig struct {
  MemberHandler     *handlers.MemberHandler
  SubmissionHandler *handlers.SubmissionHandler
  AutomationHandler *handlers.AutomationHandler
  TaskHandler       *handlers.TaskHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    // Members
    api.POST("/members", cfg.MemberHandler.CreateMember)
    api.GET("/members", cfg.MemberHandler.ListMembers)
    api.GET("/members/:id", cfg.MemberHandler.GetMember)
    // Submissions
    api.POST("/members/:id/kpi-weeks", cfg.SubmissionHandler.CreateKpiWeek)
    api.GET("/members/:id/kpi-weeks", cfg.SubmissionHandler.ListKpiWeeks)
    // Automation
    api.POST("/automation/evaluate", cfg.AutomationHandler.Evaluate)
    api.POST("/automation/execute", cfg.AutomationHandler.Execute)
    api.DELETE("/automation/cooldowns", cfg.AutomationHandler.ClearCooldowns)
    api.GET("/automation/log", cfg.AutomationHandler.ListLog)
    // Tasks
    api.POST("/tasks/:id/complete", cfg.TaskHandler.CompleteTask)
  }

  return router
}
