package settings

import (
  "fmt"
  "os"

  "gopkg.in/yaml.v3"

  "github.com/salescoach/crm-backend/internal/logger"
  "github.com/salescoach/crm-backend/internal/schedule"
  "github.com/salescoach/crm-backend/internal/utils"
)

// Settings is the immutable process configuration consumed by the rule
// evaluator, dispatcher and feedback scheduler. It is loaded once at boot
// and passed around as a value, never read as global state.
type Settings struct {
  FeedbackDelayMinMinutes int     `yaml:"feedback_delay_min_minutes"`
  FeedbackDelayMaxMinutes int     `yaml:"feedback_delay_max_minutes"`
  QuietHoursStart         string  `yaml:"quiet_hours_start"`
  QuietHoursEnd           string  `yaml:"quiet_hours_end"`
  UpsellMonthlyRevenue    float64 `yaml:"upsell_monthly_revenue"`
  UpsellWeeks             int     `yaml:"upsell_weeks"`

  QuietHours schedule.Window `yaml:"-"`
}

func Defaults() Settings {
  return Settings{
    FeedbackDelayMinMinutes: 30,
    FeedbackDelayMaxMinutes: 120,
    QuietHoursStart:         "21:00",
    QuietHoursEnd:           "08:00",
    UpsellMonthlyRevenue:    20000,
    UpsellWeeks:             12,
  }
}

// Load builds Settings from defaults, an optional YAML file (SETTINGS_FILE)
// and finally env overrides, in that order.
func Load(log *logger.Logger) (Settings, error) {
  s := Defaults()

  if path := utils.GetEnv("SETTINGS_FILE", "", log); path != "" {
    raw, err := os.ReadFile(path)
    if err != nil {
      return Settings{}, fmt.Errorf("read settings file: %w", err)
    }
    if err := yaml.Unmarshal(raw, &s); err != nil {
      return Settings{}, fmt.Errorf("parse settings file: %w", err)
    }
  }

  s.FeedbackDelayMinMinutes = utils.GetEnvAsInt("FEEDBACK_DELAY_MIN_MINUTES", s.FeedbackDelayMinMinutes, log)
  s.FeedbackDelayMaxMinutes = utils.GetEnvAsInt("FEEDBACK_DELAY_MAX_MINUTES", s.FeedbackDelayMaxMinutes, log)
  s.QuietHoursStart = utils.GetEnv("QUIET_HOURS_START", s.QuietHoursStart, log)
  s.QuietHoursEnd = utils.GetEnv("QUIET_HOURS_END", s.QuietHoursEnd, log)
  s.UpsellMonthlyRevenue = utils.GetEnvAsFloat("UPSELL_MONTHLY_REVENUE", s.UpsellMonthlyRevenue, log)
  s.UpsellWeeks = utils.GetEnvAsInt("UPSELL_WEEKS", s.UpsellWeeks, log)

  if err := s.validate(); err != nil {
    return Settings{}, err
  }

  w, err := schedule.ParseWindow(s.QuietHoursStart, s.QuietHoursEnd)
  if err != nil {
    return Settings{}, err
  }
  s.QuietHours = w
  return s, nil
}

func (s Settings) validate() error {
  if s.FeedbackDelayMinMinutes < 0 {
    return fmt.Errorf("feedback delay min must not be negative")
  }
  if s.FeedbackDelayMaxMinutes < s.FeedbackDelayMinMinutes {
    return fmt.Errorf("feedback delay max %d below min %d", s.FeedbackDelayMaxMinutes, s.FeedbackDelayMinMinutes)
  }
  if s.UpsellWeeks < 4 {
    return fmt.Errorf("upsell weeks must cover at least one 4-week month")
  }
  if s.UpsellMonthlyRevenue <= 0 {
    return fmt.Errorf("upsell monthly revenue threshold must be positive")
  }
  return nil
}
