package rules

import (
  "time"

  "github.com/salescoach/crm-backend/internal/types"
)

// Rule identifiers. Cooldown rows are keyed by these exact strings;
// composite or prefix-matched cooldown keys are deliberately not used.
const (
  RuleLowFeelingStreak      = "LOW_FEELING_STREAK"
  RuleSilentMember          = "SILENT_MEMBER"
  RuleLeistungsabfall       = "LEISTUNGSABFALL"
  RuleUpsellSignal          = "UPSELL_SIGNAL"
  RuleFunnelLeak            = "FUNNEL_LEAK"
  RuleMomentumStreak        = "MOMENTUM_STREAK"
  RuleNoShowHoch            = "NO_SHOW_HOCH"
  RuleDatenAnomalie         = "DATEN_ANOMALIE"
  RuleFeldFehltAberGetrackt = "FELD_FEHLT_ABER_GETRACKT"
  RuleHeldentatAmplify      = "HELDENTAT_AMPLIFY"
  RuleBlockadeAktiv         = "BLOCKADE_AKTIV"
  RuleSmartNudge            = "SMART_NUDGE"
  RuleKuendigungsrisiko     = "KUENDIGUNGSRISIKO"
  RuleHappyHighPerformer    = "HAPPY_HIGH_PERFORMER"

  // Pseudo-rule identifiers used for audit entries written outside the
  // catalog execute path.
  PseudoRuleAnomalyGate = "ANOMALY_GATE"
  PseudoRuleAIFeedback  = "AI_FEEDBACK"
)

const (
  CategoryPerformance = "performance"
  CategoryEngagement  = "engagement"
  CategoryQuality     = "quality"
  CategoryOpportunity = "opportunity"
)

var catalog = []Rule{
  {
    ID:       RuleLowFeelingStreak,
    Name:     "Low-Feeling-Streak",
    Category: CategoryEngagement,
    Cooldown: 14 * 24 * time.Hour,
    Actions: []Action{
      SetFlagAction{Flag: FlagDangerZone},
      CreateTaskAction{Label: "Check-in", Title: "Check-in: Stimmungstief seit 3 Wochen", Priority: types.TaskPriorityHigh},
      ScheduleMessageAction{Channel: types.ChannelWhatsApp, TemplateKey: "low_feeling_checkin"},
    },
    Evaluate: evalLowFeelingStreak,
  },
  {
    ID:        RuleSilentMember,
    Name:      "Silent Member",
    Category:  CategoryEngagement,
    Cooldown:  7 * 24 * time.Hour,
    SweepOnly: true,
    Actions: []Action{
      CreateTaskAction{Label: "Nachfassen", Title: "Mitglied nachfassen: keine KPI-Meldung", Priority: types.TaskPriorityMedium},
      ScheduleMessageAction{Channel: types.ChannelWhatsApp, TemplateKey: "silent_member_reminder"},
    },
    Evaluate: evalSilentMember,
  },
  {
    ID:       RuleLeistungsabfall,
    Name:     "Leistungsabfall",
    Category: CategoryPerformance,
    Cooldown: 14 * 24 * time.Hour,
    Actions: []Action{
      SetFlagAction{Flag: FlagDangerZone},
      CreateTaskAction{Label: "Leistungsgespräch", Title: "Leistungsabfall besprechen", Priority: types.TaskPriorityHigh},
    },
    Evaluate: evalLeistungsabfall,
  },
  {
    ID:       RuleUpsellSignal,
    Name:     "Upsell-Signal",
    Category: CategoryOpportunity,
    Cooldown: 30 * 24 * time.Hour,
    Actions: []Action{
      SetFlagAction{Flag: FlagUpsellCandidate},
      CreateTaskAction{Label: "Upsell", Title: "Upsell-Gespräch anbieten", Priority: types.TaskPriorityMedium},
    },
    Evaluate: evalUpsellSignal,
  },
  {
    ID:       RuleFunnelLeak,
    Name:     "Funnel-Leak",
    Category: CategoryPerformance,
    Cooldown: 14 * 24 * time.Hour,
    Actions: []Action{
      CreateTaskAction{Label: "Funnel-Analyse", Title: "Funnel-Analyse: Quoten prüfen", Priority: types.TaskPriorityMedium},
      CreateNoteAction{Body: "Funnel-Leak erkannt: Kontaktziel erreicht, Folgequoten fallen ab."},
    },
    Evaluate: evalFunnelLeak,
  },
  {
    ID:       RuleMomentumStreak,
    Name:     "Momentum-Streak",
    Category: CategoryOpportunity,
    Cooldown: 21 * 24 * time.Hour,
    Actions: []Action{
      CreateNoteAction{Body: "Momentum-Streak: 3 Wochen in Folge mindestens 2 von 3 Kernzielen erreicht.", Pinned: true},
      ScheduleMessageAction{Channel: types.ChannelEmail, TemplateKey: "momentum_congrats"},
    },
    Evaluate: evalMomentumStreak,
  },
  {
    ID:       RuleNoShowHoch,
    Name:     "No-Show-hoch",
    Category: CategoryPerformance,
    Cooldown: 14 * 24 * time.Hour,
    Actions: []Action{
      CreateTaskAction{Label: "No-Show", Title: "No-Show-Quote besprechen", Priority: types.TaskPriorityMedium},
    },
    Evaluate: evalNoShowHoch,
  },
  {
    ID:       RuleDatenAnomalie,
    Name:     "Daten-Anomalie",
    Category: CategoryQuality,
    Cooldown: 7 * 24 * time.Hour,
    Actions: []Action{
      SetFlagAction{Flag: FlagNeedsReview},
      CreateTaskAction{Label: "Review", Title: "Review: Datenanomalie in KPI-Meldung", Priority: types.TaskPriorityHigh},
    },
    Evaluate: evalDatenAnomalie,
  },
  {
    ID:       RuleFeldFehltAberGetrackt,
    Name:     "Feld-fehlt-aber-getrackt",
    Category: CategoryQuality,
    Cooldown: 7 * 24 * time.Hour,
    Actions: []Action{
      ScheduleMessageAction{Channel: types.ChannelWhatsApp, TemplateKey: "missing_fields_reminder"},
    },
    Evaluate: evalFeldFehltAberGetrackt,
  },
  {
    ID:       RuleHeldentatAmplify,
    Name:     "Heldentat-Amplify",
    Category: CategoryEngagement,
    Cooldown: 7 * 24 * time.Hour,
    Actions: []Action{
      CreateNoteAction{Body: "Heldentat der Woche festgehalten.", Pinned: true},
      ScheduleMessageAction{Channel: types.ChannelEmail, TemplateKey: "heldentat_congrats"},
    },
    Evaluate: evalHeldentatAmplify,
  },
  {
    ID:       RuleBlockadeAktiv,
    Name:     "Blockade-aktiv",
    Category: CategoryEngagement,
    Cooldown: 7 * 24 * time.Hour,
    Actions: []Action{
      CreateTaskAction{Label: "Blockade", Title: "Blockade besprechen", Priority: types.TaskPriorityHigh},
    },
    Evaluate: evalBlockadeAktiv,
  },
  {
    ID:       RuleSmartNudge,
    Name:     "S.M.A.R.T-Nudge",
    Category: CategoryQuality,
    Cooldown: 30 * 24 * time.Hour,
    Actions: []Action{
      CreateTaskAction{Label: "Zieldefinition", Title: "Ziele definieren (S.M.A.R.T)", Priority: types.TaskPriorityLow},
      ScheduleMessageAction{Channel: types.ChannelEmail, TemplateKey: "smart_goals_nudge"},
    },
    Evaluate: evalSmartNudge,
  },
  {
    ID:       RuleKuendigungsrisiko,
    Name:     "Kündigungsrisiko",
    Category: CategoryEngagement,
    Cooldown: 14 * 24 * time.Hour,
    Actions: []Action{
      SetFlagAction{Flag: FlagChurnRisk},
      CreateTaskAction{Label: "Kündigungsrisiko", Title: "Kündigungsrisiko: Gespräch vereinbaren", Priority: types.TaskPriorityHigh},
    },
    Evaluate: evalKuendigungsrisiko,
  },
  {
    ID:       RuleHappyHighPerformer,
    Name:     "Happy-High-Performer",
    Category: CategoryOpportunity,
    Cooldown: 21 * 24 * time.Hour,
    Actions: []Action{
      CreateNoteAction{Body: "High-Performer-Woche: Ziel erreicht bei sehr gutem Feeling."},
      ScheduleMessageAction{Channel: types.ChannelWhatsApp, TemplateKey: "high_performer_praise"},
    },
    Evaluate: evalHappyHighPerformer,
  },
}

var catalogByID = func() map[string]Rule {
  m := make(map[string]Rule, len(catalog))
  for _, r := range catalog {
    m[r.ID] = r
  }
  return m
}()

// Catalog returns the full rule table in stable order.
func Catalog() []Rule {
  out := make([]Rule, len(catalog))
  copy(out, catalog)
  return out
}

func ByID(id string) (Rule, bool) {
  r, ok := catalogByID[id]
  return r, ok
}

// SubmissionRules is the subset evaluated when a new KpiWeek arrives;
// sweep-only rules are excluded there and picked up by the cron sweep.
func SubmissionRules() []Rule {
  out := make([]Rule, 0, len(catalog))
  for _, r := range catalog {
    if !r.SweepOnly {
      out = append(out, r)
    }
  }
  return out
}

func SweepRules() []Rule {
  out := make([]Rule, 0, 2)
  for _, r := range catalog {
    if r.SweepOnly || r.ID == RuleKuendigungsrisiko {
      out = append(out, r)
    }
  }
  return out
}
