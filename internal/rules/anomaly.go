package rules

import (
  "fmt"

  "github.com/salescoach/crm-backend/internal/types"
)

// Finding is one matched data-quality violation. The same checks back the
// Daten-Anomalie rule and the pre-feedback anomaly gate.
type Finding struct {
  Code   string
  Reason string
}

const (
  AnomalyNegativeValue         = "negative_value"
  AnomalyRevenueImplausible    = "revenue_implausible"
  AnomalyClosingsExceedHeld    = "closings_exceed_held"
  AnomalyDecidersExceedContact = "deciders_exceed_contacts"

  maxPlausibleWeeklyRevenue = 200000
)

// CheckAnomalies runs the ordered checks against a single submission;
// the first match wins. It is fully local and cannot fail.
func CheckAnomalies(wk *types.KpiWeek) (Finding, bool) {
  numericFields := []struct {
    name string
    val  *float64
  }{
    {"umsatzIst", wk.UmsatzIst},
    {"kontakteIst", wk.KontakteIst},
    {"entscheiderIst", wk.EntscheiderIst},
    {"termineVereinbartIst", wk.TermineVereinbartIst},
    {"termineStattgefundenIst", wk.TermineStattgefundenIst},
    {"abschlussTermineIst", wk.AbschlussTermineIst},
    {"einheitenIst", wk.EinheitenIst},
    {"empfehlungenIst", wk.EmpfehlungenIst},
    {"noShowQuote", wk.NoShowQuote},
  }
  for _, f := range numericFields {
    if f.val != nil && *f.val < 0 {
      return Finding{
        Code:   AnomalyNegativeValue,
        Reason: fmt.Sprintf("Negative Wert in %s", f.name),
      }, true
    }
  }

  if wk.UmsatzIst != nil && *wk.UmsatzIst > maxPlausibleWeeklyRevenue {
    return Finding{
      Code:   AnomalyRevenueImplausible,
      Reason: fmt.Sprintf("Unplausibel hoher Umsatz: %.0f (Limit %d)", *wk.UmsatzIst, maxPlausibleWeeklyRevenue),
    }, true
  }

  if wk.AbschlussTermineIst != nil && wk.TermineStattgefundenIst != nil &&
    *wk.AbschlussTermineIst > *wk.TermineStattgefundenIst {
    return Finding{
      Code:   AnomalyClosingsExceedHeld,
      Reason: "Mehr Abschlusstermine als stattgefundene Termine gemeldet",
    }, true
  }

  if wk.EntscheiderIst != nil && wk.KontakteIst != nil &&
    *wk.EntscheiderIst > *wk.KontakteIst {
    return Finding{
      Code:   AnomalyDecidersExceedContact,
      Reason: "Mehr Entscheiderkontakte als Kontakte gemeldet",
    }, true
  }

  return Finding{}, false
}
