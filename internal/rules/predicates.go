package rules

import (
  "fmt"
  "strings"

  "github.com/salescoach/crm-backend/internal/types"
)

func evalLowFeelingStreak(in Input) Decision {
  if len(in.History) < 3 {
    return notTriggered("weniger als 3 Wochenmeldungen vorhanden")
  }
  for _, wk := range in.History[:3] {
    if wk.Feeling >= 5 {
      return notTriggered(fmt.Sprintf("Feeling-Score %d in KW %d nicht unter 5", wk.Feeling, wk.Week))
    }
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Feeling-Score 3 Wochen in Folge unter 5 (zuletzt %d)", in.History[0].Feeling),
    Details: map[string]any{
      "feelings": []int{in.History[0].Feeling, in.History[1].Feeling, in.History[2].Feeling},
    },
  }
}

func evalSilentMember(in Input) Decision {
  year, week := in.Now.ISOWeek()
  if wk := in.Latest(); wk != nil && wk.Year == year && wk.Week == week {
    return notTriggered(fmt.Sprintf("KPI-Meldung für KW %d/%d liegt vor", week, year))
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Keine KPI-Meldung für die aktuelle Trackingwoche KW %d/%d", week, year),
    Details:   map[string]any{"year": year, "week": week},
  }
}

func evalLeistungsabfall(in Input) Decision {
  if len(in.History) < 2 {
    return notTriggered("weniger als 2 Wochenmeldungen vorhanden")
  }
  for _, wk := range in.History[:2] {
    umsatzQuote := targetRatio(wk.UmsatzIst, wk.UmsatzSollSnap)
    kontaktQuote := targetRatio(wk.KontakteIst, wk.KontakteSollSnap)
    if umsatzQuote >= 0.6 || kontaktQuote >= 1 {
      return notTriggered(fmt.Sprintf("KW %d ohne kombinierten Einbruch (Umsatz %.0f%%, Kontakte %.0f%%)", wk.Week, umsatzQuote*100, kontaktQuote*100))
    }
  }
  latest := in.History[0]
  return Decision{
    Triggered: true,
    Reason:    "Umsatz 2 Wochen in Folge unter 60% des Ziels bei gleichzeitig verfehltem Kontaktziel",
    Details: map[string]any{
      "umsatz_quote":   targetRatio(latest.UmsatzIst, latest.UmsatzSollSnap),
      "kontakte_quote": targetRatio(latest.KontakteIst, latest.KontakteSollSnap),
    },
  }
}

func evalUpsellSignal(in Input) Decision {
  weeks := in.Settings.UpsellWeeks
  if weeks < 4 {
    weeks = 4
  }
  if len(in.History) < weeks {
    return notTriggered(fmt.Sprintf("weniger als %d Wochenmeldungen vorhanden", weeks))
  }
  months := weeks / 4
  threshold := in.Settings.UpsellMonthlyRevenue
  sums := make([]float64, 0, months)
  for m := 0; m < months; m++ {
    var sum float64
    for _, wk := range in.History[m*4 : (m+1)*4] {
      sum += val(wk.UmsatzIst)
    }
    if sum < threshold {
      return notTriggered(fmt.Sprintf("4-Wochen-Block %d mit Umsatz %.0f unter Schwelle %.0f", m+1, sum, threshold))
    }
    sums = append(sums, sum)
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Umsatz in %d aufeinanderfolgenden Wochen stabil: jeder 4-Wochen-Block über %.0f", weeks, threshold),
    Details:   map[string]any{"month_sums": sums, "threshold": threshold},
  }
}

func evalFunnelLeak(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  kontaktQuote := targetRatio(wk.KontakteIst, wk.KontakteSollSnap)
  if kontaktQuote < 0.9 {
    return notTriggered(fmt.Sprintf("Kontaktziel nur zu %.0f%% erreicht", kontaktQuote*100))
  }
  entscheiderQuote := shareRatio(wk.EntscheiderIst, wk.KontakteIst)
  terminQuote := shareRatio(wk.TermineStattgefundenIst, wk.TermineVereinbartIst)
  details := map[string]any{
    "kontakte_quote":    kontaktQuote,
    "entscheider_quote": entscheiderQuote,
    "termin_quote":      terminQuote,
  }
  if entscheiderQuote < 0.3 {
    return Decision{
      Triggered: true,
      Reason:    fmt.Sprintf("Entscheider-Quote %.0f%% unter 30%% trotz erreichtem Kontaktziel", entscheiderQuote*100),
      Details:   details,
    }
  }
  if terminQuote < 0.7 {
    return Decision{
      Triggered: true,
      Reason:    fmt.Sprintf("Nur %.0f%% der vereinbarten Termine fanden statt (Schwelle 70%%)", terminQuote*100),
      Details:   details,
    }
  }
  return notTriggered("Funnel-Quoten unauffällig")
}

func evalMomentumStreak(in Input) Decision {
  if len(in.History) < 3 {
    return notTriggered("weniger als 3 Wochenmeldungen vorhanden")
  }
  for _, wk := range in.History[:3] {
    met := 0
    if metTarget(wk.UmsatzIst, wk.UmsatzSollSnap) {
      met++
    }
    if metTarget(wk.KontakteIst, wk.KontakteSollSnap) {
      met++
    }
    if metTarget(wk.AbschlussTermineIst, wk.AbschlussTermineSollSnap) {
      met++
    }
    if met < 2 {
      return notTriggered(fmt.Sprintf("KW %d mit nur %d von 3 erreichten Kernzielen", wk.Week, met))
    }
  }
  return Decision{
    Triggered: true,
    Reason:    "In jeder der letzten 3 Wochen mindestens 2 von 3 Kernzielen erreicht",
    Details:   map[string]any{"weeks": 3},
  }
}

func evalNoShowHoch(in Input) Decision {
  wk := in.Latest()
  if wk == nil || wk.NoShowQuote == nil {
    return notTriggered("keine No-Show-Quote gemeldet")
  }
  if *wk.NoShowQuote < 0.30 {
    return notTriggered(fmt.Sprintf("No-Show-Quote %.0f%% unter Schwelle", *wk.NoShowQuote*100))
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("No-Show-Quote bei %.0f%% (Schwelle 30%%)", *wk.NoShowQuote*100),
    Details:   map[string]any{"no_show_quote": *wk.NoShowQuote},
  }
}

func evalDatenAnomalie(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  finding, ok := CheckAnomalies(wk)
  if !ok {
    return notTriggered("keine Datenanomalie in der aktuellen Meldung")
  }
  return Decision{
    Triggered: true,
    Reason:    finding.Reason,
    Details:   map[string]any{"check": finding.Code, "kpi_week_id": wk.ID.String()},
  }
}

// MissingTrackedFields lists tracked metrics the submission left empty.
// Exported because the intake validation reuses it for warnings.
func MissingTrackedFields(m *types.Member, wk *types.KpiWeek) []string {
  var missing []string
  if m.TrackUmsatz && wk.UmsatzIst == nil {
    missing = append(missing, "umsatzIst")
  }
  if m.TrackKontakte && wk.KontakteIst == nil {
    missing = append(missing, "kontakteIst")
  }
  if m.TrackEntscheider && wk.EntscheiderIst == nil {
    missing = append(missing, "entscheiderIst")
  }
  if m.TrackTermine {
    if wk.TermineVereinbartIst == nil {
      missing = append(missing, "termineVereinbartIst")
    }
    if wk.TermineStattgefundenIst == nil {
      missing = append(missing, "termineStattgefundenIst")
    }
  }
  if m.TrackEinheiten && wk.EinheitenIst == nil {
    missing = append(missing, "einheitenIst")
  }
  if m.TrackEmpfehlungen && wk.EmpfehlungenIst == nil {
    missing = append(missing, "empfehlungenIst")
  }
  return missing
}

func evalFeldFehltAberGetrackt(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  missing := MissingTrackedFields(in.Member, wk)
  if len(missing) == 0 {
    return notTriggered("alle getrackten Felder gemeldet")
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Getrackte Felder ohne Wert in der aktuellen Meldung: %s", strings.Join(missing, ", ")),
    Details:   map[string]any{"missing_fields": missing},
  }
}

func evalHeldentatAmplify(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  heldentat := strings.TrimSpace(wk.Heldentat)
  if heldentat == "" {
    return notTriggered("keine Heldentat gemeldet")
  }
  display := heldentat
  if len(display) > 80 {
    display = display[:80] + "..."
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Heldentat gemeldet: %q", display),
    Details:   map[string]any{"heldentat": heldentat},
  }
}

func evalBlockadeAktiv(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  blocker := strings.TrimSpace(wk.Blocker)
  if blocker == "" {
    return notTriggered("kein Blocker gemeldet")
  }
  if wk.Feeling > 5 {
    return notTriggered(fmt.Sprintf("Blocker gemeldet, aber Feeling-Score %d über 5", wk.Feeling))
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Aktive Blockade bei Feeling-Score %d gemeldet", wk.Feeling),
    Details:   map[string]any{"blocker": blocker, "feeling": wk.Feeling},
  }
}

func evalSmartNudge(in Input) Decision {
  m := in.Member
  if m.UmsatzSoll > 0 || m.EinheitenSoll > 0 || m.KontakteSoll > 0 {
    return notTriggered("mindestens ein Kernziel ist hinterlegt")
  }
  return Decision{
    Triggered: true,
    Reason:    "Keine Umsatz-, Einheiten- oder Kontaktziele hinterlegt",
    Details:   map[string]any{},
  }
}

func evalKuendigungsrisiko(in Input) Decision {
  if len(in.History) == 0 {
    return Decision{
      Triggered: true,
      Reason:    "Noch keine einzige KPI-Meldung eingegangen",
      Details:   map[string]any{"submissions": 0},
    }
  }
  for _, wk := range in.History {
    umsatzQuote := targetRatio(wk.UmsatzIst, wk.UmsatzSollSnap)
    if wk.Feeling <= 4 && umsatzQuote < 0.5 {
      return Decision{
        Triggered: true,
        Reason:    fmt.Sprintf("Feeling-Score %d bei Umsatz unter 50%% des Ziels (KW %d)", wk.Feeling, wk.Week),
        Details: map[string]any{
          "week":         wk.Week,
          "feeling":      wk.Feeling,
          "umsatz_quote": umsatzQuote,
        },
      }
    }
  }
  return notTriggered("keine kritische Kombination aus Stimmung und Umsatz")
}

func evalHappyHighPerformer(in Input) Decision {
  wk := in.Latest()
  if wk == nil {
    return notTriggered("keine Wochenmeldung vorhanden")
  }
  if wk.Feeling < 8 {
    return notTriggered(fmt.Sprintf("Feeling-Score %d unter 8", wk.Feeling))
  }
  if !metTarget(wk.UmsatzIst, wk.UmsatzSollSnap) {
    return notTriggered("Umsatzziel nicht erreicht oder kein Ziel hinterlegt")
  }
  return Decision{
    Triggered: true,
    Reason:    fmt.Sprintf("Feeling-Score %d bei erreichtem Umsatzziel", wk.Feeling),
    Details: map[string]any{
      "feeling":      wk.Feeling,
      "umsatz_ist":   val(wk.UmsatzIst),
      "umsatz_soll":  wk.UmsatzSollSnap,
    },
  }
}
