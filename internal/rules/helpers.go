package rules

func val(p *float64) float64 {
  if p == nil {
    return 0
  }
  return *p
}

// targetRatio is ist/soll against a goal-snapshot target. A missing or
// zero target defaults the ratio to 1 so an unset target can never fail a
// threshold.
func targetRatio(ist *float64, soll float64) float64 {
  if soll <= 0 {
    return 1
  }
  return val(ist) / soll
}

// shareRatio is num/den for intra-week ratios (Entscheider je Kontakt,
// stattgefundene je vereinbarte Termine). A missing or zero denominator
// defaults to 1, which never trips a lower-bound check.
func shareRatio(num, den *float64) float64 {
  if den == nil || *den <= 0 {
    return 1
  }
  return val(num) / *den
}

// metTarget requires an explicit target and a reported value at or above
// it. Unset targets do not count as met.
func metTarget(ist *float64, soll float64) bool {
  return soll > 0 && ist != nil && *ist >= soll
}
