package schedule

import (
  "fmt"
  "strconv"
  "strings"
  "time"
)

// Window is a daily quiet-hours window in local wall-clock minutes.
// Start > End means the window wraps past midnight (e.g. 21:00-08:00).
type Window struct {
  StartMinute int
  EndMinute   int
}

func ParseWindow(start, end string) (Window, error) {
  s, err := parseClock(start)
  if err != nil {
    return Window{}, fmt.Errorf("invalid quiet hours start %q: %w", start, err)
  }
  e, err := parseClock(end)
  if err != nil {
    return Window{}, fmt.Errorf("invalid quiet hours end %q: %w", end, err)
  }
  return Window{StartMinute: s, EndMinute: e}, nil
}

func parseClock(v string) (int, error) {
  parts := strings.Split(strings.TrimSpace(v), ":")
  if len(parts) != 2 {
    return 0, fmt.Errorf("expected HH:MM")
  }
  h, err := strconv.Atoi(parts[0])
  if err != nil || h < 0 || h > 23 {
    return 0, fmt.Errorf("bad hour")
  }
  m, err := strconv.Atoi(parts[1])
  if err != nil || m < 0 || m > 59 {
    return 0, fmt.Errorf("bad minute")
  }
  return h*60 + m, nil
}

// InQuietHours reports whether now falls inside the window. The window is
// half-open: the start minute is quiet, the end minute is not. An empty
// window (start == end) is never quiet.
func InQuietHours(now time.Time, w Window) bool {
  if w.StartMinute == w.EndMinute {
    return false
  }
  minute := now.Hour()*60 + now.Minute()
  if w.StartMinute < w.EndMinute {
    return minute >= w.StartMinute && minute < w.EndMinute
  }
  // Overnight wrap
  return minute >= w.StartMinute || minute < w.EndMinute
}

// NextAllowed returns the earliest instant at or after now that is outside
// the window.
func NextAllowed(now time.Time, w Window) time.Time {
  if !InQuietHours(now, w) {
    return now
  }
  end := time.Date(now.Year(), now.Month(), now.Day(), w.EndMinute/60, w.EndMinute%60, 0, 0, now.Location())
  if !end.After(now) {
    end = end.Add(24 * time.Hour)
  }
  return end
}
