package schedule

import (
  "math/rand"
  "time"
)

// PickDelay selects a uniformly random send delay between minMinutes and
// maxMinutes (inclusive). The random source is injected so delay selection
// stays deterministic under test. Degenerate bounds collapse to the minimum.
func PickDelay(minMinutes, maxMinutes int, rng *rand.Rand) time.Duration {
  if minMinutes < 0 {
    minMinutes = 0
  }
  if maxMinutes < minMinutes {
    maxMinutes = minMinutes
  }
  span := maxMinutes - minMinutes
  offset := 0
  if span > 0 {
    offset = rng.Intn(span + 1)
  }
  return time.Duration(minMinutes+offset) * time.Minute
}
