package schedule

import (
  "math/rand"
  "testing"
  "time"
)

func TestPickDelayStaysWithinBounds(t *testing.T) {
  rng := rand.New(rand.NewSource(42))
  for i := 0; i < 1000; i++ {
    d := PickDelay(30, 120, rng)
    if d < 30*time.Minute || d > 120*time.Minute {
      t.Fatalf("delay %s outside [30m, 120m]", d)
    }
  }
}

func TestPickDelayCoversBothBounds(t *testing.T) {
  rng := rand.New(rand.NewSource(7))
  seenMin, seenMax := false, false
  for i := 0; i < 5000; i++ {
    switch PickDelay(1, 3, rng) {
    case 1 * time.Minute:
      seenMin = true
    case 3 * time.Minute:
      seenMax = true
    }
  }
  if !seenMin || !seenMax {
    t.Fatalf("bounds not inclusive: min=%v max=%v", seenMin, seenMax)
  }
}

func TestPickDelayDegenerateBounds(t *testing.T) {
  rng := rand.New(rand.NewSource(1))
  if d := PickDelay(45, 45, rng); d != 45*time.Minute {
    t.Fatalf("equal bounds must return the minimum, got %s", d)
  }
  if d := PickDelay(60, 10, rng); d != 60*time.Minute {
    t.Fatalf("inverted bounds must collapse to the minimum, got %s", d)
  }
  if d := PickDelay(-5, -1, rng); d != 0 {
    t.Fatalf("negative bounds must clamp to zero, got %s", d)
  }
}
