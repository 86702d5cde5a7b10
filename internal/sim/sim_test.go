package sim

import (
	"time"
)

// constSource always returns the same draw.
type constSource float64

func (c constSource) Float64() float64 { return float64(c) }

var epoch = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() func() time.Time {
	return func() time.Time { return epoch }
}

// steppingClock advances one second on every call.
func steppingClock() func() time.Time {
	t := epoch
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
