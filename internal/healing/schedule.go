package healing

import "math"

// Schedule loosens deviation thresholds as iterations pass without reaching
// the ceiling. The multiplier for iteration i (1-based) is
// min(1 + Step*max(0, i-Start), Max); it only ever grows and is logged with
// every iteration so that a run can be reproduced.
type Schedule struct {
	Start int     `json:"start"`
	Step  float64 `json:"step"`
	Max   float64 `json:"max"`
}

// DefaultSchedule holds thresholds for five iterations, then widens them by a
// quarter per iteration up to double.
func DefaultSchedule() Schedule {
	return Schedule{Start: 5, Step: 0.25, Max: 2}
}

// Fixed returns a schedule that never loosens.
func Fixed() Schedule {
	return Schedule{Max: 1}
}

// Multiplier returns the threshold factor for iteration.
func (s Schedule) Multiplier(iteration int) float64 {
	limit := s.Max
	if limit < 1 {
		limit = 1
	}
	if s.Step <= 0 || iteration <= s.Start {
		return 1
	}
	return math.Min(1+s.Step*float64(iteration-s.Start), limit)
}
