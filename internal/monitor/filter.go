package monitor

import (
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
)

// Calendar answers "is this local time open" for one store
type Calendar struct {
	days           [7][]types.BusinessHoursInterval
	openOnUnlisted bool
}

// NewCalendar indexes intervals by weekday. When openOnUnlisted is set, a weekday
// with no intervals counts as open all day; otherwise it counts as closed.
// Intervals with a weekday outside 0..6 are ignored.
func NewCalendar(intervals []types.BusinessHoursInterval, openOnUnlisted bool) Calendar {
	c := Calendar{openOnUnlisted: openOnUnlisted}
	for _, iv := range intervals {
		if iv.DayOfWeek < 0 || iv.DayOfWeek > 6 {
			continue
		}
		c.days[iv.DayOfWeek] = append(c.days[iv.DayOfWeek], iv)
	}
	return c
}

// IsOpen evaluates local, which must already be in the store's location
func (c Calendar) IsOpen(local time.Time) bool {
	day := c.days[types.MondayIndex(local.Weekday())]
	if len(day) == 0 {
		return c.openOnUnlisted
	}

	clock := types.ClockOf(local)
	for _, iv := range day {
		if iv.Contains(clock) {
			return true
		}
	}
	return false
}

// FilterBusinessHours keeps the observations whose timestamp, converted to loc, falls
// inside an open interval. Order is preserved and excluded observations are dropped.
func FilterBusinessHours(obs []types.Observation, cal Calendar, loc *time.Location) []types.StatusSample {
	samples := make([]types.StatusSample, 0, len(obs))
	for _, o := range obs {
		if !cal.IsOpen(o.Timestamp.In(loc)) {
			continue
		}
		samples = append(samples, types.StatusSample{Timestamp: o.Timestamp, Status: o.Status})
	}
	return samples
}
