package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the two-valued classification of a polling observation. Only the
// literal "active" status maps to StatusActive; every other value, including
// unknown or empty strings, falls through to StatusInactive.
type Status int

const (
	StatusInactive Status = iota
	StatusActive
)

// ParseStatus classifies a raw status string. The comparison is exact, so "Active"
// is inactive.
func ParseStatus(raw string) Status {
	if raw == "active" {
		return StatusActive
	}
	return StatusInactive
}

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// Observation is a single polling result for a store
type Observation struct {
	StoreID   string
	Timestamp time.Time // UTC, microsecond precision
	Status    Status
}

// StatusSample is an observation reduced to what the interpolator needs
type StatusSample struct {
	Timestamp time.Time
	Status    Status
}

// LocalClock is a wall-clock time of day, stored as seconds after local midnight
type LocalClock int

// ParseLocalClock parses HH:MM:SS (or HH:MM) into a LocalClock
func ParseLocalClock(s string) (LocalClock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid local time %q: expected HH:MM:SS", s)
	}

	fields := [3]int{}
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("invalid local time %q: %w", s, err)
		}
		fields[i] = v
	}

	h, m, sec := fields[0], fields[1], fields[2]
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("invalid local time %q: out of range", s)
	}

	return LocalClock(h*3600 + m*60 + sec), nil
}

// ClockOf returns the whole-second time of day of t in t's own location
func ClockOf(t time.Time) LocalClock {
	h, m, s := t.Clock()
	return LocalClock(h*3600 + m*60 + s)
}

func (c LocalClock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", int(c)/3600, (int(c)%3600)/60, int(c)%60)
}

// BusinessHoursInterval is one open interval of a store's weekly calendar.
// DayOfWeek follows the source data convention: 0 = Monday ... 6 = Sunday.
type BusinessHoursInterval struct {
	StoreID   string
	DayOfWeek int
	Start     LocalClock
	End       LocalClock
}

// Contains reports whether a local time of day falls inside the interval, inclusive on
// both ends. An interval whose end precedes its start wraps past midnight.
func (b BusinessHoursInterval) Contains(c LocalClock) bool {
	if b.Start <= b.End {
		return c >= b.Start && c <= b.End
	}
	return c >= b.Start || c <= b.End
}

// MondayIndex converts a time.Weekday (Sunday = 0) into the calendar's Monday = 0 index
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// TimezoneAssignment maps a store to an IANA zone name
type TimezoneAssignment struct {
	StoreID  string
	ZoneName string
}

// MetricsResult holds the six uptime/downtime figures for a store. Hour values are in
// minutes, day and week values in hours, all rounded to two decimals.
type MetricsResult struct {
	UptimeLastHour   float64 `json:"uptime_last_hour"`
	UptimeLastDay    float64 `json:"uptime_last_day"`
	UptimeLastWeek   float64 `json:"uptime_last_week"`
	DowntimeLastHour float64 `json:"downtime_last_hour"`
	DowntimeLastDay  float64 `json:"downtime_last_day"`
	DowntimeLastWeek float64 `json:"downtime_last_week"`
}

// StoreMetrics is one row of a report
type StoreMetrics struct {
	StoreID string `json:"store_id"`
	MetricsResult
}
