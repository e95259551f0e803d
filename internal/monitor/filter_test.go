package monitor

import (
	"testing"
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clock(t *testing.T, s string) types.LocalClock {
	t.Helper()
	c, err := types.ParseLocalClock(s)
	require.NoError(t, err)
	return c
}

func nineToFive(t *testing.T) []types.BusinessHoursInterval {
	var hours []types.BusinessHoursInterval
	for day := 0; day < 7; day++ {
		hours = append(hours, types.BusinessHoursInterval{
			StoreID:   "s1",
			DayOfWeek: day,
			Start:     clock(t, "09:00:00"),
			End:       clock(t, "17:00:00"),
		})
	}
	return hours
}

func TestFilterBusinessHoursDropsClosedObservations(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	// 2023-01-24 is a Tuesday; Chicago is UTC-6 in January.
	obs := []types.Observation{
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 24, 14, 0, 0, 0, time.UTC), Status: types.StatusActive}, // 08:00 local
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 24, 15, 0, 0, 0, time.UTC), Status: types.StatusActive}, // 09:00 local
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 24, 20, 0, 0, 0, time.UTC), Status: types.StatusInactive}, // 14:00 local
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 24, 23, 0, 0, 0, time.UTC), Status: types.StatusActive}, // 17:00 local
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 25, 4, 0, 0, 0, time.UTC), Status: types.StatusActive}, // 22:00 local
	}

	samples := FilterBusinessHours(obs, NewCalendar(nineToFive(t), false), chicago)
	require.Len(t, samples, 3)
	assert.Equal(t, obs[1].Timestamp, samples[0].Timestamp)
	assert.Equal(t, types.StatusInactive, samples[1].Status)
	assert.Equal(t, obs[3].Timestamp, samples[2].Timestamp)
}

func TestFilterBusinessHoursUsesDaylightSavingOffset(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	hours := nineToFive(t)
	cal := NewCalendar(hours, false)

	// 13:30 UTC is 08:30 EST in January and 09:30 EDT in July
	winter := types.Observation{Timestamp: time.Date(2023, 1, 10, 13, 30, 0, 0, time.UTC)}
	summer := types.Observation{Timestamp: time.Date(2023, 7, 10, 13, 30, 0, 0, time.UTC)}

	assert.Empty(t, FilterBusinessHours([]types.Observation{winter}, cal, newYork))
	assert.Len(t, FilterBusinessHours([]types.Observation{summer}, cal, newYork), 1)
}

func TestFilterBusinessHoursKeepsUnlistedWeekday(t *testing.T) {
	mondayOnly := []types.BusinessHoursInterval{
		{StoreID: "s1", DayOfWeek: 0, Start: clock(t, "09:00:00"), End: clock(t, "17:00:00")},
	}
	// 2023-01-24 is a Tuesday
	obs := []types.Observation{
		{StoreID: "s1", Timestamp: time.Date(2023, 1, 24, 12, 0, 0, 0, time.UTC), Status: types.StatusActive},
	}

	assert.Len(t, FilterBusinessHours(obs, NewCalendar(mondayOnly, true), time.UTC), 1)
	assert.Empty(t, FilterBusinessHours(obs, NewCalendar(mondayOnly, false), time.UTC))
}

func TestCalendarUsesLocalWeekday(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// Only Monday (0) is open
	cal := NewCalendar([]types.BusinessHoursInterval{
		{DayOfWeek: 0, Start: 0, End: endOfDay},
	}, false)

	// Sunday 2023-01-22 20:00 UTC is Monday 05:00 in Tokyo
	assert.True(t, cal.IsOpen(time.Date(2023, 1, 22, 20, 0, 0, 0, time.UTC).In(tokyo)))
	// Monday 2023-01-23 20:00 UTC is Tuesday 05:00 in Tokyo
	assert.False(t, cal.IsOpen(time.Date(2023, 1, 23, 20, 0, 0, 0, time.UTC).In(tokyo)))
}

func TestCalendarIsOpen(t *testing.T) {
	monday := func(hms string) time.Time {
		tm, err := time.Parse("2006-01-02 15:04:05.999", "2023-01-23 "+hms)
		require.NoError(t, err)
		return tm
	}

	tests := []struct {
		name           string
		intervals      []types.BusinessHoursInterval
		openOnUnlisted bool
		at             time.Time
		expected       bool
	}{
		{
			name:      "start bound is inclusive",
			intervals: []types.BusinessHoursInterval{{DayOfWeek: 0, Start: clock(t, "09:00:00"), End: clock(t, "17:00:00")}},
			at:        monday("09:00:00"),
			expected:  true,
		},
		{
			name:      "end bound is inclusive at whole seconds",
			intervals: []types.BusinessHoursInterval{{DayOfWeek: 0, Start: clock(t, "09:00:00"), End: clock(t, "17:00:00")}},
			at:        monday("17:00:00.900"),
			expected:  true,
		},
		{
			name:      "one second after close",
			intervals: []types.BusinessHoursInterval{{DayOfWeek: 0, Start: clock(t, "09:00:00"), End: clock(t, "17:00:00")}},
			at:        monday("17:00:01"),
			expected:  false,
		},
		{
			name: "split shift matches either interval",
			intervals: []types.BusinessHoursInterval{
				{DayOfWeek: 0, Start: clock(t, "07:00:00"), End: clock(t, "11:00:00")},
				{DayOfWeek: 0, Start: clock(t, "17:00:00"), End: clock(t, "22:00:00")},
			},
			at:       monday("18:30:00"),
			expected: true,
		},
		{
			name: "split shift gap is closed",
			intervals: []types.BusinessHoursInterval{
				{DayOfWeek: 0, Start: clock(t, "07:00:00"), End: clock(t, "11:00:00")},
				{DayOfWeek: 0, Start: clock(t, "17:00:00"), End: clock(t, "22:00:00")},
			},
			at:       monday("12:00:00"),
			expected: false,
		},
		{
			name:      "interval past midnight wraps",
			intervals: []types.BusinessHoursInterval{{DayOfWeek: 0, Start: clock(t, "20:00:00"), End: clock(t, "02:00:00")}},
			at:        monday("01:30:00"),
			expected:  true,
		},
		{
			name:           "unlisted weekday is open",
			intervals:      []types.BusinessHoursInterval{{DayOfWeek: 3, Start: 0, End: endOfDay}},
			openOnUnlisted: true,
			at:             monday("12:00:00"),
			expected:       true,
		},
		{
			name:      "unlisted weekday is closed in strict mode",
			intervals: []types.BusinessHoursInterval{{DayOfWeek: 3, Start: 0, End: endOfDay}},
			at:        monday("12:00:00"),
			expected:  false,
		},
		{
			name:      "always open covers the last second of the day",
			intervals: AlwaysOpen("s1"),
			at:        monday("23:59:59.999"),
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cal := NewCalendar(tt.intervals, tt.openOnUnlisted)
			assert.Equal(t, tt.expected, cal.IsOpen(tt.at))
		})
	}
}
