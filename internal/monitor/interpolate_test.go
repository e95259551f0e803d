package monitor

import (
	"testing"
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2023, time.January, 24, 0, 0, 0, 0, time.UTC)

func at(minutes int, s types.Status) types.StatusSample {
	return types.StatusSample{Timestamp: t0.Add(time.Duration(minutes) * time.Minute), Status: s}
}

const (
	active   = types.StatusActive
	inactive = types.StatusInactive
)

func TestIntegrate(t *testing.T) {
	tests := []struct {
		name         string
		samples      []types.StatusSample
		windowMin    int
		expectedUp   float64
		expectedDown float64
	}{
		{
			name:         "half active then half inactive",
			samples:      []types.StatusSample{at(0, active), at(30, inactive)},
			windowMin:    60,
			expectedUp:   0.5,
			expectedDown: 0.5,
		},
		{
			name:         "single active observation extends both ways",
			samples:      []types.StatusSample{at(10, active)},
			windowMin:    60,
			expectedUp:   1,
			expectedDown: 0,
		},
		{
			name:         "single inactive observation spans the window",
			samples:      []types.StatusSample{at(45, inactive)},
			windowMin:    60,
			expectedUp:   0,
			expectedDown: 1,
		},
		{
			name:         "left extrapolation uses the first status",
			samples:      []types.StatusSample{at(20, inactive), at(40, active)},
			windowMin:    60,
			expectedUp:   20.0 / 60,
			expectedDown: 40.0 / 60,
		},
		{
			name:         "observations on both bounds need no padding",
			samples:      []types.StatusSample{at(0, inactive), at(15, active), at(60, inactive)},
			windowMin:    60,
			expectedUp:   0.75,
			expectedDown: 0.25,
		},
		{
			name:         "duplicate timestamps contribute nothing",
			samples:      []types.StatusSample{at(30, active), at(30, inactive)},
			windowMin:    60,
			expectedUp:   0.5,
			expectedDown: 0.5,
		},
		{
			name: "day window with alternating status",
			samples: []types.StatusSample{
				at(60, active), at(120, inactive), at(180, active), at(600, inactive),
			},
			windowMin:    24 * 60,
			expectedUp:   1 + 1 + 7,
			expectedDown: 1 + 14,
		},
	}

	interp := Interpolator{Policy: HoldBoundaryStatus}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := t0.Add(time.Duration(tt.windowMin) * time.Minute)
			up, down, err := interp.Integrate(tt.samples, t0, end)
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedUp, up, 1e-9)
			assert.InDelta(t, tt.expectedDown, down, 1e-9)
		})
	}
}

func TestIntegrateConservesWindowLength(t *testing.T) {
	sequences := [][]types.StatusSample{
		{at(1, active)},
		{at(0, inactive)},
		{at(59, active), at(60, inactive)},
		{at(3, active), at(7, inactive), at(11, inactive), at(13, active), at(42, inactive)},
		{at(5, inactive), at(6, active), at(7, inactive), at(8, active)},
	}

	for _, windowMin := range []int{60, 24 * 60, 7 * 24 * 60} {
		end := t0.Add(time.Duration(windowMin) * time.Minute)
		for _, seq := range sequences {
			up, down, err := Interpolator{}.Integrate(seq, t0, end)
			require.NoError(t, err)
			assert.InDelta(t, end.Sub(t0).Hours(), up+down, 1e-9)
			assert.GreaterOrEqual(t, up, 0.0)
			assert.GreaterOrEqual(t, down, 0.0)
		}
	}
}

// An empty sequence reports zero uptime and zero downtime regardless of window length,
// even though the whole window is unaccounted for.
func TestIntegrateEmptyWindowYieldsZero(t *testing.T) {
	for _, span := range []time.Duration{time.Hour, 24 * time.Hour, 7 * 24 * time.Hour} {
		up, down, err := Interpolator{}.Integrate(nil, t0, t0.Add(span))
		require.NoError(t, err)
		assert.Zero(t, up)
		assert.Zero(t, down)
	}
}

func TestIntegrateRejectsInvalidWindow(t *testing.T) {
	_, _, err := Interpolator{}.Integrate([]types.StatusSample{at(0, active)}, t0, t0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, _, err = Interpolator{}.Integrate(nil, t0.Add(time.Minute), t0)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestIntegrateDoesNotModifyInput(t *testing.T) {
	samples := []types.StatusSample{at(10, active), at(20, inactive)}
	original := append([]types.StatusSample(nil), samples...)

	_, _, err := Interpolator{Policy: HoldBoundaryStatus}.Integrate(samples, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, original, samples)
}

func TestNoExtrapolationOnlyCoversObservedSpan(t *testing.T) {
	samples := []types.StatusSample{at(10, active), at(20, inactive), at(50, active)}

	up, down, err := Interpolator{Policy: NoExtrapolation}.Integrate(samples, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.InDelta(t, 10.0/60, up, 1e-9)
	assert.InDelta(t, 30.0/60, down, 1e-9)
}

func TestHoldBoundaryStatusPadding(t *testing.T) {
	end := t0.Add(time.Hour)

	extended := HoldBoundaryStatus.Extend([]types.StatusSample{at(10, active), at(50, inactive)}, t0, end)
	require.Len(t, extended, 4)
	assert.Equal(t, types.StatusSample{Timestamp: t0, Status: active}, extended[0])
	assert.Equal(t, types.StatusSample{Timestamp: end, Status: inactive}, extended[3])

	extended = HoldBoundaryStatus.Extend([]types.StatusSample{at(0, active), at(60, inactive)}, t0, end)
	assert.Len(t, extended, 2)
}

func TestPolicyByName(t *testing.T) {
	for _, name := range []string{"", "hold", "none"} {
		p, err := PolicyByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, p)
	}

	_, err := PolicyByName("linear")
	assert.Error(t, err)
}
