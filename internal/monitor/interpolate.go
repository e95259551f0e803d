package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
)

// ErrInvalidWindow is returned when a window's start is not before its end
var ErrInvalidWindow = errors.New("window start must be before window end")

// ExtrapolationPolicy extends a filtered, ordered sample sequence toward the window
// bounds before integration. Implementations must not modify samples in place.
type ExtrapolationPolicy interface {
	Extend(samples []types.StatusSample, start, end time.Time) []types.StatusSample
}

// ExtrapolationFunc adapts a plain function to ExtrapolationPolicy
type ExtrapolationFunc func(samples []types.StatusSample, start, end time.Time) []types.StatusSample

// Extend calls f
func (f ExtrapolationFunc) Extend(samples []types.StatusSample, start, end time.Time) []types.StatusSample {
	return f(samples, start, end)
}

// HoldBoundaryStatus assumes the first observed status was already true at the window
// start and the last observed status holds until the window end.
var HoldBoundaryStatus ExtrapolationPolicy = ExtrapolationFunc(holdBoundaryStatus)

// NoExtrapolation leaves time before the first and after the last sample unattributed
var NoExtrapolation ExtrapolationPolicy = ExtrapolationFunc(
	func(samples []types.StatusSample, _, _ time.Time) []types.StatusSample {
		return samples
	})

func holdBoundaryStatus(samples []types.StatusSample, start, end time.Time) []types.StatusSample {
	if len(samples) == 0 {
		return samples
	}

	extended := make([]types.StatusSample, 0, len(samples)+2)

	first := samples[0]
	if first.Timestamp.After(start) {
		extended = append(extended, types.StatusSample{Timestamp: start, Status: first.Status})
	}
	extended = append(extended, samples...)

	last := samples[len(samples)-1]
	if last.Timestamp.Before(end) {
		extended = append(extended, types.StatusSample{Timestamp: end, Status: last.Status})
	}

	return extended
}

// PolicyByName maps a configuration value to a policy
func PolicyByName(name string) (ExtrapolationPolicy, error) {
	switch name {
	case "", "hold":
		return HoldBoundaryStatus, nil
	case "none":
		return NoExtrapolation, nil
	default:
		return nil, fmt.Errorf("unknown extrapolation policy: %s", name)
	}
}

// Interpolator integrates a step function of status over a window
type Interpolator struct {
	Policy ExtrapolationPolicy
}

// Integrate returns the uptime and downtime, in hours, covered by samples within
// [start, end]. Each consecutive pair contributes its duration to the status of the
// earlier sample. An empty sequence yields zero for both values.
func (i Interpolator) Integrate(samples []types.StatusSample, start, end time.Time) (uptimeHours, downtimeHours float64, err error) {
	if !start.Before(end) {
		return 0, 0, ErrInvalidWindow
	}
	if len(samples) == 0 {
		return 0, 0, nil
	}

	policy := i.Policy
	if policy == nil {
		policy = HoldBoundaryStatus
	}
	steps := policy.Extend(samples, start, end)

	var up, down time.Duration
	for n := 0; n+1 < len(steps); n++ {
		from, to := steps[n].Timestamp, steps[n+1].Timestamp
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if !to.After(from) {
			continue
		}

		if steps[n].Status == types.StatusActive {
			up += to.Sub(from)
		} else {
			down += to.Sub(from)
		}
	}

	return up.Hours(), down.Hours(), nil
}
