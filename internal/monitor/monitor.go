// Package monitor computes store uptime and downtime over trailing windows from sparse
// polling observations, restricted to each store's local business hours.
package monitor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"go.uber.org/zap"
)

// Window is a trailing span ending at the reference time. Results are reported in
// multiples of Unit.
type Window struct {
	Name string
	Span time.Duration
	Unit time.Duration
}

var (
	LastHour = Window{Name: "hour", Span: time.Hour, Unit: time.Minute}
	LastDay  = Window{Name: "day", Span: 24 * time.Hour, Unit: time.Hour}
	LastWeek = Window{Name: "week", Span: 7 * 24 * time.Hour, Unit: time.Hour}
)

// Options configures a Monitor
type Options struct {
	DefaultTimezone string
	Extrapolation   ExtrapolationPolicy
	// OpenOnUnlistedDays treats a weekday missing from a store's calendar as open all
	// day. The configuration layer turns it on unless strict mode is requested.
	OpenOnUnlistedDays bool
}

// Monitor computes MetricsResults. It only reads from its repositories and is safe
// for concurrent use.
type Monitor struct {
	observations   storage.ObservationRepository
	timezones      *TimezoneResolver
	businessHours  *BusinessHoursResolver
	interpolator   Interpolator
	openOnUnlisted bool
	logger         *zap.SugaredLogger

	locations sync.Map // zone name -> *time.Location
}

// New creates a Monitor
func New(obs storage.ObservationRepository, hours storage.BusinessHoursRepository, zones storage.TimezoneRepository, opts Options, logger *zap.SugaredLogger) *Monitor {
	return &Monitor{
		observations:   obs,
		timezones:      NewTimezoneResolver(zones, opts.DefaultTimezone),
		businessHours:  NewBusinessHoursResolver(hours),
		interpolator:   Interpolator{Policy: opts.Extrapolation},
		openOnUnlisted: opts.OpenOnUnlistedDays,
		logger:         logger,
	}
}

// ComputeMetrics returns the store's uptime and downtime for the hour, day and week
// ending at ref. The result depends only on the repositories' contents and ref.
func (m *Monitor) ComputeMetrics(ctx context.Context, storeID string, ref time.Time) (types.MetricsResult, error) {
	result, err := m.computeMetrics(ctx, storeID, ref)
	if err != nil {
		m.logger.Errorw("error computing metrics", "store_id", storeID, "error", err)
		return types.MetricsResult{}, err
	}
	return result, nil
}

func (m *Monitor) computeMetrics(ctx context.Context, storeID string, ref time.Time) (types.MetricsResult, error) {
	var result types.MetricsResult

	zone, err := m.timezones.Resolve(ctx, storeID)
	if err != nil {
		return result, err
	}
	loc, err := m.location(zone)
	if err != nil {
		return result, err
	}

	hours, err := m.businessHours.Resolve(ctx, storeID)
	if err != nil {
		return result, err
	}
	cal := NewCalendar(hours, m.openOnUnlisted)

	ref = ref.UTC()

	result.UptimeLastHour, result.DowntimeLastHour, err = m.windowMetrics(ctx, storeID, ref, LastHour, cal, loc)
	if err != nil {
		return result, err
	}
	result.UptimeLastDay, result.DowntimeLastDay, err = m.windowMetrics(ctx, storeID, ref, LastDay, cal, loc)
	if err != nil {
		return result, err
	}
	result.UptimeLastWeek, result.DowntimeLastWeek, err = m.windowMetrics(ctx, storeID, ref, LastWeek, cal, loc)
	if err != nil {
		return result, err
	}

	return result, nil
}

// windowMetrics runs fetch, filter, interpolate and scale for a single window
func (m *Monitor) windowMetrics(ctx context.Context, storeID string, ref time.Time, w Window, cal Calendar, loc *time.Location) (float64, float64, error) {
	start := ref.Add(-w.Span)

	obs, err := m.observations.FetchObservations(ctx, storeID, start, ref)
	if err != nil {
		return 0, 0, fmt.Errorf("error fetching observations for store %s (last %s): %w", storeID, w.Name, err)
	}

	samples := FilterBusinessHours(obs, cal, loc)

	up, down, err := m.interpolator.Integrate(samples, start, ref)
	if err != nil {
		return 0, 0, fmt.Errorf("error integrating last %s for store %s: %w", w.Name, storeID, err)
	}

	scale := float64(time.Hour) / float64(w.Unit)
	return Round2(up * scale), Round2(down * scale), nil
}

func (m *Monitor) location(zone string) (*time.Location, error) {
	if loc, ok := m.locations.Load(zone); ok {
		return loc.(*time.Location), nil
	}

	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", zone, err)
	}
	m.locations.Store(zone, loc)
	return loc, nil
}

// Round2 rounds v to two decimal places, halves to even
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
