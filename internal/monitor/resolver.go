package monitor

import (
	"context"
	"fmt"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
)

// DefaultTimezone is used for stores without a timezone record
const DefaultTimezone = "America/Chicago"

// endOfDay is 23:59:59, the closing bound of a synthesized always-open interval
const endOfDay = types.LocalClock(24*3600 - 1)

// TimezoneResolver maps a store to its zone name, falling back to a default
type TimezoneResolver struct {
	repo        storage.TimezoneRepository
	defaultZone string
}

// NewTimezoneResolver creates a resolver; an empty defaultZone selects DefaultTimezone
func NewTimezoneResolver(repo storage.TimezoneRepository, defaultZone string) *TimezoneResolver {
	if defaultZone == "" {
		defaultZone = DefaultTimezone
	}
	return &TimezoneResolver{repo: repo, defaultZone: defaultZone}
}

// Resolve returns the store's zone name. The name is not validated here; an invalid
// zone surfaces when the filter loads it.
func (r *TimezoneResolver) Resolve(ctx context.Context, storeID string) (string, error) {
	zone, ok, err := r.repo.FetchTimezone(ctx, storeID)
	if err != nil {
		return "", fmt.Errorf("error fetching timezone for store %s: %w", storeID, err)
	}
	if !ok || zone == "" {
		return r.defaultZone, nil
	}
	return zone, nil
}

// BusinessHoursResolver maps a store to its weekly calendar
type BusinessHoursResolver struct {
	repo storage.BusinessHoursRepository
}

// NewBusinessHoursResolver creates a resolver backed by repo
func NewBusinessHoursResolver(repo storage.BusinessHoursRepository) *BusinessHoursResolver {
	return &BusinessHoursResolver{repo: repo}
}

// Resolve returns the store's intervals, or seven 00:00:00-23:59:59 intervals when the
// store has no calendar at all.
func (r *BusinessHoursResolver) Resolve(ctx context.Context, storeID string) ([]types.BusinessHoursInterval, error) {
	hours, err := r.repo.FetchBusinessHours(ctx, storeID)
	if err != nil {
		return nil, fmt.Errorf("error fetching business hours for store %s: %w", storeID, err)
	}
	if len(hours) > 0 {
		return hours, nil
	}
	return AlwaysOpen(storeID), nil
}

// AlwaysOpen synthesizes a calendar that is open every second of every day
func AlwaysOpen(storeID string) []types.BusinessHoursInterval {
	hours := make([]types.BusinessHoursInterval, 0, 7)
	for day := 0; day < 7; day++ {
		hours = append(hours, types.BusinessHoursInterval{
			StoreID:   storeID,
			DayOfWeek: day,
			Start:     0,
			End:       endOfDay,
		})
	}
	return hours
}
