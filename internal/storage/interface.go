// Package storage defines the repository interfaces the store monitor reads from and
// writes to, plus backend health tracking.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/chrissnell/storemonitor/internal/types"
)

// ErrReportNotFound is returned when a report id is unknown to the backend
var ErrReportNotFound = errors.New("report not found")

// ObservationRepository provides read-only access to polling observations
type ObservationRepository interface {
	// FetchObservations returns a store's observations with start <= timestamp <= end,
	// ordered ascending by timestamp.
	FetchObservations(ctx context.Context, storeID string, start, end time.Time) ([]types.Observation, error)

	// ListStoreIDs returns the distinct store ids that have at least one observation
	ListStoreIDs(ctx context.Context) ([]string, error)

	// LatestObservationTime returns the maximum observation timestamp. The boolean is
	// false when no observations are stored.
	LatestObservationTime(ctx context.Context) (time.Time, bool, error)
}

// BusinessHoursRepository provides read-only access to store calendars
type BusinessHoursRepository interface {
	FetchBusinessHours(ctx context.Context, storeID string) ([]types.BusinessHoursInterval, error)
}

// TimezoneRepository provides read-only access to store timezones
type TimezoneRepository interface {
	// FetchTimezone returns the store's zone name; the boolean is false when the store has none
	FetchTimezone(ctx context.Context, storeID string) (string, bool, error)
}

// ReportRepository persists report lifecycle state
type ReportRepository interface {
	CreateReport(ctx context.Context, r types.Report) error
	GetReport(ctx context.Context, id string) (types.Report, error)
	CompleteReport(ctx context.Context, id string, filePath string, at time.Time) error
	FailReport(ctx context.Context, id string, at time.Time) error
}

// Loader bulk-loads source data. It is used by the ingestion tool only.
type Loader interface {
	LoadObservations(ctx context.Context, obs []RawObservation) error
	LoadBusinessHours(ctx context.Context, hours []types.BusinessHoursInterval) error
	LoadTimezones(ctx context.Context, zones []types.TimezoneAssignment) error
}

// RawObservation is an observation as ingested, with the status string kept verbatim
type RawObservation struct {
	StoreID   string
	Timestamp time.Time
	Status    string
}

// Store is implemented by every backend
type Store interface {
	ObservationRepository
	BusinessHoursRepository
	TimezoneRepository
	ReportRepository
	Loader

	Ping(ctx context.Context) error
	Close() error
}
