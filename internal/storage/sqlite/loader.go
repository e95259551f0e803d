package sqlite

import (
	"context"
	"fmt"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
)

// LoadObservations inserts observations in a single transaction
func (s *Store) LoadObservations(ctx context.Context, obs []storage.RawObservation) error {
	return s.inTx(ctx, `INSERT INTO store_status (store_id, timestamp_utc, status) VALUES (?, ?, ?)`,
		len(obs), func(i int) []any {
			return []any{obs[i].StoreID, toMicros(obs[i].Timestamp), obs[i].Status}
		})
}

// LoadBusinessHours inserts calendar rows in a single transaction
func (s *Store) LoadBusinessHours(ctx context.Context, hours []types.BusinessHoursInterval) error {
	return s.inTx(ctx, `INSERT INTO business_hours (store_id, day_of_week, start_time_local, end_time_local) VALUES (?, ?, ?, ?)`,
		len(hours), func(i int) []any {
			return []any{hours[i].StoreID, hours[i].DayOfWeek, hours[i].Start.String(), hours[i].End.String()}
		})
}

// LoadTimezones upserts timezone rows; a store keeps at most one zone
func (s *Store) LoadTimezones(ctx context.Context, zones []types.TimezoneAssignment) error {
	return s.inTx(ctx, `INSERT OR REPLACE INTO store_timezones (store_id, timezone_str) VALUES (?, ?)`,
		len(zones), func(i int) []any {
			return []any{zones[i].StoreID, zones[i].ZoneName}
		})
}

func (s *Store) inTx(ctx context.Context, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
