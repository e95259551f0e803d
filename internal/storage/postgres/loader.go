package postgres

import (
	"context"
	"fmt"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/jackc/pgx/v5"
)

// LoadObservations copies observations into store_status
func (s *Store) LoadObservations(ctx context.Context, obs []storage.RawObservation) error {
	rows := make([][]interface{}, 0, len(obs))
	for _, o := range obs {
		rows = append(rows, []interface{}{o.StoreID, o.Timestamp.UTC(), o.Status})
	}
	return s.copyRows(ctx, "store_status", []string{"store_id", "timestamp_utc", "status"}, rows)
}

// LoadBusinessHours copies calendar rows into business_hours
func (s *Store) LoadBusinessHours(ctx context.Context, hours []types.BusinessHoursInterval) error {
	rows := make([][]interface{}, 0, len(hours))
	for _, h := range hours {
		rows = append(rows, []interface{}{h.StoreID, h.DayOfWeek, h.Start.String(), h.End.String()})
	}
	return s.copyRows(ctx, "business_hours", []string{"store_id", "day_of_week", "start_time_local", "end_time_local"}, rows)
}

// LoadTimezones upserts timezone rows. COPY cannot resolve conflicts, so these go
// through a batch of INSERT ... ON CONFLICT statements.
func (s *Store) LoadTimezones(ctx context.Context, zones []types.TimezoneAssignment) error {
	if len(zones) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, z := range zones {
		batch.Queue(`INSERT INTO store_timezones (store_id, timezone_str) VALUES ($1, $2)
			ON CONFLICT (store_id) DO UPDATE SET timezone_str = EXCLUDED.timezone_str`,
			z.StoreID, z.ZoneName)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert timezones: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) copyRows(ctx context.Context, table string, columns []string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.CopyFrom(
		ctx,
		pgx.Identifier{table},
		columns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy rows into %s: %w", table, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
