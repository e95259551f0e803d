// Package sqlite implements storage.Store on a local SQLite database using the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/chrissnell/storemonitor/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the schema migrations applied by New
func Migrations() *migrate.FSProvider {
	return migrate.NewFSProvider(migrationsFS, "migrations", "schema_migrations")
}

// Store is a SQLite-backed storage.Store. Timestamps are stored as Unix microseconds.
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ storage.Store = (*Store)(nil)

// New opens (creating if needed) the database at dbPath and applies pending migrations
func New(ctx context.Context, dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	if err := migrate.NewMigrator(db, Migrations()).MigrateUp(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

func toMicros(t time.Time) int64 {
	return t.UTC().UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// FetchObservations returns a store's observations within [start, end], oldest first
func (s *Store) FetchObservations(ctx context.Context, storeID string, start, end time.Time) ([]types.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp_utc, status
		FROM store_status
		WHERE store_id = ? AND timestamp_utc BETWEEN ? AND ?
		ORDER BY timestamp_utc`,
		storeID, toMicros(start), toMicros(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var obs []types.Observation
	for rows.Next() {
		var ts int64
		var status string
		if err := rows.Scan(&ts, &status); err != nil {
			return nil, fmt.Errorf("failed to scan observation row: %w", err)
		}
		obs = append(obs, types.Observation{
			StoreID:   storeID,
			Timestamp: fromMicros(ts),
			Status:    types.ParseStatus(status),
		})
	}

	return obs, rows.Err()
}

// ListStoreIDs returns every store id with at least one observation
func (s *Store) ListStoreIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT store_id FROM store_status ORDER BY store_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query store ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan store id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// LatestObservationTime returns the newest observation timestamp
func (s *Store) LatestObservationTime(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(timestamp_utc) FROM store_status`).Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to query latest observation: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return fromMicros(latest.Int64), true, nil
}

// FetchBusinessHours returns the store's calendar rows
func (s *Store) FetchBusinessHours(ctx context.Context, storeID string) ([]types.BusinessHoursInterval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT day_of_week, start_time_local, end_time_local
		FROM business_hours
		WHERE store_id = ?
		ORDER BY day_of_week, start_time_local`, storeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query business hours: %w", err)
	}
	defer rows.Close()

	var hours []types.BusinessHoursInterval
	for rows.Next() {
		var day int
		var start, end string
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan business hours row: %w", err)
		}

		iv, err := storage.NewInterval(storeID, day, start, end)
		if err != nil {
			return nil, err
		}
		hours = append(hours, iv)
	}

	return hours, rows.Err()
}

// FetchTimezone returns the store's zone name, if any
func (s *Store) FetchTimezone(ctx context.Context, storeID string) (string, bool, error) {
	var zone string
	err := s.db.QueryRowContext(ctx, `SELECT timezone_str FROM store_timezones WHERE store_id = ?`, storeID).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query timezone: %w", err)
	}
	return zone, true, nil
}
