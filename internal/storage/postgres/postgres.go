// Package postgres implements storage.Store on PostgreSQL. Reads and report state go
// through GORM; bulk ingestion uses pgx COPY.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/storemonitor/internal/database"
	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
)

// Store is a PostgreSQL-backed storage.Store
type Store struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

// New connects to PostgreSQL and migrates the schema
func New(ctx context.Context, connectionString string) (*Store, error) {
	db, err := database.CreateConnection(connectionString)
	if err != nil {
		return nil, fmt.Errorf("could not connect to PostgreSQL: %w", err)
	}

	s := &Store{db: db}

	err = db.WithContext(ctx).AutoMigrate(
		&database.StoreStatus{},
		&database.BusinessHours{},
		&database.StoreTimezone{},
		&database.Report{},
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not migrate schema: %w", err)
	}

	s.pool, err = pgxpool.New(ctx, connectionString)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create pgx pool: %w", err)
	}

	return s, nil
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases both connection pools
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// FetchObservations returns a store's observations within [start, end], oldest first
func (s *Store) FetchObservations(ctx context.Context, storeID string, start, end time.Time) ([]types.Observation, error) {
	var rows []database.StoreStatus
	err := s.db.WithContext(ctx).
		Where("store_id = ? AND timestamp_utc BETWEEN ? AND ?", storeID, start.UTC(), end.UTC()).
		Order("timestamp_utc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying observations: %w", err)
	}

	obs := make([]types.Observation, 0, len(rows))
	for _, r := range rows {
		obs = append(obs, types.Observation{
			StoreID:   r.StoreID,
			Timestamp: r.TimestampUTC.UTC(),
			Status:    types.ParseStatus(r.Status),
		})
	}
	return obs, nil
}

// ListStoreIDs returns every store id with at least one observation
func (s *Store) ListStoreIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&database.StoreStatus{}).
		Distinct("store_id").
		Order("store_id").
		Pluck("store_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("error querying store ids: %w", err)
	}
	return ids, nil
}

// LatestObservationTime returns the newest observation timestamp
func (s *Store) LatestObservationTime(ctx context.Context) (time.Time, bool, error) {
	var latest sql.NullTime
	err := s.db.WithContext(ctx).
		Model(&database.StoreStatus{}).
		Select("MAX(timestamp_utc)").
		Row().Scan(&latest)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error querying latest observation: %w", err)
	}
	if !latest.Valid {
		return time.Time{}, false, nil
	}
	return latest.Time.UTC(), true, nil
}

// FetchBusinessHours returns the store's calendar rows
func (s *Store) FetchBusinessHours(ctx context.Context, storeID string) ([]types.BusinessHoursInterval, error) {
	var rows []database.BusinessHours
	err := s.db.WithContext(ctx).
		Where("store_id = ?", storeID).
		Order("day_of_week, start_time_local").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error querying business hours: %w", err)
	}

	hours := make([]types.BusinessHoursInterval, 0, len(rows))
	for _, r := range rows {
		iv, err := storage.NewInterval(r.StoreID, r.DayOfWeek, r.StartTimeLocal, r.EndTimeLocal)
		if err != nil {
			return nil, err
		}
		hours = append(hours, iv)
	}
	return hours, nil
}

// FetchTimezone returns the store's zone name, if any
func (s *Store) FetchTimezone(ctx context.Context, storeID string) (string, bool, error) {
	var tz database.StoreTimezone
	err := s.db.WithContext(ctx).Where("store_id = ?", storeID).First(&tz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("error querying timezone: %w", err)
	}
	return tz.TimezoneStr, true, nil
}

// CreateReport inserts a new report row
func (s *Store) CreateReport(ctx context.Context, r types.Report) error {
	row := database.Report{
		ID:        r.ID,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error creating report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns a report by id, or storage.ErrReportNotFound
func (s *Store) GetReport(ctx context.Context, id string) (types.Report, error) {
	var row database.Report
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.Report{}, storage.ErrReportNotFound
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("error querying report %s: %w", id, err)
	}

	r := types.Report{
		ID:          row.ID,
		Status:      types.ReportStatus(row.Status),
		CreatedAt:   row.CreatedAt.UTC(),
		CompletedAt: row.CompletedAt,
	}
	if row.FilePath != nil {
		r.FilePath = *row.FilePath
	}
	return r, nil
}

// CompleteReport marks a report complete and records its artifact path
func (s *Store) CompleteReport(ctx context.Context, id string, filePath string, at time.Time) error {
	return s.finishReport(ctx, id, map[string]interface{}{
		"status":       string(types.ReportComplete),
		"completed_at": at.UTC(),
		"file_path":    filePath,
	})
}

// FailReport marks a report failed
func (s *Store) FailReport(ctx context.Context, id string, at time.Time) error {
	return s.finishReport(ctx, id, map[string]interface{}{
		"status":       string(types.ReportFailed),
		"completed_at": at.UTC(),
	})
}

func (s *Store) finishReport(ctx context.Context, id string, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&database.Report{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("error updating report %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrReportNotFound
	}
	return nil
}
