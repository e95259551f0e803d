package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
)

// CreateReport inserts a new report row
func (s *Store) CreateReport(ctx context.Context, r types.Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (id, status, created_at) VALUES (?, ?, ?)`,
		r.ID, string(r.Status), toMicros(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport returns a report by id, or storage.ErrReportNotFound
func (s *Store) GetReport(ctx context.Context, id string) (types.Report, error) {
	var (
		r           types.Report
		status      string
		createdAt   int64
		completedAt sql.NullInt64
		filePath    sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, created_at, completed_at, file_path FROM reports WHERE id = ?`, id).
		Scan(&r.ID, &status, &createdAt, &completedAt, &filePath)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Report{}, storage.ErrReportNotFound
	}
	if err != nil {
		return types.Report{}, fmt.Errorf("failed to query report %s: %w", id, err)
	}

	r.Status = types.ReportStatus(status)
	r.CreatedAt = fromMicros(createdAt)
	if completedAt.Valid {
		t := fromMicros(completedAt.Int64)
		r.CompletedAt = &t
	}
	if filePath.Valid {
		r.FilePath = filePath.String
	}

	return r, nil
}

// CompleteReport marks a report complete and records its artifact path
func (s *Store) CompleteReport(ctx context.Context, id string, filePath string, at time.Time) error {
	return s.finishReport(ctx, id, types.ReportComplete, sql.NullString{String: filePath, Valid: filePath != ""}, at)
}

// FailReport marks a report failed
func (s *Store) FailReport(ctx context.Context, id string, at time.Time) error {
	return s.finishReport(ctx, id, types.ReportFailed, sql.NullString{}, at)
}

func (s *Store) finishReport(ctx context.Context, id string, status types.ReportStatus, filePath sql.NullString, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, completed_at = ?, file_path = ? WHERE id = ?`,
		string(status), toMicros(at), filePath, id)
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update report %s: %w", id, err)
	}
	if n == 0 {
		return storage.ErrReportNotFound
	}
	return nil
}
