package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var base = time.Date(2023, time.January, 25, 18, 13, 22, 479220_000, time.UTC)

func TestObservations(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	empty, ok, err := s.LatestObservationTime(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, empty.IsZero())

	require.NoError(t, s.LoadObservations(ctx, []storage.RawObservation{
		{StoreID: "8419537941919820732", Timestamp: base.Add(-2 * time.Hour), Status: "inactive"},
		{StoreID: "8419537941919820732", Timestamp: base, Status: "active"},
		{StoreID: "8419537941919820732", Timestamp: base.Add(-time.Hour), Status: "active"},
		{StoreID: "1481966498820158979", Timestamp: base.Add(-30 * time.Minute), Status: "weird"},
	}))

	latest, ok, err := s.LatestObservationTime(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, latest.Equal(base), "microsecond precision must survive a round trip")

	ids, err := s.ListStoreIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1481966498820158979", "8419537941919820732"}, ids)

	obs, err := s.FetchObservations(ctx, "8419537941919820732", base.Add(-time.Hour), base)
	require.NoError(t, err)
	require.Len(t, obs, 2, "both bounds are inclusive")
	assert.True(t, obs[0].Timestamp.Before(obs[1].Timestamp))
	assert.Equal(t, types.StatusActive, obs[0].Status)

	obs, err = s.FetchObservations(ctx, "1481966498820158979", base.Add(-time.Hour), base)
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, types.StatusInactive, obs[0].Status)
}

func TestBusinessHoursAndTimezones(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hours, err := s.FetchBusinessHours(ctx, "1")
	require.NoError(t, err)
	assert.Empty(t, hours)

	iv, err := storage.NewInterval("1", 2, "09:00:00", "17:30:00")
	require.NoError(t, err)
	require.NoError(t, s.LoadBusinessHours(ctx, []types.BusinessHoursInterval{iv}))

	hours, err = s.FetchBusinessHours(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []types.BusinessHoursInterval{iv}, hours)

	_, ok, err := s.FetchTimezone(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.LoadTimezones(ctx, []types.TimezoneAssignment{
		{StoreID: "1", ZoneName: "America/Denver"},
		{StoreID: "1", ZoneName: "America/Boise"},
	}))

	zone, ok, err := s.FetchTimezone(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "America/Boise", zone)
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrReportNotFound)
	assert.ErrorIs(t, s.FailReport(ctx, "missing", base), storage.ErrReportNotFound)

	require.NoError(t, s.CreateReport(ctx, types.Report{ID: "r1", Status: types.ReportRunning, CreatedAt: base}))
	require.NoError(t, s.CreateReport(ctx, types.Report{ID: "r2", Status: types.ReportRunning, CreatedAt: base}))

	r, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.ReportRunning, r.Status)
	assert.Nil(t, r.CompletedAt)

	done := base.Add(time.Minute)
	require.NoError(t, s.CompleteReport(ctx, "r1", "reports/r1.csv", done))
	require.NoError(t, s.FailReport(ctx, "r2", done))

	r, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, types.ReportComplete, r.Status)
	assert.Equal(t, "reports/r1.csv", r.FilePath)
	require.NotNil(t, r.CompletedAt)
	assert.True(t, r.CompletedAt.Equal(done))

	r, err = s.GetReport(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, types.ReportFailed, r.Status)
	assert.Empty(t, r.FilePath)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := New(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.LoadTimezones(ctx, []types.TimezoneAssignment{{StoreID: "1", ZoneName: "Asia/Tokyo"}}))
	require.NoError(t, s.Close())

	s, err = New(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	zone, ok, err := s.FetchTimezone(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Asia/Tokyo", zone)

	migrations, err := Migrations().GetMigrations()
	require.NoError(t, err)
	version, err := Migrations().GetCurrentVersion(ctx, s.db)
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, version)
}
