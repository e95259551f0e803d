package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chrissnell/storemonitor/internal/monitor"
	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/storage/sqlite"
	"github.com/chrissnell/storemonitor/internal/telemetry"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var ref = time.Date(2023, time.January, 25, 18, 0, 0, 0, time.UTC)

type harness struct {
	store   *sqlite.Store
	gen     *Generator
	metrics *telemetry.Metrics
	wg      *sync.WaitGroup
	dir     string
}

func newHarness(t *testing.T, computer MetricsComputer) *harness {
	t.Helper()
	return newHarnessWith(t, context.Background(), computer, Options{Workers: 2, Timeout: time.Minute})
}

// newHarnessWith builds a harness whose generator runs under genCtx with opts. The
// output directory is always a temp dir.
func newHarnessWith(t *testing.T, genCtx context.Context, computer MetricsComputer, opts Options) *harness {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	logger := zap.NewNop().Sugar()
	if computer == nil {
		computer = monitor.New(s, s, s, monitor.Options{}, logger)
	}

	h := &harness{
		store:   s,
		metrics: telemetry.New(),
		wg:      &sync.WaitGroup{},
		dir:     filepath.Join(t.TempDir(), "reports"),
	}
	opts.OutputDir = h.dir
	h.gen = NewGenerator(genCtx, h.wg, s, s, computer, opts, h.metrics, logger)
	return h
}

func (h *harness) seed(t *testing.T) {
	t.Helper()
	require.NoError(t, h.store.LoadObservations(context.Background(), []storage.RawObservation{
		{StoreID: "b", Timestamp: ref.Add(-time.Hour), Status: "inactive"},
		{StoreID: "a", Timestamp: ref.Add(-2 * time.Hour), Status: "active"},
		{StoreID: "a", Timestamp: ref, Status: "active"},
	}))
}

func TestTriggerProducesCSV(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t)
	ctx := context.Background()

	id, err := h.gen.Trigger(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	h.wg.Wait()

	r, err := h.store.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ReportComplete, r.Status)
	assert.Equal(t, filepath.Join(h.dir, id+".csv"), r.FilePath)
	require.NotNil(t, r.CompletedAt)

	content, err := os.ReadFile(r.FilePath)
	require.NoError(t, err)
	assert.Equal(t,
		"store_id,uptime_last_hour,uptime_last_day,uptime_last_week,downtime_last_hour,downtime_last_day,downtime_last_week\n"+
			"a,60.00,24.00,168.00,0.00,0.00,0.00\n"+
			"b,0.00,0.00,0.00,60.00,24.00,168.00\n",
		string(content))

	_, err = os.Stat(r.FilePath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not survive")

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReportsTotal.WithLabelValues("Complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.StoreComputations.WithLabelValues("ok")))
}

func TestGenerateWithoutObservationsFails(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.store.CreateReport(ctx, types.Report{ID: "empty", Status: types.ReportRunning, CreatedAt: ref}))

	err := h.gen.Generate(ctx, "empty")
	assert.ErrorIs(t, err, ErrNoObservations)

	r, err := h.store.GetReport(ctx, "empty")
	require.NoError(t, err)
	assert.Equal(t, types.ReportFailed, r.Status)
	assert.Empty(t, r.FilePath)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReportsTotal.WithLabelValues("Failed")))
}

func TestGenerateRunsOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t)
	ctx := context.Background()

	require.NoError(t, h.store.CreateReport(ctx, types.Report{ID: "once", Status: types.ReportRunning, CreatedAt: ref}))
	require.NoError(t, h.gen.Generate(ctx, "once"))

	err := h.gen.Generate(ctx, "once")
	assert.ErrorIs(t, err, ErrAlreadyFinished)

	err = h.gen.Generate(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrReportNotFound)
}

type failingComputer struct {
	fail string
}

func (f failingComputer) ComputeMetrics(ctx context.Context, storeID string, ref time.Time) (types.MetricsResult, error) {
	if storeID == f.fail {
		return types.MetricsResult{}, errors.New("boom")
	}
	return types.MetricsResult{UptimeLastHour: 60}, nil
}

func TestStoreFailureFailsReport(t *testing.T) {
	h := newHarness(t, failingComputer{fail: "b"})
	h.seed(t)
	ctx := context.Background()

	require.NoError(t, h.store.CreateReport(ctx, types.Report{ID: "partial", Status: types.ReportRunning, CreatedAt: ref}))

	err := h.gen.Generate(ctx, "partial")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store b")

	r, err := h.store.GetReport(ctx, "partial")
	require.NoError(t, err)
	assert.Equal(t, types.ReportFailed, r.Status)

	_, err = os.Stat(filepath.Join(h.dir, "partial.csv"))
	assert.True(t, os.IsNotExist(err), "a failed report publishes no file")
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StoreComputations.WithLabelValues("error")))
}

func TestComputeAllSortsByStoreID(t *testing.T) {
	h := newHarness(t, failingComputer{})

	rows, err := h.gen.ComputeAll(context.Background(), []string{"c", "a", "b"}, ref)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].StoreID)
	assert.Equal(t, "b", rows[1].StoreID)
	assert.Equal(t, "c", rows[2].StoreID)
	assert.Equal(t, 60.0, rows[2].UptimeLastHour)
}

func TestStoreMetrics(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, _, err := h.gen.StoreMetrics(ctx, "a")
	assert.ErrorIs(t, err, ErrNoObservations)

	h.seed(t)
	m, at, err := h.gen.StoreMetrics(ctx, "b")
	require.NoError(t, err)
	assert.True(t, at.Equal(ref))
	assert.Equal(t, "b", m.StoreID)
	assert.Equal(t, 60.0, m.DowntimeLastHour)
	assert.Equal(t, 168.0, m.DowntimeLastWeek)
}

func TestWriteCSVEmpty(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(dir, "none", nil)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "store_id,uptime_last_hour,uptime_last_day,uptime_last_week,downtime_last_hour,downtime_last_day,downtime_last_week\n", string(content))
}

// blockingComputer holds every computation until its context ends or release is closed
type blockingComputer struct {
	entered chan struct{}
	once    sync.Once
	release chan struct{}

	mu    sync.Mutex
	calls map[string]int
}

func newBlockingComputer() *blockingComputer {
	return &blockingComputer{
		entered: make(chan struct{}),
		release: make(chan struct{}),
		calls:   map[string]int{},
	}
}

func (b *blockingComputer) ComputeMetrics(ctx context.Context, storeID string, ref time.Time) (types.MetricsResult, error) {
	b.mu.Lock()
	b.calls[storeID]++
	b.mu.Unlock()
	b.once.Do(func() { close(b.entered) })

	select {
	case <-ctx.Done():
		return types.MetricsResult{}, ctx.Err()
	case <-b.release:
		return types.MetricsResult{UptimeLastHour: 60}, nil
	}
}

func (b *blockingComputer) callCounts() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make(map[string]int, len(b.calls))
	for k, v := range b.calls {
		counts[k] = v
	}
	return counts
}

func waitEntered(t *testing.T, b *blockingComputer) {
	t.Helper()
	select {
	case <-b.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("computation never started")
	}
}

func TestGenerateTimeoutFailsReport(t *testing.T) {
	comp := newBlockingComputer()
	h := newHarnessWith(t, context.Background(), comp, Options{Workers: 2, Timeout: 100 * time.Millisecond})
	h.seed(t)
	ctx := context.Background()

	require.NoError(t, h.store.CreateReport(ctx, types.Report{ID: "slow", Status: types.ReportRunning, CreatedAt: ref}))

	err := h.gen.Generate(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	r, err := h.store.GetReport(ctx, "slow")
	require.NoError(t, err)
	assert.Equal(t, types.ReportFailed, r.Status)
	assert.Empty(t, r.FilePath)

	_, err = os.Stat(filepath.Join(h.dir, "slow.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestConcurrentGenerateSharesOneRun(t *testing.T) {
	comp := newBlockingComputer()
	h := newHarness(t, comp)
	h.seed(t)
	ctx := context.Background()

	require.NoError(t, h.store.CreateReport(ctx, types.Report{ID: "shared", Status: types.ReportRunning, CreatedAt: ref}))

	const callers = 8
	var succeeded atomic.Int32
	errs := make(chan error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.gen.Generate(ctx, "shared")
			if err == nil {
				succeeded.Add(1)
			}
			errs <- err
		}()
	}

	waitEntered(t, comp)
	// Give the other callers time to join the run in progress
	time.Sleep(50 * time.Millisecond)
	close(comp.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, ErrAlreadyFinished)
		}
	}
	assert.GreaterOrEqual(t, succeeded.Load(), int32(1))
	assert.Equal(t, map[string]int{"a": 1, "b": 1}, comp.callCounts())

	r, err := h.store.GetReport(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, types.ReportComplete, r.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ReportsTotal.WithLabelValues("Complete")))
}

func TestShutdownFailsInflightReport(t *testing.T) {
	genCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	comp := newBlockingComputer()
	h := newHarnessWith(t, genCtx, comp, Options{Workers: 2, Timeout: time.Minute})
	h.seed(t)
	ctx := context.Background()

	id, err := h.gen.Trigger(ctx)
	require.NoError(t, err)
	waitEntered(t, comp)

	cancel()
	h.gen.Close()
	h.wg.Wait()

	r, err := h.store.GetReport(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.ReportFailed, r.Status)
	require.NotNil(t, r.CompletedAt)

	_, err = h.gen.Trigger(ctx)
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestTriggerAfterCloseStartsNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.seed(t)
	h.gen.Close()

	_, err := h.gen.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrShuttingDown)
	h.wg.Wait()
}
