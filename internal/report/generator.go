// Package report generates store uptime reports: it pins a reference time, computes
// every store's metrics concurrently, and publishes the result as a CSV file.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/telemetry"
	"github.com/chrissnell/storemonitor/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrNoObservations means there is no data to pin a reference time to
	ErrNoObservations = errors.New("no observations available for report")

	// ErrAlreadyFinished is returned when generation is requested for a report that
	// has already completed or failed
	ErrAlreadyFinished = errors.New("report has already finished")

	// ErrShuttingDown is returned by Trigger once the generator has been stopped
	ErrShuttingDown = errors.New("report generator is shutting down")
)

// MetricsComputer computes one store's metrics at a reference time
type MetricsComputer interface {
	ComputeMetrics(ctx context.Context, storeID string, ref time.Time) (types.MetricsResult, error)
}

// Options configures a Generator
type Options struct {
	OutputDir string
	Workers   int
	Timeout   time.Duration
}

// Generator runs report generation. Each report id is generated at most once.
type Generator struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	observations storage.ObservationRepository
	reports      storage.ReportRepository
	computer     MetricsComputer
	opts         Options
	metrics      *telemetry.Metrics
	logger       *zap.SugaredLogger

	inflight singleflight.Group
	now      func() time.Time

	mu     sync.Mutex
	closed bool
}

// NewGenerator creates a Generator. Reports started with Trigger run under ctx and are
// tracked by wg.
func NewGenerator(ctx context.Context, wg *sync.WaitGroup, obs storage.ObservationRepository, reports storage.ReportRepository, computer MetricsComputer, opts Options, metrics *telemetry.Metrics, logger *zap.SugaredLogger) *Generator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Generator{
		ctx:          ctx,
		wg:           wg,
		observations: obs,
		reports:      reports,
		computer:     computer,
		opts:         opts,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Trigger records a new running report and starts generating it in the background
func (g *Generator) Trigger(ctx context.Context) (string, error) {
	if g.stopped() {
		return "", ErrShuttingDown
	}

	id := uuid.NewString()

	err := g.reports.CreateReport(ctx, types.Report{
		ID:        id,
		Status:    types.ReportRunning,
		CreatedAt: g.now().UTC(),
	})
	if err != nil {
		return "", err
	}

	if !g.track() {
		// Shutdown started after the row was written
		if ferr := g.reports.FailReport(context.WithoutCancel(ctx), id, g.now().UTC()); ferr != nil {
			g.logger.Errorw("could not mark report failed", "report_id", id, "error", ferr)
		}
		return "", ErrShuttingDown
	}

	go func() {
		defer g.wg.Done()
		// Failures are recorded on the report itself
		_ = g.Generate(g.ctx, id)
	}()

	return id, nil
}

// Close stops Trigger from starting new reports. Call it after cancelling the
// generator's context and before waiting on its WaitGroup.
func (g *Generator) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
}

func (g *Generator) stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed || g.ctx.Err() != nil
}

// track adds a background run to the WaitGroup unless the generator is stopping.
// Holding mu keeps the Add ordered before Close, and Close before the caller's Wait.
func (g *Generator) track() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed || g.ctx.Err() != nil {
		return false
	}
	g.wg.Add(1)
	return true
}

// Generate builds the report for id and records its terminal status. Concurrent calls
// for the same id share one run; calls for a finished report return ErrAlreadyFinished.
func (g *Generator) Generate(ctx context.Context, id string) error {
	_, err, _ := g.inflight.Do(id, func() (interface{}, error) {
		return nil, g.generate(ctx, id)
	})
	return err
}

func (g *Generator) generate(ctx context.Context, id string) error {
	// Read the status even if ctx is already cancelled so a run started during
	// shutdown still reaches a terminal state
	r, err := g.reports.GetReport(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	if r.Status != types.ReportRunning {
		return ErrAlreadyFinished
	}

	started := g.now()
	g.logger.Infow("generating report", "report_id", id)

	path, err := g.build(ctx, id)

	g.metrics.ReportDuration.Observe(g.now().Sub(started).Seconds())

	// The report's terminal state must be written even if ctx was cancelled
	finishCtx := context.WithoutCancel(ctx)

	if err != nil {
		g.logger.Errorw("error generating report", "report_id", id, "error", err)
		g.metrics.ReportsTotal.WithLabelValues(string(types.ReportFailed)).Inc()
		if ferr := g.reports.FailReport(finishCtx, id, g.now().UTC()); ferr != nil {
			g.logger.Errorw("could not mark report failed", "report_id", id, "error", ferr)
		}
		return err
	}

	if err := g.reports.CompleteReport(finishCtx, id, path, g.now().UTC()); err != nil {
		g.metrics.ReportsTotal.WithLabelValues(string(types.ReportFailed)).Inc()
		return fmt.Errorf("could not mark report %s complete: %w", id, err)
	}

	g.metrics.ReportsTotal.WithLabelValues(string(types.ReportComplete)).Inc()
	g.logger.Infow("report complete", "report_id", id, "path", path)
	return nil
}

func (g *Generator) build(ctx context.Context, id string) (string, error) {
	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	ref, err := g.ReferenceTime(ctx)
	if err != nil {
		return "", err
	}

	storeIDs, err := g.observations.ListStoreIDs(ctx)
	if err != nil {
		return "", fmt.Errorf("error listing stores: %w", err)
	}

	g.logger.Infow("computing store metrics", "report_id", id, "stores", len(storeIDs), "reference_time", ref)

	rows, err := g.ComputeAll(ctx, storeIDs, ref)
	if err != nil {
		return "", err
	}

	return WriteCSV(g.opts.OutputDir, id, rows)
}

// ReferenceTime returns the pinned "now" of a report: the newest observation timestamp
func (g *Generator) ReferenceTime(ctx context.Context) (time.Time, error) {
	ref, ok, err := g.observations.LatestObservationTime(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("error resolving reference time: %w", err)
	}
	if !ok {
		return time.Time{}, ErrNoObservations
	}
	return ref, nil
}

// ComputeAll computes every store's metrics with a bounded pool of workers. The first
// failure cancels the remaining stores. Rows are returned sorted by store id.
func (g *Generator) ComputeAll(ctx context.Context, storeIDs []string, ref time.Time) ([]types.StoreMetrics, error) {
	rows := make([]types.StoreMetrics, len(storeIDs))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.Workers)

	for i, storeID := range storeIDs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			result, err := g.computer.ComputeMetrics(egCtx, storeID, ref)
			if err != nil {
				g.metrics.StoreComputations.WithLabelValues("error").Inc()
				return fmt.Errorf("error computing metrics for store %s: %w", storeID, err)
			}

			g.metrics.StoreComputations.WithLabelValues("ok").Inc()
			rows[i] = types.StoreMetrics{StoreID: storeID, MetricsResult: result}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(rows, func(a, b int) bool { return rows[a].StoreID < rows[b].StoreID })
	return rows, nil
}

// StoreMetrics computes a single store's metrics at the current reference time
func (g *Generator) StoreMetrics(ctx context.Context, storeID string) (types.StoreMetrics, time.Time, error) {
	ref, err := g.ReferenceTime(ctx)
	if err != nil {
		return types.StoreMetrics{}, time.Time{}, err
	}

	result, err := g.computer.ComputeMetrics(ctx, storeID, ref)
	if err != nil {
		return types.StoreMetrics{}, time.Time{}, err
	}

	return types.StoreMetrics{StoreID: storeID, MetricsResult: result}, ref, nil
}
