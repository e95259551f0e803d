// Package ingest loads the store status, business hours and timezone CSV exports into a
// storage backend.
package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
	"go.uber.org/zap"
)

// Source file names inside the data directory
const (
	StatusFile        = "store_status.csv"
	BusinessHoursFile = "menu_hours.csv"
	TimezonesFile     = "timezones.csv"
)

// Ingester reads CSV exports and hands them to a Loader in batches
type Ingester struct {
	loader      storage.Loader
	batchSize   int
	defaultZone string
	logger      *zap.SugaredLogger
}

// Summary counts the rows loaded from each file
type Summary struct {
	Observations  int
	BusinessHours int
	Timezones     int
}

// New creates an Ingester
func New(loader storage.Loader, batchSize int, defaultZone string, logger *zap.SugaredLogger) *Ingester {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Ingester{
		loader:      loader,
		batchSize:   batchSize,
		defaultZone: defaultZone,
		logger:      logger,
	}
}

// LoadDir loads every known file found in dir. Missing files are skipped.
func (in *Ingester) LoadDir(ctx context.Context, dir string) (Summary, error) {
	var sum Summary
	var err error

	sum.Observations, err = in.loadFile(ctx, filepath.Join(dir, StatusFile), in.LoadObservations)
	if err != nil {
		return sum, err
	}
	sum.BusinessHours, err = in.loadFile(ctx, filepath.Join(dir, BusinessHoursFile), in.LoadBusinessHours)
	if err != nil {
		return sum, err
	}
	sum.Timezones, err = in.loadFile(ctx, filepath.Join(dir, TimezonesFile), in.LoadTimezones)
	if err != nil {
		return sum, err
	}

	return sum, nil
}

func (in *Ingester) loadFile(ctx context.Context, path string, load func(context.Context, io.Reader) (int, error)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			in.logger.Warnf("%s not found, skipping", path)
			return 0, nil
		}
		return 0, err
	}
	defer f.Close()

	in.logger.Infof("loading %s", path)
	n, err := load(ctx, f)
	if err != nil {
		return n, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	in.logger.Infof("loaded %d rows from %s", n, path)
	return n, nil
}

// LoadObservations reads store_id,status,timestamp_utc rows
func (in *Ingester) LoadObservations(ctx context.Context, r io.Reader) (int, error) {
	batch := make([]storage.RawObservation, 0, in.batchSize)
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := in.loader.LoadObservations(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		in.logger.Debugf("loaded %d observations", total)
		batch = batch[:0]
		return nil
	}

	err := readRows(r, []string{"store_id", "status", "timestamp_utc"}, func(line int, v []string) error {
		ts, err := ParseTimestamp(v[2])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		batch = append(batch, storage.RawObservation{StoreID: v[0], Status: v[1], Timestamp: ts})
		if len(batch) >= in.batchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, err
	}

	return total, flush()
}

// LoadBusinessHours reads store_id,dayOfWeek,start_time_local,end_time_local rows
func (in *Ingester) LoadBusinessHours(ctx context.Context, r io.Reader) (int, error) {
	var hours []types.BusinessHoursInterval

	err := readRows(r, []string{"store_id", "dayOfWeek", "start_time_local", "end_time_local"}, func(line int, v []string) error {
		day, err := strconv.Atoi(v[1])
		if err != nil || day < 0 || day > 6 {
			return fmt.Errorf("line %d: invalid day of week %q", line, v[1])
		}
		interval, err := storage.NewInterval(v[0], day, v[2], v[3])
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		hours = append(hours, interval)
		return nil
	})
	if err != nil {
		return 0, err
	}

	for start := 0; start < len(hours); start += in.batchSize {
		end := min(start+in.batchSize, len(hours))
		if err := in.loader.LoadBusinessHours(ctx, hours[start:end]); err != nil {
			return start, err
		}
	}
	return len(hours), nil
}

// LoadTimezones reads store_id,timezone_str rows. An empty zone is replaced with the
// default zone.
func (in *Ingester) LoadTimezones(ctx context.Context, r io.Reader) (int, error) {
	var zones []types.TimezoneAssignment

	err := readRows(r, []string{"store_id", "timezone_str"}, func(line int, v []string) error {
		zone := strings.TrimSpace(v[1])
		if zone == "" {
			zone = in.defaultZone
		} else if _, err := time.LoadLocation(zone); err != nil {
			in.logger.Warnf("line %d: store %s has unknown timezone %q", line, v[0], zone)
		}
		zones = append(zones, types.TimezoneAssignment{StoreID: v[0], ZoneName: zone})
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := in.loader.LoadTimezones(ctx, zones); err != nil {
		return 0, err
	}
	return len(zones), nil
}

// readRows maps the header onto the wanted columns and calls fn with each row's values
// in wanted order. Line numbers count the header as line 1.
func readRows(r io.Reader, wanted []string, fn func(line int, values []string) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}

	cols := make([]int, len(wanted))
	for i, w := range wanted {
		c, ok := index[w]
		if !ok {
			return fmt.Errorf("missing column %q", w)
		}
		cols[i] = c
	}

	values := make([]string, len(wanted))
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record: %w", err)
		}

		for i, c := range cols {
			if c >= len(record) {
				return fmt.Errorf("line %d: missing value for %q", line, wanted[i])
			}
			values[i] = strings.TrimSpace(record[c])
		}
		if err := fn(line, values); err != nil {
			return err
		}
	}
}

var timestampFormats = []string{
	"2006-01-02 15:04:05.999999999 UTC",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTimestamp parses a UTC timestamp as found in the status export, for example
// "2023-01-22 12:09:39.388884 UTC". The fractional part and the zone suffix are optional.
func ParseTimestamp(value string) (time.Time, error) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", value)
}
