package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chrissnell/storemonitor/internal/types"
)

var csvHeader = []string{
	"store_id",
	"uptime_last_hour",
	"uptime_last_day",
	"uptime_last_week",
	"downtime_last_hour",
	"downtime_last_day",
	"downtime_last_week",
}

// WriteCSV writes rows to <dir>/<id>.csv and returns the path. The file is written under
// a temporary name and renamed into place, so a failed write never leaves a partial report.
func WriteCSV(dir, id string, rows []types.StoreMetrics) (path string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating report directory: %w", err)
	}

	path = filepath.Join(dir, id+".csv")
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("error creating report file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmp)
		}
	}()

	w := csv.NewWriter(f)
	if err = w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("error writing report header: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.StoreID,
			formatFloat(r.UptimeLastHour),
			formatFloat(r.UptimeLastDay),
			formatFloat(r.UptimeLastWeek),
			formatFloat(r.DowntimeLastHour),
			formatFloat(r.DowntimeLastDay),
			formatFloat(r.DowntimeLastWeek),
		}
		if err = w.Write(record); err != nil {
			return "", fmt.Errorf("error writing report row for store %s: %w", r.StoreID, err)
		}
	}

	w.Flush()
	if err = w.Error(); err != nil {
		return "", fmt.Errorf("error flushing report: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("error closing report file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("error publishing report file: %w", err)
	}

	return path, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
