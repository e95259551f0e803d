package restserver

import (
	"time"

	"github.com/chrissnell/storemonitor/internal/storage"
	"github.com/chrissnell/storemonitor/internal/types"
)

// TriggerResponse is returned by POST /trigger_report
type TriggerResponse struct {
	ReportID string `json:"report_id"`
}

// ReportStatusResponse is returned by GET /get_report while a report is not downloadable
type ReportStatusResponse struct {
	Status types.ReportStatus `json:"status"`
}

// StoreMetricsResponse is returned by GET /stores/{store_id}/metrics
type StoreMetricsResponse struct {
	types.StoreMetrics
	ReferenceTime time.Time `json:"reference_time"`
}

// HealthResponse is returned by GET /healthz
type HealthResponse struct {
	Status   string                    `json:"status"`
	Backends map[string]storage.Health `json:"backends"`
}

// ErrorResponse carries a client-facing error message
type ErrorResponse struct {
	Error string `json:"error"`
}
