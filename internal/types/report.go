package types

import "time"

// ReportStatus is the lifecycle state of a generated report
type ReportStatus string

const (
	ReportRunning  ReportStatus = "Running"
	ReportComplete ReportStatus = "Complete"
	ReportFailed   ReportStatus = "Failed"
)

// Report tracks a single report generation request
type Report struct {
	ID          string
	Status      ReportStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	FilePath    string
}
