// Package database holds the GORM models and connection helper for the PostgreSQL backend.
package database

import (
	"time"
)

// StoreStatus is one polling observation
type StoreStatus struct {
	ID           int64     `gorm:"primaryKey;autoIncrement;column:id"`
	StoreID      string    `gorm:"column:store_id;not null;index:idx_store_status_store_time,priority:1"`
	TimestampUTC time.Time `gorm:"column:timestamp_utc;not null;index:idx_store_status_store_time,priority:2;index:idx_store_status_time"`
	Status       string    `gorm:"column:status;not null"`
}

// TableName specifies the table name for StoreStatus
func (StoreStatus) TableName() string {
	return "store_status"
}

// BusinessHours is one open interval of a store's weekly calendar (0 = Monday)
type BusinessHours struct {
	ID             int64  `gorm:"primaryKey;autoIncrement;column:id"`
	StoreID        string `gorm:"column:store_id;not null;index"`
	DayOfWeek      int    `gorm:"column:day_of_week;not null"`
	StartTimeLocal string `gorm:"column:start_time_local;size:8;not null"`
	EndTimeLocal   string `gorm:"column:end_time_local;size:8;not null"`
}

// TableName specifies the table name for BusinessHours
func (BusinessHours) TableName() string {
	return "business_hours"
}

// StoreTimezone assigns an IANA zone to a store
type StoreTimezone struct {
	StoreID     string `gorm:"primaryKey;column:store_id"`
	TimezoneStr string `gorm:"column:timezone_str;size:64;not null"`
}

// TableName specifies the table name for StoreTimezone
func (StoreTimezone) TableName() string {
	return "store_timezones"
}

// Report tracks a report generation request
type Report struct {
	ID          string     `gorm:"primaryKey;column:id;size:36"`
	Status      string     `gorm:"column:status;size:20;not null"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null"`
	CompletedAt *time.Time `gorm:"column:completed_at"`
	FilePath    *string    `gorm:"column:file_path;size:255"`
}

// TableName specifies the table name for Report
func (Report) TableName() string {
	return "reports"
}
