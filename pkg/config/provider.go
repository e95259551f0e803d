package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetStorageConfig() (*StorageData, error)
	GetRESTServerConfig() (*RESTServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Storage StorageData    `json:"storage"`
	REST    RESTServerData `json:"rest"`
	Report  ReportData     `json:"report"`
	Monitor MonitorData    `json:"monitor"`
	Log     LogData        `json:"log"`
}

// Storage backend names
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// StorageData selects and configures the storage backend
type StorageData struct {
	Backend  string        `json:"backend"`
	SQLite   *SQLiteData   `json:"sqlite,omitempty"`
	Postgres *PostgresData `json:"postgres,omitempty"`
}

type SQLiteData struct {
	Path string `json:"path"`
}

type PostgresData struct {
	ConnectionString string `json:"connection_string"`
}

// RESTServerData configures the HTTP API
type RESTServerData struct {
	ListenAddr  string `json:"listen_addr,omitempty"`
	Port        int    `json:"port,omitempty"`
	TLSCertPath string `json:"tls_cert_path,omitempty"`
	TLSKeyPath  string `json:"tls_key_path,omitempty"`
}

// ReportData configures report generation
type ReportData struct {
	OutputDir string        `json:"output_dir"`
	Workers   int           `json:"workers"`
	Timeout   time.Duration `json:"timeout"`
}

// MonitorData configures the metrics engine
type MonitorData struct {
	DefaultTimezone    string `json:"default_timezone"`
	Extrapolation      string `json:"extrapolation"`
	OpenOnUnlistedDays bool   `json:"open_on_unlisted_days"`
}

// LogData configures logging
type LogData struct {
	Debug      bool   `json:"debug"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
}

// Default values
const (
	DefaultSQLitePath      = "store_monitor.db"
	DefaultListenAddr      = "0.0.0.0"
	DefaultPort            = 8080
	DefaultOutputDir       = "reports"
	DefaultWorkers         = 8
	DefaultReportTimeout   = 30 * time.Minute
	DefaultTimezone        = "America/Chicago"
	DefaultExtrapolation   = "hold"
	DefaultLogMaxSizeMB    = 10
	DefaultLogMaxBackups   = 5
	databaseURLEnvVariable = "DATABASE_URL"
)

// DefaultOpenOnUnlistedDays makes a weekday missing from a store's calendar count as open
const DefaultOpenOnUnlistedDays = true

// ApplyDefaults fills unset fields and applies the DATABASE_URL override
func (c *ConfigData) ApplyDefaults() error {
	if url := os.Getenv(databaseURLEnvVariable); url != "" {
		if err := c.Storage.applyDatabaseURL(url); err != nil {
			return err
		}
	}

	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendSQLite
	}
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.SQLite == nil {
			c.Storage.SQLite = &SQLiteData{}
		}
		if c.Storage.SQLite.Path == "" {
			c.Storage.SQLite.Path = DefaultSQLitePath
		}
	case BackendPostgres:
		if c.Storage.Postgres == nil || c.Storage.Postgres.ConnectionString == "" {
			return fmt.Errorf("storage.postgres.connection-string is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s. Use 'sqlite' or 'postgres'", c.Storage.Backend)
	}

	if c.REST.ListenAddr == "" {
		c.REST.ListenAddr = DefaultListenAddr
	}
	if c.REST.Port == 0 {
		c.REST.Port = DefaultPort
	}

	if c.Report.OutputDir == "" {
		c.Report.OutputDir = DefaultOutputDir
	}
	if c.Report.Workers <= 0 {
		c.Report.Workers = DefaultWorkers
	}
	if c.Report.Timeout <= 0 {
		c.Report.Timeout = DefaultReportTimeout
	}

	if c.Monitor.DefaultTimezone == "" {
		c.Monitor.DefaultTimezone = DefaultTimezone
	}
	if c.Monitor.Extrapolation == "" {
		c.Monitor.Extrapolation = DefaultExtrapolation
	}

	if c.Log.File != "" {
		if c.Log.MaxSizeMB == 0 {
			c.Log.MaxSizeMB = DefaultLogMaxSizeMB
		}
		if c.Log.MaxBackups == 0 {
			c.Log.MaxBackups = DefaultLogMaxBackups
		}
	}

	return nil
}

// applyDatabaseURL selects a backend from a URL such as postgres://... or sqlite:///path
func (s *StorageData) applyDatabaseURL(url string) error {
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		s.Backend = BackendPostgres
		s.Postgres = &PostgresData{ConnectionString: url}
	case strings.HasPrefix(url, "sqlite://"):
		s.Backend = BackendSQLite
		// sqlite:///./file.db carries a relative path after the third slash
		path := strings.TrimPrefix(url, "sqlite://")
		path = strings.TrimPrefix(path, "/")
		if path == "" {
			return fmt.Errorf("%s has no database path: %s", databaseURLEnvVariable, url)
		}
		s.SQLite = &SQLiteData{Path: path}
	default:
		return fmt.Errorf("unsupported %s scheme: %s", databaseURLEnvVariable, url)
	}
	return nil
}
