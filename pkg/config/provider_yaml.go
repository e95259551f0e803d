package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

var _ ConfigProvider = (*YAMLProvider)(nil)

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := parseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig ConfigYAML
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Storage: StorageData{
			Backend: yamlConfig.Storage.Backend,
		},
		REST: RESTServerData{
			ListenAddr:  yamlConfig.REST.ListenAddr,
			Port:        yamlConfig.REST.Port,
			TLSCertPath: yamlConfig.REST.TLSCertPath,
			TLSKeyPath:  yamlConfig.REST.TLSKeyPath,
		},
		Report: ReportData{
			OutputDir: yamlConfig.Report.OutputDir,
			Workers:   yamlConfig.Report.Workers,
		},
		Monitor: MonitorData{
			DefaultTimezone:    yamlConfig.Monitor.DefaultTimezone,
			Extrapolation:      yamlConfig.Monitor.Extrapolation,
			OpenOnUnlistedDays: DefaultOpenOnUnlistedDays,
		},
		Log: LogData{
			Debug:      yamlConfig.Log.Debug,
			File:       yamlConfig.Log.File,
			MaxSizeMB:  yamlConfig.Log.MaxSizeMB,
			MaxBackups: yamlConfig.Log.MaxBackups,
		},
	}

	if yamlConfig.Monitor.OpenOnUnlistedDays != nil {
		config.Monitor.OpenOnUnlistedDays = *yamlConfig.Monitor.OpenOnUnlistedDays
	}

	if yamlConfig.Storage.SQLite != nil {
		config.Storage.SQLite = &SQLiteData{Path: yamlConfig.Storage.SQLite.Path}
	}
	if yamlConfig.Storage.Postgres != nil {
		config.Storage.Postgres = &PostgresData{ConnectionString: yamlConfig.Storage.Postgres.ConnectionString}
	}

	if yamlConfig.Report.Timeout != "" {
		timeout, err := time.ParseDuration(yamlConfig.Report.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid report.timeout %q: %w", yamlConfig.Report.Timeout, err)
		}
		config.Report.Timeout = timeout
	}

	if err := config.ApplyDefaults(); err != nil {
		return nil, err
	}

	return config, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetRESTServerConfig returns the HTTP API configuration
func (y *YAMLProvider) GetRESTServerConfig() (*RESTServerData, error) {
	if y.config == nil {
		_, err := y.LoadConfig()
		if err != nil {
			return nil, err
		}
	}
	return &y.config.REST, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type ConfigYAML struct {
	Storage StorageYAML    `yaml:"storage,omitempty"`
	REST    RESTServerYAML `yaml:"rest,omitempty"`
	Report  ReportYAML     `yaml:"report,omitempty"`
	Monitor MonitorYAML    `yaml:"monitor,omitempty"`
	Log     LogYAML        `yaml:"log,omitempty"`
}

type StorageYAML struct {
	Backend  string        `yaml:"backend,omitempty"`
	SQLite   *SQLiteYAML   `yaml:"sqlite,omitempty"`
	Postgres *PostgresYAML `yaml:"postgres,omitempty"`
}

type SQLiteYAML struct {
	Path string `yaml:"path"`
}

type PostgresYAML struct {
	ConnectionString string `yaml:"connection-string"`
}

type RESTServerYAML struct {
	ListenAddr  string `yaml:"listen-addr,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	TLSCertPath string `yaml:"tls-cert-path,omitempty"`
	TLSKeyPath  string `yaml:"tls-key-path,omitempty"`
}

type ReportYAML struct {
	OutputDir string `yaml:"output-dir,omitempty"`
	Workers   int    `yaml:"workers,omitempty"`
	Timeout   string `yaml:"timeout,omitempty"`
}

type MonitorYAML struct {
	DefaultTimezone    string `yaml:"default-timezone,omitempty"`
	Extrapolation      string `yaml:"extrapolation,omitempty"`
	OpenOnUnlistedDays *bool  `yaml:"open-on-unlisted-days,omitempty"`
}

type LogYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
}
