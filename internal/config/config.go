package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/jgoulah/gridflow/internal/logger"
)

// Config holds the application configuration
type Config struct {
	Input       string         `yaml:"input,omitempty"`        // Measurement file (fallback: measurements_coding_challenge.csv)
	Delimiter   string         `yaml:"delimiter,omitempty"`    // Input field separator (fallback: ";")
	Outputs     OutputConfig   `yaml:"outputs,omitempty"`
	TimeLayouts []string       `yaml:"time_layouts,omitempty"` // Tried in order for timestamp and date columns
	Database    DatabaseConfig `yaml:"database,omitempty"`
	MetricsFile string         `yaml:"metrics_file,omitempty"` // Prometheus textfile, empty disables
	MQTT        MQTTConfig     `yaml:"mqtt,omitempty"`
	InfluxDB    InfluxConfig   `yaml:"influxdb,omitempty"`
	Logging     LoggingConfig  `yaml:"logging,omitempty"`
}

// OutputConfig holds the destination paths of a run
type OutputConfig struct {
	Dir     string `yaml:"dir,omitempty"`
	Clean   string `yaml:"clean,omitempty"`
	Hourly  string `yaml:"hourly,omitempty"`
	Summary string `yaml:"summary,omitempty"`
	XLSX    string `yaml:"xlsx,omitempty"` // Optional workbook with all three views
}

// DatabaseConfig controls the SQLite snapshot of the latest run
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// MQTTConfig holds MQTT broker configuration
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"` // e.g., "homeassistant.local:1883"
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
}

// InfluxConfig holds InfluxDB v2 configuration
type InfluxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"` // e.g., "http://localhost:8086"
	Token       string `yaml:"token"`
	Org         string `yaml:"org"`
	Bucket      string `yaml:"bucket"`
	Measurement string `yaml:"measurement,omitempty"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"`
}

// DefaultTimeLayouts are tried in order when no layouts are configured.
// Anything they miss falls through to dateparse.
var DefaultTimeLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"20060102 15:04:05",
	"20060102 15:04",
	"20060102",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
	"2 Jan 2006 15:04:05",
	"2 Jan 2006 15:04",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// Defaults returns a config with every fallback spelled out, used by `gridflow init`
func Defaults() *Config {
	return &Config{
		Input:     "measurements_coding_challenge.csv",
		Delimiter: ";",
		Outputs: OutputConfig{
			Clean:   "cleaned_measurements.csv",
			Hourly:  "hourly_grid_totals_with_peak_flag.csv",
			Summary: "summary_by_serial.csv",
		},
		TimeLayouts: append([]string(nil), DefaultTimeLayouts...),
		Database:    DatabaseConfig{Path: "gridflow.db"},
		MQTT:        MQTTConfig{TopicPrefix: "gridflow", ClientID: "gridflow"},
		InfluxDB:    InfluxConfig{Measurement: "grid_hourly"},
		Logging:     LoggingConfig{Level: "info"},
	}
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	if c.Delimiter != "" {
		r, size := utf8.DecodeRuneInString(c.Delimiter)
		if size != len(c.Delimiter) || r == utf8.RuneError || r == '\n' || r == '\r' || r == '"' {
			return fmt.Errorf("delimiter must be a single character other than newline or quote, got %q", c.Delimiter)
		}
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}
	if c.Logging.Level != "" {
		if _, ok := logger.ParseLevel(c.Logging.Level); !ok {
			return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
		}
	}
	return nil
}

// GetInput returns the input path, falling back to measurements_coding_challenge.csv
func (c *Config) GetInput() string {
	if c.Input == "" {
		return "measurements_coding_challenge.csv"
	}
	return c.Input
}

// GetDelimiter returns the input separator rune
func (c *Config) GetDelimiter() rune {
	if c.Delimiter == "" {
		return ';'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// GetTimeLayouts returns configured layouts or the defaults
func (c *Config) GetTimeLayouts() []string {
	if len(c.TimeLayouts) == 0 {
		return DefaultTimeLayouts
	}
	return c.TimeLayouts
}

// GetCleanPath returns the cleaned measurements output path
func (c *Config) GetCleanPath() string {
	return c.outputPath(c.Outputs.Clean, "cleaned_measurements.csv")
}

// GetHourlyPath returns the hourly totals output path
func (c *Config) GetHourlyPath() string {
	return c.outputPath(c.Outputs.Hourly, "hourly_grid_totals_with_peak_flag.csv")
}

// GetSummaryPath returns the serial summary output path
func (c *Config) GetSummaryPath() string {
	return c.outputPath(c.Outputs.Summary, "summary_by_serial.csv")
}

// GetXLSXPath returns the workbook path, or "" when no workbook is wanted
func (c *Config) GetXLSXPath() string {
	if c.Outputs.XLSX == "" {
		return ""
	}
	return c.outputPath(c.Outputs.XLSX, "")
}

func (c *Config) outputPath(p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if c.Outputs.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Outputs.Dir, p)
}

// GetDatabasePath returns the SQLite snapshot path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "gridflow.db"
	}
	return c.Database.Path
}

// GetTopicPrefix returns the MQTT topic prefix
func (c *Config) GetTopicPrefix() string {
	if c.MQTT.TopicPrefix == "" {
		return "gridflow"
	}
	return c.MQTT.TopicPrefix
}

// GetMeasurement returns the InfluxDB measurement name
func (c *Config) GetMeasurement() string {
	if c.InfluxDB.Measurement == "" {
		return "grid_hourly"
	}
	return c.InfluxDB.Measurement
}

// GetLogLevel returns the configured log level
func (c *Config) GetLogLevel() string {
	if c.Logging.Level == "" {
		return "info"
	}
	return c.Logging.Level
}
