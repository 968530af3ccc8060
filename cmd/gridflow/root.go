package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jgoulah/gridflow/internal/config"
	"github.com/jgoulah/gridflow/internal/database"
	"github.com/jgoulah/gridflow/internal/logger"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "gridflow",
	Short: "Clean smart meter readings and compute hourly grid totals",
	Long: `GridFlow reads semicolon-separated smart meter measurements, cleans them,
aggregates grid purchase and feed-in per (date, hour) with peak feed-in flags, and
totals each meter serial. Results are written as CSV and can be kept in a local
SQLite snapshot, exported to XLSX, or published to MQTT and InfluxDB.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = "info"
			// A broken config is reported by the command that needs it
			if cfg, err := config.Load(getConfigPath()); err == nil {
				level = cfg.GetLogLevel()
			}
		}
		if _, ok := logger.ParseLevel(level); !ok {
			return fmt.Errorf("unknown log level %q", level)
		}
		logger.Init(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file (default is ./gridflow.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config, else info)")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// getDBPath returns the database file path, preferring the flag over config
func getDBPath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.GetDatabasePath()
}

// loadConfig loads and validates the configuration file
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", getConfigPath(), err)
	}
	return cfg, nil
}

// saveConfig saves the configuration file
func saveConfig(cfg *config.Config) error {
	return config.Save(getConfigPath(), cfg)
}

// openDB opens the database connection
func openDB(cfg *config.Config) (*database.DB, error) {
	path := getDBPath(cfg)

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	return database.New(path)
}
