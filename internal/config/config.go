package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/logger"
	"github.com/Ning0612/Sumkeeper/internal/report"
)

// Config represents the complete configuration for sumkeeper
type Config struct {
	Scan     ScanConfig     `mapstructure:"scan"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Report   ReportConfig   `mapstructure:"report"`
	Log      LogConfig      `mapstructure:"log"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

// ScanConfig controls discovery and hashing
type ScanConfig struct {
	Algorithm string   `mapstructure:"algorithm"`
	ChunkSize int      `mapstructure:"chunk_size"`
	MaxSize   int64    `mapstructure:"max_size"`
	Exclude   []string `mapstructure:"exclude"`
}

// StorageConfig controls where baselines and snapshots live
type StorageConfig struct {
	// Binary selects MessagePack over indented JSON
	Binary       bool   `mapstructure:"binary"`
	BaselinePath string `mapstructure:"baseline_path"`
	StateDir     string `mapstructure:"state_dir"`
}

// ReportConfig selects the report format
type ReportConfig struct {
	Format string `mapstructure:"format"`
}

// LogConfig 日誌設定
type LogConfig struct {
	Level  string        `mapstructure:"level"`
	Format string        `mapstructure:"format"`
	File   LogFileConfig `mapstructure:"file"`
}

// LogFileConfig 檔案輸出設定 (lumberjack)
type LogFileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ScheduleConfig drives periodic verification; set at most one field
type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Cron     string        `mapstructure:"cron"`
}

// Validate checks if the configuration is complete and consistent
func (c *Config) Validate() error {
	if _, err := domain.ParseAlgorithm(c.Scan.Algorithm); err != nil {
		return fmt.Errorf("%w: scan.algorithm: %v", domain.ErrConfigInvalid, err)
	}
	if c.Scan.ChunkSize <= 0 {
		return fmt.Errorf("%w: scan.chunk_size must be positive, got %d", domain.ErrConfigInvalid, c.Scan.ChunkSize)
	}
	if c.Scan.MaxSize < 0 {
		return fmt.Errorf("%w: scan.max_size cannot be negative", domain.ErrConfigInvalid)
	}
	for _, pattern := range c.Scan.Exclude {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("%w: scan.exclude pattern %q: %v", domain.ErrConfigInvalid, pattern, err)
		}
	}

	if c.Storage.StateDir == "" {
		return fmt.Errorf("%w: storage.state_dir cannot be empty", domain.ErrConfigInvalid)
	}

	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return fmt.Errorf("%w: report.format: %v", domain.ErrConfigInvalid, err)
	}

	if !logger.IsValidLevel(c.Log.Level) {
		return fmt.Errorf("%w: log.level %q", domain.ErrConfigInvalid, c.Log.Level)
	}
	if !logger.IsValidFormat(c.Log.Format) {
		return fmt.Errorf("%w: log.format %q", domain.ErrConfigInvalid, c.Log.Format)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path required when file logging is enabled", domain.ErrConfigInvalid)
	}

	if c.Schedule.Interval < 0 {
		return fmt.Errorf("%w: schedule.interval cannot be negative", domain.ErrConfigInvalid)
	}
	if c.Schedule.Interval > 0 && c.Schedule.Cron != "" {
		return fmt.Errorf("%w: schedule.interval and schedule.cron are mutually exclusive", domain.ErrConfigInvalid)
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: schedule.cron: %v", domain.ErrConfigInvalid, err)
		}
	}

	return nil
}

// Algorithm returns the validated scan algorithm
func (c *Config) Algorithm() domain.Algorithm {
	algo, _ := domain.ParseAlgorithm(c.Scan.Algorithm)
	return algo
}

// ReportFormat returns the validated report format
func (c *Config) ReportFormat() report.Format {
	f, _ := report.ParseFormat(c.Report.Format)
	return f
}

// LoggerConfig converts the log section for logger.Init
func (c *Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.ParseLevel(c.Log.Level)
	cfg.Format = logger.ParseFormat(c.Log.Format)

	if c.Log.File.Enabled {
		cfg.File = logger.FileConfig{
			Enabled:    true,
			Path:       ExpandPath(c.Log.File.Path),
			MaxSizeMB:  c.Log.File.MaxSizeMB,
			MaxAgeDays: c.Log.File.MaxAgeDays,
			MaxBackups: c.Log.File.MaxBackups,
			Compress:   c.Log.File.Compress,
		}
		cfg.Outputs = append(cfg.Outputs, logger.OutputConfig{Type: logger.OutputFile})
	}
	return cfg
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	// Expand ~ to home directory
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) > 1 && (path[1] == '/' || path[1] == filepath.Separator) {
				path = filepath.Join(home, path[2:])
			} else if len(path) == 1 {
				path = home
			}
		}
	}
	// Expand environment variables
	path = os.ExpandEnv(path)
	return filepath.Clean(path)
}
