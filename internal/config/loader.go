package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Ning0612/Sumkeeper/internal/domain"
)

// ConfigName is the base name searched for in the default paths
const ConfigName = "sumkeeper"

// EnvPrefix prefixes environment overrides, e.g. SUMKEEPER_SCAN_ALGORITHM
const EnvPrefix = "SUMKEEPER"

// DefaultConfigPaths returns the default paths to search for config files
func DefaultConfigPaths() []string {
	paths := []string{
		".",
		"./configs",
	}

	// Add user config directory
	if configDir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(configDir, "sumkeeper"))
	}

	// Add home directory
	if homeDir, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(homeDir, ".sumkeeper"))
	}

	return paths
}

// DefaultStateDir is where snapshots, the run lock and history live
func DefaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "sumkeeper")
	}
	return ".sumkeeper"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("scan.algorithm", string(domain.SHA256))
	v.SetDefault("scan.chunk_size", 8*1024)
	v.SetDefault("scan.max_size", 0)
	v.SetDefault("scan.exclude", []string{})

	v.SetDefault("storage.binary", true)
	v.SetDefault("storage.baseline_path", "")
	v.SetDefault("storage.state_dir", DefaultStateDir())

	v.SetDefault("report.format", "text")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 28)
	v.SetDefault("log.file.compress", false)

	v.SetDefault("schedule.interval", "0s")
	v.SetDefault("schedule.cron", "")
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads and parses a configuration file.
// If path is empty, default locations are searched for sumkeeper.yaml and
// built-in defaults are used when none exists.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		// Use specific file
		path = ExpandPath(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		v.SetConfigFile(path)
	} else {
		// Search default paths
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range DefaultConfigPaths() {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
		}
		// no config file: defaults and environment only
	}

	return decode(v)
}

// LoadFromString parses configuration from a YAML string
func LoadFromString(yamlContent string) (*Config, error) {
	v := newViper()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(strings.NewReader(yamlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	return decode(v)
}

// Default returns the built-in configuration with environment overrides
func Default() (*Config, error) {
	return decode(newViper())
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	cfg.Storage.StateDir = ExpandPath(cfg.Storage.StateDir)
	cfg.Storage.BaselinePath = ExpandPath(cfg.Storage.BaselinePath)

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
