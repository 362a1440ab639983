package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/Sumkeeper/internal/domain"
	"github.com/Ning0612/Sumkeeper/internal/logger"
	"github.com/Ning0612/Sumkeeper/internal/report"
	"github.com/Ning0612/Sumkeeper/internal/testutil"
)

func TestLoadFromString(t *testing.T) {
	yaml := `
scan:
  algorithm: MD5
  chunk_size: 4096
  exclude: [".git", "*.tmp"]
storage:
  binary: false
  state_dir: /var/lib/sumkeeper
report:
  format: json
log:
  level: debug
schedule:
  interval: 90m
`
	cfg, err := LoadFromString(yaml)
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.Algorithm() != domain.MD5 {
		t.Errorf("Algorithm() = %s", cfg.Algorithm())
	}
	if cfg.Scan.ChunkSize != 4096 {
		t.Errorf("ChunkSize = %d", cfg.Scan.ChunkSize)
	}
	if len(cfg.Scan.Exclude) != 2 || cfg.Scan.Exclude[1] != "*.tmp" {
		t.Errorf("Exclude = %v", cfg.Scan.Exclude)
	}
	if cfg.Storage.Binary {
		t.Error("Binary should be false")
	}
	if cfg.Storage.StateDir != "/var/lib/sumkeeper" {
		t.Errorf("StateDir = %s", cfg.Storage.StateDir)
	}
	if cfg.ReportFormat() != report.FormatJSON {
		t.Errorf("ReportFormat() = %s", cfg.ReportFormat())
	}
	if cfg.Schedule.Interval != 90*time.Minute {
		t.Errorf("Interval = %v", cfg.Schedule.Interval)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFromString("")
	if err != nil {
		t.Fatalf("LoadFromString failed: %v", err)
	}

	if cfg.Algorithm() != domain.SHA256 {
		t.Errorf("default algorithm = %s", cfg.Algorithm())
	}
	if cfg.Scan.ChunkSize != 8*1024 {
		t.Errorf("default chunk size = %d", cfg.Scan.ChunkSize)
	}
	if !cfg.Storage.Binary {
		t.Error("binary storage should default to true")
	}
	if cfg.ReportFormat() != report.FormatText {
		t.Errorf("default format = %s", cfg.ReportFormat())
	}
	if cfg.Storage.StateDir == "" {
		t.Error("state dir should have a default")
	}
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SUMKEEPER_SCAN_ALGORITHM", "sha1")
	t.Setenv("SUMKEEPER_STORAGE_BINARY", "false")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if cfg.Algorithm() != domain.SHA1 {
		t.Errorf("Algorithm() = %s, want sha1", cfg.Algorithm())
	}
	if cfg.Storage.Binary {
		t.Error("env should disable binary storage")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad algorithm", "scan:\n  algorithm: crc32"},
		{"zero chunk", "scan:\n  chunk_size: 0"},
		{"negative max size", "scan:\n  max_size: -1"},
		{"bad exclude", "scan:\n  exclude: ['[']"},
		{"bad format", "report:\n  format: xml"},
		{"bad log level", "log:\n  level: loud"},
		{"file log without path", "log:\n  file:\n    enabled: true"},
		{"both schedules", "schedule:\n  interval: 1h\n  cron: '0 * * * *'"},
		{"bad cron", "schedule:\n  cron: 'every day'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.yaml)
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := testutil.CreateTestFile(t, dir, "sumkeeper.yaml", []byte("scan:\n  algorithm: sha1\n"))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Algorithm() != domain.SHA1 {
		t.Errorf("Algorithm() = %s", cfg.Algorithm())
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := testutil.CreateTestFile(t, t.TempDir(), "bad.yaml", []byte("scan: [unclosed"))
	if _, err := Load(path); !errors.Is(err, domain.ErrConfigInvalid) {
		t.Fatalf("expected ErrConfigInvalid, got %v", err)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg, err := LoadFromString("log:\n  level: warn\n  format: json\n  file:\n    enabled: true\n    path: /tmp/sumkeeper.log\n")
	if err != nil {
		t.Fatal(err)
	}

	lc := cfg.LoggerConfig()
	if lc.Level != logger.LevelWarn || lc.Format != logger.FormatJSON {
		t.Errorf("level/format = %v/%v", lc.Level, lc.Format)
	}
	if !lc.File.Enabled || lc.File.Path != "/tmp/sumkeeper.log" {
		t.Errorf("file = %+v", lc.File)
	}
	if len(lc.Outputs) != 2 || lc.Outputs[1].Type != logger.OutputFile {
		t.Errorf("outputs = %+v", lc.Outputs)
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("SUMKEEPER_TEST_DIR", "/opt/data")
	if got := ExpandPath("$SUMKEEPER_TEST_DIR/x/../y"); got != "/opt/data/y" {
		t.Errorf("ExpandPath = %s", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q", got)
	}
}
