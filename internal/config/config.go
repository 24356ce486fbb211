// Package config loads and validates sidenote's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Config is the full configuration file.
type Config struct {
	App      AppConfig      `yaml:"app"`
	Window   WindowConfig   `yaml:"window"`
	UI       UIConfig       `yaml:"ui"`
	Database DatabaseConfig `yaml:"database"`
	Autosave AutosaveConfig `yaml:"autosave"`
	Backup   BackupConfig   `yaml:"backup"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// WindowConfig carries the shell's window geometry. sidenote only stores it.
type WindowConfig struct {
	DefaultWidth     int `yaml:"default_width"`
	DefaultHeight    int `yaml:"default_height"`
	EdgeTriggerWidth int `yaml:"edge_trigger_width"`
	PeekWidth        int `yaml:"peek_width"`
	HideDelayMS      int `yaml:"hide_delay_ms"`
}

type UIConfig struct {
	Theme    string `yaml:"theme"`
	Language string `yaml:"language"`
}

type DatabaseConfig struct {
	DataDir string `yaml:"data_dir"`
	DBName  string `yaml:"db_name"`
}

type AutosaveConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

type BackupConfig struct {
	Dir    string       `yaml:"dir"`
	Remote RemoteConfig `yaml:"remote"`
}

// RemoteConfig configures the optional S3-compatible off-site copy.
type RemoteConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyle       bool   `yaml:"path_style"`
	Prefix          string `yaml:"prefix"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

const (
	EnvDataDir  = "SIDENOTE_DATA_DIR"
	EnvLogLevel = "SIDENOTE_LOG_LEVEL"
)

// ─── Defaults ────────────────────────────────────────────────────────────────

// HomeDir returns ~/.sidenote.
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sidenote")
}

// DefaultPath returns ~/.sidenote/config.yaml.
func DefaultPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{Name: "sidenote", Version: "1.0.0"},
		Window: WindowConfig{
			DefaultWidth:     1200,
			DefaultHeight:    800,
			EdgeTriggerWidth: 5,
			PeekWidth:        300,
			HideDelayMS:      2000,
		},
		UI:       UIConfig{Theme: "auto", Language: "zh_CN"},
		Database: DatabaseConfig{DataDir: HomeDir(), DBName: "notes.db"},
		Autosave: AutosaveConfig{Enabled: true, Interval: 30 * time.Second},
		Backup:   BackupConfig{Dir: filepath.Join(HomeDir(), "backups")},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// ─── Load / Save ─────────────────────────────────────────────────────────────

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.Database.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// Save writes c to path as YAML, creating the directory if needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// DBPath returns the database file location.
func (c *Config) DBPath() string {
	return filepath.Join(c.Database.DataDir, c.Database.DBName)
}

// ─── Validation ──────────────────────────────────────────────────────────────

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "config: invalid configuration: " + strings.Join(e.Errors, "; ")
}

var (
	validThemes  = map[string]bool{"auto": true, "light": true, "dark": true}
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Window.DefaultWidth < 300 || c.Window.DefaultWidth > 4000 {
		add("window.default_width must be between 300 and 4000, got %d", c.Window.DefaultWidth)
	}
	if c.Window.DefaultHeight < 200 || c.Window.DefaultHeight > 3000 {
		add("window.default_height must be between 200 and 3000, got %d", c.Window.DefaultHeight)
	}
	if c.Window.EdgeTriggerWidth < 1 || c.Window.EdgeTriggerWidth > 50 {
		add("window.edge_trigger_width must be between 1 and 50, got %d", c.Window.EdgeTriggerWidth)
	}
	if c.Window.PeekWidth < 0 {
		add("window.peek_width must not be negative")
	}
	if c.Window.HideDelayMS < 0 {
		add("window.hide_delay_ms must not be negative")
	}
	if !validThemes[c.UI.Theme] {
		add("ui.theme must be auto, light or dark, got %q", c.UI.Theme)
	}
	if c.Database.DataDir == "" {
		add("database.data_dir is required")
	}
	if c.Database.DBName == "" || strings.ContainsAny(c.Database.DBName, `/\`) {
		add("database.db_name must be a plain file name, got %q", c.Database.DBName)
	}
	if c.Autosave.Interval < time.Second {
		add("autosave.interval must be at least 1s, got %s", c.Autosave.Interval)
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		add("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if !validFormats[c.Logging.Format] {
		add("logging.format must be text or json, got %q", c.Logging.Format)
	}
	r := c.Backup.Remote
	if r.Bucket == "" && (r.Endpoint != "" || r.AccessKeyID != "") {
		add("backup.remote.bucket is required when a remote is configured")
	}
	if (r.AccessKeyID == "") != (r.SecretAccessKey == "") {
		add("backup.remote access_key_id and secret_access_key must be set together")
	}

	if len(problems) > 0 {
		return &ValidationError{Errors: problems}
	}
	return nil
}
