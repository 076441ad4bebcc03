package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"
)

// SourceConfig describes one raw extraction payload: a JSON file on disk
// or an HTTP(S) endpoint serving the same JSON.
type SourceConfig struct {
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
	// Name is stamped on events as their source file.
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Label is the name stamped on events from this source.
func (s SourceConfig) Label() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Path != "":
		return filepath.Base(s.Path)
	case s.ID != "":
		return s.ID
	default:
		return s.URL
	}
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type NormalizeConfig struct {
	// PastRolloverDays moves a year-less slash date to next year when it is
	// further than this in the past.
	PastRolloverDays int `yaml:"past_rollover_days" json:"past_rollover_days"`
	MaxTitleLength   int `yaml:"max_title_length" json:"max_title_length"`
}

type InferenceConfig struct {
	Enabled        bool `yaml:"enabled" json:"enabled"`
	MinSessions    int  `yaml:"min_sessions" json:"min_sessions"`
	MinWeekdayHits int  `yaml:"min_weekday_hits" json:"min_weekday_hits"`
}

type RecurrenceConfig struct {
	MinOccurrences int `yaml:"min_occurrences" json:"min_occurrences"`
	PeriodDays     int `yaml:"period_days" json:"period_days"`
	DriftDays      int `yaml:"drift_days" json:"drift_days"`
}

type ExportConfig struct {
	Filename string `yaml:"filename" json:"filename"`
	// DefaultStart is the HH:MM used for events without a start time.
	DefaultStart           string `yaml:"default_start" json:"default_start"`
	DefaultDurationMinutes int    `yaml:"default_duration_minutes" json:"default_duration_minutes"`
	ProductID              string `yaml:"product_id" json:"product_id"`
	CalendarName           string `yaml:"calendar_name" json:"calendar_name"`
}

// DefaultDuration returns the configured fallback event length.
func (e ExportConfig) DefaultDuration() time.Duration {
	return time.Duration(e.DefaultDurationMinutes) * time.Minute
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen" env:"SYLLABUSCAL_LISTEN"`

	// Timezone is the IANA zone in which dates and wall-clock times are
	// interpreted (e.g. "America/New_York").
	Timezone string `yaml:"timezone" json:"timezone" env:"SYLLABUSCAL_TIMEZONE"`

	LogLevel string `yaml:"log_level" json:"log_level" env:"SYLLABUSCAL_LOG_LEVEL"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to rebuild the feed from Sources.
	RefreshCron string `yaml:"refresh" json:"refresh" env:"SYLLABUSCAL_REFRESH"`

	// CacheDir holds HTTP cache entries for URL sources.
	CacheDir string `yaml:"cache_dir" json:"cache_dir" env:"SYLLABUSCAL_CACHE_DIR"`

	// MaxConcurrent bounds how many sources are processed at once.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent" env:"SYLLABUSCAL_MAX_CONCURRENT"`

	Normalization NormalizeConfig  `yaml:"normalize" json:"normalize"`
	Inference     InferenceConfig  `yaml:"inference" json:"inference"`
	Recurrence    RecurrenceConfig `yaml:"recurrence" json:"recurrence"`
	Export        ExportConfig     `yaml:"export" json:"export"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:        "127.0.0.1:8080",
		Timezone:      "UTC",
		LogLevel:      "info",
		RefreshCron:   "*/15 * * * *",
		CacheDir:      "./var/source-cache",
		MaxConcurrent: 4,
		Normalization: NormalizeConfig{
			PastRolloverDays: 30,
			MaxTitleLength:   120,
		},
		Inference: InferenceConfig{
			Enabled:        true,
			MinSessions:    3,
			MinWeekdayHits: 2,
		},
		Recurrence: RecurrenceConfig{
			MinOccurrences: 3,
			PeriodDays:     7,
			DriftDays:      1,
		},
		Export: ExportConfig{
			Filename:               "syllabus-events.ics",
			DefaultStart:           "09:00",
			DefaultDurationMinutes: 60,
			ProductID:              "-//syllabuscal//Syllabus Calendar//EN",
			CalendarName:           "Syllabus",
		},
		Sources:   []SourceConfig{},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}

	if c.Normalization.PastRolloverDays <= 0 {
		c.Normalization.PastRolloverDays = d.Normalization.PastRolloverDays
	}
	if c.Normalization.MaxTitleLength <= 0 {
		c.Normalization.MaxTitleLength = d.Normalization.MaxTitleLength
	}

	if c.Inference.MinSessions <= 0 {
		c.Inference.MinSessions = d.Inference.MinSessions
	}
	if c.Inference.MinWeekdayHits <= 0 {
		c.Inference.MinWeekdayHits = d.Inference.MinWeekdayHits
	}

	if c.Recurrence.MinOccurrences <= 0 {
		c.Recurrence.MinOccurrences = d.Recurrence.MinOccurrences
	}
	if c.Recurrence.PeriodDays <= 0 {
		c.Recurrence.PeriodDays = d.Recurrence.PeriodDays
	}
	// Zero drift is meaningful (exact spacing only).
	if c.Recurrence.DriftDays < 0 {
		c.Recurrence.DriftDays = d.Recurrence.DriftDays
	}

	if c.Export.Filename == "" {
		c.Export.Filename = d.Export.Filename
	}
	if c.Export.DefaultStart == "" {
		c.Export.DefaultStart = d.Export.DefaultStart
	}
	if c.Export.DefaultDurationMinutes <= 0 {
		c.Export.DefaultDurationMinutes = d.Export.DefaultDurationMinutes
	}
	if c.Export.ProductID == "" {
		c.Export.ProductID = d.Export.ProductID
	}

	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ApplyEnv overrides top-level fields from SYLLABUSCAL_* environment
// variables.
func (c *Config) ApplyEnv() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("config: env: %w", err)
	}
	c.Normalize()
	return nil
}

// Load loads configuration from the given YAML path, then applies
// environment overrides.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadOrDefault is Load without the first-run write: a missing file yields
// the in-memory defaults plus environment overrides.
func LoadOrDefault(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, writeDefault bool) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if writeDefault {
				// First run: create default config file.
				if err := Save(path, cfg); err != nil {
					// Even if save fails, return cfg with error so caller can decide.
					return cfg, err
				}
			}
			return cfg, cfg.ApplyEnv()
		}
		return nil, err
	}

	cfg := DefaultConfig()
	// Inference.Enabled defaults to true; decoding over the defaults keeps
	// it when the key is absent.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The write goes through a temp file in the same directory and a rename,
// and the final file is 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".syllabuscal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
