package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pacelab/internal/analysis"
)

// EnvPath names the environment variable that overrides the config file location.
const EnvPath = "PACELAB_CONFIG"

// History sources
const (
	SourceSQLite = "sqlite"
	SourceRemote = "remote"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig                  `json:"server"`
	Store      StoreConfig                   `json:"store"`
	History    HistoryConfig                 `json:"history"`
	Log        LogConfig                     `json:"log"`
	Batch      BatchConfig                   `json:"batch"`
	Features   analysis.SampleLimits         `json:"features"`
	Classifier analysis.ClassifierThresholds `json:"classifier"`
	Skill      analysis.SkillParams          `json:"skill"`
	Calibrator analysis.CalibratorParams     `json:"calibrator"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr string `json:"addr"`
}

// StoreConfig locates the SQLite database
type StoreConfig struct {
	Path string `json:"path"` // empty means ~/.pacelab/data.db
}

// HistoryConfig selects where activity history is read from
type HistoryConfig struct {
	Source            string   `json:"source"`
	BaseURL           string   `json:"base_url"`
	TokenURL          string   `json:"token_url"`
	ClientID          string   `json:"client_id"`
	ClientSecret      string   `json:"client_secret"`
	Scopes            []string `json:"scopes,omitempty"`
	RequestsPerSecond float64  `json:"requests_per_second"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// BatchConfig controls batch pagination and parallelism
type BatchConfig struct {
	PageSize int `json:"page_size"`
	Workers  int `json:"workers"`
}

// ErrNoConfig is returned when the config file doesn't exist
var ErrNoConfig = errors.New("config file not found")

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080"},
		History: HistoryConfig{
			Source:            SourceSQLite,
			RequestsPerSecond: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Batch: BatchConfig{
			PageSize: 500,
			Workers:  4,
		},
		Features:   analysis.DefaultSampleLimits(),
		Classifier: analysis.DefaultClassifierThresholds(),
		Skill:      analysis.DefaultSkillParams(),
		Calibrator: analysis.DefaultCalibratorParams(),
	}
}

// Load reads the configuration from path. An empty path resolves to
// $PACELAB_CONFIG, then ~/.pacelab/config.json. Values missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNoConfig
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to path
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CreateExample writes an example config file to path if none exists
func CreateExample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Config exists, don't overwrite
	}

	example := DefaultConfig()
	example.History.BaseURL = "https://history.example.com"
	example.History.TokenURL = "https://history.example.com/oauth/token"
	example.History.ClientID = "YOUR_CLIENT_ID"
	example.History.ClientSecret = "YOUR_CLIENT_SECRET"

	return Save(path, &example)
}

// Validate checks the config for unusable values
func (c *Config) Validate() error {
	switch c.History.Source {
	case SourceSQLite:
	case SourceRemote:
		if c.History.BaseURL == "" {
			return errors.New("history.base_url is required when history.source is \"remote\"")
		}
		if c.History.ClientID == "" || c.History.ClientID == "YOUR_CLIENT_ID" {
			return errors.New("history.client_id is required when history.source is \"remote\"")
		}
		if c.History.ClientSecret == "" || c.History.ClientSecret == "YOUR_CLIENT_SECRET" {
			return errors.New("history.client_secret is required when history.source is \"remote\"")
		}
		if c.History.TokenURL == "" {
			return errors.New("history.token_url is required when history.source is \"remote\"")
		}
	default:
		return fmt.Errorf("history.source must be %q or %q, got %q", SourceSQLite, SourceRemote, c.History.Source)
	}
	if c.History.RequestsPerSecond < 0 {
		return fmt.Errorf("history.requests_per_second must not be negative, got %v", c.History.RequestsPerSecond)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be \"json\" or \"text\", got %q", c.Log.Format)
	}

	if c.Batch.PageSize <= 0 {
		return fmt.Errorf("batch.page_size must be positive, got %d", c.Batch.PageSize)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be positive, got %d", c.Batch.Workers)
	}

	if c.Classifier.LongRunMinHRPct >= c.Classifier.LongRunMaxHRPct {
		return fmt.Errorf("classifier.long_run_min_hr_pct (%v) must be less than classifier.long_run_max_hr_pct (%v)",
			c.Classifier.LongRunMinHRPct, c.Classifier.LongRunMaxHRPct)
	}
	if c.Classifier.TempoMinHRPct >= c.Classifier.TempoMaxHRPct {
		return fmt.Errorf("classifier.tempo_min_hr_pct (%v) must be less than classifier.tempo_max_hr_pct (%v)",
			c.Classifier.TempoMinHRPct, c.Classifier.TempoMaxHRPct)
	}
	if c.Classifier.MaxValidPace <= 0 {
		return fmt.Errorf("classifier.max_valid_pace must be positive, got %v", c.Classifier.MaxValidPace)
	}

	s := c.Skill
	if s.MinLookbackDays <= 0 || s.MinLookbackDays > s.MaxLookbackDays {
		return fmt.Errorf("skill lookback bounds [%d, %d] are invalid", s.MinLookbackDays, s.MaxLookbackDays)
	}
	if s.DefaultLookbackDays < s.MinLookbackDays || s.DefaultLookbackDays > s.MaxLookbackDays {
		return fmt.Errorf("skill.default_lookback_days (%d) must be within [%d, %d]",
			s.DefaultLookbackDays, s.MinLookbackDays, s.MaxLookbackDays)
	}
	if s.Clusters != 4 {
		return fmt.Errorf("skill.clusters must be 4 to map onto the four tiers, got %d", s.Clusters)
	}
	if s.MaxIterations <= 0 {
		return fmt.Errorf("skill.max_iterations must be positive, got %d", s.MaxIterations)
	}

	cal := c.Calibrator
	if cal.WindowDays <= 0 {
		return fmt.Errorf("calibrator.window_days must be positive, got %d", cal.WindowDays)
	}
	if cal.MinRuns <= 0 {
		return fmt.Errorf("calibrator.min_runs must be positive, got %d", cal.MinRuns)
	}
	if len(cal.AgeBrackets) == 0 {
		return errors.New("calibrator.age_brackets must not be empty")
	}
	if cal.RiegelExponent <= 0 {
		return fmt.Errorf("calibrator.riegel_exponent must be positive, got %v", cal.RiegelExponent)
	}
	if cal.AbsoluteMinPace <= 0 {
		return fmt.Errorf("calibrator.absolute_min_pace must be positive, got %v", cal.AbsoluteMinPace)
	}

	return nil
}

// Path returns the config file location
func Path() (string, error) {
	if p := os.Getenv(EnvPath); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Dir returns the path to the config directory
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".pacelab"), nil
}
