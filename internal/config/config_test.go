package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, SourceSQLite, cfg.History.Source)
	assert.Equal(t, 500, cfg.Batch.PageSize)
	assert.Equal(t, 4, cfg.Batch.Workers)
	assert.Equal(t, 90, cfg.Skill.DefaultLookbackDays)
	assert.Equal(t, 6, cfg.Skill.MinRuns)
	assert.Equal(t, 14.0, cfg.Classifier.LongRunMinKm)
	assert.Equal(t, 3.0, cfg.Calibrator.AbsoluteMinPace)
	assert.Equal(t, 250.0, cfg.Features.MaxHeartRate)

	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name: "valid remote",
			mutate: func(c *Config) {
				c.History = HistoryConfig{
					Source:       SourceRemote,
					BaseURL:      "https://history.test",
					TokenURL:     "https://history.test/token",
					ClientID:     "id",
					ClientSecret: "secret",
				}
			},
		},
		{
			name: "remote without base url",
			mutate: func(c *Config) {
				c.History.Source = SourceRemote
			},
			errContains: "history.base_url",
		},
		{
			name: "remote with placeholder client",
			mutate: func(c *Config) {
				c.History = HistoryConfig{Source: SourceRemote, BaseURL: "https://h", ClientID: "YOUR_CLIENT_ID"}
			},
			errContains: "history.client_id",
		},
		{
			name:        "unknown source",
			mutate:      func(c *Config) { c.History.Source = "kafka" },
			errContains: "history.source",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "verbose" },
			errContains: "log.level",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Log.Format = "xml" },
			errContains: "log.format",
		},
		{
			name:        "zero workers",
			mutate:      func(c *Config) { c.Batch.Workers = 0 },
			errContains: "batch.workers",
		},
		{
			name:        "inverted long run heart rate band",
			mutate:      func(c *Config) { c.Classifier.LongRunMinHRPct = 0.9 },
			errContains: "long_run_min_hr_pct",
		},
		{
			name:        "default lookback outside bounds",
			mutate:      func(c *Config) { c.Skill.DefaultLookbackDays = 365 },
			errContains: "default_lookback_days",
		},
		{
			name:        "cluster count",
			mutate:      func(c *Config) { c.Skill.Clusters = 3 },
			errContains: "skill.clusters",
		},
		{
			name:        "no age brackets",
			mutate:      func(c *Config) { c.Calibrator.AgeBrackets = nil },
			errContains: "age_brackets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, ErrNoConfig)

	path := filepath.Join(dir, "config.json")
	data := `{
		"server": {"addr": ":9090"},
		"batch": {"workers": 8},
		"classifier": {"long_run_min_km": 16},
		"skill": {"seed": 7}
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 8, cfg.Batch.Workers)
	assert.Equal(t, 500, cfg.Batch.PageSize)
	assert.Equal(t, 16.0, cfg.Classifier.LongRunMinKm)
	assert.Equal(t, 0.10, cfg.Classifier.LongRunMaxPaceCV)
	assert.Equal(t, uint64(7), cfg.Skill.Seed)
	assert.Equal(t, 90, cfg.Skill.DefaultLookbackDays)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))
	_, err = Load(path)
	assert.ErrorContains(t, err, "parsing config file")
}

func TestLoadFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"log": {"level": "debug"}}`), 0600))
	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestCreateExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, CreateExample(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "YOUR_CLIENT_ID", cfg.History.ClientID)
	assert.Equal(t, SourceSQLite, cfg.History.Source)

	// existing files are left alone
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"addr": ":1"}}`), 0600))
	require.NoError(t, CreateExample(path))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":1", cfg.Server.Addr)
}
