package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceKindWorkbook, cfg.Source.Kind)
	assert.Equal(t, "Data", cfg.Source.Sheet)
	assert.Equal(t, "BEV", cfg.Estimation.Category)
	assert.InDelta(t, 0.30, cfg.Estimation.ParticipationRate, 1e-9)
	assert.Equal(t, 10, cfg.Estimation.TopN)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 5s
source:
  path: /srv/rebates.xlsx
estimation:
  top_n: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "keys absent from the file keep defaults")
	assert.Equal(t, "/srv/rebates.xlsx", cfg.Source.Path)
	assert.Equal(t, 5, cfg.Estimation.TopN)
	assert.Equal(t, "BEV", cfg.Estimation.Category)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9090
source:
  path: /srv/rebates.xlsx
`)
	t.Setenv("EVDASH_SERVER_PORT", "7070")
	t.Setenv("EVDASH_ESTIMATION_PARTICIPATION_RATE", "0.25")
	t.Setenv("EVDASH_SECURITY_ALLOWED_ORIGINS", "http://a.example,http://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.InDelta(t, 0.25, cfg.Estimation.ParticipationRate, 1e-9)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Security.AllowedOrigins)
	assert.Equal(t, "/srv/rebates.xlsx", cfg.Source.Path)
}

func TestLoad_SheetsSource(t *testing.T) {
	t.Setenv("EVDASH_SOURCE_KIND", "GSHEET")
	t.Setenv("EVDASH_SOURCE_SPREADSHEET_ID", "sheet-123")
	t.Setenv("EVDASH_SOURCE_TTL", "90s")

	cfg, err := Load(writeConfigFile(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, SourceKindSheets, cfg.Source.Kind)
	assert.Equal(t, "sheet-123", cfg.Source.SpreadsheetID)
	assert.Equal(t, 90*time.Second, cfg.Source.TTL)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Load(writeConfigFile(t, "server: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("EVDASH_SERVER_PORT", "not-a-port")
		_, err := Load(writeConfigFile(t, "{}"))
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"unknown source kind", func(c *Config) { c.Source.Kind = "csv" }, "unsupported source kind"},
		{"workbook without path", func(c *Config) { c.Source.Path = "" }, "source path is required"},
		{"sheets without id", func(c *Config) { c.Source.Kind = SourceKindSheets }, "spreadsheet id is required"},
		{"empty sheet", func(c *Config) { c.Source.Sheet = "" }, "sheet name is required"},
		{"negative poll interval", func(c *Config) { c.Source.PollInterval = -time.Second }, "poll interval"},
		{"zero rate", func(c *Config) { c.Estimation.ParticipationRate = 0 }, "participation rate"},
		{"rate above one", func(c *Config) { c.Estimation.ParticipationRate = 1.5 }, "participation rate"},
		{"zero top n", func(c *Config) { c.Estimation.TopN = 0 }, "top n must be positive"},
		{"rate limit without burst", func(c *Config) { c.Security.RateLimit.Burst = 0 }, "rate limit"},
		{"file logging without path", func(c *Config) {
			c.Logging.Output = "file"
			c.Logging.FilePath = ""
		}, "logging file path"},
		{"bad sample ratio", func(c *Config) { c.Telemetry.SampleRatio = 2 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", ServerConfig{Host: "127.0.0.1", Port: 8080}.Address())
	assert.Equal(t, ":9000", ServerConfig{Port: 9000}.Address())
}
