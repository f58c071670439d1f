package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment variable, e.g. EVDASH_SERVER_PORT
const EnvPrefix = "EVDASH"

// Source kinds
const (
	SourceKindWorkbook = "xlsx"
	SourceKindSheets   = "gsheet"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Source     SourceConfig     `yaml:"source" envconfig:"SOURCE"`
	Estimation EstimationConfig `yaml:"estimation" envconfig:"ESTIMATION"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" split_words:"true"`
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

// Address returns host:port for the listener
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig contains CORS and rate limiting configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" split_words:"true"`
	EnableCORS     bool            `yaml:"enable_cors" split_words:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Format      string `yaml:"format" split_words:"true"`
	Output      string `yaml:"output" split_words:"true"`
	FilePath    string `yaml:"file_path" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// SourceConfig selects where rebate applications are read from
type SourceConfig struct {
	Kind            string        `yaml:"kind" split_words:"true"`
	Path            string        `yaml:"path" split_words:"true"`
	Sheet           string        `yaml:"sheet" split_words:"true"`
	SpreadsheetID   string        `yaml:"spreadsheet_id" split_words:"true"`
	CredentialsFile string        `yaml:"credentials_file" split_words:"true"`
	TTL             time.Duration `yaml:"ttl" split_words:"true"`
	// PollInterval is how often the server checks the source for new data.
	// Zero disables polling.
	PollInterval time.Duration `yaml:"poll_interval" split_words:"true"`
}

// EstimationConfig parameterises the scaled BEV estimate
type EstimationConfig struct {
	Category          string  `yaml:"category" split_words:"true"`
	ParticipationRate float64 `yaml:"participation_rate" split_words:"true"`
	TopN              int     `yaml:"top_n" split_words:"true"`
}

// TelemetryConfig selects trace and metric exporters
type TelemetryConfig struct {
	Environment    string  `yaml:"environment" split_words:"true"`
	TraceExporter  string  `yaml:"trace_exporter" split_words:"true"`
	MetricExporter string  `yaml:"metric_exporter" split_words:"true"`
	SampleRatio    float64 `yaml:"sample_ratio" split_words:"true"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" split_words:"true"`
	WriteBufferSize int           `yaml:"write_buffer_size" split_words:"true"`
	PingPeriod      time.Duration `yaml:"ping_period" split_words:"true"`
	PongWait        time.Duration `yaml:"pong_wait" split_words:"true"`
}

// Load builds the configuration in three layers: Default(), then the YAML
// file at path (or the first config file found when path is empty), then
// EVDASH_* environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg. Keys absent from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// findConfigFile returns EVDASH_CONFIG or the first existing default location
func findConfigFile() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG"); p != "" {
		return p
	}
	for _, location := range []string{"config.yaml", "configs/config.yaml"} {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Validate checks the configuration and normalises enumerations
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server read and write timeouts must be positive")
	}

	c.Source.Kind = strings.ToLower(c.Source.Kind)
	switch c.Source.Kind {
	case SourceKindWorkbook:
		if c.Source.Path == "" {
			return fmt.Errorf("source path is required for %s sources", SourceKindWorkbook)
		}
	case SourceKindSheets:
		if c.Source.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet id is required for %s sources", SourceKindSheets)
		}
	default:
		return fmt.Errorf("unsupported source kind: %q", c.Source.Kind)
	}
	if c.Source.Sheet == "" {
		return fmt.Errorf("source sheet name is required")
	}
	if c.Source.PollInterval < 0 {
		return fmt.Errorf("source poll interval must not be negative")
	}

	if c.Estimation.ParticipationRate <= 0 || c.Estimation.ParticipationRate > 1 {
		return fmt.Errorf("participation rate must be in (0, 1], got %v", c.Estimation.ParticipationRate)
	}
	if c.Estimation.TopN <= 0 {
		return fmt.Errorf("top n must be positive, got %d", c.Estimation.TopN)
	}
	if c.Estimation.Category == "" {
		return fmt.Errorf("estimation category is required")
	}

	if c.Security.RateLimit.Enabled && (c.Security.RateLimit.RPS <= 0 || c.Security.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit rps and burst must be positive when enabled")
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("unsupported logging output: %q", c.Logging.Output)
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging file path is required for output %q", c.Logging.Output)
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry sample ratio must be in [0, 1]")
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     50,
				Burst:   100,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/evdash.log",
		},
		Source: SourceConfig{
			Kind:         SourceKindWorkbook,
			Path:         "data/rebates.xlsx",
			Sheet:        "Data",
			TTL:          5 * time.Minute,
			PollInterval: 30 * time.Second,
		},
		Estimation: EstimationConfig{
			Category:          "BEV",
			ParticipationRate: 0.30,
			TopN:              10,
		},
		Telemetry: TelemetryConfig{
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
