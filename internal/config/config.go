package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // query timezones resolve without a system zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. PIT_SERVER_PORT
const EnvPrefix = "PIT"

// ErrInvalidConfig is returned when the merged configuration fails validation
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gte=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gte=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	// RequestTimeout bounds a single load or factor request
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// MaxCells caps dates x assets in one request
	MaxCells int `yaml:"max_cells" envconfig:"MAX_CELLS" validate:"gt=0"`
	// CORSOrigins lists allowed browser origins; empty allows any
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" validate:"required_unless=Output console"`
}

// TelemetryConfig selects the OpenTelemetry exporters
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// DataConfig describes the trading calendar and where each dataset's raw
// rows come from.
type DataConfig struct {
	// CalendarStart and CalendarEnd bound the weekday trading calendar
	CalendarStart string `yaml:"calendar_start" envconfig:"CALENDAR_START" validate:"required,datetime=2006-01-02"`
	CalendarEnd   string `yaml:"calendar_end" envconfig:"CALENDAR_END" validate:"required,datetime=2006-01-02"`
	// QueryTime is the HH:MM cutoff after which new rows apply the next day.
	// Empty disables the cutoff.
	QueryTime     string `yaml:"query_time" envconfig:"QUERY_TIME" validate:"omitempty,datetime=15:04"`
	QueryTimezone string `yaml:"query_timezone" envconfig:"QUERY_TIMEZONE" validate:"required"`
	// StorePath is the SQLite database used by "sqlite" sources
	StorePath string         `yaml:"store_path" envconfig:"STORE_PATH"`
	Sources   []SourceConfig `yaml:"sources" ignored:"true" validate:"dive"`
}

// SourceConfig binds a dataset to a file or the SQLite store
type SourceConfig struct {
	Dataset string `yaml:"dataset" validate:"required,oneof=EarningsCalendar BuybackAuthorizations CashDividends"`
	Kind    string `yaml:"kind" validate:"required,oneof=csv xlsx sqlite"`
	Path    string `yaml:"path" validate:"required_unless=Kind sqlite"`
	Sheet   string `yaml:"sheet"`
}

// Load builds the configuration from defaults, then the YAML file at path
// (if it exists), then PIT_* environment variables, and validates the result.
// An empty path searches the usual locations.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints and cross-field rules
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	start, end, err := c.Data.CalendarBounds()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: calendar ends %s before it starts %s",
			ErrInvalidConfig, c.Data.CalendarEnd, c.Data.CalendarStart)
	}
	if _, err := time.LoadLocation(c.Data.QueryTimezone); err != nil {
		return fmt.Errorf("%w: query timezone: %v", ErrInvalidConfig, err)
	}

	seen := make(map[string]bool, len(c.Data.Sources))
	for _, src := range c.Data.Sources {
		if seen[src.Dataset] {
			return fmt.Errorf("%w: dataset %s has more than one source", ErrInvalidConfig, src.Dataset)
		}
		seen[src.Dataset] = true
		if src.Kind == "sqlite" && c.Data.StorePath == "" {
			return fmt.Errorf("%w: %s reads the sqlite store but data.store_path is empty",
				ErrInvalidConfig, src.Dataset)
		}
	}
	return nil
}

// CalendarBounds parses the calendar start and end dates as UTC midnights
func (d DataConfig) CalendarBounds() (time.Time, time.Time, error) {
	start, err := time.Parse(time.DateOnly, d.CalendarStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("calendar start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, d.CalendarEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("calendar end: %w", err)
	}
	return start, end, nil
}

// getConfigFilePath returns the first config file found in the usual
// locations, or "" when there is none.
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  20 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
			MaxCells: 5_000_000,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/pitpipe.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "pitpipe",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
		Data: DataConfig{
			CalendarStart: "2014-01-01",
			CalendarEnd:   "2014-12-31",
			QueryTimezone: "UTC",
		},
	}
}
