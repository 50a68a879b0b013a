package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"kpianalyzer/internal/resolver"
	"kpianalyzer/pkg/contracts/domain"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "KPI"

// DefaultConfigFile is read when KPI_CONFIG_FILE is unset and the file exists.
const DefaultConfigFile = "config/analyzer.yaml"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir   string `yaml:"data_dir" envconfig:"DATA_DIR"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
	LogsDir   string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
}

// TelemetryConfig controls metrics and tracing.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// RolesConfig pins column roles by exact name. Blank roles are resolved by keyword.
type RolesConfig struct {
	Entity    string   `yaml:"entity" envconfig:"ENTITY"`
	Segment   string   `yaml:"segment" envconfig:"SEGMENT"`
	Timestamp string   `yaml:"timestamp" envconfig:"TIMESTAMP"`
	KPIs      []string `yaml:"kpis" envconfig:"KPIS"`
}

// ThresholdConfig is one threshold rule as written in the config file.
type ThresholdConfig struct {
	KPI      string  `yaml:"kpi" json:"kpi" validate:"required"`
	Operator string  `yaml:"operator" json:"operator" validate:"required"`
	Limit    float64 `yaml:"limit" json:"limit"`
}

// AnalysisConfig carries everything a run needs besides the workbooks.
type AnalysisConfig struct {
	Roles                RolesConfig       `yaml:"roles" envconfig:"ROLES"`
	EntityKeyword        string            `yaml:"entity_keyword" envconfig:"ENTITY_KEYWORD"`
	SegmentKeyword       string            `yaml:"segment_keyword" envconfig:"SEGMENT_KEYWORD"`
	TimestampKeyword     string            `yaml:"timestamp_keyword" envconfig:"TIMESTAMP_KEYWORD"`
	StaticKPIs           []string          `yaml:"static_kpis" envconfig:"STATIC_KPIS"`
	Thresholds           []ThresholdConfig `yaml:"thresholds" ignored:"true"`
	RNAKPI               string            `yaml:"rna_kpi" envconfig:"RNA_KPI"`
	AvailabilitySynonyms []string          `yaml:"availability_synonyms" envconfig:"AVAILABILITY_SYNONYMS"`
	TrafficKPIs          []string          `yaml:"traffic_kpis" envconfig:"TRAFFIC_KPIS"`
	TrafficKeywords      []string          `yaml:"traffic_keywords" envconfig:"TRAFFIC_KEYWORDS"`
	OutputName           string            `yaml:"output_name" envconfig:"OUTPUT_NAME"`
}

// ResolverOptions turns the role settings into column resolver options.
func (a AnalysisConfig) ResolverOptions() resolver.Options {
	return resolver.Options{
		Entity:           a.Roles.Entity,
		Segment:          a.Roles.Segment,
		Timestamp:        a.Roles.Timestamp,
		KPIs:             a.Roles.KPIs,
		EntityKeyword:    a.EntityKeyword,
		SegmentKeyword:   a.SegmentKeyword,
		TimestampKeyword: a.TimestampKeyword,
		StaticKPIs:       a.StaticKPIs,
	}
}

// ThresholdRules parses the configured rules, keyed by KPI name. A KPI listed
// twice keeps its last rule.
func (a AnalysisConfig) ThresholdRules() (map[string]domain.ThresholdRule, error) {
	rules := make(map[string]domain.ThresholdRule, len(a.Thresholds))
	for i, t := range a.Thresholds {
		kpi := strings.TrimSpace(t.KPI)
		if kpi == "" {
			return nil, fmt.Errorf("threshold %d: kpi name is empty", i)
		}
		op, err := domain.ParseOperator(t.Operator)
		if err != nil {
			return nil, fmt.Errorf("threshold %q: %w", kpi, err)
		}
		rules[kpi] = domain.ThresholdRule{KPI: kpi, Operator: op, Limit: t.Limit}
	}
	return rules, nil
}

// RunConfig combines resolved column roles with the configured rules into a
// validated run configuration.
func (a AnalysisConfig) RunConfig(roles domain.ColumnRoles) (domain.RunConfig, error) {
	rules, err := a.ThresholdRules()
	if err != nil {
		return domain.RunConfig{}, err
	}
	cfg := domain.RunConfig{
		Roles:                roles,
		Thresholds:           rules,
		RNAKPI:               strings.TrimSpace(a.RNAKPI),
		AvailabilitySynonyms: a.AvailabilitySynonyms,
		TrafficKPIs:          a.TrafficKPIs,
		TrafficKeywords:      a.TrafficKeywords,
	}
	if err := cfg.Validate(); err != nil {
		return domain.RunConfig{}, err
	}
	return cfg, nil
}

// Load reads configuration from defaults, the config file and the environment,
// in increasing order of precedence. The config file is KPI_CONFIG_FILE when set,
// otherwise DefaultConfigFile when it exists.
func Load() (*Config, error) {
	loadDotEnv(".env")

	path := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if path == "" && FileExists(DefaultConfigFile) {
		path = DefaultConfigFile
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit config file. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags so only variables that are actually set
	// override the file.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads a .env file when present. Existing variables are kept.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file",
			slog.String("path", path),
			slog.String("error", err.Error()))
	}
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload size must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json":
		c.Logging.Format = "json"
	case "text":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		return fmt.Errorf("invalid log output: %q", c.Logging.Output)
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "kpianalyzer.log"
	}

	if _, err := c.Analysis.ThresholdRules(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if c.Analysis.OutputName == "" {
		c.Analysis.OutputName = DefaultOutputName
	}
	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			MaxUploadBytes:  64 << 20,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   10,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    "kpianalyzer.log",
			Development: false,
		},
		Paths: PathsConfig{
			DataDir:   "data",
			OutputDir: "data/output",
			LogsDir:   "logs",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			MetricsEnabled: true,
		},
		Analysis: AnalysisConfig{
			EntityKeyword:    resolver.DefaultEntityKeyword,
			SegmentKeyword:   resolver.DefaultSegmentKeyword,
			TimestampKeyword: resolver.DefaultTimestampKeyword,
			TrafficKeywords:  []string{"Traffic", "Erlang", "Data"},
			OutputName:       DefaultOutputName,
		},
	}
}
