// Package config loads greenreport settings from YAML, .env files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rshade/greenreport/internal/carbon"
	"github.com/rshade/greenreport/internal/engine/archive"
)

type constError string

func (e constError) Error() string { return string(e) }

// ErrInvalidConfig is returned by Validate.
const ErrInvalidConfig constError = "invalid configuration"

const (
	configFileName = "config.yaml"

	defaultHost          = "0.0.0.0"
	defaultPort          = 5002
	defaultModel         = "claude-3-haiku-20240307"
	defaultModelTimeout  = 60 * time.Second
	defaultMonths        = 3
	defaultMaxConns      = 4
	defaultMeasurement   = "sensor_data"
	defaultKafkaTopic    = "sensor-readings"
	defaultKafkaGroup    = "greenreport-ingest"
	defaultBatchSize     = 100
	defaultFlushInterval = 5 * time.Second
	maxPort              = 65535
)

// Config is the complete greenreport configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"   json:"server"`
	Model    ModelConfig    `yaml:"model"    json:"model"`
	Carbon   CarbonConfig   `yaml:"carbon"   json:"carbon"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Influx   InfluxConfig   `yaml:"influx"   json:"influx"`
	Kafka    KafkaConfig    `yaml:"kafka"    json:"kafka"`
	Archive  ArchiveConfig  `yaml:"archive"  json:"archive"`
	Logging  LoggingConfig  `yaml:"logging"  json:"logging"`

	configPath string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host        string        `yaml:"host"         json:"host"`
	Port        int           `yaml:"port"         json:"port"`
	CORSOrigins []string      `yaml:"cors_origins" json:"cors_origins"`
	Timeout     time.Duration `yaml:"timeout"      json:"timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ModelConfig configures the hosted language model.
type ModelConfig struct {
	Name    string        `yaml:"name"     json:"name"`
	BaseURL string        `yaml:"base_url" json:"base_url,omitempty"`
	APIKey  string        `yaml:"api_key"  json:"-"`
	Timeout time.Duration `yaml:"timeout"  json:"timeout"`
}

// CarbonConfig configures carbon accounting.
type CarbonConfig struct {
	// Factor is a registered factor name or a numeric kgCO2/kWh value.
	Factor        string  `yaml:"factor"         json:"factor"`
	Voltage       float64 `yaml:"voltage"        json:"voltage"`
	DefaultMonths int     `yaml:"default_months" json:"default_months"`
}

// DatabaseConfig configures the PostgreSQL aggregate store.
type DatabaseConfig struct {
	URL      string `yaml:"url"       json:"-"`
	MaxConns int32  `yaml:"max_conns" json:"max_conns"`
}

// InfluxConfig configures the raw reading store.
type InfluxConfig struct {
	URL         string `yaml:"url"         json:"url,omitempty"`
	Token       string `yaml:"token"       json:"-"`
	Org         string `yaml:"org"         json:"org,omitempty"`
	Bucket      string `yaml:"bucket"      json:"bucket,omitempty"`
	Measurement string `yaml:"measurement" json:"measurement"`
}

// Enabled reports whether enough is set to connect.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

// KafkaConfig configures sensor reading ingest.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"        json:"brokers"`
	Topic         string        `yaml:"topic"          json:"topic"`
	GroupID       string        `yaml:"group_id"       json:"group_id"`
	BatchSize     int           `yaml:"batch_size"     json:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

// ArchiveConfig configures the generated report archive.
type ArchiveConfig struct {
	Enabled   bool   `yaml:"enabled"   json:"enabled"`
	Directory string `yaml:"directory" json:"directory,omitempty"`
	// Retention accepts "72h", "30d" or a number of seconds.
	Retention string `yaml:"retention" json:"retention"`
}

// LoggingConfig configures the application logger.
type LoggingConfig struct {
	Level  string `yaml:"level"  json:"level"`
	Format string `yaml:"format" json:"format"`
	File   string `yaml:"file"   json:"file,omitempty"`
}

// Default returns the built-in configuration without consulting any file
// or the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        defaultHost,
			Port:        defaultPort,
			CORSOrigins: []string{"*"},
			Timeout:     2 * defaultModelTimeout,
		},
		Model: ModelConfig{
			Name:    defaultModel,
			Timeout: defaultModelTimeout,
		},
		Carbon: CarbonConfig{
			Factor:        carbon.DefaultFactorName,
			Voltage:       carbon.DefaultVoltage,
			DefaultMonths: defaultMonths,
		},
		Database: DatabaseConfig{MaxConns: defaultMaxConns},
		Influx:   InfluxConfig{Measurement: defaultMeasurement},
		Kafka: KafkaConfig{
			Topic:         defaultKafkaTopic,
			GroupID:       defaultKafkaGroup,
			BatchSize:     defaultBatchSize,
			FlushInterval: defaultFlushInterval,
		},
		Archive: ArchiveConfig{
			Enabled:   true,
			Retention: "30d",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// New returns the defaults overlaid with $GREENREPORT_HOME/config.yaml when
// it exists and then with the environment. A malformed file is ignored.
func New() *Config {
	cfg := Default()
	if dir, err := GetConfigDir(); err == nil {
		cfg.configPath = filepath.Join(dir, configFileName)
		_ = cfg.loadFile(cfg.configPath)
	}
	ApplyEnv(cfg, os.LookupEnv)
	return cfg
}

// Load reads path over the defaults and applies the environment. Unlike New
// a missing or malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.configPath = path
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	ApplyEnv(cfg, os.LookupEnv)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err = yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// Path returns the file the configuration was loaded from or will be saved to.
func (c *Config) Path() string {
	return c.configPath
}

// Save writes the configuration to its path, creating the directory.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config has no file path")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration as YAML to path.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Validate checks every section and joins all problems found.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		add("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout < 0 {
		add("server.timeout must not be negative")
	}
	if c.Model.Timeout <= 0 {
		add("model.timeout must be positive")
	}
	if _, err := carbon.ResolveFactor(carbon.DefaultFactorTable(), c.Carbon.Factor); err != nil {
		add("carbon.factor: %v", err)
	}
	if c.Carbon.Voltage <= 0 {
		add("carbon.voltage must be positive")
	}
	if c.Carbon.DefaultMonths <= 0 {
		add("carbon.default_months must be positive")
	}
	if c.Database.MaxConns < 0 {
		add("database.max_conns must not be negative")
	}
	if c.Kafka.BatchSize <= 0 {
		add("kafka.batch_size must be positive")
	}
	if c.Kafka.FlushInterval <= 0 {
		add("kafka.flush_interval must be positive")
	}
	if c.Archive.Retention != "" {
		if _, err := archive.ParseRetention(c.Archive.Retention); err != nil {
			add("archive.retention: %v", err)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console", "text":
	default:
		add("logging.format %q is not json or console", c.Logging.Format)
	}

	return errors.Join(errs...)
}

// RetentionPeriod returns the parsed archive retention, or the default when
// unset.
func (c *Config) RetentionPeriod() time.Duration {
	d, err := archive.ParseRetention(c.Archive.Retention)
	if err != nil {
		return archive.DefaultRetention
	}
	return d
}

// ArchiveDir returns the configured archive directory or the default under
// the config directory.
func (c *Config) ArchiveDir() (string, error) {
	if c.Archive.Directory != "" {
		return c.Archive.Directory, nil
	}
	return GetArchiveDir()
}
