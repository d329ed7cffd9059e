package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"bookbite/internal/engine"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Policy     PolicyConfig     `yaml:"policy"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Notify     NotifyConfig     `yaml:"notifications"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// Timezone is the restaurants' wall clock; "today" and same-day cutoffs use it.
	Timezone string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Path   string       `yaml:"path"`
	Backup BackupConfig `yaml:"backup"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type RedisConfig struct {
	Address     string        `yaml:"address"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	SnapshotTTL time.Duration `yaml:"snapshot_ttl"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// APIGRPCConfig serves the availability queries over gRPC.
type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// PolicyConfig overrides the booking engine's business constants.
type PolicyConfig struct {
	SlotStepMinutes    int `yaml:"slot_step_minutes"`
	MinDurationMinutes int `yaml:"min_duration_minutes"`
	MaxDurationMinutes int `yaml:"max_duration_minutes"`
	// nil means the default grace; 0 disables the same-day cutoff margin
	SameDayGraceMinutes *int             `yaml:"same_day_grace_minutes"`
	DefaultOpening      string           `yaml:"default_opening"`
	DefaultClosing      string           `yaml:"default_closing"`
	Fees                []engine.FeeTier `yaml:"fees"`
}

type CatalogConfig struct {
	Path string `yaml:"path"`
	// Seed loads the catalog file into the database on startup.
	Seed bool `yaml:"seed"`
}

// NotifyConfig drives the reservation notification worker.
type NotifyConfig struct {
	Enabled       bool          `yaml:"enabled"`
	QueueKey      string        `yaml:"queue_key"`
	DeadLetterKey string        `yaml:"dead_letter_key"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// PathFromEnv returns CONFIG_PATH or the default location.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv("CONFIG_PATH")); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.API.Auth.Enabled {
		if err := ValidateAPIKeys(c.API.Auth.APIKeys); err != nil {
			return err
		}
	}
	if _, err := c.ToPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	return nil
}

func ValidateAPIKeys(keys []APIClientKey) error {
	seen := make(map[string]bool)
	for _, k := range keys {
		if k.Key == "" {
			return fmt.Errorf("api key '%s' is empty", k.Name)
		}
		if seen[k.Key] {
			return fmt.Errorf("duplicate api key for client '%s'", k.Name)
		}
		seen[k.Key] = true
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.App.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("app timezone %q: %w", c.App.Timezone, err)
	}
	return loc, nil
}

// ToPolicy builds the engine policy, filling unset values from the engine defaults.
func (c *Config) ToPolicy() (engine.Policy, error) {
	p := engine.DefaultPolicy()
	pc := c.Policy

	if pc.SlotStepMinutes != 0 {
		p.SlotStepMinutes = pc.SlotStepMinutes
	}
	if pc.MinDurationMinutes != 0 {
		p.MinDurationMinutes = pc.MinDurationMinutes
	}
	if pc.MaxDurationMinutes != 0 {
		p.MaxDurationMinutes = pc.MaxDurationMinutes
	}
	if pc.SameDayGraceMinutes != nil {
		p.SameDayGraceMinutes = *pc.SameDayGraceMinutes
	}
	if pc.DefaultOpening != "" || pc.DefaultClosing != "" {
		opening, err := engine.ParseTime(pc.DefaultOpening)
		if err != nil {
			return p, fmt.Errorf("default_opening: %w", err)
		}
		closing, err := engine.ParseTime(pc.DefaultClosing)
		if err != nil {
			return p, fmt.Errorf("default_closing: %w", err)
		}
		p.DefaultHours = engine.Hours{Opening: opening, Closing: closing}
	}
	if len(pc.Fees) > 0 {
		p.Fees = append(engine.FeeSchedule(nil), pc.Fees...)
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "bookbite"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 20
	}
	if c.Database.Backup.Interval == 0 {
		c.Database.Backup.Interval = 24 * time.Hour
	}
	if c.Database.Backup.StoragePath == "" {
		c.Database.Backup.StoragePath = "backups"
	}
	if c.Redis.SnapshotTTL == 0 {
		c.Redis.SnapshotTTL = 5 * time.Minute
	}
	if c.Notify.QueueKey == "" {
		c.Notify.QueueKey = "bookbite:notify:queue"
	}
	if c.Notify.DeadLetterKey == "" {
		c.Notify.DeadLetterKey = "bookbite:notify:deadletter"
	}
}
