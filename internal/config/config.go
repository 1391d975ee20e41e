package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"-"`
	RedisURL       string                `yaml:"-"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	SummaryStore   string                `yaml:"summary_store"` // mysql | badger | memory
	QueueStore     string                `yaml:"queue_store"`   // redis | memory
	BadgerDir      string                `yaml:"badger_dir"`
	LogDir         string                `yaml:"log_dir"`
	Scheduler      SchedulerConfig       `yaml:"scheduler"`
	RateLimit      RateLimitConfig       `yaml:"rate_limit"`
	Timeouts       TimeoutConfig         `yaml:"timeouts"`
	Activity       ActivityConfig        `yaml:"activity"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// SchedulerConfig tunes the background regeneration loop.
type SchedulerConfig struct {
	Interval      time.Duration `yaml:"interval"`
	BatchSize     int           `yaml:"batch_size"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	FastPathDelay time.Duration `yaml:"fast_path_delay"`
	MaxRetries    int           `yaml:"max_retries"`
	BackoffBase   time.Duration `yaml:"backoff_base"`
	Disabled      bool          `yaml:"disabled"`
}

// RateLimitConfig bounds interactive generation per actor.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type TimeoutConfig struct {
	Summarize      time.Duration `yaml:"summarize"`
	Retrieve       time.Duration `yaml:"retrieve"`
	TestConnection time.Duration `yaml:"test_connection"`
}

type ActivityConfig struct {
	Cap       int           `yaml:"cap"`
	Retention time.Duration `yaml:"retention"`
}

// IsDev reports whether the process runs in development mode.
func (c *AppConfig) IsDev() bool { return c.Env == defaultEnv }

// ResolvePath picks the config path from the flag value, then TLDR_CONFIG, then the default.
func ResolvePath(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(EnvConfigPath)); v != "" {
		return v
	}
	return DefaultConfigPath
}

// Load reads the YAML file at configPath. A missing file yields the defaults.
func Load(configPath string) (*AppConfig, error) {
	path := ResolvePath(configPath)

	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := Default()
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}
	return Parse(content)
}

// Parse decodes YAML content on top of the defaults.
func Parse(content []byte) (*AppConfig, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	normalize(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseRuntimeConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		SummaryStore: StoreMySQL,
		QueueStore:   StoreRedis,
		BadgerDir:    defaultBadgerDir,
	}
	normalize(&cfg)
	return cfg
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.SummaryStore {
	case StoreMySQL, StoreBadger, StoreMemory:
	default:
		return fmt.Errorf("invalid summary_store %q, expected mysql | badger | memory", c.SummaryStore)
	}
	switch c.QueueStore {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("invalid queue_store %q, expected redis | memory", c.QueueStore)
	}
	return nil
}

// NeedsRedis reports whether any component is backed by Redis.
func (c *AppConfig) NeedsRedis() bool { return c.QueueStore == StoreRedis }
