package config

import "time"

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	// EnvConfigPath overrides the config path when set.
	EnvConfigPath = "TLDR_CONFIG"

	defaultPort       = 2335
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "mx_space"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
	defaultBadgerDir  = "data/tldr"

	StoreMySQL  = "mysql"
	StoreBadger = "badger"
	StoreMemory = "memory"
	StoreRedis  = "redis"

	defaultSchedulerInterval = 5 * time.Minute
	defaultSchedulerBatch    = 5
	defaultPollInterval      = 30 * time.Second
	defaultFastPathDelay     = 30 * time.Second
	defaultMaxRetries        = 3
	defaultBackoffBase       = 300 * time.Second

	defaultRateLimitRequests = 3
	defaultRateLimitWindow   = 60 * time.Second

	defaultSummarizeTimeout      = 30 * time.Second
	defaultRetrieveTimeout       = 20 * time.Second
	defaultTestConnectionTimeout = 15 * time.Second

	defaultActivityCap       = 50
	defaultActivityRetention = 24 * time.Hour
)
