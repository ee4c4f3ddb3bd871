package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/openskulk/skulk/pkg/types"
)

// Config holds all runtime configuration, loaded from the environment with an
// optional .env overlay.
type Config struct {
	// Database
	DBURL         string
	DBMinPoolSize int
	DBMaxPoolSize int

	// Coordination cache
	RedisURL string

	// HTTP API
	AppHost string
	AppPort int

	// AppWorker is the deployment's intended worker count. Worker
	// parallelism is one process per worker, each registering its own
	// per-worker tasks; no component scales on this value in-process.
	AppWorker int

	// Scheduler intervals
	CrawlInterval           time.Duration
	ValidateInterval        time.Duration
	ValidateSuccessInterval time.Duration
	CleanupInterval         time.Duration
	UpdateCountryInterval   time.Duration

	// Limits
	MaxFailCount            int
	ValidateBatchLimit      int
	StaleDays               int
	MaxConcurrentSpiders    int
	MaxConcurrentValidators int

	// Validator
	ValidatorTestURL   string
	ValidatorTestURLCN string
	ValidatorTimeout   time.Duration

	// Quality-score weights; must sum to 1.0
	Weights types.QualityWeights

	// Logging
	LogLevel string
	LogJSON  bool
}

// Load reads configuration from the environment. A .env file in the working
// directory, when present, seeds variables that are not already set.
func Load() (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		DBURL:         getString("DB_URL", "postgres://localhost:5432/skulk?sslmode=disable"),
		DBMinPoolSize: getInt("DB_MIN_POOL_SIZE", 2),
		DBMaxPoolSize: getInt("DB_MAX_POOL_SIZE", 10),

		RedisURL: getString("REDIS_URL", "redis://localhost:6379/0"),

		AppHost:   getString("APP_HOST", "0.0.0.0"),
		AppPort:   getInt("APP_PORT", 8000),
		AppWorker: getInt("APP_WORKER", 1),

		CrawlInterval:           getSeconds("CRAWL_INTERVAL", 3600),
		ValidateInterval:        getSeconds("VALIDATE_INTERVAL", 20),
		ValidateSuccessInterval: getSeconds("VALIDATE_SUCCESS_INTERVAL", 60),
		CleanupInterval:         getSeconds("CLEANUP_INTERVAL", 1200),
		UpdateCountryInterval:   getSeconds("UPDATE_COUNTRY_INTERVAL", 600),

		MaxFailCount:            getInt("MAX_FAIL_COUNT", 3),
		ValidateBatchLimit:      getInt("VALIDATE_BATCH_LIMIT", 300),
		StaleDays:               getInt("STALE_DAYS", 7),
		MaxConcurrentSpiders:    getInt("MAX_CONCURRENT_SPIDERS", 5),
		MaxConcurrentValidators: getInt("MAX_CONCURRENT_VALIDATORS", 50),

		ValidatorTestURL:   getString("VALIDATOR_TEST_URL", "http://cp.cloudflare.com/generate_204"),
		ValidatorTestURLCN: getString("VALIDATOR_TEST_URL_CN", "http://connect.rom.miui.com/generate_204"),
		ValidatorTimeout:   getSeconds("VALIDATOR_TIMEOUT", 25),

		Weights: types.QualityWeights{
			SuccessRate: getFloat("WEIGHT_SUCCESS_RATE", 0.4),
			Speed:       getFloat("WEIGHT_SPEED", 0.3),
			Stability:   getFloat("WEIGHT_STABILITY", 0.3),
		},

		LogLevel: getString("LOG_LEVEL", "info"),
		LogJSON:  getBool("LOG_JSON", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("DB_URL must not be empty")
	}
	if c.DBMinPoolSize < 1 || c.DBMaxPoolSize < c.DBMinPoolSize {
		return fmt.Errorf("invalid pool sizes: min=%d max=%d", c.DBMinPoolSize, c.DBMaxPoolSize)
	}
	if c.AppPort < 1 || c.AppPort > 65535 {
		return fmt.Errorf("APP_PORT %d out of range", c.AppPort)
	}
	if c.MaxFailCount < 1 {
		return fmt.Errorf("MAX_FAIL_COUNT must be at least 1")
	}
	if c.MaxConcurrentSpiders < 1 || c.MaxConcurrentValidators < 1 {
		return fmt.Errorf("concurrency caps must be at least 1")
	}
	sum := c.Weights.SuccessRate + c.Weights.Speed + c.Weights.Stability
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("quality weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

// Addr returns the host:port the HTTP API binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.AppHost, c.AppPort)
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getSeconds(key string, def int) time.Duration {
	return time.Duration(getInt(key, def)) * time.Second
}
