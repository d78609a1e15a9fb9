package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Environment variables set
// infrastructure knobs; the optional YAML file carries the lists that are
// unwieldy as env vars (symbols, holidays, indicator selection).
type Config struct {
	// Storage
	SQLitePath  string
	CacheDBPath string

	// Redis cache tier (optional)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Observability
	MetricsAddr string
	LogLevel    string

	// Cache service
	CacheMemoryTTL  time.Duration
	CachePersistTTL time.Duration
	CacheSweepEvery time.Duration
	CacheMaxItems   int

	// Daily batch
	BatchTime        string // "17:30", local time of the daily run
	BatchConcurrency int

	// Universe, from the YAML file
	Symbols    []string `yaml:"symbols"`
	Indicators []string `yaml:"indicators"`
	Holidays   []string `yaml:"holidays"`
}

// Load reads configuration from environment variables with sensible
// defaults, then overlays the YAML file named by CONFIG_FILE if set.
func Load() *Config {
	cfg := &Config{
		SQLitePath:  getEnv("SQLITE_PATH", "data/stockdb.db"),
		CacheDBPath: getEnv("CACHE_DB_PATH", "data/indcache.db"),

		RedisEnabled:  getBool("REDIS_ENABLED", false),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getInt("REDIS_DB", 0),

		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CacheMemoryTTL:  getDuration("CACHE_MEMORY_TTL", time.Hour),
		CachePersistTTL: getDuration("CACHE_PERSIST_TTL", 24*time.Hour),
		CacheSweepEvery: getDuration("CACHE_SWEEP_INTERVAL", 10*time.Minute),
		CacheMaxItems:   getInt("CACHE_MAX_ITEMS", 1000),

		BatchTime:        getEnv("BATCH_TIME", "17:30"),
		BatchConcurrency: getInt("BATCH_CONCURRENCY", 4),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			log.Fatalf("[config] %v", err)
		}
	}
	return cfg
}

// loadFile overlays the symbol/indicator/holiday lists from a YAML file.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	log.Printf("[config] loaded %d symbols, %d holidays from %s",
		len(c.Symbols), len(c.Holidays), path)
	return nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(os.Getenv(key))
	switch v {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}
