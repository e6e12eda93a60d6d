package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Ledger
	// EpochMonth is the chain floor used for categories without a floor
	// month of their own. Resolution never walks before it.
	EpochMonth string
	// PlanningHorizon is how many months past the latest assigned month a
	// user may assign into. Product policy, not a technical limit.
	PlanningHorizon int
	// MaxChainDepth caps backward chain resolution; exceeding it is
	// reported as CHAIN_UNBOUNDED rather than walking forever.
	MaxChainDepth int

	// Store
	StoreTimeout time.Duration

	// Budget cache
	CacheSize int
	CacheTTL  time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "centavo"),
		DBPassword: getEnv("DB_PASSWORD", "centavo"),
		DBName:     getEnv("DB_NAME", "centavo"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Ledger
		EpochMonth:      getEnv("LEDGER_EPOCH_MONTH", "2020-01"),
		PlanningHorizon: getEnvInt("LEDGER_PLANNING_HORIZON", 1),
		MaxChainDepth:   getEnvInt("LEDGER_MAX_CHAIN_DEPTH", 600),

		// Store
		StoreTimeout: getEnvDuration("STORE_TIMEOUT", 5*time.Second),

		// Budget cache
		CacheSize: getEnvInt("LEDGER_CACHE_SIZE", 1024),
		CacheTTL:  getEnvDuration("LEDGER_CACHE_TTL", 5*time.Minute),
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, value, defaultValue)
		return defaultValue
	}
	return d
}
