package main

import (
	"os"
	"strconv"

	"ladder-platform/backend/internal/db"
	"ladder-platform/backend/internal/redis"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	// Database configuration
	DBConfig    db.Config
	RedisConfig redis.Config
	RedisEnable bool

	// Server configuration
	ServerPort  string
	Environment string

	// Authentication
	JWTSecret      string
	AuthAPIKeyHash string

	// Durability
	WriteLogPath string

	// Matchmaking
	WaveIntervalSec       int
	AbandonmentTimeoutSec int
	MatchWindowProfile    string

	// Replay parsing
	ReplayParserBin  string
	ReplayStorageDir string
	WorkerPoolSize   int

	// Notifications
	MessageRateLimitPerSec int

	// Administration
	AdminAllowlistPath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		DBConfig: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "ladder_platform"),
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		RedisEnable: getEnv("REDIS_ENABLE", "true") == "true",

		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		AuthAPIKeyHash: getEnv("AUTH_API_KEY_HASH", ""),

		WriteLogPath: getEnv("WRITE_LOG_PATH", "ladder_writelog.db"),

		WaveIntervalSec:       getEnvInt("WAVE_INTERVAL_SEC", 15),
		AbandonmentTimeoutSec: getEnvInt("ABANDONMENT_TIMEOUT_SEC", 1800),
		MatchWindowProfile:    getEnv("MATCH_WINDOW_PROFILE", "balanced"),

		ReplayParserBin:  getEnv("REPLAY_PARSER_BIN", "screp-worker"),
		ReplayStorageDir: getEnv("REPLAY_STORAGE_DIR", "replays"),
		WorkerPoolSize:   getEnvInt("WORKER_POOL_SIZE", 1),

		MessageRateLimitPerSec: getEnvInt("MESSAGE_RATE_LIMIT_PER_SEC", 40),

		AdminAllowlistPath: getEnv("ADMIN_ALLOWLIST_PATH", "allowlist.json"),
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable or returns a
// fallback value
func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
