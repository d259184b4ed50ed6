package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer        string        // Issuer claim for tokens (default: vtype-chat)
	AccessSecret  string        // Required: HMAC secret for access tokens
	RefreshSecret string        // Required: HMAC secret for refresh tokens
	AccessTTL     time.Duration // Access token lifetime (default: 15m)
	RefreshTTL    time.Duration // Refresh token lifetime (default: 168h)

	DatabaseFile string // Path to the SQLite database file (default: ./chat.db)
	PepperFile   string // Path to the password hashing pepper file (default: ./pepper)

	RedisAddr     string // Optional: redis address; unset falls back to in-memory KV
	RedisPassword string
	RedisDB       int

	MinioEndpoint  string // Optional: object storage for avatars; unset disables uploads
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	ClientOrigin string // Allowed websocket origin (default: allow all)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)

	AccessCleanupInterval  time.Duration // Access token sweep interval (default: 1h)
	RefreshCleanupInterval time.Duration // Refresh token sweep interval (default: 24h)
	SessionCleanupInterval time.Duration // Session sweep interval (default: 6h)
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("CHAT_ISSUER", "vtype-chat"),
		AccessSecret:  os.Getenv("JWT_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("JWT_REFRESH_SECRET"),
		AccessTTL:     getEnvDurationOrDefault("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getEnvDurationOrDefault("JWT_REFRESH_TTL", 7*24*time.Hour),

		DatabaseFile: getEnvOrDefault("CHAT_DATABASE_FILE", "chat.db"),
		PepperFile:   getEnvOrDefault("CHAT_PEPPER_FILE", "pepper"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		MinioEndpoint:  os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnvOrDefault("MINIO_BUCKET", "vtype-avatars"),
		MinioUseSSL:    getEnvOrDefault("MINIO_USE_SSL", "false") == "true",

		ClientOrigin: os.Getenv("CLIENT_ORIGIN"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),

		AccessCleanupInterval:  getEnvDurationOrDefault("CLEANUP_ACCESS_INTERVAL", time.Hour),
		RefreshCleanupInterval: getEnvDurationOrDefault("CLEANUP_REFRESH_INTERVAL", 24*time.Hour),
		SessionCleanupInterval: getEnvDurationOrDefault("CLEANUP_SESSION_INTERVAL", 6*time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	return defaultValue
}
