package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Collab   CollabConfig
	Auth     AuthConfig
	Tracing  TracingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	RelayLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	// Empty keeps the update log in memory.
	Connection string
}

type CollabConfig struct {
	// URL is the websocket endpoint clients dial, e.g. ws://localhost:3000/collab.
	URL                string
	UpdateTopic        string
	RedisChannelPrefix string
	UpdateLogTTL       time.Duration
	SendBuffer         int
	ReloadAttemptTTL   time.Duration
	MaxReloads         int
}

type AuthConfig struct {
	JwtSecret string
	// SessionURL serves POST /session/refresh.
	SessionURL string
	TokenTTL   time.Duration
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log"),
			RelayLogFilePath:   getEnv("RELAY_LOG_FILE_PATH", "relay.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Collab: CollabConfig{
			URL:                getEnv("COLLAB_URL", "ws://localhost:3000/collab"),
			UpdateTopic:        getEnv("COLLAB_UPDATE_TOPIC", "document.updates"),
			RedisChannelPrefix: getEnv("COLLAB_REDIS_PREFIX", "collab:"),
			UpdateLogTTL:       getEnvAsDuration("COLLAB_UPDATE_LOG_TTL", 24*time.Hour),
			SendBuffer:         getEnvAsInt("COLLAB_SEND_BUFFER", 256),
			ReloadAttemptTTL:   getEnvAsDuration("COLLAB_RELOAD_ATTEMPT_TTL", 5*time.Minute),
			MaxReloads:         getEnvAsInt("COLLAB_MAX_RELOADS", 1),
		},
		Auth: AuthConfig{
			JwtSecret:  getEnv("JWT_SECRET", ""),
			SessionURL: getEnv("SESSION_URL", "http://localhost:3000/api"),
			TokenTTL:   getEnvAsDuration("JWT_TTL", 24*time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "collab-editor-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
