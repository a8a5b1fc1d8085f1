package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config - структура для хранения конфигурации приложения
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"3001"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Хранилища. Пустые строки подключения означают работу в памяти
	DatabaseURL      string        `env:"DATABASE_URL"`
	MigrationsPath   string        `env:"MIGRATIONS_PATH" envDefault:"file://migrations"`
	MongoURI         string        `env:"MONGODB_URI"`
	MongoDatabase    string        `env:"MONGODB_DATABASE" envDefault:"cityvoice"`
	DBConnectTimeout time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"5s"`
	SeedDemoData     bool          `env:"SEED_DEMO_DATA" envDefault:"false"`

	// Redis Config
	RedisAddr string `env:"REDIS_ADDR"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Webhook Config
	WebhookURL        string        `env:"WEBHOOK_URL"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`
	WebhookMaxRetries int           `env:"WEBHOOK_MAX_RETRIES" envDefault:"3"`
	WebhookBaseDelay  time.Duration `env:"WEBHOOK_BASE_DELAY" envDefault:"1s"`

	// Auth Config
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// Upload Config
	UploadBackend      string `env:"UPLOAD_BACKEND" envDefault:"local"`
	UploadDir          string `env:"UPLOAD_DIR" envDefault:"uploads"`
	UploadMaxBytes     int64  `env:"UPLOAD_MAX_BYTES" envDefault:"5242880"`
	GCSBucket          string `env:"GCS_BUCKET"`
	GCSCredentialsFile string `env:"GCS_CREDENTIALS_FILE"`

	// Rate limit на создание обращений
	IssueRateLimit  int           `env:"ISSUE_RATE_LIMIT" envDefault:"20"`
	IssueRateWindow time.Duration `env:"ISSUE_RATE_WINDOW" envDefault:"24h"`

	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*"`

	// Ключи сторонних сервисов, которые отдаются клиенту
	MapsAPIKey      string `env:"MAPS_API_KEY"`
	AuthProviderURL string `env:"AUTH_PROVIDER_URL"`
}

// LoadConfig загружает конфигурацию из переменных окружения и .env файла
func LoadConfig() (*Config, error) {
	// Загрузка переменных окружения из .env файла (если есть)
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", getEnv("PORT", "3001")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "file://migrations"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		MongoDatabase:      getEnv("MONGODB_DATABASE", "cityvoice"),
		DBConnectTimeout:   getEnvAsDuration("DB_CONNECT_TIMEOUT", 5*time.Second),
		SeedDemoData:       getEnvAsBool("SEED_DEMO_DATA", false),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPass:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		WebhookURL:         os.Getenv("WEBHOOK_URL"),
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout:     getEnvAsDuration("WEBHOOK_TIMEOUT", 5*time.Second),
		WebhookMaxRetries:  getEnvAsInt("WEBHOOK_MAX_RETRIES", 3),
		WebhookBaseDelay:   getEnvAsDuration("WEBHOOK_BASE_DELAY", time.Second),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		TokenTTL:           getEnvAsDuration("TOKEN_TTL", time.Hour),
		UploadBackend:      strings.ToLower(getEnv("UPLOAD_BACKEND", "local")),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		UploadMaxBytes:     int64(getEnvAsInt("UPLOAD_MAX_BYTES", 5<<20)),
		GCSBucket:          os.Getenv("GCS_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
		IssueRateLimit:     getEnvAsInt("ISSUE_RATE_LIMIT", 20),
		IssueRateWindow:    getEnvAsDuration("ISSUE_RATE_WINDOW", 24*time.Hour),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),
		MapsAPIKey:         os.Getenv("MAPS_API_KEY"),
		AuthProviderURL:    os.Getenv("AUTH_PROVIDER_URL"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные параметры
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	switch c.UploadBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when UPLOAD_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unsupported UPLOAD_BACKEND %q", c.UploadBackend)
	}
	return nil
}

// getEnv возвращает значение переменной окружения или значение по умолчанию
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt возвращает значение переменной окружения как int или значение по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration возвращает значение переменной окружения как time.Duration или значение по умолчанию
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

// getEnvAsList разбирает список через запятую
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
