package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Варианты хранилища
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config структура конфигурации
type Config struct {
	Port           string
	JWTSecret      string
	DatabaseURL    string
	DatabaseConfig DatabaseConfig
	Storage        string
	MongoConfig    MongoConfig
	ExchangeTTL    time.Duration
	SweepInterval  time.Duration
	RequestTimeout time.Duration
	AppEnv         string
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MongoConfig содержит конфигурацию ленты уведомлений. Пустой URI
// отключает хранение уведомлений.
type MongoConfig struct {
	URI      string
	Database string
}

// ErrMissingJWTSecret возвращается, если не задан JWT_SECRET
var ErrMissingJWTSecret = errors.New("не задана переменная окружения JWT_SECRET")

// LoadConfig загружает переменные из .env и окружения
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info(".env файл не найден, используем переменные окружения")
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "bookswap_user"),
		Password: getEnv("PGPASSWORD", "bookswap_pass"),
		Name:     getEnv("PGDATABASE", "bookswap"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}

	// Формируем строку подключения к базе данных
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)

	ttl, err := getDuration("EXCHANGE_TTL", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	interval, err := getDuration("SWEEP_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DatabaseURL:    dbURL,
		DatabaseConfig: dbConfig,
		Storage:        getEnv("STORAGE", StoragePostgres),
		MongoConfig: MongoConfig{
			URI:      getEnv("MONGO_URI", ""),
			Database: getEnv("MONGO_DATABASE", "bookswap"),
		},
		ExchangeTTL:    ttl,
		SweepInterval:  interval,
		RequestTimeout: requestTimeout,
		AppEnv:         getEnv("APP_ENV", "production"), // По умолчанию production
	}

	if cfg.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}
	if cfg.Storage != StoragePostgres && cfg.Storage != StorageMemory {
		return nil, fmt.Errorf("неизвестное хранилище STORAGE=%q", cfg.Storage)
	}

	return cfg, nil
}

// IsDevelopment сообщает, запущено ли приложение в режиме разработки
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// getEnv получает переменную окружения или использует дефолтное значение
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("некорректное значение %s=%q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение %s должно быть положительным", key)
	}
	return d, nil
}
