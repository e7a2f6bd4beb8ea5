package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NewRelic NewRelicConfig
	Log      LogConfig
	JWT      JWTConfig
	NSQ      NSQConfig
	Gateway  GatewayConfig
	Payment  PaymentConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	Migrate  bool

	MaxOpenConns int
}

// DSN renders the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level   string
	Service string
}

// JWTConfig holds token signing configuration.
type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

// NSQConfig holds the reconciliation queue configuration.
// An empty NSQDAddr selects the in-process queue.
type NSQConfig struct {
	NSQDAddr    string
	Topic       string
	Channel     string
	MaxAttempts int
}

// GatewayConfig holds mobile-money gateway credentials.
type GatewayConfig struct {
	Username    string
	APIKey      string
	ProductName string
	BaseURL     string
}

// PaymentConfig holds payment reconciliation tunables.
type PaymentConfig struct {
	DebounceWindow time.Duration
	MatchWindow    time.Duration
	GatewayTimeout time.Duration
	InFlightWait   time.Duration
	Workers        int
	QueueSize      int

	// BackgroundLimit caps callbacks reconciled off-queue when enqueue fails.
	BackgroundLimit int
}

// Load loads configuration from environment variables. When APP_ENV is
// "local" (the default) the file named by ENV_FILE (default .env) is read
// first if present. A file that exists but does not parse is an error.
func Load() (*Config, error) {
	if getEnv("APP_ENV", "local") == "local" {
		path := getEnv("ENV_FILE", ".env")
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 40*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "matatu"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			Migrate:  getBoolEnv("DB_MIGRATE", true),

			MaxOpenConns: getIntEnv("DB_MAX_OPEN_CONNS", 20),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "matatu-fare-service"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Log: LogConfig{
			Level:   getEnv("LOG_LEVEL", "info"),
			Service: getEnv("LOG_SERVICE", "matatu"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me"),
			TTL:    getDurationEnv("JWT_TTL", 12*time.Hour),
		},
		NSQ: NSQConfig{
			NSQDAddr:    getEnv("NSQD_ADDR", ""),
			Topic:       getEnv("NSQ_TOPIC", "payment.callbacks"),
			Channel:     getEnv("NSQ_CHANNEL", "reconciler"),
			MaxAttempts: getIntEnv("NSQ_MAX_ATTEMPTS", 5),
		},
		Gateway: GatewayConfig{
			Username:    getEnv("AT_USERNAME", ""),
			APIKey:      getEnv("AT_API_KEY", ""),
			ProductName: getEnv("AT_PRODUCT_NAME", "matatu-fares"),
			BaseURL:     getEnv("AT_BASE_URL", ""),
		},
		Payment: PaymentConfig{
			DebounceWindow: getDurationEnv("PAYMENT_DEBOUNCE_WINDOW", 5*time.Minute),
			MatchWindow:    getDurationEnv("PAYMENT_MATCH_WINDOW", 24*time.Hour),
			GatewayTimeout: getDurationEnv("PAYMENT_GATEWAY_TIMEOUT", 30*time.Second),
			InFlightWait:   getDurationEnv("PAYMENT_IN_FLIGHT_WAIT", 2*time.Second),
			Workers:        getIntEnv("RECONCILE_WORKERS", 4),
			QueueSize:      getIntEnv("RECONCILE_QUEUE_SIZE", 256),

			BackgroundLimit: getIntEnv("RECONCILE_BACKGROUND_LIMIT", 16),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
