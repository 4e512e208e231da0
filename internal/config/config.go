package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the booking service
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Payment  PaymentConfig
	Booking  BookingConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        string
	Environment string
	LogLevel    string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the seat lock store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AMQPConfig holds the event broadcast configuration. An empty URL
// disables broadcasting (events are logged and dropped).
type AMQPConfig struct {
	URL      string
	Exchange string
}

// PaymentConfig holds payment gateway credentials
type PaymentConfig struct {
	Environment string // sandbox or production
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
}

// BookingConfig holds seat hold and payment window tuning
type BookingConfig struct {
	BrowseHoldTTL      time.Duration
	CheckoutHoldTTL    time.Duration
	PaymentGraceWindow time.Duration
	CancelCutoff       time.Duration
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (development convenience)
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		AMQP: AMQPConfig{
			URL:      getEnv("AMQP_URL", ""),
			Exchange: getEnv("AMQP_EXCHANGE", "seat-events"),
		},
		Payment: PaymentConfig{
			Environment: getEnv("PAYMENT_ENVIRONMENT", "sandbox"),
			BaseURL:     getEnv("PAYMENT_BASE_URL", "https://api-merchant.payos.vn"),
			ClientID:    getEnv("PAYMENT_CLIENT_ID", ""),
			APIKey:      getEnv("PAYMENT_API_KEY", ""),
			ChecksumKey: getEnv("PAYMENT_CHECKSUM_KEY", ""),
			ReturnURL:   getEnv("PAYMENT_RETURN_URL", "http://localhost:3000/payment/success"),
			CancelURL:   getEnv("PAYMENT_CANCEL_URL", "http://localhost:3000/payment/cancel"),
		},
		Booking: BookingConfig{
			BrowseHoldTTL:      getEnvAsDuration("BROWSE_HOLD_TTL", 5*time.Minute),
			CheckoutHoldTTL:    getEnvAsDuration("CHECKOUT_HOLD_TTL", 10*time.Minute),
			PaymentGraceWindow: getEnvAsDuration("PAYMENT_GRACE_WINDOW", 15*time.Minute),
			CancelCutoff:       getEnvAsDuration("CANCEL_CUTOFF", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization"}),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks that required configuration is present
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Server.Environment == "production" {
		if c.Payment.ClientID == "" || c.Payment.APIKey == "" || c.Payment.ChecksumKey == "" {
			return fmt.Errorf("payment gateway credentials are required in production")
		}
	}

	if c.Booking.BrowseHoldTTL <= 0 || c.Booking.CheckoutHoldTTL <= 0 {
		return fmt.Errorf("seat hold TTLs must be positive")
	}

	if c.Booking.PaymentGraceWindow <= 0 {
		return fmt.Errorf("PAYMENT_GRACE_WINDOW must be positive")
	}

	return nil
}

// HoldTTLExceedsGrace reports whether a checkout hold can outlive the
// payment grace window. Not fatal: the expiry sweep still frees the seat,
// but a holder may see their lock survive a booking that was reclaimed.
func (c *Config) HoldTTLExceedsGrace() bool {
	return c.Booking.CheckoutHoldTTL > c.Booking.PaymentGraceWindow
}

// IsProduction returns true if running in production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
