package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Setting keys understood by Config.Setting and Config.Bool.
const (
	KeyCurrencyCode         = "CURRENCY_CODE"
	KeyNotifyOnApproval     = "NOTIFY_ON_APPROVAL"
	KeyNotifyOnAllocation   = "NOTIFY_ON_ALLOCATION"
	KeyNotifyOnScheduledRun = "NOTIFY_ON_SCHEDULED_RUN"
	KeyScheduledRunAt       = "SCHEDULER_RUN_AT"
	KeyAttachmentsBackend   = "ATTACHMENTS_BACKEND"
	KeyAttachmentsDir       = "ATTACHMENTS_DIR"
	KeyAttachmentsGCSBucket = "GCS_BUCKET"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret string

	// Messaging
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Scheduler
	RedisAddr        string
	SchedulerLockTTL time.Duration
	SchedulerAPIKey  string
	MetricsPort      string

	settings map[string]string
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
		Env:  getEnv("ENV", "development"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "finpanel"),
		DBPassword: getEnv("DB_PASSWORD", "finpanel"),
		DBName:     getEnv("DB_NAME", "finpanel"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		// Messaging
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finpanel"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger.notifications"),

		// Scheduler
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		SchedulerAPIKey: getEnv("SCHEDULER_API_KEY", ""),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),

		settings: map[string]string{
			KeyCurrencyCode:         strings.ToUpper(getEnv(KeyCurrencyCode, "IDR")),
			KeyNotifyOnApproval:     getEnv(KeyNotifyOnApproval, "true"),
			KeyNotifyOnAllocation:   getEnv(KeyNotifyOnAllocation, "true"),
			KeyNotifyOnScheduledRun: getEnv(KeyNotifyOnScheduledRun, "true"),
			KeyScheduledRunAt:       getEnv(KeyScheduledRunAt, "00:05"),
			KeyAttachmentsBackend:   getEnv(KeyAttachmentsBackend, "local"),
			KeyAttachmentsDir:       getEnv(KeyAttachmentsDir, "storage/attachments"),
			KeyAttachmentsGCSBucket: getEnv(KeyAttachmentsGCSBucket, ""),
		},
	}

	ttlStr := getEnv("SCHEDULER_LOCK_TTL", "10m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		log.Printf("Warning: invalid SCHEDULER_LOCK_TTL value '%s', falling back to 10m\n", ttlStr)
		ttl = 10 * time.Minute
	}
	config.SchedulerLockTTL = ttl

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

// New builds a Config from explicit settings without touching the environment.
func New(settings map[string]string) *Config {
	c := &Config{settings: make(map[string]string, len(settings))}
	for k, v := range settings {
		c.settings[k] = v
	}
	return c
}

// Setting returns the raw value of a named setting, or "" when unset.
func (c *Config) Setting(key string) string {
	if c == nil {
		return ""
	}
	return c.settings[key]
}

// Bool returns a setting parsed as a boolean. Unset or malformed values are false.
func (c *Config) Bool(key string) bool {
	v, err := strconv.ParseBool(c.Setting(key))
	return err == nil && v
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
