// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides Redis and asynq settings for background retries.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// DispatchConfig provides settings for the campaign dispatch service client.
type DispatchConfig interface {
	GetDispatchURL() string
	GetDispatchAPIKey() string
	GetDispatchTimeout() time.Duration
	GetDispatchMaxRetries() int
	GetDispatchRetryBaseDelay() time.Duration
	GetDispatchRetryMaxDelay() time.Duration
}

// GovernanceConfig provides settings for the governance orchestrator.
type GovernanceConfig interface {
	GetGovernanceLockTTL() time.Duration
	GetGovernanceDefaultRegion() string
	GetGovernanceBatchConcurrency() int
}

// AlertConfig provides SMTP settings for operator alerts.
type AlertConfig interface {
	GetAlertSMTPHost() string
	GetAlertSMTPPort() int
	GetAlertSMTPUsername() string
	GetAlertSMTPPassword() string
	GetAlertFromAddress() string
	GetAlertRecipients() []string
	IsAlertingEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueue       string
	AsynqConcurrency int

	DispatchURL            string
	DispatchAPIKey         string
	DispatchTimeout        time.Duration
	DispatchMaxRetries     int
	DispatchRetryBaseDelay time.Duration
	DispatchRetryMaxDelay  time.Duration

	GovernanceLockTTL          time.Duration
	GovernanceDefaultRegion    string
	GovernanceBatchConcurrency int

	AlertSMTPHost     string
	AlertSMTPPort     int
	AlertSMTPUsername string
	AlertSMTPPassword string
	AlertFromAddress  string
	AlertRecipients   []string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string        { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool  { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string  { return c.AsynqQueue }
func (c *Config) GetAsynqConcurrency() int   { return c.AsynqConcurrency }

// DispatchConfig implementation
func (c *Config) GetDispatchURL() string                   { return c.DispatchURL }
func (c *Config) GetDispatchAPIKey() string                { return c.DispatchAPIKey }
func (c *Config) GetDispatchTimeout() time.Duration        { return c.DispatchTimeout }
func (c *Config) GetDispatchMaxRetries() int               { return c.DispatchMaxRetries }
func (c *Config) GetDispatchRetryBaseDelay() time.Duration { return c.DispatchRetryBaseDelay }
func (c *Config) GetDispatchRetryMaxDelay() time.Duration  { return c.DispatchRetryMaxDelay }

// GovernanceConfig implementation
func (c *Config) GetGovernanceLockTTL() time.Duration  { return c.GovernanceLockTTL }
func (c *Config) GetGovernanceDefaultRegion() string   { return c.GovernanceDefaultRegion }
func (c *Config) GetGovernanceBatchConcurrency() int   { return c.GovernanceBatchConcurrency }

// AlertConfig implementation
func (c *Config) GetAlertSMTPHost() string     { return c.AlertSMTPHost }
func (c *Config) GetAlertSMTPPort() int        { return c.AlertSMTPPort }
func (c *Config) GetAlertSMTPUsername() string { return c.AlertSMTPUsername }
func (c *Config) GetAlertSMTPPassword() string { return c.AlertSMTPPassword }
func (c *Config) GetAlertFromAddress() string  { return c.AlertFromAddress }
func (c *Config) GetAlertRecipients() []string { return c.AlertRecipients }
func (c *Config) IsAlertingEnabled() bool {
	return c.AlertSMTPHost != "" && c.AlertFromAddress != "" && len(c.AlertRecipients) > 0
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueue:       getEnv("ASYNQ_QUEUE", "governance"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),

		DispatchURL:            getEnv("DISPATCH_URL", ""),
		DispatchAPIKey:         getEnv("DISPATCH_API_KEY", ""),
		DispatchTimeout:        mustDuration(getEnv("DISPATCH_TIMEOUT", "10s")),
		DispatchMaxRetries:     mustInt(getEnv("DISPATCH_MAX_RETRIES", "3")),
		DispatchRetryBaseDelay: mustDuration(getEnv("DISPATCH_RETRY_BASE_DELAY", "200ms")),
		DispatchRetryMaxDelay:  mustDuration(getEnv("DISPATCH_RETRY_MAX_DELAY", "5s")),

		GovernanceLockTTL:          mustDuration(getEnv("GOVERNANCE_LOCK_TTL", "30s")),
		GovernanceDefaultRegion:    strings.ToUpper(getEnv("GOVERNANCE_DEFAULT_REGION", "")),
		GovernanceBatchConcurrency: mustInt(getEnv("GOVERNANCE_BATCH_CONCURRENCY", "8")),

		AlertSMTPHost:     getEnv("ALERT_SMTP_HOST", ""),
		AlertSMTPPort:     mustInt(getEnv("ALERT_SMTP_PORT", "587")),
		AlertSMTPUsername: getEnv("ALERT_SMTP_USERNAME", ""),
		AlertSMTPPassword: getEnv("ALERT_SMTP_PASSWORD", ""),
		AlertFromAddress:  getEnv("ALERT_FROM_ADDRESS", ""),
		AlertRecipients:   splitCSV(getEnv("ALERT_RECIPIENTS", "")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.DispatchURL == "" {
		return fmt.Errorf("DISPATCH_URL is required")
	}
	if c.DispatchMaxRetries < 0 {
		return fmt.Errorf("DISPATCH_MAX_RETRIES cannot be negative")
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("DISPATCH_TIMEOUT must be a positive duration")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
