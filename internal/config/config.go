// Package config provides configuration loading and management for the application.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Provider describes one upstream price-quote source.
type Provider struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	APIKey string `json:"api_key,omitempty"`
}

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Upstream quote providers to fan out to
	Providers []Provider

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Redis address for the shared result cache; empty selects the
	// in-process store
	RedisAddr string

	// Per-provider-call timeout
	CallTimeout time.Duration

	// Retry settings for a single gateway call
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMultiplier  float64

	// Circuit breaker settings, applied per provider
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerCooldown         time.Duration

	// Token bucket settings, applied per client key
	LimiterRate     float64
	LimiterCapacity int

	// Result cache TTL
	CacheTTL time.Duration
}

// defaultProviders is used when the PROVIDERS environment variable is unset.
var defaultProviders = []Provider{
	{Name: "quickmart", URL: "https://api.quickmart.example/v1"},
	{Name: "grocio", URL: "https://api.grocio.example/v1"},
	{Name: "dashcart", URL: "https://api.dashcart.example/v1"},
}

// Load creates a new Config from environment variables
func Load() Config {
	providers := defaultProviders
	if raw := os.Getenv("PROVIDERS"); raw != "" {
		var parsed []Provider
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			logrus.Warnf("Invalid PROVIDERS value, using defaults: %v", err)
		} else if len(parsed) > 0 {
			providers = parsed
		}
	}

	return Config{
		Port:                    GetEnvOrDefault("PORT", "8080"),
		Providers:               providers,
		OtelEndpoint:            GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RedisAddr:               GetEnvOrDefault("REDIS_ADDR", ""),
		CallTimeout:             GetEnvAsDuration("CALL_TIMEOUT", 5*time.Second),
		RetryMaxAttempts:        GetEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBaseDelay:          GetEnvAsDuration("RETRY_BASE_DELAY", time.Second),
		RetryMultiplier:         GetEnvAsFloat("RETRY_MULTIPLIER", 1.0),
		BreakerFailureThreshold: GetEnvAsInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: GetEnvAsInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerCooldown:         GetEnvAsDuration("BREAKER_COOLDOWN", 60*time.Second),
		LimiterRate:             GetEnvAsFloat("LIMITER_RATE", 10.0),
		LimiterCapacity:         GetEnvAsInt("LIMITER_CAPACITY", 100),
		CacheTTL:                GetEnvAsDuration("CACHE_TTL", 600*time.Second),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
