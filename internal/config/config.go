// Package config provides configuration management for stubguard.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/kneutral-org/stubguard/internal/lock"
)

const (
	// DefaultPort is the default HTTP port of the soak server.
	DefaultPort = "8080"

	// DefaultLogLevel is the default zerolog level.
	DefaultLogLevel = "info"

	// DefaultSoakInvokers is the default number of concurrent invoker goroutines.
	DefaultSoakInvokers = 4

	// DefaultSoakRestubInterval is the default pause between reconfigurations.
	DefaultSoakRestubInterval = 10 * time.Millisecond
)

// Config holds the application configuration.
type Config struct {
	// Port is the HTTP server port.
	Port string

	// LogLevel is the minimum zerolog level.
	LogLevel string

	// LogPretty switches to human-readable console logs.
	LogPretty bool

	// ReadTimeout bounds the wait for an invocation's read lock.
	ReadTimeout time.Duration

	// WriteTimeout bounds a whole multi-object write acquisition.
	WriteTimeout time.Duration

	// PassWait bounds the wait for one lock within a write acquisition pass.
	PassWait time.Duration

	// RegistryShards is the number of lock registry partitions.
	RegistryShards int

	// SoakInvokers is the number of goroutines invoking the soak stub.
	SoakInvokers int

	// SoakRestubInterval is the pause between soak reconfigurations.
	SoakRestubInterval time.Duration
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	cfg := &Config{
		Port:               getEnvOrDefault("PORT", DefaultPort),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", DefaultLogLevel),
		LogPretty:          getEnvBoolOrDefault("LOG_PRETTY", false),
		ReadTimeout:        getEnvDurationOrDefault("LOCK_READ_TIMEOUT", lock.DefaultReadTimeout),
		WriteTimeout:       getEnvDurationOrDefault("LOCK_WRITE_TIMEOUT", lock.DefaultWriteTimeout),
		PassWait:           getEnvDurationOrDefault("LOCK_PASS_WAIT", lock.DefaultPassWait),
		RegistryShards:     getEnvIntOrDefault("LOCK_REGISTRY_SHARDS", lock.DefaultShards),
		SoakInvokers:       getEnvIntOrDefault("SOAK_INVOKERS", DefaultSoakInvokers),
		SoakRestubInterval: getEnvDurationOrDefault("SOAK_RESTUB_INTERVAL", DefaultSoakRestubInterval),
	}

	return cfg
}

// getEnvOrDefault returns the environment variable value or the default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns the environment variable value as a positive int,
// or the default if not set, invalid or not positive.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the environment variable value as bool or the default if not set or invalid.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault returns the environment variable value as a positive
// duration, or the default if not set, invalid or not positive.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}
