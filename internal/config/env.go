// Package config loads the environment-variable and file-based configuration
// inputs enumerated in spec.md §6: API base URL and token, worker count,
// request delay, scroll page size, the short-transition threshold, the
// lock-file path, the database DSN, and the quarters/status-mapping file
// paths.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig reads environment variables with an optional key prefix, the
// same lookup shape used throughout the rest of the repository.
type EnvConfig struct {
	prefix string
}

// NewEnvConfig creates an environment-variable reader scoped to prefix
// (pass "" for no prefix).
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{prefix: prefix}
}

func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// GetString retrieves a string value from environment with optional default.
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or
// returns an error.
func (ec *EnvConfig) MustGetString(key string) (string, error) {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s not set", fullKey)
	}
	return value, nil
}

// GetInt retrieves an integer value from environment with optional default.
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetBool retrieves a boolean value from environment with optional default.
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional
// default. Accepts any value time.ParseDuration understands ("100ms", "5m").
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(ec.buildKey(key)); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// Validator accumulates configuration validation errors so all problems can
// be reported together instead of failing on the first one.
type Validator struct {
	errors []string
}

// NewValidator creates an empty Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// RequireString records an error if value is empty.
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequirePositiveInt records an error if value is not positive.
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// Validate returns an error summarizing all recorded problems, or nil.
func (v *Validator) Validate() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("configuration validation failed: %s", strings.Join(v.errors, "; "))
}
