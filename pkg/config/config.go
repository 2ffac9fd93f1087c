// Package config loads daemon configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/axle/pkg/auth"
	"github.com/platinummonkey/axle/pkg/observability"
)

// Config holds all daemon configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Registry configuration
	Registry RegistryConfig

	// Security configuration
	Security SecurityConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RegistryConfig holds identity registry configuration
type RegistryConfig struct {
	// Name identifies the registry pair in logs and metrics.
	Name string
	// DataDir is the directory holding both registry documents.
	DataDir string
	// RolesFile and UsersFile are the data file names inside DataDir.
	RolesFile string
	UsersFile string
	// ValidateSchema runs the structural validator on load and commit.
	ValidateSchema bool
	// StrictReferences fails loads on dangling references instead of
	// skipping them with a warning.
	StrictReferences bool
	// CheckInterval is the schedule for external change detection polling.
	// Zero disables polling, leaving filesystem notifications only.
	CheckInterval time.Duration
	// AdminRole and GroupAdminRole name the administrative roles.
	AdminRole      string
	GroupAdminRole string
}

// SecurityConfig holds password and brute-force settings
type SecurityConfig struct {
	// PasswordEncoder selects the encoder for local passwords: plain,
	// digest, or empty.
	PasswordEncoder string
	// Policy constrains candidate passwords on user creation and update.
	Policy auth.PasswordPolicy
	// Guard configures the brute-force prevention gate. Whitelist masks
	// are parsed from BruteForceWhitelist.
	Guard auth.GuardConfig
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	guard := auth.DefaultGuardConfig()
	guard.Enabled = getEnvBool("AXLE_BRUTEFORCE_ENABLED", guard.Enabled)
	guard.MinDelay = getEnvDuration("AXLE_BRUTEFORCE_MIN_DELAY", guard.MinDelay)
	guard.MaxDelay = getEnvDuration("AXLE_BRUTEFORCE_MAX_DELAY", guard.MaxDelay)
	guard.MaxBlockedThreads = getEnvInt("AXLE_BRUTEFORCE_MAX_BLOCKED", guard.MaxBlockedThreads)
	if masks := getEnv("AXLE_BRUTEFORCE_WHITELIST", ""); masks != "" {
		prefixes, err := auth.ParseWhitelist(splitList(masks))
		if err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
		guard.Whitelist = prefixes
	}

	policy := auth.DefaultPasswordPolicy()
	policy.MinLength = getEnvInt("AXLE_PASSWORD_MIN_LENGTH", policy.MinLength)
	policy.RequireDigit = getEnvBool("AXLE_PASSWORD_REQUIRE_DIGIT", policy.RequireDigit)
	policy.RequireUppercase = getEnvBool("AXLE_PASSWORD_REQUIRE_UPPERCASE", policy.RequireUppercase)

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("AXLE_HOST", "0.0.0.0"),
			Port:            getEnv("AXLE_PORT", "8080"),
			ReadTimeout:     getEnvDuration("AXLE_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("AXLE_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("AXLE_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("AXLE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Registry: RegistryConfig{
			Name:             getEnv("AXLE_REGISTRY_NAME", "default"),
			DataDir:          getEnv("AXLE_DATA_DIR", ""),
			RolesFile:        getEnv("AXLE_ROLES_FILE", "roles.xml"),
			UsersFile:        getEnv("AXLE_USERS_FILE", "users.xml"),
			ValidateSchema:   getEnvBool("AXLE_VALIDATE_SCHEMA", true),
			StrictReferences: getEnvBool("AXLE_STRICT_REFERENCES", false),
			CheckInterval:    getEnvDuration("AXLE_CHECK_INTERVAL", 10*time.Second),
			AdminRole:        getEnv("AXLE_ADMIN_ROLE", "ADMIN"),
			GroupAdminRole:   getEnv("AXLE_GROUP_ADMIN_ROLE", "GROUP_ADMIN"),
		},
		Security: SecurityConfig{
			PasswordEncoder: getEnv("AXLE_PASSWORD_ENCODER", auth.EncoderDigest),
			Policy:          policy,
			Guard:           guard,
		},
		Observability: ObservabilityConfig{
			LogLevel:       observability.ParseLogLevel(getEnv("AXLE_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("AXLE_METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Registry.DataDir == "" {
		return fmt.Errorf("registry data directory is required")
	}
	if c.Registry.RolesFile == "" || c.Registry.UsersFile == "" {
		return fmt.Errorf("registry data file names are required")
	}
	if c.Registry.RolesFile == c.Registry.UsersFile {
		return fmt.Errorf("roles file and users file must be different")
	}
	if c.Registry.CheckInterval < 0 {
		return fmt.Errorf("check interval must not be negative")
	}
	switch c.Security.PasswordEncoder {
	case auth.EncoderPlain, auth.EncoderDigest, auth.EncoderEmpty:
	default:
		return fmt.Errorf("invalid password encoder: %s (must be plain, digest, or empty)", c.Security.PasswordEncoder)
	}
	if err := c.Security.Guard.Validate(); err != nil {
		return err
	}
	return nil
}

// splitList splits a comma-separated list, trimming whitespace
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
