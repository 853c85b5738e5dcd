package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr string
	ServerPort int

	// Database (optional; in-memory stores are used when DB_HOST is empty)
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Grant token
	GrantSecret string
	GrantIssuer string
	GrantTTL    time.Duration

	// Verification behavior
	ChallengeLockThreshold int
	SweepInterval          time.Duration
	AuditCapacity          int
	TOTPIssuer             string

	// SMTP (optional, for email OTP delivery)
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// Rate limiting
	RateLimit RateLimitConfig
}

// RateLimitConfig holds per-IP rate limiting configuration.
type RateLimitConfig struct {
	Enabled               bool
	VerifyRequestsPerMin  int
	CodeRequestsPerWindow int
	CodeWindowMinutes     int
	ManageRequestsPerMin  int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		// Server defaults
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort: getEnvInt("SERVER_PORT", 8080),

		// Database defaults
		DBHost:     getEnv("DB_HOST", ""),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "factorgate"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// Grant defaults
		GrantSecret: getEnv("GRANT_SECRET", ""),
		GrantIssuer: getEnv("GRANT_ISSUER", "factorgate"),
		GrantTTL:    getEnvDuration("GRANT_TTL", 2*time.Minute),

		// Verification defaults
		ChallengeLockThreshold: getEnvInt("CHALLENGE_LOCK_THRESHOLD", 5),
		SweepInterval:          getEnvDuration("SWEEP_INTERVAL", 5*time.Minute),
		AuditCapacity:          getEnvInt("AUDIT_CAPACITY", 1024),
		TOTPIssuer:             getEnv("TOTP_ISSUER", "factorgate"),

		// SMTP (optional)
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPFromName: getEnv("SMTP_FROM_NAME", ""),

		RateLimit: RateLimitConfig{
			Enabled:               getEnvBool("RATE_LIMIT_ENABLED", true),
			VerifyRequestsPerMin:  getEnvInt("RATE_LIMIT_VERIFY_PER_MIN", 10),
			CodeRequestsPerWindow: getEnvInt("RATE_LIMIT_CODE_PER_WINDOW", 5),
			CodeWindowMinutes:     getEnvInt("RATE_LIMIT_CODE_WINDOW_MIN", 15),
			ManageRequestsPerMin:  getEnvInt("RATE_LIMIT_MANAGE_PER_MIN", 30),
		},
	}

	// Validate required fields
	if cfg.GrantSecret == "" {
		return nil, fmt.Errorf("GRANT_SECRET is required")
	}

	return cfg, nil
}

// HasDB returns true if a database backend is configured.
func (c *Config) HasDB() bool {
	return c.DBHost != ""
}

// HasSMTP returns true if email delivery is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
