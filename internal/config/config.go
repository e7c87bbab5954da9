package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Gate     GateConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	BaseURL        string
	CompanionURL   string
	TrustedProxies []string
}

type AuthConfig struct {
	SessionSecret    string
	RememberDuration time.Duration
	UsernameSalt     string
}

// GateConfig holds the login gate defaults. Lockout thresholds live in
// the security options record, not here; these are the fixed global
// throttle and bot-detection knobs.
type GateConfig struct {
	LoginLimit      int           // global per-IP attempts per window
	LoginWindow     time.Duration // sliding window for the global throttle
	MinHumanDelay   time.Duration // honeypot timing threshold
	AttemptDelay    time.Duration // constant post-attempt delay
	FormTokenTTL    time.Duration
	AlertWindow     time.Duration // at most one alert per triple per window
	PruneInterval   time.Duration
	SyncEventMaxAge time.Duration
}

type EmailConfig struct {
	Enabled        bool
	AWSRegion      string
	FromAddress    string
	AlertRecipient string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionSecret := getEnv("SESSION_SECRET", "")
	if sessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "gatehouse"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
			CompanionURL:   getEnv("COMPANION_URL", ""),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
		},
		Auth: AuthConfig{
			SessionSecret:    sessionSecret,
			RememberDuration: getEnvAsDuration("REMEMBER_DURATION", 14*24*time.Hour),
			UsernameSalt:     getEnv("USERNAME_SALT", ""),
		},
		Gate: GateConfig{
			LoginLimit:      getEnvAsInt("GATE_LOGIN_LIMIT", 10),
			LoginWindow:     getEnvAsDuration("GATE_LOGIN_WINDOW", 5*time.Minute),
			MinHumanDelay:   getEnvAsDuration("GATE_MIN_HUMAN_DELAY", 2*time.Second),
			AttemptDelay:    getEnvAsDuration("GATE_ATTEMPT_DELAY", 400*time.Millisecond),
			FormTokenTTL:    getEnvAsDuration("GATE_FORM_TOKEN_TTL", 15*time.Minute),
			AlertWindow:     getEnvAsDuration("GATE_ALERT_WINDOW", 1*time.Hour),
			PruneInterval:   getEnvAsDuration("GATE_PRUNE_INTERVAL", 1*time.Hour),
			SyncEventMaxAge: getEnvAsDuration("GATE_SYNC_EVENT_MAX_AGE", 7*24*time.Hour),
		},
		Email: EmailConfig{
			Enabled:        getEnvAsBool("EMAIL_ALERTS_ENABLED", false),
			AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
			FromAddress:    getEnv("EMAIL_FROM_ADDRESS", ""),
			AlertRecipient: getEnv("EMAIL_ALERT_RECIPIENT", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.Auth.UsernameSalt == "" {
		// Fall back to the session secret so username hashes stay stable
		// across restarts of a single deployment.
		cfg.Auth.UsernameSalt = cfg.Auth.SessionSecret
	}

	if err := validateSessionSecret(sessionSecret, env); err != nil {
		return nil, err
	}

	if cfg.Email.Enabled && (cfg.Email.FromAddress == "" || cfg.Email.AlertRecipient == "") {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS and EMAIL_ALERT_RECIPIENT are required when alerts are enabled")
	}

	return cfg, nil
}

// validateSessionSecret enforces minimum security standards for the signing secret
func validateSessionSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SESSION_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return fmt.Errorf("SESSION_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
