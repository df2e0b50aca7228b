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
	Redis    RedisConfig
	Server   ServerConfig
	Auth     AuthConfig
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

type RedisConfig struct {
	URL string
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	TrustProxy     bool
	AllowedOrigins []string
}

type AuthConfig struct {
	// Login throttling thresholds and cooldowns.
	SoftLockThreshold int
	HardLockThreshold int
	SoftLockCooldown  time.Duration
	HardLockCooldown  time.Duration

	SessionTTL time.Duration

	// Minimum response time on failed logins, to keep "unknown user" and
	// "wrong password" indistinguishable.
	TimingDelayBaseMs   int
	TimingDelayRandomMs int

	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "toolshed"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			TrustProxy:     getEnvAsBool("TRUST_PROXY", false),
			AllowedOrigins: parseAllowedOrigins(env),
		},
		Auth: AuthConfig{
			SoftLockThreshold:   getEnvAsInt("LOGIN_SOFT_LOCK_THRESHOLD", 3),
			HardLockThreshold:   getEnvAsInt("LOGIN_HARD_LOCK_THRESHOLD", 5),
			SoftLockCooldown:    getEnvAsDuration("LOGIN_SOFT_LOCK_COOLDOWN", 1*time.Minute),
			HardLockCooldown:    getEnvAsDuration("LOGIN_HARD_LOCK_COOLDOWN", 5*time.Minute),
			SessionTTL:          getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			TimingDelayBaseMs:   getEnvAsInt("TIMING_DELAY_BASE_MS", 100),
			TimingDelayRandomMs: getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			CleanupInterval:     getEnvAsDuration("COOLDOWN_CLEANUP_INTERVAL", 1*time.Hour),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateThrottle(&cfg.Auth); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateThrottle rejects threshold configurations the lockout state
// machine cannot honor.
func validateThrottle(cfg *AuthConfig) error {
	if cfg.SoftLockThreshold < 1 {
		return fmt.Errorf("LOGIN_SOFT_LOCK_THRESHOLD must be at least 1 (got %d)", cfg.SoftLockThreshold)
	}
	if cfg.HardLockThreshold <= cfg.SoftLockThreshold {
		return fmt.Errorf("LOGIN_HARD_LOCK_THRESHOLD (%d) must be greater than LOGIN_SOFT_LOCK_THRESHOLD (%d)",
			cfg.HardLockThreshold, cfg.SoftLockThreshold)
	}
	if cfg.SoftLockCooldown <= 0 || cfg.HardLockCooldown <= 0 {
		return fmt.Errorf("lock cooldowns must be positive")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
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

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		originsStr := getEnv("ALLOWED_ORIGINS", "")
		if originsStr == "" {
			return []string{}
		}
		origins := strings.Split(originsStr, ",")
		for i, origin := range origins {
			origins[i] = strings.TrimSpace(origin)
		}
		return origins
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
