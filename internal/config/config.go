package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Workday  WorkdayConfig
	Notify   NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
}

// WorkdayConfig defines the engineer work window and the end-of-shift cutoff.
type WorkdayConfig struct {
	OpenHour     int
	CutoffHour   int
	Timezone     string
	SweepSeconds int
}

// NotifyConfig holds event fan-out settings.
type NotifyConfig struct {
	EventChannel string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "field-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Workday: WorkdayConfig{
			OpenHour:     getEnvAsInt("WORKDAY_OPEN_HOUR", 9),
			CutoffHour:   getEnvAsInt("WORKDAY_CUTOFF_HOUR", 19),
			Timezone:     getEnv("WORKDAY_TIMEZONE", ""),
			SweepSeconds: getEnvAsInt("WORKDAY_SWEEP_SECONDS", 60),
		},
		Notify: NotifyConfig{
			EventChannel: getEnv("NOTIFY_EVENT_CHANNEL", "field-service:events"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the workday timezone, falling back to local time.
func (w WorkdayConfig) Location() *time.Location {
	if w.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// OpenAt returns the work window opening instant for the day containing t.
func (w WorkdayConfig) OpenAt(t time.Time) time.Time {
	local := t.In(w.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), w.OpenHour, 0, 0, 0, local.Location())
}

// CutoffAt returns the end-of-shift cutoff instant for the day containing t.
// Minutes past this instant never accrue as work time.
func (w WorkdayConfig) CutoffAt(t time.Time) time.Time {
	local := t.In(w.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), w.CutoffHour, 0, 0, 0, local.Location())
}

// SweepInterval returns the cadence of the automatic cutoff check.
func (w WorkdayConfig) SweepInterval() time.Duration {
	if w.SweepSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(w.SweepSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
