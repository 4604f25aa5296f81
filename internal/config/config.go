package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	SLA          SLAConfig
	Sweep        SweepConfig
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
	MigrationsDir  string
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

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// SLAConfig is the raw business calendar configuration. It is turned into a
// validated sla.CalendarConfig by the calendar package.
type SLAConfig struct {
	Timezone           string
	Workdays           []string
	WorkStartHour      int
	WorkEndHour        int
	FirstResponseHours int
	WarnThresholds     [2]int
	Holidays           []string
	HolidayPreset      string
	HolidayICSPath     string
	CalendarFile       string
}

// SweepConfig controls the periodic SLA status sweep.
type SweepConfig struct {
	Enabled   bool
	Schedule  string
	BatchSize int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	slaCfg, err := loadSLA()
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-sla-service"),
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
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
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
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		SLA: slaCfg,
		Sweep: SweepConfig{
			Enabled:   getEnvAsBool("SLA_SWEEP_ENABLED", true),
			Schedule:  getEnv("SLA_SWEEP_SCHEDULE", "*/10 * * * *"),
			BatchSize: getEnvAsInt("SLA_SWEEP_BATCH_SIZE", 200),
		},
	}

	return cfg, nil
}

// loadSLA reads the SLA_* keys. Unlike the other sections a malformed value
// is an error, since a silently defaulted calendar produces wrong deadlines.
func loadSLA() (SLAConfig, error) {
	startHour, err := lookupInt("SLA_WORK_START_HOUR", 9)
	if err != nil {
		return SLAConfig{}, err
	}
	endHour, err := lookupInt("SLA_WORK_END_HOUR", 18)
	if err != nil {
		return SLAConfig{}, err
	}
	responseHours, err := lookupInt("SLA_FIRST_RESPONSE_HOURS", 8)
	if err != nil {
		return SLAConfig{}, err
	}
	thresholds, err := parseThresholds(getEnv("SLA_WARN_THRESHOLDS", "120,30"))
	if err != nil {
		return SLAConfig{}, err
	}

	return SLAConfig{
		Timezone:           getEnv("SLA_TIMEZONE", "America/Los_Angeles"),
		Workdays:           splitList(getEnv("SLA_WORKDAYS", "mon,tue,wed,thu,fri")),
		WorkStartHour:      startHour,
		WorkEndHour:        endHour,
		FirstResponseHours: responseHours,
		WarnThresholds:     thresholds,
		Holidays:           splitList(os.Getenv("SLA_HOLIDAYS")),
		HolidayPreset:      strings.ToLower(strings.TrimSpace(os.Getenv("SLA_HOLIDAY_PRESET"))),
		HolidayICSPath:     os.Getenv("SLA_HOLIDAY_ICS"),
		CalendarFile:       os.Getenv("SLA_CALENDAR_FILE"),
	}, nil
}

func parseThresholds(raw string) ([2]int, error) {
	parts := splitList(raw)
	if len(parts) != 2 {
		return [2]int{}, fmt.Errorf("invalid SLA_WARN_THRESHOLDS %q: expected two comma separated minute values", raw)
	}
	var out [2]int
	for i, part := range parts {
		v, err := strconv.Atoi(part)
		if err != nil {
			return [2]int{}, fmt.Errorf("invalid SLA_WARN_THRESHOLDS %q: %w", raw, err)
		}
		out[i] = v
	}
	return out, nil
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

func lookupInt(key string, fallback int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
