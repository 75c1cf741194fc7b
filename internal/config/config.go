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
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Idempotency IdempotencyConfig
	Dedup       DedupConfig
	Helpdesk    HelpdeskConfig
	Worker      WorkerConfig
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

// PostgresConfig holds DB connection values for the optional audit log.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values for event fan-out.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	Modes               []string
	SharedSecret        string
	HMACSecret          string
	JWTSecret           string
	ReplayWindowSeconds int
}

// RateLimitConfig bounds per-identity request rate.
type RateLimitConfig struct {
	Max      int
	WindowMS int
}

// IdempotencyConfig controls retention of committed responses.
type IdempotencyConfig struct {
	TTLMinutes int
}

// DedupConfig controls ticket record retention and the duplicate window.
type DedupConfig struct {
	TicketTTLMinutes   int
	WindowMinutes      int
	AppendNoteOnDupHit bool
}

// HelpdeskConfig points at the external helpdesk backend.
type HelpdeskConfig struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
	RatePerSecond  float64
	Burst          int
}

// WorkerConfig controls background maintenance.
type WorkerConfig struct {
	SweepIntervalSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	ratePerSecond, err := strconv.ParseFloat(getEnv("HELPDESK_RATE_PER_SECOND", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid HELPDESK_RATE_PER_SECOND: %w", err)
	}

	ticketTTL := getEnvAsInt("TICKET_TTL_MINUTES", 240)

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "escalation-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Channel:  getEnv("REDIS_EVENTS_CHANNEL", "escalations.events"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			Modes:               getEnvAsList("AUTH_MODES", []string{"token", "hmac"}),
			SharedSecret:        os.Getenv("AUTH_SHARED_SECRET"),
			HMACSecret:          os.Getenv("AUTH_HMAC_SECRET"),
			JWTSecret:           os.Getenv("AUTH_JWT_SECRET"),
			ReplayWindowSeconds: getEnvAsInt("AUTH_REPLAY_WINDOW_SECONDS", 300),
		},
		RateLimit: RateLimitConfig{
			Max:      getEnvAsInt("RATE_LIMIT_MAX", 10),
			WindowMS: getEnvAsInt("RATE_LIMIT_WINDOW_MS", 1000),
		},
		Idempotency: IdempotencyConfig{
			TTLMinutes: getEnvAsInt("IDEMPOTENCY_TTL_MINUTES", 15),
		},
		Dedup: DedupConfig{
			TicketTTLMinutes:   ticketTTL,
			WindowMinutes:      getEnvAsInt("DEDUP_WINDOW_MINUTES", ticketTTL),
			AppendNoteOnDupHit: getEnvAsBool("DEDUP_APPEND_NOTE", true),
		},
		Helpdesk: HelpdeskConfig{
			BaseURL:        os.Getenv("HELPDESK_BASE_URL"),
			APIKey:         os.Getenv("HELPDESK_API_KEY"),
			TimeoutSeconds: getEnvAsInt("HELPDESK_TIMEOUT_SECONDS", 10),
			RatePerSecond:  ratePerSecond,
			Burst:          getEnvAsInt("HELPDESK_BURST", 10),
		},
		Worker: WorkerConfig{
			SweepIntervalSeconds: getEnvAsInt("SWEEP_INTERVAL_SECONDS", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for _, mode := range c.Auth.Modes {
		switch mode {
		case "token":
			if c.Auth.SharedSecret == "" {
				return fmt.Errorf("AUTH_SHARED_SECRET required for token mode")
			}
		case "hmac":
			if c.Auth.HMACSecret == "" {
				return fmt.Errorf("AUTH_HMAC_SECRET required for hmac mode")
			}
		case "jwt":
			if c.Auth.JWTSecret == "" {
				return fmt.Errorf("AUTH_JWT_SECRET required for jwt mode")
			}
		default:
			return fmt.Errorf("unknown auth mode %q", mode)
		}
	}
	if c.RateLimit.Max <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	return nil
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

// ReplayWindow returns the accepted clock skew for signed requests.
func (a AuthConfig) ReplayWindow() time.Duration {
	return time.Duration(a.ReplayWindowSeconds) * time.Second
}

// Window returns the fixed rate-limit window.
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMS) * time.Millisecond
}

// TTL returns how long committed responses are replayed.
func (i IdempotencyConfig) TTL() time.Duration {
	return time.Duration(i.TTLMinutes) * time.Minute
}

// TicketTTL returns how long ticket records are retained.
func (d DedupConfig) TicketTTL() time.Duration {
	return time.Duration(d.TicketTTLMinutes) * time.Minute
}

// Window returns how long a ticket record absorbs duplicates.
func (d DedupConfig) Window() time.Duration {
	return time.Duration(d.WindowMinutes) * time.Minute
}

// Timeout bounds each backend call.
func (h HelpdeskConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// SweepInterval returns the maintenance tick.
func (w WorkerConfig) SweepInterval() time.Duration {
	return time.Duration(w.SweepIntervalSeconds) * time.Second
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

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
