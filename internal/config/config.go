// Package config provides application configuration loaded from environment
// variables and an optional config.yaml, with defaults and validation. It
// centralizes server timeouts, logging, storage, the settlement schedule,
// outbound integrations, rate limiting, and observability.
//
// Values are resolved through viper: an environment variable (PORT) wins over
// the same key in config.yaml (port), which wins over the built-in default.
// The file is looked up in "." and "./config", or at CONFIG_FILE when set;
// a missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the SQL backend.
type DBConfig struct {
	Driver string // sqlite|postgres
	Path   string // SQLite file
	URL    string // Postgres DSN
}

// RedisConfig locates the Redis used for the settlement lease. An empty Addr
// disables Redis and falls back to an in-process lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SettlementConfig drives the daily job.
type SettlementConfig struct {
	LockTTL         time.Duration
	Timezone        string
	Location        *time.Location // resolved from Timezone
	ContentAttempts int
}

// ContentConfig configures the Giphy-compatible content provider.
type ContentConfig struct {
	BaseURL string
	APIKey  string
	Tag     string
	Rating  string
	Timeout time.Duration
}

// PushConfig configures Web Push delivery. Without both VAPID keys push is
// disabled.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	Timeout         time.Duration
	Concurrency     int
}

// LLMConfig configures the caption suggestion model. Without a token the
// suggestions endpoint answers 502.
type LLMConfig struct {
	BaseURL string
	Token   string
	Model   string
	Timeout time.Duration
}

// GameConfig holds contest rules that are tunable per deployment.
type GameConfig struct {
	MaxCaptionRunes int
	EditTokenPrice  int
	LeaderboardSize int
	LeaderboardTTL  time.Duration
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB    DBConfig
	Redis RedisConfig

	Settlement SettlementConfig
	Content    ContentConfig
	Push       PushConfig
	LLM        LLMConfig
	Game       GameConfig

	// PublicBaseURL is the web app origin used for links in notifications.
	PublicBaseURL string

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)
	// Dedicated per-caller bucket for the vote routes.
	VoteRateRPS   float64
	VoteRateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from the environment and config file, applies
// defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if f := strings.TrimSpace(os.Getenv("CONFIG_FILE")); f != "" {
		v.SetConfigFile(f)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	s := source{v: v}

	cfg := Config{
		// Server
		Port:              s.str("PORT", "8080"),
		ReadTimeout:       s.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: s.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      s.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       s.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    s.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(s.str("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(s.str("LOG_LEVEL", "info")),
		LogPretty:      s.bool("LOG_PRETTY", false),
		SwaggerEnabled: s.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(s.str("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(strings.TrimSpace(s.str("DB_DRIVER", "sqlite"))),
			Path:   s.str("DB_PATH", "memes.db"),
			URL:    s.str("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     s.str("REDIS_ADDR", ""),
			Password: s.str("REDIS_PASSWORD", ""),
			DB:       s.int("REDIS_DB", 0),
		},

		Settlement: SettlementConfig{
			LockTTL:         s.dur("SETTLEMENT_LOCK_TTL", 2*time.Minute),
			Timezone:        s.str("TIMEZONE", "UTC"),
			ContentAttempts: s.int("SETTLE_CONTENT_ATTEMPTS", 5),
		},
		Content: ContentConfig{
			BaseURL: s.str("CONTENT_BASE_URL", "https://api.giphy.com"),
			APIKey:  s.str("CONTENT_API_KEY", ""),
			Tag:     s.str("CONTENT_TAG", "funny"),
			Rating:  s.str("CONTENT_RATING", "pg-13"),
			Timeout: s.dur("CONTENT_TIMEOUT", 5*time.Second),
		},
		Push: PushConfig{
			VAPIDPublicKey:  s.str("VAPID_PUBLIC_KEY", ""),
			VAPIDPrivateKey: s.str("VAPID_PRIVATE_KEY", ""),
			Subscriber:      s.str("VAPID_SUBSCRIBER", "mailto:admin@example.com"),
			Timeout:         s.dur("PUSH_TIMEOUT", 10*time.Second),
			Concurrency:     s.int("PUSH_CONCURRENCY", 8),
		},
		LLM: LLMConfig{
			BaseURL: s.str("LLM_BASE_URL", "https://api.openai.com"),
			Token:   s.str("LLM_TOKEN", ""),
			Model:   s.str("LLM_MODEL", "gpt-4o-mini"),
			Timeout: s.dur("LLM_TIMEOUT", 15*time.Second),
		},
		Game: GameConfig{
			MaxCaptionRunes: s.int("MAX_CAPTION_RUNES", 280),
			EditTokenPrice:  s.int("EDIT_TOKEN_PRICE", 30),
			LeaderboardSize: s.int("LEADERBOARD_SIZE", 50),
			LeaderboardTTL:  s.dur("LEADERBOARD_TTL", 30*time.Second),
		},
		PublicBaseURL: strings.TrimRight(s.str("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),

		// Rate limiting
		RateRPS:   s.float("RATE_RPS", 5.0),
		RateBurst: s.int("RATE_BURST", 10),

		VoteRateRPS:   s.float("VOTE_RATE_RPS", 2.0),
		VoteRateBurst: s.int("VOTE_RATE_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(s.str("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: s.bool("ENABLE_HSTS", false),
			HSTSMaxAge: s.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: s.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     s.bool("OTEL_ENABLED", false),
			Endpoint:    s.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    s.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: s.str("OTEL_SERVICE_NAME", "meme-daily-backend"),
			SampleRatio: s.float("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return cfg, errors.New("DATABASE_URL must not be empty when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be sqlite or postgres")
	}
	loc, err := time.LoadLocation(cfg.Settlement.Timezone)
	if err != nil {
		return cfg, fmt.Errorf("TIMEZONE: %w", err)
	}
	cfg.Settlement.Location = loc
	if cfg.Settlement.LockTTL <= 0 {
		return cfg, errors.New("SETTLEMENT_LOCK_TTL must be > 0")
	}
	if cfg.Settlement.ContentAttempts < 1 {
		return cfg, errors.New("SETTLE_CONTENT_ATTEMPTS must be >= 1")
	}
	if cfg.Content.Timeout <= 0 || cfg.Push.Timeout <= 0 || cfg.LLM.Timeout <= 0 {
		return cfg, errors.New("CONTENT_TIMEOUT, PUSH_TIMEOUT and LLM_TIMEOUT must be > 0")
	}
	if cfg.Push.Concurrency < 1 {
		return cfg, errors.New("PUSH_CONCURRENCY must be >= 1")
	}
	if cfg.Game.MaxCaptionRunes < 1 {
		return cfg, errors.New("MAX_CAPTION_RUNES must be >= 1")
	}
	if cfg.Game.EditTokenPrice < 0 {
		return cfg, errors.New("EDIT_TOKEN_PRICE must be >= 0")
	}
	if cfg.Game.LeaderboardSize < 1 {
		return cfg, errors.New("LEADERBOARD_SIZE must be >= 1")
	}
	if cfg.Game.LeaderboardTTL < 0 {
		return cfg, errors.New("LEADERBOARD_TTL must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.VoteRateRPS < 0 {
		return cfg, errors.New("VOTE_RATE_RPS must be >= 0")
	}
	if cfg.VoteRateBurst < 1 {
		return cfg, errors.New("VOTE_RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// source reads raw values through viper and parses them leniently: a value
// that does not parse falls back to the default instead of zero.
type source struct {
	v *viper.Viper
}

func (s source) raw(k string) string {
	return s.v.GetString(strings.ToLower(k))
}

func (s source) str(k, def string) string {
	if v := s.raw(k); v != "" {
		return v
	}
	return def
}

func (s source) float(k string, def float64) float64 {
	if v := s.raw(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) int(k string, def int) int {
	if v := s.raw(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return def
}

func (s source) bool(k string, def bool) bool {
	if v := s.raw(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) dur(k string, def time.Duration) time.Duration {
	if v := s.raw(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
