package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr        = ":8080"
	defaultBackendTimeout  = "10s"
	defaultPollInterval    = "5s"
	defaultDatabaseURL     = "file:sessions.db"
	defaultSessionTTL      = "24h"
	defaultSessionCookie   = "gl_session"
	defaultCookieSecure    = "false"
	defaultActionRateLimit = "5"
	defaultActionRateBurst = "10"
)

type Config struct {
	AppEnv   string
	HTTPAddr string

	BackendBaseURL string
	BackendTimeout time.Duration
	PollInterval   time.Duration

	DatabaseURL       string
	SessionTTL        time.Duration
	SessionCookieName string
	CookieSecure      bool

	// Optional. When empty, backend tokens are read without signature checks.
	JWTSecret string

	CORSAllowedOrigins []string

	ActionRateLimit float64
	ActionRateBurst int
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.BackendBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BACKEND_BASE_URL")), "/")
	cfg.DatabaseURL = strings.TrimSpace(getEnv("DATABASE_URL", defaultDatabaseURL))
	cfg.SessionCookieName = strings.TrimSpace(getEnv("SESSION_COOKIE_NAME", defaultSessionCookie))
	cfg.CookieSecure = parseBoolEnv("COOKIE_SECURE", defaultCookieSecure)
	cfg.JWTSecret = strings.TrimSpace(os.Getenv("JWT_SECRET"))

	if extra := os.Getenv("CORS_ALLOWED_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	var err error
	if cfg.BackendTimeout, err = parseDurationEnv("BACKEND_TIMEOUT", defaultBackendTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = parseDurationEnv("POLL_INTERVAL", defaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = parseDurationEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return nil, err
	}

	limit := strings.TrimSpace(getEnv("ACTION_RATE_LIMIT", defaultActionRateLimit))
	if cfg.ActionRateLimit, err = strconv.ParseFloat(limit, 64); err != nil {
		return nil, fmt.Errorf("invalid ACTION_RATE_LIMIT value %q: %w", limit, err)
	}
	burst := strings.TrimSpace(getEnv("ACTION_RATE_BURST", defaultActionRateBurst))
	if cfg.ActionRateBurst, err = strconv.Atoi(burst); err != nil {
		return nil, fmt.Errorf("invalid ACTION_RATE_BURST value %q: %w", burst, err)
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL must be set")
	}
	u, err := url.Parse(cfg.BackendBaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("BACKEND_BASE_URL must be an absolute http(s) URL")
	}
	if cfg.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be > 0")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if cfg.SessionCookieName == "" {
		return fmt.Errorf("SESSION_COOKIE_NAME must not be empty")
	}
	if cfg.ActionRateLimit <= 0 || cfg.ActionRateBurst <= 0 {
		return fmt.Errorf("ACTION_RATE_LIMIT and ACTION_RATE_BURST must be > 0")
	}

	if IsProdLike(cfg.AppEnv) {
		if u.Scheme != "https" {
			return fmt.Errorf("in prod/release BACKEND_BASE_URL must use https")
		}
		if !cfg.CookieSecure {
			return fmt.Errorf("in prod/release COOKIE_SECURE must be true")
		}
	}

	return nil
}

func IsProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
