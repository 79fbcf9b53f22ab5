package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"

	// DefaultChromePath is used in production when CHROME_PATH is not set.
	DefaultChromePath = "/usr/bin/chromium"
)

// Config holds all application configuration.
type Config struct {
	ServerPort string
	GinMode    string
	LogLevel   string
	LogFormat  string
	AppEnv     string

	// ─── Portal / Browser ──────────────────────────────────────────────
	ChromePath        string
	Headless          bool
	PortalURL         string
	StudentIDPrefix   string
	MaxTabs           int
	NavigationTimeout time.Duration
	SelectorTimeout   time.Duration
	SettleTimeout     time.Duration
	SettlePoll        time.Duration

	// ─── Cache / Queue ─────────────────────────────────────────────────
	CacheTTL time.Duration
	// RedisURL enables the prewarm queue. Empty disables it.
	RedisURL string

	// ─── HTTP ──────────────────────────────────────────────────────────
	// AllowedOrigins controls CORS. Empty slice means all origins are permitted.
	AllowedOrigins     []string
	RateLimitPerMinute int
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	return &Config{
		ServerPort: getEnv("SERVER_PORT", getEnv("PORT", "4000")),
		GinMode:    getEnv("GIN_MODE", "debug"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		LogFormat:  getEnv("LOG_FORMAT", "pretty"),
		AppEnv:     strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),

		ChromePath:        getEnv("CHROME_PATH", ""),
		Headless:          getEnvBool("BROWSER_HEADLESS", true),
		PortalURL:         getEnv("PORTAL_URL", "http://resultats.una.mr/FST/"),
		StudentIDPrefix:   getEnv("STUDENT_ID_PREFIX", "C"),
		MaxTabs:           getEnvInt("MAX_TABS", 4),
		NavigationTimeout: time.Duration(getEnvInt("NAVIGATION_TIMEOUT_SEC", 60)) * time.Second,
		SelectorTimeout:   time.Duration(getEnvInt("SELECTOR_TIMEOUT_SEC", 30)) * time.Second,
		SettleTimeout:     time.Duration(getEnvInt("SETTLE_TIMEOUT_MS", 5000)) * time.Millisecond,
		SettlePoll:        time.Duration(getEnvInt("SETTLE_POLL_MS", 150)) * time.Millisecond,

		CacheTTL: time.Duration(getEnvInt("CACHE_TTL_HOURS", 7*24)) * time.Hour,
		RedisURL: getEnv("REDIS_URL", ""),

		AllowedOrigins:     parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}
}

// BrowserExecPath resolves the Chrome executable for the current environment.
// An empty result lets chromedp locate a local installation.
func (c *Config) BrowserExecPath() string {
	if c.ChromePath != "" {
		return c.ChromePath
	}
	if c.AppEnv == EnvProduction {
		return DefaultChromePath
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return b
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
