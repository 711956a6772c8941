package config

import (
	"errors"
	"log/slog"
	"time"
)

// ClientConfig drives the admin CLI (cmd/schemectl).
type ClientConfig struct {
	APIURL          string
	Token           string
	TokenFile       string
	PageSize        int
	HTTPTimeout     time.Duration
	TokenCheckEvery time.Duration
	TokenCacheTTL   time.Duration
	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LogLevel        slog.Level
}

func LoadClient() (*ClientConfig, error) {
	loadDotEnv()
	cfg := &ClientConfig{
		APIURL:          getEnv("SCHEME_ADMIN_API_URL", "http://localhost:8080"),
		Token:           getEnv("SCHEME_ADMIN_TOKEN", ""),
		TokenFile:       getEnv("SCHEME_ADMIN_TOKEN_FILE", ""),
		PageSize:        getEnvInt("SCHEME_ADMIN_PAGE_SIZE", 20),
		HTTPTimeout:     time.Duration(getEnvInt("SCHEME_ADMIN_HTTP_TIMEOUT_SEC", 30)) * time.Second,
		TokenCheckEvery: time.Duration(getEnvInt("SCHEME_ADMIN_TOKEN_CHECK_SEC", 300)) * time.Second,
		TokenCacheTTL:   time.Duration(getEnvInt("SCHEME_ADMIN_TOKEN_CACHE_SEC", 600)) * time.Second,
		RedisURL:        getEnv("REDIS_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		LogLevel:        parseLevel(getEnv("LOG_LEVEL", "warn")),
	}
	if cfg.APIURL == "" {
		return nil, errors.New("SCHEME_ADMIN_API_URL is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	return cfg, nil
}
