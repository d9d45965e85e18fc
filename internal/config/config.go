package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	LogLevel          string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	RenderSubject     string
	RenderTimeout     time.Duration
	ReportCacheTTL    time.Duration
	DamageKeywords    []string
	RollCallRateLimit int
	RollCallWindow    time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SCHOOL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "School Records API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("render.subject", "documents.render")
	v.SetDefault("render.timeout", "10s")
	v.SetDefault("report.cache_ttl", "10m")
	v.SetDefault("rollcall.rate_limit", 30)
	v.SetDefault("rollcall.window", "1m")

	renderTimeout, err := parseDuration(v, "render.timeout", "10s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid render timeout: %w", err)
	}

	cacheTTL, err := parseDuration(v, "report.cache_ttl", "10m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid report cache ttl: %w", err)
	}

	window, err := parseDuration(v, "rollcall.window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid roll call window: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		RenderSubject:     v.GetString("render.subject"),
		RenderTimeout:     renderTimeout,
		ReportCacheTTL:    cacheTTL,
		DamageKeywords:    splitList(v.GetString("equipment.damage_keywords")),
		RollCallRateLimit: v.GetInt("rollcall.rate_limit"),
		RollCallWindow:    window,
	}

	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.RollCallRateLimit <= 0 {
		cfg.RollCallRateLimit = 30
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
