package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken  string
	DatabaseURL    string
	ReportInterval time.Duration
	// ReportAt switches the agenda report to a daily HH:MM slot when set.
	ReportAt string
	Location       *time.Location

	Auth    AuthConfig
	Google  GoogleConfig
	Weather WeatherConfig
	Redis   RedisConfig
	NATS    NATSConfig
	Log     LogConfig
}

type AuthConfig struct {
	JWTSecret  string
	SessionTTL time.Duration
}

// GoogleConfig holds the Places / Geocoding key.
type GoogleConfig struct {
	MapsKey string
	BaseURL string
}

type WeatherConfig struct {
	APIKey   string
	BaseURL  string
	CacheTTL time.Duration
}

// RedisConfig is optional; an empty URL disables response caching.
type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// NATSConfig is optional; an empty URL keeps task events in-process.
type NATSConfig struct {
	URL string
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Load reads configuration from .env (when present) and environment variables with sane defaults.
func Load() (Config, error) {
	// a missing .env is fine, the environment wins anyway
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:  env("TELEGRAM_TOKEN", ""),
		DatabaseURL:    env("DATABASE_URL", "task_planner.db"),
		ReportInterval: parseInterval(env("REPORT_INTERVAL_HOURS", "")),
		ReportAt:       env("REPORT_AT", ""),
		Auth: AuthConfig{
			JWTSecret:  env("JWT_SECRET", ""),
			SessionTTL: time.Duration(envInt("SESSION_TTL_HOURS", 24*30)) * time.Hour,
		},
		Google: GoogleConfig{
			MapsKey: env("GOOGLE_MAPS_KEY", ""),
			BaseURL: env("GOOGLE_MAPS_BASE_URL", "https://maps.googleapis.com/maps/api"),
		},
		Weather: WeatherConfig{
			APIKey:   env("OPENWEATHER_KEY", ""),
			BaseURL:  env("OPENWEATHER_BASE_URL", "https://api.openweathermap.org"),
			CacheTTL: time.Duration(envInt("WEATHER_CACHE_MINUTES", 10)) * time.Minute,
		},
		Redis: RedisConfig{
			URL:      env("REDIS_URL", ""),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL: env("NATS_URL", ""),
		},
		Log: LogConfig{
			Level:      env("LOG_LEVEL", "info"),
			Format:     env("LOG_FORMAT", "text"),
			Output:     env("LOG_OUTPUT", "stdout"),
			FilePath:   env("LOG_FILE_PATH", "logs/task-planner.log"),
			MaxSize:    envInt("LOG_MAX_SIZE", 100),
			MaxBackups: envInt("LOG_MAX_BACKUPS", 5),
			MaxAge:     envInt("LOG_MAX_AGE", 30),
			Compress:   env("LOG_COMPRESS", "true") == "true",
		},
	}

	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	loc, err := loadLocation(env("TIMEZONE", ""))
	if err != nil {
		return cfg, err
	}
	cfg.Location = loc

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func env(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) int {
	raw := env(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
