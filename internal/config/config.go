package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds service settings. Values come from defaults, then the optional
// YAML file named by CONFIG_FILE, then environment variables.
type Config struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"log_level"`
	Development    bool     `yaml:"development"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	JWTSecret string `yaml:"jwt_secret"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	EventsChannel string `yaml:"events_channel"`

	HistoryDriver string `yaml:"history_driver"` // "", "sqlite" or "postgres"
	HistoryDSN    string `yaml:"history_dsn"`

	ReapSchedule string        `yaml:"reap_schedule"` // cron expression, empty disables reaping
	RoomIdleTTL  time.Duration `yaml:"room_idle_ttl"`
}

func defaults() *Config {
	return &Config{
		Port:           "8080",
		LogLevel:       "info",
		AllowedOrigins: []string{"http://localhost:5173"},
		JWTSecret:      "your-secret-key",
		EventsChannel:  "interview_events",
		RoomIdleTTL:    24 * time.Hour,
	}
}

// LoadConfig builds the configuration and validates it.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnvOrDefault("PORT", cfg.Port)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.EventsChannel = getEnvOrDefault("EVENTS_CHANNEL", cfg.EventsChannel)
	cfg.HistoryDriver = getEnvOrDefault("HISTORY_DB_DRIVER", cfg.HistoryDriver)
	cfg.HistoryDSN = getEnvOrDefault("HISTORY_DB_DSN", cfg.HistoryDSN)
	cfg.ReapSchedule = getEnvOrDefault("ROOM_REAP_SCHEDULE", cfg.ReapSchedule)

	if v := os.Getenv("DEVELOPMENT"); v != "" {
		cfg.Development = v == "true" || v == "1"
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("ROOM_IDLE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ROOM_IDLE_TTL: %w", err)
		}
		cfg.RoomIdleTTL = ttl
	}
	return nil
}

func validateConfig(cfg *Config) error {
	if cfg.Port == "" {
		return errors.New("port must not be empty")
	}
	if cfg.JWTSecret == "" {
		return errors.New("jwt secret must not be empty")
	}
	switch cfg.HistoryDriver {
	case "":
	case "sqlite", "postgres":
		if cfg.HistoryDSN == "" {
			return fmt.Errorf("history driver %s requires a dsn", cfg.HistoryDriver)
		}
	default:
		return errors.New("unsupported history driver: " + cfg.HistoryDriver + ". Currently supported: sqlite, postgres")
	}
	if cfg.ReapSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReapSchedule); err != nil {
			return fmt.Errorf("invalid reap schedule: %w", err)
		}
		if cfg.RoomIdleTTL <= 0 {
			return errors.New("room idle ttl must be positive when reaping is enabled")
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
