package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds environment-based settings
type Config struct {
	Environment    string
	DatabaseURL    string
	MigrationsPath string
	ServerAddress  string

	RedisAddress  string
	RedisUsername string
	RedisPassword string

	MQTTBrokerURL string
	MQTTClientID  string

	CacheRefreshSpec     string
	ExpansionHorizonDays int
	// Location is the zone schedule days and recurring wall clocks are read in.
	Location *time.Location
	LogLevel zerolog.Level
}

func (c *Config) Development() bool { return c.Environment == "development" }

func (c *Config) CacheEnabled() bool { return c.RedisAddress != "" }

func (c *Config) NotificationsEnabled() bool { return c.MQTTBrokerURL != "" }

// Load reads configuration from environment variables, after merging a .env
// file from the working directory if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	horizon := 366
	if raw := os.Getenv("EXPANSION_HORIZON_DAYS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("EXPANSION_HORIZON_DAYS must be a positive integer, got %q", raw)
		}
		horizon = n
	}

	loc := time.Local
	if raw := os.Getenv("SCHEDULE_TIMEZONE"); raw != "" {
		l, err := time.LoadLocation(raw)
		if err != nil {
			return nil, fmt.Errorf("SCHEDULE_TIMEZONE: %w", err)
		}
		loc = l
	}

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		level = l
	}

	return &Config{
		Environment:          os.Getenv("APP_ENV"),
		DatabaseURL:          dbURL,
		MigrationsPath:       getenv("MIGRATIONS_PATH", "./migrations"),
		ServerAddress:        getenv("SERVER_ADDRESS", ":8080"),
		RedisAddress:         os.Getenv("REDIS_ADDRESS"),
		RedisUsername:        os.Getenv("REDIS_USERNAME"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		MQTTBrokerURL:        os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:         getenv("MQTT_CLIENT_ID", "marquee-server"),
		CacheRefreshSpec:     getenv("CACHE_REFRESH_SPEC", "@midnight"),
		ExpansionHorizonDays: horizon,
		Location:             loc,
		LogLevel:             level,
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
