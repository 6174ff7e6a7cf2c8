package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	Token         string
	Port          string
	DBPath        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	MapsAPIKey    string
	GeocoderURL   string
	AdminID       int64
	NotifyRate    int
}

// NewConfig reads the bot configuration from the environment. A .env file in
// the working directory is loaded first when present; variables already set
// in the environment win.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "production"),
		Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./deafbot.db"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		MapsAPIKey:    os.Getenv("YANDEX_MAPS_API_KEY"),
		GeocoderURL:   getEnv("GEOCODER_URL", "https://geocode-maps.yandex.ru/1.x"),
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.NotifyRate, err = getInt("NOTIFY_RATE", 30); err != nil {
		return nil, err
	}
	if v := os.Getenv("ADMIN_ID"); v != "" {
		if cfg.AdminID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("parse ADMIN_ID: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if c.MapsAPIKey == "" {
		return errors.New("YANDEX_MAPS_API_KEY is required")
	}
	if c.NotifyRate <= 0 {
		return fmt.Errorf("NOTIFY_RATE must be positive, got %d", c.NotifyRate)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
