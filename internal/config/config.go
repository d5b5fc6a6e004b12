// Package config gathers the environment-derived settings for the service.
package config

import (
	"os"
	"strings"
	"time"
)

// Config holds everything cmd/api needs to wire the service together.
type Config struct {
	HTTPAddr    string
	PGDSN       string
	RedisAddr   string
	SessionTTL  time.Duration
	ResetSecret string
	ResetTTL    time.Duration
}

// FromEnv reads configuration from DESKHUB_* environment variables, applying
// defaults where the variable is unset.
func FromEnv() Config {
	return Config{
		HTTPAddr:    getenv("DESKHUB_HTTP_ADDR", ":8080"),
		PGDSN:       getenv("DESKHUB_PG_DSN", ""),
		RedisAddr:   getenv("DESKHUB_REDIS_ADDR", "127.0.0.1:6379"),
		SessionTTL:  getduration("DESKHUB_SESSION_TTL", 12*time.Hour),
		ResetSecret: getenv("DESKHUB_RESET_SECRET", ""),
		ResetTTL:    getduration("DESKHUB_RESET_TTL", 30*time.Minute),
	}
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
