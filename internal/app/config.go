package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration
	LogLevel       string
	LogFormat      string
	UserAgent      string
	PlacesAPIKey   string
	PlacesBaseURL  string
	RedisURL       string
	CursorTTL      time.Duration
	LockTTL        time.Duration
	ProviderQPS    float64
	ProviderBurst  int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout: time.Duration(getEnvInt("DISCOVERY_TIMEOUT_SECONDS", 25)) * time.Second,
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:      getEnv("DISCOVERY_USER_AGENT", "placefinder-discovery/1.0"),
		PlacesAPIKey:   strings.TrimSpace(os.Getenv("PLACES_API_KEY")),
		PlacesBaseURL:  getEnv("PLACES_BASE_URL", "https://places.googleapis.com"),
		RedisURL:       getEnv("REDIS_URL", ""),
		CursorTTL:      time.Duration(getEnvInt("CURSOR_TTL_MINUTES", 30)) * time.Minute,
		LockTTL:        time.Duration(getEnvInt("CURSOR_LOCK_TTL_SECONDS", 10)) * time.Second,
		ProviderQPS:    getEnvFloat("PLACES_QPS", 10),
		ProviderBurst:  getEnvInt("PLACES_BURST", 20),
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
