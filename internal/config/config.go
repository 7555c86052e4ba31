package config

import (
	"os"
	"strconv"
)

// Config holds the core runtime configuration for the service.
// Values are primarily sourced from environment variables, with
// sensible defaults where appropriate. See .env.example.
type Config struct {
	DatabaseURL string

	ListenAddr string

	// Redis backend for rate-limit counters and the IP reputation cache.
	// If RedisAddr is empty the limiter degrades to an in-process store.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SpamThreshold is the score at or above which a submission is
	// classified as spam. The classifier caps scores at 100.
	SpamThreshold int

	// SessionWindowMinutes is the inactivity window after which a session
	// can no longer be resumed and is eligible for the sweep worker.
	SessionWindowMinutes int

	// AttemptRetentionDays bounds how long funnel audit attempts are kept.
	AttemptRetentionDays int

	// GeoIPURL is the base URL of the IP geolocation collaborator.
	// If empty, geolocation is disabled and sessions keep empty geo fields.
	GeoIPURL string

	// Resend credentials for the new-lead notification email. If the API
	// key is empty, notification is disabled.
	ResendAPIKey  string
	LeadEmailFrom string
	LeadEmailTo   string

	// MetricsKey optionally gates the per-site filtered metrics endpoint.
	MetricsKey string
}

// Load reads configuration from environment variables and applies defaults.
func Load() *Config {
	cfg := &Config{
		DatabaseURL:          os.Getenv("APP_DATABASE_URL"),
		ListenAddr:           getenv("APP_LISTEN_ADDR", ":8080"),
		RedisAddr:            os.Getenv("APP_REDIS_ADDR"),
		RedisPassword:        os.Getenv("APP_REDIS_PASSWORD"),
		RedisDB:              getenvInt("APP_REDIS_DB", 0),
		SpamThreshold:        getenvInt("APP_SPAM_THRESHOLD", 50),
		SessionWindowMinutes: getenvInt("APP_SESSION_WINDOW_MINUTES", 30),
		AttemptRetentionDays: getenvInt("APP_ATTEMPT_RETENTION_DAYS", 30),
		GeoIPURL:             os.Getenv("APP_GEOIP_URL"),
		ResendAPIKey:         os.Getenv("RESEND_API_KEY"),
		LeadEmailFrom:        getenv("APP_LEAD_EMAIL_FROM", "leads@leadpulse.local"),
		LeadEmailTo:          os.Getenv("APP_LEAD_EMAIL_TO"),
		MetricsKey:           os.Getenv("APP_METRICS_KEY"),
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
