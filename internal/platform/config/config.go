package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr             string
	DatabaseURL      string
	RedisURL         string
	ReferralGoal     int
	JWTSigningKey    string
	NotifyWebhookURL string
	ShutdownTimeout  time.Duration
}

// CountCacheTTL bounds how stale a cached referral count may be.
var CountCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("REFHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	goal := 10
	if raw := os.Getenv("REFERRAL_GOAL"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			goal = parsed
		}
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:             addr,
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		ReferralGoal:     goal,
		JWTSigningKey:    jwtSigningKey,
		NotifyWebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
		ShutdownTimeout:  10 * time.Second,
	}
}
