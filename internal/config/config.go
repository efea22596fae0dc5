package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	HTTPPort        string
	BackendBaseURL  string
	RedisAddr       string
	HandoffBackend  string
	JWTIssuer       string
	JWTSigningKey   string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	RateLimitPerMin int
	SearchPageLimit int
	ActivityID      string
	HandoffTTL      time.Duration
}

// Load returns application config populated from environment variables with
// sensible defaults. A .env file in the working directory is honored when present.
func Load() App {
	_ = godotenv.Load()

	return App{
		Env:             getEnv("APP_ENV", "dev"),
		HTTPPort:        getEnv("HTTP_PORT", "8082"),
		BackendBaseURL:  getEnv("BACKEND_BASE_URL", "https://backend01-proyecto-jovenes-phru.vercel.app"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		HandoffBackend:  getEnv("HANDOFF_BACKEND", "memory"),
		JWTIssuer:       getEnv("JWT_ISSUER", "checkin-gateway"),
		JWTSigningKey:   getEnv("JWT_SIGNING_KEY", "dev-signing-secret-change"),
		AccessTTL:       durationEnv("ACCESS_TTL", 15*time.Minute),
		RefreshTTL:      durationEnv("REFRESH_TTL", 24*time.Hour),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
		SearchPageLimit: intEnv("SEARCH_PAGE_LIMIT", 100),
		ActivityID:      getEnv("ACTIVITY_ID", ""),
		HandoffTTL:      durationEnv("HANDOFF_TTL", 10*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
