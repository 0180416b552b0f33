package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/Dosada05/contest-system/storage"
)

const (
	defaultPort            = 8080
	defaultTickSchedule    = "5 0 * * *"
	defaultTickParallelism = 4
	defaultCacheTTL        = 10 * time.Minute
)

// Config holds every setting of the server and the contestctl tool.
type Config struct {
	DatabaseURL     string
	ServerPort      int
	JWTSecretKey    string
	DriverKeyHash   string
	TickSchedule    string
	TickParallelism int
	RedisURL        string
	CacheTTL        time.Duration
	Location        *time.Location
	AllowedOrigins  []string
	R2              storage.R2Config
}

// Load reads the configuration from the environment. A .env file is loaded
// first when present; variables already set win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", defaultPort)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	schedule := envOr("TICK_SCHEDULE", defaultTickSchedule)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid TICK_SCHEDULE %q: %w", schedule, err)
	}

	parallelism, err := intEnv("TICK_PARALLELISM", defaultTickParallelism)
	if err != nil {
		return nil, err
	}
	if parallelism < 1 {
		return nil, fmt.Errorf("TICK_PARALLELISM must be at least 1, got %d", parallelism)
	}

	cacheTTL := defaultCacheTTL
	if raw := os.Getenv("CACHE_TTL"); raw != "" {
		if cacheTTL, err = time.ParseDuration(raw); err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL environment variable: %w", err)
		}
	}

	location, err := time.LoadLocation(envOr("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE environment variable: %w", err)
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		ServerPort:      port,
		JWTSecretKey:    os.Getenv("JWT_SECRET_KEY"),
		DriverKeyHash:   os.Getenv("DRIVER_KEY_HASH"),
		TickSchedule:    schedule,
		TickParallelism: parallelism,
		RedisURL:        os.Getenv("REDIS_URL"),
		CacheTTL:        cacheTTL,
		Location:        location,
		AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
		R2: storage.R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			BucketName:      os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
			Endpoint:        os.Getenv("R2_ENDPOINT"),
		},
	}

	return cfg, nil
}

// Today is the current calendar day in the configured time zone.
func (c *Config) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
