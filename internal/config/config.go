package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
)

var (
	// Default allowed origins for development
	defaultOrigins = []string{
		"http://localhost:3000",
		"http://localhost:4200",
		"http://localhost:5173",
	}
)

type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	DBDriver    string
	DatabaseURL string

	JWTSecret      string
	AllowedOrigins []string

	DiscordWebhookURL string
	SlackWebhookURL   string

	StatusSyncSchedule string
	EventTimezone      string
	EventLocation      *time.Location

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the configuration from the environment. A .env file, if any,
// must already have been loaded by the caller.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "3000"),
		GinMode:            os.Getenv("GIN_MODE"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowedOrigins:     allowedOrigins(),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		SlackWebhookURL:    os.Getenv("SLACK_WEBHOOK_URL"),
		StatusSyncSchedule: getEnv("STATUS_SYNC_SCHEDULE", "@every 1m"),
		EventTimezone:      getEnv("EVENT_TIMEZONE", "UTC"),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.NotValidf("empty JWT_SECRET")
	}

	switch c.DBDriver {
	case "postgres", "mysql":
		if c.DatabaseURL == "" {
			return errors.NotValidf("empty DATABASE_URL for driver %q", c.DBDriver)
		}
	case "sqlite":
		if c.DatabaseURL == "" {
			c.DatabaseURL = "campuspulse.db"
		}
	default:
		return errors.NotSupportedf("DB_DRIVER %q", c.DBDriver)
	}

	if c.EventTimezone == "" {
		c.EventTimezone = "UTC"
	}
	loc, err := time.LoadLocation(c.EventTimezone)
	if err != nil {
		return errors.NewNotValid(err, "EVENT_TIMEZONE "+c.EventTimezone)
	}
	c.EventLocation = loc

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.NotValidf("rate limit %v/%d", c.RateLimitRPS, c.RateLimitBurst)
	}

	return nil
}

func allowedOrigins() []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL := os.Getenv("CLIENT_URL"); clientURL != "" {
		origins = append(origins, clientURL)
	}

	if allowed := os.Getenv("ALLOWED_ORIGINS"); allowed != "" {
		for _, origin := range strings.Split(allowed, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return fallback
	}
	return f
}
