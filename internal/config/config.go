package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr        string
	DatabaseURL string

	HubSpotBaseURL    string
	HubSpotToken      string
	HubSpotMinDelay   time.Duration
	HubSpotTimeout    time.Duration
	HubSpotMaxRetries int

	KafkaBrokers []string
	KafkaTopic   string

	CatalogBucket string
	CatalogKey    string
	CatalogFile   string

	AuthSecret      string
	AllowDebugToken bool
	DebugToken      string

	SweepInterval time.Duration
}

const (
	defaultAddr          = ":8071"
	defaultHubSpotBase   = "https://api.hubapi.com"
	defaultKafkaTopic    = "abm.engagement.events"
	defaultSweepInterval = 15 * time.Minute
)

func Load() (Config, error) {
	cfg := Config{
		Addr:              getEnv("ABM_ADDR", defaultAddr),
		DatabaseURL:       firstNonEmpty(os.Getenv("ABM_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		HubSpotBaseURL:    getEnv("ABM_HUBSPOT_BASE_URL", defaultHubSpotBase),
		HubSpotToken:      os.Getenv("ABM_HUBSPOT_TOKEN"),
		HubSpotMinDelay:   getDuration("ABM_HUBSPOT_MIN_DELAY", 100*time.Millisecond),
		HubSpotTimeout:    getDuration("ABM_HUBSPOT_TIMEOUT", 10*time.Second),
		HubSpotMaxRetries: getInt("ABM_HUBSPOT_MAX_RETRIES", 5),
		KafkaBrokers:      splitList(os.Getenv("ABM_KAFKA_BROKERS")),
		KafkaTopic:        getEnv("ABM_KAFKA_TOPIC", defaultKafkaTopic),
		CatalogBucket:     os.Getenv("ABM_CATALOG_BUCKET"),
		CatalogKey:        getEnv("ABM_CATALOG_KEY", "catalog/content.json"),
		CatalogFile:       os.Getenv("ABM_CATALOG_FILE"),
		AuthSecret:        os.Getenv("ABM_AUTH_SECRET"),
		AllowDebugToken:   getBool("ABM_ALLOW_DEBUG_TOKEN", false),
		DebugToken:        os.Getenv("ABM_DEBUG_TOKEN"),
		SweepInterval:     getDuration("ABM_SWEEP_INTERVAL", defaultSweepInterval),
	}
	if os.Getenv("NODE_ENV") == "production" {
		if cfg.AuthSecret == "" {
			return Config{}, fmt.Errorf("ABM_AUTH_SECRET required in production")
		}
		if cfg.AllowDebugToken {
			return Config{}, fmt.Errorf("ABM_ALLOW_DEBUG_TOKEN must be off in production")
		}
	}
	if cfg.AuthSecret == "" && !cfg.AllowDebugToken {
		return Config{}, fmt.Errorf("ABM_AUTH_SECRET or ABM_ALLOW_DEBUG_TOKEN required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
