// config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Env             string
	LogLevel        string
	Port            string
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	GatewayToken    string
	AllowedOrigins  []string
	AdminSecret     string
	RulesFile       string
	RewardLocation  *time.Location
	NoncePurgeEvery time.Duration

	// Leaderboard snapshots (Cloudflare R2). Disabled when R2Bucket is empty.
	SnapshotEvery     time.Duration
	R2AccountID       string
	R2AccessKeyID     string
	R2AccessKeySecret string
	R2Bucket          string
	CDNBaseURL        string

	// Identity profile sync. Disabled when IdentitySyncURL is empty.
	IdentitySyncURL   string
	IdentitySyncEvery time.Duration
}

// Load reads configuration from the environment. godotenv.Load is expected to
// have run before this when a .env file is used.
func Load() (*Config, error) {
	loc, err := time.LoadLocation(getEnvString("REWARD_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid REWARD_TIMEZONE: %w", err)
	}

	noncePurge, err := getEnvDuration("NONCE_PURGE_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}
	snapshotEvery, err := getEnvDuration("SNAPSHOT_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	syncEvery, err := getEnvDuration("IDENTITY_SYNC_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:               getEnvString("APP_ENV", "development"),
		LogLevel:          getEnvString("LOG_LEVEL", "info"),
		Port:              getEnvString("PORT", "5200"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
		GatewayToken:      os.Getenv("GAME_SERVICE_TOKEN"),
		AllowedOrigins:    splitList(getEnvString("ALLOWED_ORIGINS", "http://localhost:3000")),
		AdminSecret:       os.Getenv("ADMIN_SECRET"),
		RulesFile:         os.Getenv("RULES_FILE"),
		RewardLocation:    loc,
		NoncePurgeEvery:   noncePurge,
		SnapshotEvery:     snapshotEvery,
		R2AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
		R2Bucket:          os.Getenv("R2_BUCKET_NAME"),
		CDNBaseURL:        os.Getenv("CDN_BASE_URL"),
		IdentitySyncURL:   os.Getenv("IDENTITY_SYNC_URL"),
		IdentitySyncEvery: syncEvery,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.GatewayToken == "" {
		return nil, fmt.Errorf("GAME_SERVICE_TOKEN environment variable not set")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func (c *Config) SnapshotsEnabled() bool {
	return c.R2Bucket != "" && c.R2AccountID != ""
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
