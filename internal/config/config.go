package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	LogLevel              string
	DatabaseDriver        string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	JWTSecret             string
	CORSOrigins           string
	NotificationChannel   string
	NotificationWorkers   int
	NotificationQueueSize int
	NotificationKeepAlive time.Duration
	DisputeRateLimit      int
	DisputeRateWindow     time.Duration
	ShutdownTimeout       time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Grading API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("cors.origins", "*")
	v.SetDefault("notifications.channel", "gema:grading")
	v.SetDefault("notifications.workers", 2)
	v.SetDefault("notifications.queue_size", 256)
	v.SetDefault("notifications.keepalive", "30s")
	v.SetDefault("disputes.rate_limit", 5)
	v.SetDefault("disputes.rate_window", "1m")
	v.SetDefault("shutdown.timeout", "5s")

	keepAlive, err := parseDuration(v, "notifications.keepalive")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "disputes.rate_window")
	if err != nil {
		return Config{}, err
	}
	shutdownTimeout, err := parseDuration(v, "shutdown.timeout")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		LogLevel:              strings.ToLower(v.GetString("log.level")),
		DatabaseDriver:        strings.ToLower(strings.TrimSpace(v.GetString("database.driver"))),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		JWTSecret:             v.GetString("jwt.secret"),
		CORSOrigins:           strings.TrimSpace(v.GetString("cors.origins")),
		NotificationChannel:   v.GetString("notifications.channel"),
		NotificationWorkers:   v.GetInt("notifications.workers"),
		NotificationQueueSize: v.GetInt("notifications.queue_size"),
		NotificationKeepAlive: keepAlive,
		DisputeRateLimit:      v.GetInt("disputes.rate_limit"),
		DisputeRateWindow:     rateWindow,
		ShutdownTimeout:       shutdownTimeout,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for postgres")
		}
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "file:gema-grading.db?cache=shared"
		}
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	if cfg.NotificationWorkers <= 0 {
		cfg.NotificationWorkers = 2
	}
	if cfg.NotificationQueueSize <= 0 {
		cfg.NotificationQueueSize = 256
	}
	if cfg.DisputeRateLimit <= 0 {
		cfg.DisputeRateLimit = 5
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
