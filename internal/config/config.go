package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the grading service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	JWTSecret              string
	SessionTTL             time.Duration
	OpenAIAPIKey           string
	AIModel                string
	AITimeout              time.Duration
	AIStructured           bool
	StorageDriver          string
	StorageDir             string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	ErrorLogPath           string
	GradingWorkers         int
	GradingQueueSize       int
	UploadMaxMB            int
	UploadRateLimit        int
	DashboardCacheTTL      time.Duration
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
	v.SetEnvPrefix("GRADER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Gema Grader")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("events.channel", "grader")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.timeout", "90s")
	v.SetDefault("ai.structured", true)
	v.SetDefault("storage.driver", "disk")
	v.SetDefault("storage.dir", "documents")
	v.SetDefault("cloudinary.folder", "grader/submissions")
	v.SetDefault("error_log.path", "error_logs.txt")
	v.SetDefault("grading.workers", 4)
	v.SetDefault("grading.queue_size", 64)
	v.SetDefault("upload.max_mb", 10)
	v.SetDefault("upload.rate_limit", 20)
	v.SetDefault("dashboard.cache_ttl", "30s")

	sessionTTL, err := parseDuration(v, "session.ttl", "12h")
	if err != nil {
		return Config{}, err
	}

	aiTimeout, err := parseDuration(v, "ai.timeout", "90s")
	if err != nil {
		return Config{}, err
	}

	cacheTTL, err := parseDuration(v, "dashboard.cache_ttl", "30s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		SessionTTL:             sessionTTL,
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		AIModel:                v.GetString("ai.model"),
		AITimeout:              aiTimeout,
		AIStructured:           v.GetBool("ai.structured"),
		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		StorageDir:             v.GetString("storage.dir"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		ErrorLogPath:           v.GetString("error_log.path"),
		GradingWorkers:         v.GetInt("grading.workers"),
		GradingQueueSize:       v.GetInt("grading.queue_size"),
		UploadMaxMB:            v.GetInt("upload.max_mb"),
		UploadRateLimit:        v.GetInt("upload.rate_limit"),
		DashboardCacheTTL:      cacheTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.StorageDriver {
	case "disk", "cloudinary":
	default:
		return Config{}, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if cfg.GradingWorkers <= 0 {
		cfg.GradingWorkers = 4
	}

	if cfg.GradingQueueSize <= 0 {
		cfg.GradingQueueSize = 64
	}

	if cfg.UploadMaxMB <= 0 {
		cfg.UploadMaxMB = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return parsed, nil
}
