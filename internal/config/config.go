// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Env  string `mapstructure:"APP_ENV"`
	Port string `mapstructure:"PORT"`

	DBDriver     string `mapstructure:"DB_DRIVER"`
	DBHost       string `mapstructure:"DB_HOST"`
	DBPort       string `mapstructure:"DB_PORT"`
	DBUser       string `mapstructure:"DB_USER"`
	DBPassword   string `mapstructure:"DB_PASSWORD"`
	DBName       string `mapstructure:"DB_NAME"`
	DBSSLMode    string `mapstructure:"DB_SSLMODE"`
	DBSQLitePath string `mapstructure:"DB_SQLITE_PATH"`

	RedisURL string `mapstructure:"REDIS_URL"`

	AkismetKey              string `mapstructure:"AKISMET_KEY"`
	AkismetEndpoint         string `mapstructure:"AKISMET_ENDPOINT"`
	SiteURL                 string `mapstructure:"SITE_URL"`
	SpamCheckTimeoutSeconds int    `mapstructure:"SPAM_CHECK_TIMEOUT_SECONDS"`

	PhotoDir             string `mapstructure:"PHOTO_DIR"`
	ImageMaxWidth        int    `mapstructure:"IMAGE_MAX_WIDTH"`
	ImageMaxHeight       int    `mapstructure:"IMAGE_MAX_HEIGHT"`
	ImageMaxUploadSizeMB int    `mapstructure:"IMAGE_MAX_UPLOAD_SIZE_MB"`

	QueueDriver           string `mapstructure:"QUEUE_DRIVER"`
	QueueStream           string `mapstructure:"QUEUE_STREAM"`
	QueueGroup            string `mapstructure:"QUEUE_GROUP"`
	QueueConsumer         string `mapstructure:"QUEUE_CONSUMER"`
	QueueClaimIdleSeconds int    `mapstructure:"QUEUE_CLAIM_IDLE_SECONDS"`
	QueueMaxDeliveries    int    `mapstructure:"QUEUE_MAX_DELIVERIES"`
	WorkerConcurrency     int    `mapstructure:"WORKER_CONCURRENCY"`
	MetricsPort           string `mapstructure:"METRICS_PORT"`

	NotifyChannel       string `mapstructure:"NOTIFY_CHANNEL"`
	AdminEmail          string `mapstructure:"ADMIN_EMAIL"`
	InertAlertThreshold int    `mapstructure:"INERT_ALERT_THRESHOLD"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

const defaultAkismetEndpoint = "https://%s.rest.akismet.com/1.1/comment-check"

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional; env vars and defaults are enough to boot.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "guestbook")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "guestbook.db")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("AKISMET_KEY", "")
	viper.SetDefault("AKISMET_ENDPOINT", "")
	viper.SetDefault("SITE_URL", "https://guestbook.test")
	viper.SetDefault("SPAM_CHECK_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PHOTO_DIR", "/tmp/guestbook/uploads/photos")
	viper.SetDefault("IMAGE_MAX_WIDTH", 200)
	viper.SetDefault("IMAGE_MAX_HEIGHT", 150)
	viper.SetDefault("IMAGE_MAX_UPLOAD_SIZE_MB", 10)
	viper.SetDefault("QUEUE_DRIVER", "redis")
	viper.SetDefault("QUEUE_STREAM", "guestbook:comments")
	viper.SetDefault("QUEUE_GROUP", "moderation")
	viper.SetDefault("QUEUE_CONSUMER", "")
	viper.SetDefault("QUEUE_CLAIM_IDLE_SECONDS", 30)
	viper.SetDefault("QUEUE_MAX_DELIVERIES", 5)
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("METRICS_PORT", "9375")
	viper.SetDefault("NOTIFY_CHANNEL", "moderation:review")
	viper.SetDefault("ADMIN_EMAIL", "admin@guestbook.test")
	viper.SetDefault("INERT_ALERT_THRESHOLD", 5)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.QueueDriver = strings.ToLower(strings.TrimSpace(c.QueueDriver))
}

// IsProduction reports whether the config describes a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// SpamEndpoint returns the comment-check URL, derived from the API key unless overridden.
func (c *Config) SpamEndpoint() string {
	if c.AkismetEndpoint != "" {
		return c.AkismetEndpoint
	}
	return fmt.Sprintf(defaultAkismetEndpoint, c.AkismetKey)
}

// SpamCheckTimeout returns the scoring request timeout.
func (c *Config) SpamCheckTimeout() time.Duration {
	if c.SpamCheckTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.SpamCheckTimeoutSeconds) * time.Second
}

// QueueClaimIdle returns how long a delivery may stay unacknowledged before another consumer claims it.
func (c *Config) QueueClaimIdle() time.Duration {
	return time.Duration(c.QueueClaimIdleSeconds) * time.Second
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	switch c.QueueDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported QUEUE_DRIVER %q", c.QueueDriver)
	}
	if c.PhotoDir == "" {
		return errors.New("PHOTO_DIR is required")
	}
	if c.ImageMaxWidth <= 0 || c.ImageMaxHeight <= 0 {
		return errors.New("IMAGE_MAX_WIDTH and IMAGE_MAX_HEIGHT must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return errors.New("WORKER_CONCURRENCY must be positive")
	}

	if c.IsProduction() {
		if c.AkismetKey == "" {
			return errors.New("AKISMET_KEY is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBPassword == "password" || c.DBPassword == "") {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBDriver == "postgres" && (c.DBSSLMode == "disable" || c.DBSSLMode == "") {
			return errors.New("DB_SSLMODE must not be 'disable' in production")
		}
		if c.QueueDriver != "redis" {
			return errors.New("QUEUE_DRIVER must be 'redis' in production")
		}
	} else if c.AkismetKey == "" && c.AkismetEndpoint == "" {
		log.Println("WARNING: AKISMET_KEY is empty. Spam checks will fail until a key or AKISMET_ENDPOINT is configured.")
	}

	return nil
}
