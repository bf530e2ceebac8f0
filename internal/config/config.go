package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// The API and both workers run as separate pods and read the same variables.
// DB, AWS, Redis and queue settings come from the pod environment.

type Config struct {
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	ServerPort        string        `mapstructure:"SERVER_PORT"`
	IsLocalDev        bool          `mapstructure:"IS_LOCAL_DEV"`
	AWSRegion         string        `mapstructure:"AWS_REGION"`
	AWSEndpoint       string        `mapstructure:"AWS_ENDPOINT"`
	ExportSQSQueueURL string        `mapstructure:"EXPORT_SQS_QUEUE_URL"`
	NotifySQSQueueURL string        `mapstructure:"NOTIFY_SQS_QUEUE_URL"`
	ReportAPIURL      string        `mapstructure:"REPORT_API_URL"`
	NotifySender      string        `mapstructure:"NOTIFY_SENDER"`
	RedisURL          string        `mapstructure:"REDIS_URL"`
	OrgTimezone       string        `mapstructure:"ORG_TIMEZONE"`
	DefaultEndOfShift string        `mapstructure:"DEFAULT_END_OF_SHIFT"`
	PunchMaxAttempts  int           `mapstructure:"PUNCH_MAX_ATTEMPTS"`
	PunchRetryBase    time.Duration `mapstructure:"PUNCH_RETRY_BASE"`
	SettingsCacheTTL  time.Duration `mapstructure:"SETTINGS_CACHE_TTL"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	OtelExporter      string        `mapstructure:"OTEL_EXPORTER"`
	OtelEndpoint      string        `mapstructure:"OTEL_ENDPOINT"`
}

// DSN is the Postgres connection URL.
func (c Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_HOST", "db")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "user")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "punch_db")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("IS_LOCAL_DEV", false)
	v.SetDefault("AWS_REGION", "ap-south-1")
	v.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	v.SetDefault("EXPORT_SQS_QUEUE_URL", "http://localstack:4566/000000000000/punch-export-queue")
	v.SetDefault("NOTIFY_SQS_QUEUE_URL", "http://localstack:4566/000000000000/punch-notify-queue")
	v.SetDefault("REPORT_API_URL", "http://localhost:8081/")
	v.SetDefault("NOTIFY_SENDER", "attendance@punch-service.com")
	v.SetDefault("REDIS_URL", "") // empty: in-process lock, no settings cache
	v.SetDefault("ORG_TIMEZONE", "Asia/Kolkata")
	v.SetDefault("DEFAULT_END_OF_SHIFT", "19:00")
	v.SetDefault("PUNCH_MAX_ATTEMPTS", 4)
	v.SetDefault("PUNCH_RETRY_BASE", 25*time.Millisecond)
	v.SetDefault("SETTINGS_CACHE_TTL", 5*time.Minute)
	v.SetDefault("WORKER_CONCURRENCY", 10)
	v.SetDefault("OTEL_EXPORTER", "otlp")
	v.SetDefault("OTEL_ENDPOINT", "jaeger:4317")
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (config Config, err error) {
	setDefaults(v)

	// Read in environment variables that match the keys.
	v.AutomaticEnv()

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("unmarshal config: %w", err)
	}
	if config.PunchMaxAttempts < 1 {
		return config, fmt.Errorf("PUNCH_MAX_ATTEMPTS must be at least 1, got %d", config.PunchMaxAttempts)
	}
	return config, nil
}
