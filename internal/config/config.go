package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/hibiken/asynq"
	"github.com/spf13/viper"
)

// Config holds the configuration shared by the CLI and the worker.
type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	API      APIConfig      `mapstructure:"api"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Lock     LockConfig     `mapstructure:"lock"`
	Webhook  WebhookConfig  `mapstructure:"webhook"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" default:"info"`
	Format     string `mapstructure:"format" default:"json"` // json or console
	File       string `mapstructure:"file"`                  // optional rotating file sink
	MaxSizeMB  int    `mapstructure:"max_size_mb" default:"100"`
	MaxBackups int    `mapstructure:"max_backups" default:"5"`
	MaxAgeDays int    `mapstructure:"max_age_days" default:"28"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr" default:":8080"`
}

type BackendConfig struct {
	Name    string `mapstructure:"name" default:"imaging"` // std, imaging or govips
	Quality int    `mapstructure:"quality" default:"85"`
	Gravity string `mapstructure:"gravity" default:"southeast"`
	Padding int    `mapstructure:"padding" default:"12"`
}

type QueueConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" default:"localhost:6379"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Name          string `mapstructure:"name" default:"default"`
}

func (q QueueConfig) RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     q.RedisAddr,
		Password: q.RedisPassword,
		DB:       q.RedisDB,
	}
}

type WorkerConfig struct {
	Concurrency   int    `mapstructure:"concurrency" default:"4"`
	MaxActiveJobs int    `mapstructure:"max_active_jobs" default:"2"`
	ScratchDir    string `mapstructure:"scratch_dir"` // empty means os.TempDir
	MetricsAddr   string `mapstructure:"metrics_addr" default:":9091"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled" default:"true"`
	Endpoint  string `mapstructure:"endpoint" default:"localhost:9000"`
	AccessKey string `mapstructure:"access_key" default:"minioadmin"`
	SecretKey string `mapstructure:"secret_key" default:"minioadmin"`
	Bucket    string `mapstructure:"bucket" default:"pixelmod"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"` // empty selects the in-memory job store
}

type LockConfig struct {
	Enabled bool          `mapstructure:"enabled" default:"true"`
	Prefix  string        `mapstructure:"prefix" default:"pixelmod:lock"`
	TTL     time.Duration `mapstructure:"ttl" default:"5m"`
}

type WebhookConfig struct {
	SigningSecret  string        `mapstructure:"signing_secret"`
	Timeout        time.Duration `mapstructure:"timeout" default:"10s"`
	MaxAttempts    int           `mapstructure:"max_attempts" default:"3"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" default:"1s"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" default:"10s"`
}

type TracingConfig struct {
	ServiceName  string `mapstructure:"service_name" default:"pixelmod"`
	Exporter     string `mapstructure:"exporter" default:"none"` // none, stdout or otlp
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
}

const envPrefix = "PIXELMOD"

// envKeys are the keys that may be set from the environment. Each maps to
// PIXELMOD_<KEY> with dots replaced by underscores.
var envKeys = []string{
	"log.level", "log.format", "log.file",
	"api.addr",
	"backend.name", "backend.quality", "backend.gravity", "backend.padding",
	"queue.redis_addr", "queue.redis_password", "queue.redis_db", "queue.name",
	"worker.concurrency", "worker.max_active_jobs", "worker.scratch_dir", "worker.metrics_addr",
	"storage.enabled", "storage.endpoint", "storage.access_key", "storage.secret_key", "storage.bucket", "storage.use_ssl",
	"database.dsn",
	"lock.enabled", "lock.prefix", "lock.ttl",
	"webhook.signing_secret", "webhook.timeout", "webhook.max_attempts",
	"tracing.service_name", "tracing.exporter", "tracing.otlp_endpoint", "tracing.otlp_insecure",
}

// Load reads the YAML file at path (optional when empty) and the
// environment on top of struct defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
