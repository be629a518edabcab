// Package config loads process configuration via viper: environment
// variables (prefixed POLYFORGE_), an optional config.yaml, and defaults.
// The enumerated runtime-tunable settings of spec §6 additionally live in
// internal/settings, which layers database overrides on top of these
// defaults.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the process-wide static configuration.
type Config struct {
	DataDir string `mapstructure:"data_dir"`

	DatabaseDriver string `mapstructure:"database_driver"` // "sqlite" or "postgres"
	DatabaseDSN    string `mapstructure:"database_dsn"`

	RedisAddr string `mapstructure:"redis_addr"`

	HTTPAddr string `mapstructure:"http_addr"`

	LogJSON  bool   `mapstructure:"log_json"`
	LogLevel string `mapstructure:"log_level"`

	EncryptionKeyB64 string `mapstructure:"encryption_key"`

	TelegramAPIID   int    `mapstructure:"telegram_api_id"`
	TelegramAPIHash string `mapstructure:"telegram_api_hash"`

	GoogleClientID     string `mapstructure:"google_client_id"`
	GoogleClientSecret string `mapstructure:"google_client_secret"`

	AIAPIKey            string `mapstructure:"ai_api_key"`
	AIAPIBase           string `mapstructure:"ai_api_base"`
	AIModel             string `mapstructure:"ai_model"`
	AIRateLimitRPM      int    `mapstructure:"ai_rate_limit_rpm"`
	AIMaxTagsPerDesign  int    `mapstructure:"ai_max_tags_per_design"`
	AISelectBestPreview bool   `mapstructure:"ai_select_best_preview"`

	RendererPath string `mapstructure:"renderer_path"`

	StaleJobThreshold     time.Duration `mapstructure:"stale_job_threshold"`
	MaintenanceInterval   time.Duration `mapstructure:"maintenance_interval"`
	SyncPollInterval      time.Duration `mapstructure:"sync_poll_interval"`

	MinioEndpoint  string `mapstructure:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key"`
	MinioBucket    string `mapstructure:"minio_bucket"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl"`

	TelemetryServiceName  string `mapstructure:"telemetry_service_name"`
	TelemetryOTLPEndpoint string `mapstructure:"telemetry_otlp_endpoint"` // empty: export spans to stdout instead
}

// Load reads configuration from config.yaml (if present in cwd or
// /etc/polyforge), environment variables, and built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/polyforge")

	v.SetEnvPrefix("POLYFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_dsn", "./data/app.db")
	v.SetDefault("redis_addr", "")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_json", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("renderer_path", "stl-thumb")
	v.SetDefault("stale_job_threshold", 30*time.Minute)
	v.SetDefault("maintenance_interval", 5*time.Minute)
	v.SetDefault("sync_poll_interval", 5*time.Minute)
	v.SetDefault("ai_api_base", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("ai_model", "gemini-1.5-flash")
	v.SetDefault("ai_rate_limit_rpm", 15)
	v.SetDefault("ai_max_tags_per_design", 20)
	v.SetDefault("ai_select_best_preview", true)
	v.SetDefault("minio_bucket", "polyforge")
	v.SetDefault("telemetry_service_name", "polyforge")
	v.SetDefault("telemetry_otlp_endpoint", "")
}
