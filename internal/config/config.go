package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the platform.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Notify    NotifyConfig    `yaml:"notify"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds optional Redis settings. When Addr is empty the
// scheduler falls back to PostgreSQL advisory locks.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// NotifyConfig holds notification transport settings.
type NotifyConfig struct {
	FromEmail     string    `yaml:"from_email"`
	FromName      string    `yaml:"from_name"`
	PublicBaseURL string    `yaml:"public_base_url"`
	SES           SESConfig `yaml:"ses"`
	SMS           SMSConfig `yaml:"sms"`
}

// SESConfig holds AWS SES credentials for the email channel.
type SESConfig struct {
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// SMSConfig holds the SMS gateway settings for the text channel.
type SMSConfig struct {
	GatewayURL     string `yaml:"gateway_url"`
	APIKey         string `yaml:"api_key"`
	SenderName     string `yaml:"sender_name"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// SchedulerConfig holds the survey dispatch tunables.
type SchedulerConfig struct {
	TickSeconds      int    `yaml:"tick_seconds"`
	ExpiryDays       int    `yaml:"expiry_days"`
	DispatchWorkers  int    `yaml:"dispatch_workers"`
	BatchLimit       int    `yaml:"batch_limit"`
	ExpirySweepSpec  string `yaml:"expiry_sweep_spec"` // cron spec for the nightly sweep
	RecoverPending   bool   `yaml:"recover_pending"`
	RecoverBatchSize int    `yaml:"recover_batch_size"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error; defaults plus env overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173"}
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Notify.SES.Region == "" {
		cfg.Notify.SES.Region = "ap-southeast-1"
	}
	if cfg.Notify.SMS.TimeoutSeconds == 0 {
		cfg.Notify.SMS.TimeoutSeconds = 30
	}
	if cfg.Notify.SMS.MaxRetries == 0 {
		cfg.Notify.SMS.MaxRetries = 3
	}
	if cfg.Notify.SMS.SenderName == "" {
		cfg.Notify.SMS.SenderName = "BARANGAY"
	}
	if cfg.Scheduler.TickSeconds == 0 {
		cfg.Scheduler.TickSeconds = 60
	}
	if cfg.Scheduler.ExpiryDays == 0 {
		cfg.Scheduler.ExpiryDays = 14
	}
	if cfg.Scheduler.DispatchWorkers == 0 {
		cfg.Scheduler.DispatchWorkers = 4
	}
	if cfg.Scheduler.BatchLimit == 0 {
		cfg.Scheduler.BatchLimit = 10
	}
	if cfg.Scheduler.ExpirySweepSpec == "" {
		cfg.Scheduler.ExpirySweepSpec = "30 0 * * *"
	}
	if cfg.Scheduler.RecoverBatchSize == 0 {
		cfg.Scheduler.RecoverBatchSize = 200
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Notify.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Notify.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Notify.SES.Region = v
	}
	if v := os.Getenv("NOTIFY_FROM_EMAIL"); v != "" {
		cfg.Notify.FromEmail = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.Notify.PublicBaseURL = v
	}
	if v := os.Getenv("SMS_GATEWAY_URL"); v != "" {
		cfg.Notify.SMS.GatewayURL = v
	}
	if v := os.Getenv("SMS_API_KEY"); v != "" {
		cfg.Notify.SMS.APIKey = v
	}
	if v := os.Getenv("SCHEDULER_TICK_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scheduler.TickSeconds = n
		}
	}
	if v := os.Getenv("SURVEY_EXPIRY_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Scheduler.ExpiryDays = n
		}
	}

	return cfg, nil
}
