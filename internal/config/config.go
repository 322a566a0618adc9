package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	SessionsDir string
	LogLevel    string
	APIKey      string

	WebhookURL       string
	WebhookSecret    string
	WebhookTimeout   time.Duration
	WebhookQueueSize int

	MediaTimeout  time.Duration
	MediaMaxBytes int64

	BulkDelayMin time.Duration
	BulkDelayMax time.Duration

	RestoreWorkers  int
	ShutdownTimeout time.Duration
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("sessions_dir", "./data/sessions")
	v.SetDefault("wa_log_level", "INFO")
	v.SetDefault("api_key", "")
	v.SetDefault("webhook_url", "")
	v.SetDefault("webhook_secret", "")
	v.SetDefault("webhook_timeout", "10s")
	v.SetDefault("webhook_queue_size", 256)
	v.SetDefault("media_timeout", "30s")
	v.SetDefault("media_max_bytes", "16mb")
	v.SetDefault("bulk_delay_min", "3s")
	v.SetDefault("bulk_delay_max", "8s")
	v.SetDefault("restore_workers", 4)
	v.SetDefault("shutdown_timeout", "20s")
}

// LoadEnvFile loads a dotenv file into the process environment. A missing
// file is not an error. Variables already set win over the file.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads the configuration from v, which is expected to have defaults,
// environment and flags bound already.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:             v.GetString("port"),
		SessionsDir:      v.GetString("sessions_dir"),
		LogLevel:         v.GetString("wa_log_level"),
		APIKey:           v.GetString("api_key"),
		WebhookURL:       v.GetString("webhook_url"),
		WebhookSecret:    v.GetString("webhook_secret"),
		WebhookTimeout:   v.GetDuration("webhook_timeout"),
		WebhookQueueSize: v.GetInt("webhook_queue_size"),
		MediaTimeout:     v.GetDuration("media_timeout"),
		MediaMaxBytes:    int64(v.GetSizeInBytes("media_max_bytes")),
		BulkDelayMin:     v.GetDuration("bulk_delay_min"),
		BulkDelayMax:     v.GetDuration("bulk_delay_max"),
		RestoreWorkers:   v.GetInt("restore_workers"),
		ShutdownTimeout:  v.GetDuration("shutdown_timeout"),
	}

	if cfg.Port == "" {
		return cfg, errors.New("port is required")
	}
	if cfg.SessionsDir == "" {
		return cfg, errors.New("sessions_dir is required")
	}
	if cfg.BulkDelayMax < cfg.BulkDelayMin {
		return cfg, fmt.Errorf("bulk_delay_max (%s) is lower than bulk_delay_min (%s)", cfg.BulkDelayMax, cfg.BulkDelayMin)
	}
	if cfg.WebhookTimeout <= 0 {
		return cfg, errors.New("webhook_timeout must be positive")
	}
	if cfg.MediaMaxBytes <= 0 {
		return cfg, errors.New("media_max_bytes must be positive")
	}

	return cfg, nil
}

// New returns a viper instance with defaults and environment binding.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}
