package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalcrest/outreach/internal/mailer"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Mailer    mailer.Config   `yaml:"mailer"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	APIKey     string `yaml:"api_key"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig holds the tick driver settings. Quiet hours and the
// hourly rate cap are not here: those live in the database so they can be
// changed at runtime through the config API.
type SchedulerConfig struct {
	BatchSize int           `yaml:"batch_size"`
	Interval  time.Duration `yaml:"interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	setDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8090"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "/var/lib/outreach/app.db"
	}
	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "log"
	}
	if cfg.Mailer.Timeout == 0 {
		cfg.Mailer.Timeout = 15 * time.Second
	}
	if cfg.Scheduler.BatchSize == 0 {
		cfg.Scheduler.BatchSize = 50
	}
	if cfg.Scheduler.Interval == 0 {
		cfg.Scheduler.Interval = 5 * time.Minute
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Server.APIKey == "" {
		return fmt.Errorf("server.api_key is required")
	}
	if cfg.Mailer.Provider == "resend" {
		if cfg.Mailer.APIKey == "" {
			return fmt.Errorf("mailer.api_key is required for the resend provider")
		}
		if cfg.Mailer.FromEmail == "" {
			return fmt.Errorf("mailer.from_email is required for the resend provider")
		}
	}
	if cfg.Scheduler.BatchSize < 0 {
		return fmt.Errorf("scheduler.batch_size must be positive")
	}
	return nil
}
