// Package config loads service configuration from a YAML file with .env and
// environment-variable overrides for deploy-time secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ignite/list-importer/internal/etl"
)

// Config holds all configuration for the import service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	Upload   UploadConfig   `yaml:"upload"`
	Import   ImportConfig   `yaml:"import"`
	S3Watch  S3WatchConfig  `yaml:"s3_watch"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// RedisConfig holds session-store connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DatabaseConfig holds the Postgres contact-store DSN. Empty disables the
// existing-records dedup seed.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// UploadConfig describes the external bulk-create endpoint.
type UploadConfig struct {
	Endpoint            string `yaml:"endpoint"`
	BatchSize           int    `yaml:"batch_size"`
	BatchTimeoutSeconds int    `yaml:"batch_timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
}

// BatchTimeout returns the per-batch request deadline.
func (u UploadConfig) BatchTimeout() time.Duration {
	return time.Duration(u.BatchTimeoutSeconds) * time.Second
}

// ImportConfig tunes the validation rules.
type ImportConfig struct {
	RequiredFields []string `yaml:"required_fields"`
}

// Required maps the configured field names onto the canonical field enum,
// dropping unknown names.
func (i ImportConfig) Required() []etl.Field {
	var fields []etl.Field
	for _, name := range i.RequiredFields {
		for _, f := range etl.AllFields {
			if string(f) == name {
				fields = append(fields, f)
			}
		}
	}
	return fields
}

// S3WatchConfig holds the optional drop-folder ingestion settings.
type S3WatchConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AWSProfile      string `yaml:"aws_profile"`
	IntervalMinutes int    `yaml:"interval_minutes"`
	ListID          string `yaml:"list_id"`
}

// Interval returns the bucket polling period.
func (s S3WatchConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Load reads the YAML file at path, loads .env if present, applies
// environment overrides, and fills defaults. A missing file is not an error:
// defaults plus environment carry a dev setup.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("BULK_CREATE_ENDPOINT"); v != "" {
		cfg.Upload.Endpoint = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Upload.BatchSize == 0 {
		cfg.Upload.BatchSize = 50
	}
	if cfg.Upload.BatchTimeoutSeconds == 0 {
		cfg.Upload.BatchTimeoutSeconds = 30
	}
	if cfg.Upload.MaxRetries == 0 {
		cfg.Upload.MaxRetries = 3
	}
	if len(cfg.Import.RequiredFields) == 0 {
		cfg.Import.RequiredFields = []string{"email"}
	}
	if cfg.S3Watch.IntervalMinutes == 0 {
		cfg.S3Watch.IntervalMinutes = 5
	}
}
