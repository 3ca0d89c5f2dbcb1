package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"`
	LogLevel        string        `yaml:"log_level"`
	StoreDriver     string        `yaml:"store_driver"`
	DatabaseURL     string        `yaml:"database_url"`
	NATSURL         string        `yaml:"nats_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func defaults() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     ":9090",
		LogLevel:        "info",
		StoreDriver:     DriverMemory,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Load layers defaults, the YAML file named by CONFIG_FILE (if any) and the
// environment, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Validation
	var missing []string
	if cfg.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	if cfg.LogLevel == "" {
		missing = append(missing, "LOG_LEVEL")
	}
	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required env vars: %v", missing)
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	switch cfg.StoreDriver {
	case DriverMemory, DriverPostgres:
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: want %s or %s", cfg.StoreDriver, DriverMemory, DriverPostgres)
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %s: must be positive", cfg.ShutdownTimeout)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) overrideFromEnv() error {
	for env, dst := range map[string]*string{
		"HTTP_ADDR":    &c.HTTPAddr,
		"METRICS_ADDR": &c.MetricsAddr,
		"LOG_LEVEL":    &c.LogLevel,
		"STORE_DRIVER": &c.StoreDriver,
		"DATABASE_URL": &c.DatabaseURL,
		"NATS_URL":     &c.NATSURL,
	} {
		if v, ok := os.LookupEnv(env); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		c.ShutdownTimeout = d
	}
	return nil
}
