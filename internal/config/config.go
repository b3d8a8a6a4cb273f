package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server holds one listen port per command so both can run side by side.
	Server struct {
		PlayPort    string `yaml:"play_port" env:"SERVER_PLAY_PORT"`
		BackendPort string `yaml:"backend_port" env:"SERVER_BACKEND_PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db" env:"REDIS_DB"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl" env:"QUIZ_TTL"`
	} `yaml:"quiz"`
	// Backend is the upstream quiz API used by the play gateway.
	Backend struct {
		URL     string `yaml:"url" env:"BACKEND_URL"`
		Token   string `yaml:"token" env:"BACKEND_TOKEN"`
		Timeout string `yaml:"timeout" env:"BACKEND_TIMEOUT"`
	} `yaml:"backend"`
	Attempt struct {
		DefaultTimeLimit  int     `yaml:"default_time_limit" env:"ATTEMPT_DEFAULT_TIME_LIMIT"`
		MessagesPerSecond float64 `yaml:"messages_per_second" env:"ATTEMPT_MESSAGES_PER_SECOND"`
		Burst             int     `yaml:"burst" env:"ATTEMPT_BURST"`
		LeaseTTL          string  `yaml:"lease_ttl" env:"ATTEMPT_LEASE_TTL"`
	} `yaml:"attempt"`
	Log struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
		File   string `yaml:"file" env:"LOG_FILE"`
	} `yaml:"log"`
}

const (
	DefaultPlayPort    = "8080"
	DefaultBackendPort = "8081"
)

// PlayPort is the attempt gateway's listen port.
func (c Config) PlayPort() string {
	if c.Server.PlayPort != "" {
		return c.Server.PlayPort
	}
	return DefaultPlayPort
}

// BackendPort is the reference backend's listen port.
func (c Config) BackendPort() string {
	if c.Server.BackendPort != "" {
		return c.Server.BackendPort
	}
	return DefaultBackendPort
}

// Load reads YAML config from path and applies environment overrides. A
// missing file is not an error: the environment alone may configure the service.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
