package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"coinimage/internal/object_store"
)

type Config struct {
	Port          int    `env:"PORT" envDefault:"8080"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigin string `env:"ALLOWED_ORIGIN"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	StoreType    string        `env:"STORE" envDefault:"s3"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`

	S3Bucket    string `env:"AWS_S3_BUCKET"`
	S3Region    string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3AccessKey string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3UseSSL    bool   `env:"S3_USE_SSL" envDefault:"true"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	FileStoreDir       string `env:"FILE_STORE_DIR" envDefault:"/data/coins"`
	MemoryStoreObjects int    `env:"MEMORY_STORE_OBJECTS" envDefault:"2000"`

	OriginBaseURL  string        `env:"ORIGIN_BASE_URL" envDefault:"https://assets.coingecko.com"`
	OriginTimeout  time.Duration `env:"ORIGIN_TIMEOUT" envDefault:"10s"`
	OriginMaxBytes int64         `env:"ORIGIN_MAX_BYTES" envDefault:"5242880"`
	CoinTablePath  string        `env:"COIN_TABLE_PATH"`

	WarmupCoins   []string `env:"WARMUP_COINS" envSeparator:","`
	WarmupSizes   []string `env:"WARMUP_SIZES" envSeparator:"," envDefault:"small"`
	WarmupWorkers int      `env:"WARMUP_WORKERS" envDefault:"1"`

	OtelEndpoint string `env:"OTEL_ENDPOINT"`
	OtelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreType = strings.ToLower(strings.TrimSpace(cfg.StoreType))
	cfg.PublicBaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}

	return cfg, nil
}

// StoreOptions maps the configuration onto object store options.
func (c *Config) StoreOptions() object_store.Options {
	return object_store.Options{
		Type: c.StoreType,
		S3: object_store.S3Config{
			Endpoint:  c.S3Endpoint,
			Region:    c.S3Region,
			Bucket:    strings.TrimSpace(c.S3Bucket),
			AccessKey: strings.TrimSpace(c.S3AccessKey),
			SecretKey: strings.TrimSpace(c.S3SecretKey),
			UseSSL:    c.S3UseSSL,
			PublicURL: c.S3PublicURL,
			Timeout:   c.StoreTimeout,
		},
		FileDir:       c.FileStoreDir,
		MemoryObjects: c.MemoryStoreObjects,
		PublicBaseURL: c.PublicBaseURL,
	}
}

// IsTracingEnabled reports whether spans should be exported.
func (c *Config) IsTracingEnabled() bool {
	return c.OtelEnabled && strings.TrimSpace(c.OtelEndpoint) != ""
}
