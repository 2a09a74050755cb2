// Package config loads binary configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jacentio/storefront/media"
	"github.com/jacentio/storefront/provision"
	"github.com/jacentio/storefront/record"
)

// Backends accepted by Config.Backend.
const (
	BackendMemory   = "memory"
	BackendDynamo   = "dynamo"
	BackendPostgres = "postgres"
)

// Config holds everything a binary needs to build a provisioner.
type Config struct {
	Backend     string `env:"STOREFRONT_BACKEND" envDefault:"memory"`
	DatabaseURL string `env:"STOREFRONT_DATABASE_URL"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoEndpoint string `env:"STOREFRONT_DYNAMO_ENDPOINT"`
	KeyTable       string `env:"STOREFRONT_KEY_TABLE" envDefault:"storefront_natural_keys"`

	Shops      string `env:"STOREFRONT_SHOPS_COLLECTION" envDefault:"shops"`
	Services   string `env:"STOREFRONT_SERVICES_COLLECTION" envDefault:"services"`
	Staff      string `env:"STOREFRONT_STAFF_COLLECTION" envDefault:"staff"`
	Discounts  string `env:"STOREFRONT_DISCOUNTS_COLLECTION" envDefault:"discounts"`
	OwnerField string `env:"STOREFRONT_OWNER_FIELD" envDefault:"shop_id"`

	CallTimeout     time.Duration `env:"STOREFRONT_CALL_TIMEOUT" envDefault:"10s"`
	MaxItemAttempts int           `env:"STOREFRONT_MAX_ITEM_ATTEMPTS" envDefault:"3"`
	RetryInterval   time.Duration `env:"STOREFRONT_RETRY_INTERVAL" envDefault:"200ms"`
	SettleDelay     time.Duration `env:"STOREFRONT_SETTLE_DELAY" envDefault:"1500ms"`

	MediaBucket    string `env:"STOREFRONT_MEDIA_BUCKET"`
	MediaRegion    string `env:"STOREFRONT_MEDIA_REGION"`
	MediaAccessKey string `env:"STOREFRONT_MEDIA_ACCESS_KEY"`
	MediaSecretKey string `env:"STOREFRONT_MEDIA_SECRET_KEY"`
	MediaEndpoint  string `env:"STOREFRONT_MEDIA_ENDPOINT"`
	MediaBaseURL   string `env:"STOREFRONT_MEDIA_BASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the given dotenv files, or .env when none are named, then parses
// the environment. Missing dotenv files are ignored; variables already set
// in the environment win over file values.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendMemory, BackendDynamo:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STOREFRONT_DATABASE_URL is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.MaxItemAttempts < 1 {
		errs = append(errs, fmt.Errorf("max item attempts must be at least 1, got %d", c.MaxItemAttempts))
	}
	if c.SettleDelay < 0 {
		errs = append(errs, fmt.Errorf("settle delay must not be negative, got %s", c.SettleDelay))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Record returns the collection layout.
func (c Config) Record() record.Config {
	rc := record.Config{
		Shops:       c.Shops,
		Services:    c.Services,
		Staff:       c.Staff,
		Discounts:   c.Discounts,
		OwnerField:  c.OwnerField,
		CallTimeout: c.CallTimeout,
	}
	rc.Validate()
	return rc
}

// Provision returns the provisioner settings.
func (c Config) Provision() provision.Config {
	return provision.Config{
		Collections:     c.Record(),
		MaxItemAttempts: c.MaxItemAttempts,
		RetryInterval:   c.RetryInterval,
		SettleDelay:     c.SettleDelay,
	}
}

// MediaEnabled reports whether local media should be uploaded.
func (c Config) MediaEnabled() bool {
	return c.MediaBucket != ""
}

// Media returns the S3 uploader settings. The media region defaults to the
// AWS region.
func (c Config) Media() media.S3Config {
	region := c.MediaRegion
	if region == "" {
		region = c.AWSRegion
	}
	return media.S3Config{
		Bucket:        c.MediaBucket,
		Region:        region,
		AccessKey:     c.MediaAccessKey,
		SecretKey:     c.MediaSecretKey,
		Endpoint:      c.MediaEndpoint,
		PublicBaseURL: c.MediaBaseURL,
	}
}

// Logger builds a logger writing to w in the configured format and level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel parses debug, info, warn or error, in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
