// Package config loads process configuration from OCCUPANCY_* environment
// variables, optionally seeded from .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Prefix is prepended to every variable name.
const Prefix = "OCCUPANCY_"

// DefaultEnvFiles are read by Load when present. Values already set in the
// environment win.
var DefaultEnvFiles = []string{".env", ".env.local"}

type StorageOptions struct {
	Driver      string `env:"STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"occupancy.db"`
	PostgresDSN string `env:"POSTGRES_DSN" envDefault:"postgres://localhost/occupancy?sslmode=disable"`
}

func (o StorageOptions) Validate() error {
	switch strings.ToLower(o.Driver) {
	case "memory":
	case "sqlite":
		if o.SQLitePath == "" {
			return errors.New("storage: SQLITE_PATH is required for the sqlite driver")
		}
	case "postgres":
		if o.PostgresDSN == "" {
			return errors.New("storage: POSTGRES_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("storage: driver must be memory, sqlite or postgres, got %q", o.Driver)
	}
	return nil
}

type LogOptions struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

func (o LogOptions) Validate() error {
	if _, err := logrus.ParseLevel(o.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if o.Format != "text" && o.Format != "json" {
		return fmt.Errorf("log: format must be text or json, got %q", o.Format)
	}
	return nil
}

type EventsOptions struct {
	Driver       string   `env:"EVENTS_DRIVER" envDefault:"memory"`
	RedisURL     string   `env:"REDIS_URL"`
	RedisChannel string   `env:"REDIS_CHANNEL" envDefault:"occupancy.events"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"occupancy.events"`
}

func (o EventsOptions) Validate() error {
	switch o.Driver {
	case "memory":
	case "redis":
		if o.RedisURL == "" {
			return errors.New("events: REDIS_URL is required for the redis driver")
		}
	case "kafka":
		if len(o.KafkaBrokers) == 0 {
			return errors.New("events: KAFKA_BROKERS is required for the kafka driver")
		}
		if o.KafkaTopic == "" {
			return errors.New("events: KAFKA_TOPIC must not be empty")
		}
	default:
		return fmt.Errorf("events: driver must be memory, redis or kafka, got %q", o.Driver)
	}
	return nil
}

type BlobOptions struct {
	Driver            string `env:"BLOB_DRIVER" envDefault:"fs"`
	FSRoot            string `env:"BLOB_FS_ROOT" envDefault:"./snapshots"`
	S3Bucket          string `env:"BLOB_S3_BUCKET"`
	S3Region          string `env:"BLOB_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint        string `env:"BLOB_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"BLOB_S3_PATH_STYLE" envDefault:"false"`
	S3AccessKeyID     string `env:"BLOB_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"BLOB_S3_SECRET_ACCESS_KEY"`
}

func (o BlobOptions) Validate() error {
	switch o.Driver {
	case "fs", "memory":
	case "s3":
		if o.S3Bucket == "" {
			return errors.New("blob: BLOB_S3_BUCKET is required for the s3 driver")
		}
	default:
		return fmt.Errorf("blob: driver must be fs, s3 or memory, got %q", o.Driver)
	}
	return nil
}

type HTTPOptions struct {
	Addr        string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`
}

func (o HTTPOptions) Validate() error {
	if !strings.HasPrefix(o.MetricsPath, "/") {
		return fmt.Errorf("http: metrics path must start with '/', got %q", o.MetricsPath)
	}
	return nil
}

// Config is the full process configuration.
type Config struct {
	Storage        StorageOptions
	Log            LogOptions
	Events         EventsOptions
	Blob           BlobOptions
	HTTP           HTTPOptions
	DuplicateScope string `env:"DUPLICATE_SCOPE" envDefault:"all"`
	TopologyFile   string `env:"TOPOLOGY_FILE"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"occupancy"`
	// TimeZone names the IANA zone whose calendar decides link dates.
	TimeZone       string `env:"TIME_ZONE" envDefault:"UTC"`
}

// Location resolves TimeZone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Validate checks every option group.
func (c *Config) Validate() error {
	if c.DuplicateScope != "all" && c.DuplicateScope != "active" {
		return fmt.Errorf("duplicate scope must be all or active, got %q", c.DuplicateScope)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	for _, v := range []interface{ Validate() error }{c.Storage, c.Log, c.Events, c.Blob, c.HTTP} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnvFiles loads the files that exist and reports how many were read.
func LoadEnvFiles(files []string) (int, error) {
	existing := make([]string, 0, len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads the env files, parses the process environment and validates.
func Load(envFiles ...string) (*Config, error) {
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnvFiles(envFiles); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}
	return parse(env.Options{Prefix: Prefix})
}

// FromMap parses configuration from an explicit variable map instead of the
// process environment.
func FromMap(vars map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	c := &Config{}
	if err := env.ParseWithOptions(c, opts); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	c.normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Events.Driver = strings.ToLower(strings.TrimSpace(c.Events.Driver))
	c.Blob.Driver = strings.ToLower(strings.TrimSpace(c.Blob.Driver))
	c.DuplicateScope = strings.ToLower(strings.TrimSpace(c.DuplicateScope))
	c.TimeZone = strings.TrimSpace(c.TimeZone)
	brokers := c.Events.KafkaBrokers[:0]
	for _, b := range c.Events.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Events.KafkaBrokers = brokers
}
