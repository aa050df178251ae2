// Package config loads service configuration from an optional YAML file and environment variables.
//
// Precedence, lowest to highest: Default(), the YAML file, environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Events    EventsConfig    `yaml:"events"`
	Business  BusinessConfig  `yaml:"business"`
	Finance   FinanceConfig   `yaml:"finance"`
	AutoClose AutoCloseConfig `yaml:"auto_close"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Backend       Backend `yaml:"backend"`
	DatabaseURL   string  `yaml:"database_url"`
	MongoURI      string  `yaml:"mongo_uri"`
	MongoDatabase string  `yaml:"mongo_database"`
}

// EventsConfig configures the ledger event publisher. An empty AMQPURL disables publishing.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type BusinessConfig struct {
	// Timezone is the IANA zone ledger days and report periods are cut in.
	Timezone string `yaml:"timezone"`
	// Currency is the ISO 4217 code amounts are kept in, in minor units.
	Currency string `yaml:"currency"`
}

type FinanceConfig struct {
	CollaboratorTimeout time.Duration `yaml:"collaborator_timeout"`
	DiagnosticWindow    time.Duration `yaml:"diagnostic_window"`
	FleetParallelism    int           `yaml:"fleet_parallelism"`
}

type AutoCloseConfig struct {
	Enabled bool `yaml:"enabled"`
	// At is the local time of day, HH:MM, at which the previous day is closed.
	At                   string        `yaml:"at"`
	IdempotencyRetention time.Duration `yaml:"idempotency_retention"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		HTTP:    HTTPConfig{Port: "8080", ShutdownTimeout: 10 * time.Second},
		Storage: StorageConfig{Backend: BackendMemory, MongoDatabase: "kairos"},
		Events:  EventsConfig{Exchange: "kairos.ledger"},
		Business: BusinessConfig{
			Timezone: "Africa/Abidjan",
			Currency: "XOF",
		},
		Finance: FinanceConfig{
			CollaboratorTimeout: 10 * time.Second,
			DiagnosticWindow:    30 * 24 * time.Hour,
			FleetParallelism:    8,
		},
		AutoClose: AutoCloseConfig{
			Enabled:              false,
			At:                   "00:05",
			IdempotencyRetention: 72 * time.Hour,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration. path may be empty, in which case only defaults and env apply.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		v := strings.TrimSpace(getenv(key))
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be a duration (e.g. 10s): %w", key, err))
			return
		}
		*dst = d
	}

	str("PORT", &c.HTTP.Port)
	dur("SHUTDOWN_TIMEOUT", &c.HTTP.ShutdownTimeout)

	var backend string
	str("STORAGE_BACKEND", &backend)
	if backend != "" {
		c.Storage.Backend = Backend(strings.ToLower(backend))
	}
	str("DATABASE_URL", &c.Storage.DatabaseURL)
	str("MONGO_URI", &c.Storage.MongoURI)
	str("MONGO_DATABASE", &c.Storage.MongoDatabase)

	str("AMQP_URL", &c.Events.AMQPURL)
	str("AMQP_EXCHANGE", &c.Events.Exchange)

	str("BUSINESS_TIMEZONE", &c.Business.Timezone)
	str("CURRENCY", &c.Business.Currency)

	dur("COLLABORATOR_TIMEOUT", &c.Finance.CollaboratorTimeout)
	dur("DIAGNOSTIC_WINDOW", &c.Finance.DiagnosticWindow)
	if v := strings.TrimSpace(getenv("FLEET_PARALLELISM")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("FLEET_PARALLELISM must be an integer: %w", err))
		} else {
			c.Finance.FleetParallelism = n
		}
	}

	if v := strings.TrimSpace(getenv("AUTO_CLOSE_ENABLED")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("AUTO_CLOSE_ENABLED must be a boolean: %w", err))
		} else {
			c.AutoClose.Enabled = b
		}
	}
	str("AUTO_CLOSE_AT", &c.AutoClose.At)
	dur("IDEMPOTENCY_RETENTION", &c.AutoClose.IdempotencyRetention)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is required"))
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when STORAGE_BACKEND=mongo"))
		}
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=mongo (driver directory, trips and expenses are read from postgres)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND=%q (supported: memory, postgres, mongo)", c.Storage.Backend))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Business.Currency) != 3 {
		errs = append(errs, fmt.Errorf("currency %q must be an ISO 4217 code", c.Business.Currency))
	}
	if c.Finance.CollaboratorTimeout < 0 || c.Finance.DiagnosticWindow < 0 {
		errs = append(errs, errors.New("finance durations must not be negative"))
	}
	if c.Finance.FleetParallelism < 1 {
		errs = append(errs, errors.New("fleet_parallelism must be >= 1"))
	}
	if _, err := c.CloseAt(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be json or text", c.Log.Format))
	}
	return errors.Join(errs...)
}

// Location loads the business timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Business.Timezone)
	if err != nil {
		return nil, fmt.Errorf("business timezone %q: %w", c.Business.Timezone, err)
	}
	return loc, nil
}

// CloseAt parses AutoClose.At as an offset from local midnight.
func (c Config) CloseAt() (time.Duration, error) {
	t, err := time.Parse("15:04", c.AutoClose.At)
	if err != nil {
		return 0, fmt.Errorf("auto_close.at %q must be HH:MM: %w", c.AutoClose.At, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
