// Package config loads runtime settings for the inventory sync client from a
// YAML file, an optional .env file and INVENTORY_* environment variables.
package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/c0deZ3R0/go-inventory-sync/errors"
	"github.com/c0deZ3R0/go-inventory-sync/logging"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

const (
	opLoad     = "config.Load"
	opValidate = "config.Validate"
	component  = "config"
)

// Config is the full runtime configuration.
type Config struct {
	API     APIConfig      `yaml:"api"`
	Storage StorageConfig  `yaml:"storage"`
	Sync    SyncConfig     `yaml:"sync"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Logging logging.Config `yaml:"logging"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// MaxResponseBytes caps decoded response bodies.
	MaxResponseBytes int64 `yaml:"max_response_bytes"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite and a connection string for postgres.
	DSN       string `yaml:"dsn"`
	TableName string `yaml:"table_name"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type SyncConfig struct {
	CallTimeout    time.Duration `yaml:"call_timeout"`
	PersistTimeout time.Duration `yaml:"persist_timeout"`
	StartOnline    bool          `yaml:"start_online"`
	// ProbeInterval polls the API's /health endpoint to detect
	// connectivity. Zero leaves connectivity to the host.
	ProbeInterval time.Duration `yaml:"probe_interval"`
}

type MetricsConfig struct {
	// Addr is the listen address for /metrics. Empty disables the server.
	Addr      string `yaml:"addr"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		API: APIConfig{
			BaseURL:          "http://localhost:8080",
			Timeout:          30 * time.Second,
			MaxResponseBytes: 10 << 20,
		},
		Storage: StorageConfig{
			Driver:      DriverMemory,
			TableName:   "sync_state",
			RedisPrefix: "inventory-sync:",
		},
		Sync: SyncConfig{
			CallTimeout:    30 * time.Second,
			PersistTimeout: 5 * time.Second,
			StartOnline:    true,
		},
		Metrics: MetricsConfig{
			Namespace: "inventory_sync",
		},
		Logging: logging.DefaultConfig,
	}
}

// Load builds a Config. Values are layered in order: defaults, .env in the
// working directory (if present), the YAML file at path (if path is not
// empty), then environment variables. The result is validated.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.E(errors.Op(opLoad), errors.Component(component), errors.KindInvalid, err, "reading .env")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.E(errors.Op(opLoad), errors.Component(component), errors.KindInvalid, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML onto cfg, keeping fields the document does not set.
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.E(errors.Op(opLoad), errors.Component(component), errors.KindInvalid, err, "parsing yaml")
	}
	return nil
}

// ApplyEnv overlays INVENTORY_* variables and the logging variables.
func (c *Config) ApplyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setString("INVENTORY_API_URL", &c.API.BaseURL)
	setString("INVENTORY_STORAGE_DRIVER", &c.Storage.Driver)
	setString("INVENTORY_STORAGE_DSN", &c.Storage.DSN)
	setString("INVENTORY_REDIS_ADDR", &c.Storage.RedisAddr)
	setString("INVENTORY_REDIS_PASSWORD", &c.Storage.RedisPassword)
	setString("INVENTORY_METRICS_ADDR", &c.Metrics.Addr)

	if v, ok := os.LookupEnv("INVENTORY_REDIS_DB"); ok {
		db, err := strconv.Atoi(v)
		if err != nil {
			return envError("INVENTORY_REDIS_DB", err)
		}
		c.Storage.RedisDB = db
	}
	if v, ok := os.LookupEnv("INVENTORY_CALL_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("INVENTORY_CALL_TIMEOUT", err)
		}
		c.Sync.CallTimeout = d
	}
	if v, ok := os.LookupEnv("INVENTORY_PROBE_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return envError("INVENTORY_PROBE_INTERVAL", err)
		}
		c.Sync.ProbeInterval = d
	}
	if v, ok := os.LookupEnv("INVENTORY_START_ONLINE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError("INVENTORY_START_ONLINE", err)
		}
		c.Sync.StartOnline = b
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.Logging = logging.ApplyEnv(c.Logging)
	return nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout < 0 || c.Sync.CallTimeout < 0 || c.Sync.PersistTimeout < 0 || c.Sync.ProbeInterval < 0 {
		return invalid("timeouts must not be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			return invalid("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	case DriverRedis:
		if c.Storage.RedisAddr == "" {
			return invalid("storage.redis_addr is required for the redis driver")
		}
	default:
		return invalid("unknown storage driver %q", c.Storage.Driver)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("unknown logging.level %q", c.Logging.Level)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return errors.E(errors.Op(opValidate), errors.Component(component), errors.KindInvalid, errors.ErrCodeValidationFailure, fmt.Sprintf(format, args...))
}

func envError(key string, err error) error {
	return errors.E(errors.Op(opLoad), errors.Component(component), errors.KindInvalid, err, key)
}
