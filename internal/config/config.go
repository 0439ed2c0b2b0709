// Package config loads application configuration from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends selectable with STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration values.
type Config struct {
	Env          string `envconfig:"APP_ENV" default:"dev"`
	Port         string `envconfig:"APP_PORT" default:"8080"`
	StoreBackend string `envconfig:"STORE_BACKEND" default:"memory"`

	DB          MySQLConfig `envconfig:"DB"`
	PostgresDSN string      `envconfig:"PG_DSN"`
	Redis       RedisConfig `envconfig:"REDIS"`

	RabbitMQURL         string        `envconfig:"RABBITMQ_URL"`
	RabbitMQDialTimeout time.Duration `envconfig:"RABBITMQ_DIAL_TIMEOUT" default:"3s"`
	BookingExchange     string        `envconfig:"BOOKING_EXCHANGE" default:"bookings"`
	Audit               AuditConfig   `envconfig:"AUDIT"`

	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	Cache     CacheConfig     `envconfig:"CACHE"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// MySQLConfig is read from DB_USER, DB_PASS, DB_HOST, DB_PORT and DB_NAME.
type MySQLConfig struct {
	User string `envconfig:"USER"`
	Pass string `envconfig:"PASS"`
	Host string `envconfig:"HOST" default:"localhost"`
	Port string `envconfig:"PORT" default:"3306"`
	Name string `envconfig:"NAME"`
}

// AuditConfig controls the booking audit consumer.
type AuditConfig struct {
	Enabled bool   `envconfig:"ENABLED" default:"false"`
	LogPath string `envconfig:"LOG_PATH" default:"logs/booking.log"`
	Queue   string `envconfig:"QUEUE" default:"booking.audit"`
}

// Load reads .env (if any) and the process environment into a Config and
// validates the backend selection.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.RateLimit.normalize()
	c.Cache.normalize()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis:
	case BackendMySQL:
		if c.DB.User == "" || c.DB.Name == "" {
			return errors.New("config: DB_USER and DB_NAME are required for the mysql backend")
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return errors.New("config: PG_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.Audit.Enabled && c.RabbitMQURL == "" {
		return errors.New("config: AUDIT_ENABLED requires RABBITMQ_URL")
	}
	return nil
}
