package config

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port int    `envconfig:"PORT" default:"3000"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     int    `envconfig:"DB_PORT"`
	DBUser     string `envconfig:"DB_USERNAME" default:"users"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"users"`
	DBName     string `envconfig:"DB_NAME" default:"users_api"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"5"`

	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL      time.Duration `envconfig:"CACHE_TTL" default:"0"`

	RateLimit          int           `envconfig:"RATE_LIMIT" default:"100"`
	RateWindow         time.Duration `envconfig:"RATE_WINDOW" default:"15m"`
	MaxBodyBytes       int64         `envconfig:"MAX_BODY_BYTES" default:"10485760"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	OTelEnabled     bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTelEndpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	OTelSampleRatio float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL, DriverMemory:
	default:
		return Config{}, fmt.Errorf("load config: unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.DBPort == 0 {
		c.DBPort = defaultDBPort(c.DBDriver)
	}

	return c, nil
}

func defaultDBPort(driver string) int {
	if driver == DriverMySQL {
		return 3306
	}
	return 5432
}

// Verbose turns on debug logging.
func (c Config) Verbose() bool {
	return c.Env == EnvDevelopment
}

// AutoSchemaSync creates the users table at startup outside production.
func (c Config) AutoSchemaSync() bool {
	return c.Env != EnvProduction
}

func (c Config) CacheEnabled() bool {
	return c.CacheTTL > 0
}

func (c Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(c.DBSSLMode),
	}
	return u.String()
}

func (c Config) DBAddr() string {
	return net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort))
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}
