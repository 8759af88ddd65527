package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Jobs     JobsConfig     `mapstructure:"jobs"`
	Security SecurityConfig `mapstructure:"security"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Port         int           `mapstructure:"port" validate:"gt=0,lt=65536"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" split_words:"true"`
	// RateLimit caps requests per second on the operator endpoints; zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" split_words:"true" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate_burst" split_words:"true" validate:"gte=0"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host" validate:"required"`
	Port         int    `mapstructure:"port" validate:"gt=0"`
	User         string `mapstructure:"user" validate:"required"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name" validate:"required"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns" split_words:"true"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" split_words:"true"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL is the form golang-migrate expects.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// RedisConfig is optional; with an empty URL progress is not published and
// jobs run without the cross-process lock.
type RedisConfig struct {
	URL      string `mapstructure:"url"`
	PoolSize int    `mapstructure:"pool_size" split_words:"true"`
}

type JobsConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	EvaluateSchedule  string        `mapstructure:"evaluate_schedule" split_words:"true" validate:"required"`
	DispatchSchedule  string        `mapstructure:"dispatch_schedule" split_words:"true" validate:"required"`
	LockTTL           time.Duration `mapstructure:"lock_ttl" split_words:"true" validate:"gt=0"`
	DispatchRate      float64       `mapstructure:"dispatch_rate" split_words:"true" validate:"gte=0"`
	DispatchBurst     int           `mapstructure:"dispatch_burst" split_words:"true" validate:"gte=0"`
	DirectoryCacheTTL time.Duration `mapstructure:"directory_cache_ttl" split_words:"true"`
}

// Location resolves Timezone, defaulting to UTC.
func (c JobsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

type SecurityConfig struct {
	CredentialKey string `mapstructure:"credential_key" split_words:"true" validate:"required"`
	JWTSecret     string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("jobs.timezone", "UTC")
	v.SetDefault("jobs.evaluate_schedule", "@every 1m")
	v.SetDefault("jobs.dispatch_schedule", "@every 1m")
	v.SetDefault("jobs.lock_ttl", 10*time.Minute)
	v.SetDefault("jobs.dispatch_burst", 1)
	v.SetDefault("jobs.directory_cache_ttl", 5*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads config.yml from the usual locations, then applies NOTIFIER_*
// environment overrides and validates the result. A missing file is not an
// error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("NOTIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("NOTIFIER", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Jobs.Location(); err != nil {
		return nil, fmt.Errorf("invalid config: jobs.timezone: %w", err)
	}

	return &cfg, nil
}
