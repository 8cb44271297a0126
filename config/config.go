package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "campusvote.config"

// EnvPrefix is the prefix for all environment overrides, e.g. CAMPUSVOTE_DATABASE_HOST
const EnvPrefix = "CAMPUSVOTE"

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	APNS     APNSConfig     `yaml:"apns"`
	Metrics  bool           `yaml:"metrics" split_words:"true"`
	Debug    bool           `yaml:"debug"   split_words:"true"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"         split_words:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"     split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	PhotoDir        string        `yaml:"photoDir"        split_words:"true"`
	AllowOrigin     string        `yaml:"allowOrigin"     split_words:"true"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"   split_words:"true"`
	Host     string `yaml:"host"     split_words:"true"`
	Port     uint   `yaml:"port"     split_words:"true"`
	User     string `yaml:"user"     split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Name     string `yaml:"name"     split_words:"true"`
	SSLMode  string `yaml:"sslMode"  split_words:"true"`
	// DSN overrides the individual connection fields when set. For sqlite it
	// is the file path or URI.
	DSN string `yaml:"dsn" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwtSecret" split_words:"true"`
	TokenTTL  time.Duration `yaml:"tokenTTL"  split_words:"true"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"     split_words:"true"`
	Port     string `yaml:"port"     split_words:"true"`
	Username string `yaml:"username" split_words:"true"`
	Password string `yaml:"password" split_words:"true"`
	Sender   string `yaml:"sender"   split_words:"true"`
}

// Enabled reports whether enough SMTP settings are present to send mail
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.Sender != ""
}

type APNSConfig struct {
	AuthKeyPath string `yaml:"authKeyPath" split_words:"true"`
	KeyID       string `yaml:"keyID"       split_words:"true"`
	TeamID      string `yaml:"teamID"      split_words:"true"`
	Topic       string `yaml:"topic"       split_words:"true"`
	Production  bool   `yaml:"production"  split_words:"true"`
}

// Enabled reports whether push notifications are configured
func (a APNSConfig) Enabled() bool {
	return a.AuthKeyPath != "" && a.KeyID != "" && a.TeamID != "" && a.Topic != ""
}

// Default returns the configuration used when nothing else is provided
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":2000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			PhotoDir:        "./photos",
		},
		Database: DatabaseConfig{
			Driver:  DriverPostgres,
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "campusvote",
			SSLMode: "disable",
		},
		Auth: AuthConfig{
			TokenTTL: 12 * time.Hour,
		},
		SMTP: SMTPConfig{
			Port: "587",
		},
		Metrics: true,
	}
}

// Load builds the configuration from defaults, the optional YAML file, a
// .env file in the working directory and finally the environment.
func Load(configFile string) (*Config, error) {
	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	// A missing .env file is normal outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to run the server
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMySQL:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return errors.New("database host or dsn is required")
		}
	case DriverSQLite:
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth jwt secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth token ttl must be positive")
	}
	return nil
}
