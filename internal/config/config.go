package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Rooms/internal/domain"
)

const envPrefix = "ROOMS"

type QueueConfig struct {
	Driver      string `mapstructure:"driver"`
	RedisURL    string `mapstructure:"redis_url"`
	Key         string `mapstructure:"key"`
	Concurrency int    `mapstructure:"concurrency"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

type AuthConfig struct {
	// JWTSecret verifies viewer tokens. Empty disables viewer identity: everyone is a guest.
	JWTSecret     string        `mapstructure:"jwt_secret"`
	ViewerCookie  string        `mapstructure:"viewer_cookie"`
	AttemptLimit  int           `mapstructure:"attempt_limit"`
	AttemptWindow time.Duration `mapstructure:"attempt_window"`
}

type PolicyConfig struct {
	CreateRoles []string `mapstructure:"create_roles"`
	// CreateOptions keys reach the server lower-cased.
	CreateOptions map[string]string `mapstructure:"create_options"`
}

type Config struct {
	Env            string          `mapstructure:"-"`
	Mode           string          `mapstructure:"mode"`
	Port           int             `mapstructure:"port"`
	ReadLimit      int64           `mapstructure:"read_limit"`
	PingPeriod     time.Duration   `mapstructure:"ping_period"`
	Secret         string          `mapstructure:"secret"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	Servers        []domain.Server `mapstructure:"servers"`
	Queue          QueueConfig     `mapstructure:"queue"`
	Database       DatabaseConfig  `mapstructure:"database"`
	Logging        LoggingConfig   `mapstructure:"logging"`
	Tracing        TracingConfig   `mapstructure:"tracing"`
	Auth           AuthConfig      `mapstructure:"auth"`
	Policy         PolicyConfig    `mapstructure:"policy"`
}

// Load reads config/config.<CONFIG_ENV>.yaml, dev by default.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFrom("config", env)
}

// LoadFrom reads dir/config.<env>.yaml. A missing file leaves the defaults; ROOMS_* variables
// override both, with dots in keys replaced by underscores (ROOMS_QUEUE_DRIVER).
func LoadFrom(dir, env string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	fileName := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	v.SetConfigFile(fileName)

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Env = env
	for i := range cfg.Servers {
		if cfg.Servers[i].Kind == "" {
			cfg.Servers[i].Kind = domain.ServerBigBlueButton
		}
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Int("servers", len(cfg.Servers)).Str("queue", cfg.Queue.Driver).Str("database", cfg.Database.Driver).
		Msg("configuration ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("servers", []map[string]any{})

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.redis_url", "")
	v.SetDefault("queue.key", "queue:rooms")
	v.SetDefault("queue.concurrency", 16)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 28)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.service_name", "rooms")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.viewer_cookie", "viewer")
	v.SetDefault("auth.attempt_limit", 5)
	v.SetDefault("auth.attempt_window", "1m")

	v.SetDefault("policy.create_roles", []string{"moderator"})
	v.SetDefault("policy.create_options", map[string]string{})
}

// Validate reports the first setting the service cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.Mode == "release" && len(c.Secret) < 32 {
		return errors.New("secret must be at least 32 bytes in release mode")
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if len(c.Servers) == 0 {
		return errors.New("at least one server must be configured")
	}
	seen := make(map[domain.ServerID]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.ID == "" {
			return errors.New("server without id")
		}
		if seen[s.ID] {
			return fmt.Errorf("server %s declared twice", s.ID)
		}
		seen[s.ID] = true
		if s.URL == "" {
			return fmt.Errorf("server %s: url is required", s.ID)
		}
		switch s.Kind {
		case domain.ServerBigBlueButton:
			if s.Secret == "" {
				return fmt.Errorf("server %s: secret is required", s.ID)
			}
		case domain.ServerLiveKit:
			if s.APIKey == "" || s.APISecret == "" {
				return fmt.Errorf("server %s: api_key and api_secret are required", s.ID)
			}
		default:
			return fmt.Errorf("server %s: unknown kind %q", s.ID, s.Kind)
		}
	}
	switch c.Queue.Driver {
	case "memory":
	case "redis":
		if c.Queue.RedisURL == "" {
			return errors.New("queue.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("queue.driver: unknown driver %q", c.Queue.Driver)
	}
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver)
	}
	for _, r := range c.Policy.CreateRoles {
		if _, err := domain.ParseRole(r); err != nil {
			return fmt.Errorf("policy.create_roles: %w", err)
		}
	}
	return nil
}
