package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	Extractor ExtractorConfig `koanf:"extractor"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	StrictErrors    bool          `koanf:"strict_errors"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	URL    string `koanf:"url"`
}

type RedisConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Address  string        `koanf:"address"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type ExtractorConfig struct {
	RecursiveFallback bool `koanf:"recursive_fallback"`
}

const defaultSQLitePath = "sms_messages.db"

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Redis: RedisConfig{
			TTL: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Extractor: ExtractorConfig{
			RecursiveFallback: true,
		},
	}
}

// LoadAll builds the config from defaults, the optional YAML file named by
// CONFIG_FILE, then environment variables. Every problem is reported at once.
func LoadAll() (*Config, error) {
	cfg := defaults()
	var errs []error

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	collect(&errs, &cfg.Server.Port, func() (int, error) { return getEnvInt("PORT", cfg.Server.Port) })
	collect(&errs, &cfg.Server.StrictErrors, func() (bool, error) { return getEnvBool("STRICT_ERRORS", cfg.Server.StrictErrors) })
	collect(&errs, &cfg.Server.ShutdownTimeout, func() (time.Duration, error) {
		return getEnvSeconds("SHUTDOWN_TIMEOUT_SECONDS", cfg.Server.ShutdownTimeout)
	})

	cfg.Database.Driver = strings.ToLower(getEnv("DB_DRIVER", cfg.Database.Driver))
	cfg.Database.URL = getEnv("DATABASE_URL", cfg.Database.URL)

	if err := loadRedisConfig(&cfg.Redis); err != nil {
		errs = append(errs, err)
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	collect(&errs, &cfg.Extractor.RecursiveFallback, func() (bool, error) {
		return getEnvBool("EXTRACT_RECURSIVE", cfg.Extractor.RecursiveFallback)
	})

	errs = append(errs, validate(cfg)...)
	if err := joinErrors(errs); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func loadRedisConfig(rc *RedisConfig) error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rc.Address = addr
	}
	if rc.Address == "" {
		rc.Enabled = false
		return nil
	}
	rc.Enabled = true
	rc.Password = getEnv("REDIS_PASSWORD", rc.Password)

	var errs []error
	collect(&errs, &rc.DB, func() (int, error) { return getEnvInt("REDIS_DB", rc.DB) })
	collect(&errs, &rc.TTL, func() (time.Duration, error) { return getEnvSeconds("REDIS_TTL_SECONDS", rc.TTL) })
	return joinErrors(errs)
}

func validate(cfg *Config) []error {
	var errs []error

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Server.Port))
	}

	switch cfg.Database.Driver {
	case "sqlite":
		if cfg.Database.URL == "" {
			cfg.Database.URL = defaultSQLitePath
		}
	case "postgres":
		if cfg.Database.URL == "" {
			errs = append(errs, errors.New("missing required env var: DATABASE_URL (DB_DRIVER=postgres)"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", cfg.Database.Driver))
	}

	if cfg.Redis.Enabled && cfg.Redis.TTL <= 0 {
		errs = append(errs, errors.New("REDIS_TTL_SECONDS must be > 0"))
	}

	return errs
}

func collect[T any](errs *[]error, dst *T, fn func() (T, error)) {
	v, err := fn()
	if err != nil {
		*errs = append(*errs, err)
		return
	}
	*dst = v
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func getEnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for env %s: %s", key, v)
	}
	return b, nil
}

func getEnvSeconds(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return time.Duration(n) * time.Second, nil
}
