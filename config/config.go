package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	// zone data for streak.timezone in images without /usr/share/zoneinfo
	_ "time/tzdata"

	pkgconfig "habittracker/pkg/config"

	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type StoreConfig struct {
	// Driver is "postgres" or "memory"
	Driver string `yaml:"driver"`
}

type StreakConfig struct {
	// Timezone whose midnight starts a new day, an IANA name
	Timezone     string `yaml:"timezone"`
	ProgressDays int    `yaml:"progress_days"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	DB     pkgconfig.DBConfig     `yaml:"db"`
	Redis  pkgconfig.RedisConfig  `yaml:"redis"`
	MQ     pkgconfig.MQConfig     `yaml:"mq"`
	JWT    pkgconfig.JWTConfig    `yaml:"jwt"`
	Server pkgconfig.ServerConfig `yaml:"server"`
	Store  StoreConfig            `yaml:"store"`
	Streak StreakConfig           `yaml:"streak"`
	Cache  CacheConfig            `yaml:"cache"`
	Log    LogConfig              `yaml:"log"`
}

// Load reads the service configuration.
//
// With CONFIG_ENV set the layered loader reads CONFIG_DIR (default
// "config"); otherwise the single file at CONFIG_PATH (default
// "config.yaml") is used. Environment overrides apply last.
func Load() (*Config, error) {
	var cfg Config
	if env := os.Getenv("CONFIG_ENV"); env != "" {
		if err := pkgconfig.LoadLayered(env, os.Getenv("CONFIG_DIR"), &cfg); err != nil {
			return nil, err
		}
	} else if err := loadFile(pkgconfig.GetEnv("CONFIG_PATH", "config.yaml"), &cfg); err != nil {
		return nil, err
	}

	overrideFromEnv(&cfg)
	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func overrideFromEnv(cfg *Config) {
	pkgconfig.OverrideDBFromEnv(&cfg.DB)
	pkgconfig.OverrideRedisFromEnv(&cfg.Redis)
	pkgconfig.OverrideMQFromEnv(&cfg.MQ)
	pkgconfig.OverrideJWTFromEnv(&cfg.JWT)
	pkgconfig.OverrideServerFromEnv(&cfg.Server)

	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Store.Driver = driver
	}
	if tz := os.Getenv("STREAK_TIMEZONE"); tz != "" {
		cfg.Streak.Timezone = tz
	}
	if days := os.Getenv("PROGRESS_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil {
			cfg.Streak.ProgressDays = n
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if cfg.Streak.Timezone == "" {
		cfg.Streak.Timezone = "UTC"
	}
	if cfg.Streak.ProgressDays == 0 {
		cfg.Streak.ProgressDays = 30
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.JWT.TokenTTL == 0 {
		cfg.JWT.TokenTTL = 24 * time.Hour
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.Streak.ProgressDays < 1 || c.Streak.ProgressDays > 366 {
		return fmt.Errorf("streak.progress_days must be between 1 and 366, got %d", c.Streak.ProgressDays)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves Streak.Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Streak.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid streak.timezone %q: %w", c.Streak.Timezone, err)
	}
	return loc, nil
}
