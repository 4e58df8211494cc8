package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const envPrefix = "EVESYNC_"

// Load reads a config file and expands environment variables.
// When the file does not exist at the default path, an empty configuration is used.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			var cfg Config
			if err := applyEnv(&cfg); err != nil {
				return nil, err
			}
			return &cfg, nil
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a configuration from YAML and applies overrides from the environment.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadAndValidate loads a config, applies defaults and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides settings with environment variables.
func applyEnv(cfg *Config) error {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	setString("DATABASE_PATH", &cfg.Database.Path)
	setString("REMOTE_BASE_URL", &cfg.Remote.BaseURL)
	setString("REMOTE_USER_AGENT", &cfg.Remote.UserAgent)
	setString("SSO_CLIENT_ID", &cfg.SSO.ClientID)
	setString("SSO_CLIENT_SECRET", &cfg.SSO.ClientSecret)
	setString("SYNC_RECONCILE_STRATEGY", &cfg.Sync.ReconcileStrategy)
	setString("LOG_LEVEL", &cfg.Log.Level)
	setString("LOG_FILE", &cfg.Log.File)

	var errs []error
	setDuration := func(name string, dst *time.Duration) {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", envPrefix, name, err))
			return
		}
		*dst = d
	}
	setDuration("REMOTE_TIMEOUT", &cfg.Remote.Timeout)
	setDuration("REMOTE_CACHE_TIMEOUT", &cfg.Remote.CacheTimeout)
	setDuration("SYNC_MARKET_MAX_AGE", &cfg.Sync.MarketMaxAge)
	setDuration("SYNC_INTERVAL", &cfg.Sync.Interval)

	if v, ok := os.LookupEnv(envPrefix + "REMOTE_MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREMOTE_MAX_RETRIES: %w", envPrefix, err))
		} else {
			cfg.Remote.MaxRetries = n
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "REMOTE_REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sREMOTE_REQUESTS_PER_SECOND: %w", envPrefix, err))
		} else {
			cfg.Remote.RequestsPerSecond = f
		}
	}
	return errors.Join(errs...)
}
