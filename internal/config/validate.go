package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/ErikKalkoken/evesync/internal/app/reconcile"
)

// Validate checks that all values are valid.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}

	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.base_url must be a http or https URL, got %q", c.Remote.BaseURL)
	}
	if c.Remote.Timeout <= 0 {
		return errors.New("remote.timeout must be > 0")
	}
	if c.Remote.MaxRetries < 0 {
		return errors.New("remote.max_retries must be >= 0")
	}
	if c.Remote.RequestsPerSecond < 0 {
		return errors.New("remote.requests_per_second must be >= 0")
	}
	if c.Remote.CacheTimeout < 0 {
		return errors.New("remote.cache_timeout must be >= 0")
	}

	if (c.SSO.ClientID == "") != (c.SSO.ClientSecret == "") {
		return errors.New("sso.client_id and sso.client_secret must be set together")
	}

	if c.Sync.MarketMaxAge <= 0 {
		return errors.New("sync.market_max_age must be > 0")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be > 0")
	}
	if _, err := reconcile.ParseStrategy(c.Sync.ReconcileStrategy); err != nil {
		return fmt.Errorf("sync.reconcile_strategy: %w", err)
	}
	for i, m := range c.Sync.Markets {
		if _, err := m.RegionID(); err != nil {
			return fmt.Errorf("sync.markets[%d].region: %w", i, err)
		}
		if m.TypeID <= 0 {
			return fmt.Errorf("sync.markets[%d].type_id must be > 0", i)
		}
		if m.CharacterID < 0 {
			return fmt.Errorf("sync.markets[%d].character_id must be >= 0", i)
		}
	}

	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return l, nil
}

// Strategy returns the configured reconcile strategy.
func (c *Config) Strategy() reconcile.Strategy {
	s, _ := reconcile.ParseStrategy(c.Sync.ReconcileStrategy)
	return s
}
