package config

import (
	"path/filepath"
	"time"

	"github.com/chasinglogic/appdirs"
)

const (
	appName        = "evesync"
	configFileName = "config.yaml"
	dbFileName     = "evesync.sqlite"
)

// Default values for optional configuration fields.
const (
	DefaultBaseURL           = "https://api.eveonline.com"
	DefaultUserAgent         = "evesync"
	DefaultTimeout           = 7000 * time.Millisecond
	DefaultMaxRetries        = 0
	DefaultCacheTimeout      = 24 * time.Hour
	DefaultMarketMaxAge      = 1800 * time.Second
	DefaultInterval          = 30 * time.Minute
	DefaultReconcileStrategy = "full_replace"
	DefaultLogLevel          = "INFO"
)

// DefaultPath returns the path of the config file in the user's data directory.
func DefaultPath() string {
	return filepath.Join(appdirs.New(appName).UserData(), configFileName)
}

func defaultDatabasePath() string {
	return filepath.Join(appdirs.New(appName).UserData(), dbFileName)
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = defaultDatabasePath()
	}

	if c.Remote.BaseURL == "" {
		c.Remote.BaseURL = DefaultBaseURL
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = DefaultUserAgent
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = DefaultTimeout
	}
	if c.Remote.CacheTimeout == 0 {
		c.Remote.CacheTimeout = DefaultCacheTimeout
	}

	if c.Sync.MarketMaxAge == 0 {
		c.Sync.MarketMaxAge = DefaultMarketMaxAge
	}
	if c.Sync.Interval == 0 {
		c.Sync.Interval = DefaultInterval
	}
	if c.Sync.ReconcileStrategy == "" {
		c.Sync.ReconcileStrategy = DefaultReconcileStrategy
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}
