// Package config loads the configuration of evesync.
//
// The configuration is read from a YAML file. Environment variables in the file are expanded
// and variables with the prefix EVESYNC_ override individual settings.
// A .env file in the working directory is loaded into the environment first.
package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/ErikKalkoken/evesync/internal/app"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Remote   RemoteConfig   `yaml:"remote"`
	SSO      SSOConfig      `yaml:"sso"`
	Sync     SyncConfig     `yaml:"sync"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RemoteConfig holds the settings for the remote APIs.
type RemoteConfig struct {
	BaseURL           string        `yaml:"base_url"`
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // zero means no limit
	CacheTimeout      time.Duration `yaml:"cache_timeout"`
}

type SSOConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// SyncConfig holds the settings for updating entities.
type SyncConfig struct {
	MarketMaxAge      time.Duration  `yaml:"market_max_age"`
	Interval          time.Duration  `yaml:"interval"`
	ReconcileStrategy string         `yaml:"reconcile_strategy"`
	Markets           []MarketConfig `yaml:"markets"`
}

// MarketConfig is a market type to keep updated.
type MarketConfig struct {
	Region      string `yaml:"region"` // region ID or name of a trade hub
	TypeID      int32  `yaml:"type_id"`
	CharacterID int32  `yaml:"character_id"` // optional character for authenticated requests
}

// RegionID returns the ID of the configured region.
func (mc MarketConfig) RegionID() (int32, error) {
	if h, ok := app.TradeHubByName(mc.Region); ok {
		return h.RegionID, nil
	}
	id, err := strconv.ParseInt(mc.Region, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("unknown region %q: %w", mc.Region, app.ErrInvalid)
	}
	return int32(id), nil
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"` // logs to stderr when empty
}
