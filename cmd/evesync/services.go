package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/antihax/goesi"
	"github.com/jmoiron/sqlx"

	"github.com/ErikKalkoken/evesync/internal/app/credentials"
	"github.com/ErikKalkoken/evesync/internal/app/esimarket"
	"github.com/ErikKalkoken/evesync/internal/app/freshness"
	"github.com/ErikKalkoken/evesync/internal/app/marketgroup"
	"github.com/ErikKalkoken/evesync/internal/app/pcache"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/app/syncservice"
	"github.com/ErikKalkoken/evesync/internal/config"
	"github.com/ErikKalkoken/evesync/internal/eveapi"
	"github.com/ErikKalkoken/evesync/internal/httptransport"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

const (
	cacheCleanUpTimeout = time.Hour
	cacheKeyPrefix      = "eveapi-"
)

// services holds the wired services of the app.
type services struct {
	cfg         *config.Config
	credentials *credentials.Provider
	dbRO        *sqlx.DB
	dbRW        *sqlx.DB
	pc          *pcache.PCache
	st          *storage.Storage
	sync        *syncservice.SyncService
}

func newServices(cfg *config.Config) (*services, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), os.ModePerm); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s", cfg.Database.Path)
	dbRW, dbRO, err := storage.InitDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("initialize database %s: %w", dsn, err)
	}
	st := storage.New(dbRW, dbRO)
	pc := pcache.New(st, cacheCleanUpTimeout)

	remote := eveapi.New(eveapi.Params{
		BaseURL:           cfg.Remote.BaseURL,
		Cache:             eveapi.NewCacheAdapter(pc, cacheKeyPrefix, cfg.Remote.CacheTimeout),
		HTTPClient:        &http.Client{Transport: httptransport.LoggedTransport{RedactedParams: []string{eveapi.ParamVerificationCode}}},
		MaxRetries:        cfg.Remote.MaxRetries,
		RequestsPerSecond: cfg.Remote.RequestsPerSecond,
		Timeout:           cfg.Remote.Timeout,
		UserAgent:         cfg.Remote.UserAgent,
	})
	esiClient := goesi.NewAPIClient(&http.Client{
		Transport: &xgoesi.RateLimiter{Transport: httptransport.LoggedTransport{}},
	}, cfg.Remote.UserAgent)
	market := esimarket.New(esiClient)
	cp := credentials.New(credentials.Params{
		ClientID:     cfg.SSO.ClientID,
		ClientSecret: cfg.SSO.ClientSecret,
		Storage:      st,
	})
	s := syncservice.New(syncservice.Params{
		Credentials: cp,
		Fetcher:     remote,
		GroupLookup: marketgroup.New(st, market),
		Market:      market,
		Policy:      freshness.New(cfg.Sync.MarketMaxAge, cfg.Remote.Timeout),
		Storage:     st,
		Strategy:    cfg.Strategy(),
	})
	svc := &services{
		cfg:         cfg,
		credentials: cp,
		dbRO:        dbRO,
		dbRW:        dbRW,
		pc:          pc,
		st:          st,
		sync:        s,
	}
	slog.Debug("Services initialized", "database", cfg.Database.Path, "strategy", cfg.Strategy())
	return svc, nil
}

func (svc *services) close() {
	stats := svc.pc.Stats()
	slog.Debug("Response cache", "hits", stats.Hits, "misses", stats.Misses, "failures", stats.Failures)
	svc.pc.Close()
	svc.dbRO.Close()
	svc.dbRW.Close()
}
