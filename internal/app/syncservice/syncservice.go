// Package syncservice keeps account keys, characters and market types in sync with the remote APIs.
package syncservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/freshness"
	"github.com/ErikKalkoken/evesync/internal/app/reconcile"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
)

// RemoteFetcher fetches payloads from the key based API.
type RemoteFetcher interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) (map[string]any, error)
}

// CredentialProvider provides access tokens for characters.
type CredentialProvider interface {
	AccessToken(ctx context.Context, characterID int32) (string, error)
	Refresh(ctx context.Context, characterID int32) (*app.CharacterToken, error)
}

// MarketGroupPathLookup resolves the path from the root of the market group hierarchy to a group.
type MarketGroupPathLookup interface {
	MarketGroupPath(ctx context.Context, groupID int32) ([]int32, error)
}

// MarketDataFetcher fetches market data from ESI.
type MarketDataFetcher interface {
	FetchOrders(ctx context.Context, regionID, typeID int32, isBuy bool) ([]app.MarketOrder, error)
	FetchHistory(ctx context.Context, regionID, typeID int32) ([]app.MarketHistoryItem, error)
	FetchTypeMarketGroupID(ctx context.Context, typeID int32) (int32, error)
}

// SyncService updates local entities from the remote APIs.
//
// Concurrent updates of the same entity are collapsed into one.
type SyncService struct {
	credentials CredentialProvider
	fetcher     RemoteFetcher
	groups      MarketGroupPathLookup
	market      MarketDataFetcher
	policy      freshness.Policy
	sfg         *singleflight.Group
	st          *storage.Storage
	strategy    reconcile.Strategy
}

type Params struct {
	Credentials CredentialProvider
	Fetcher     RemoteFetcher
	GroupLookup MarketGroupPathLookup
	Market      MarketDataFetcher
	// Policy for deciding when to refetch remote data. Zero settings are replaced by the defaults.
	Policy   freshness.Policy
	Storage  *storage.Storage
	Strategy reconcile.Strategy
}

// New returns a new SyncService.
func New(arg Params) *SyncService {
	if arg.Storage == nil {
		panic("missing storage")
	}
	s := &SyncService{
		credentials: arg.Credentials,
		fetcher:     arg.Fetcher,
		groups:      arg.GroupLookup,
		market:      arg.Market,
		policy:      freshness.New(arg.Policy.MaxAge, arg.Policy.Timeout),
		sfg:         new(singleflight.Group),
		st:          arg.Storage,
		strategy:    arg.Strategy,
	}
	if arg.Policy.Now != nil {
		s.policy.Now = arg.Policy.Now
	}
	return s
}

// EntityKind is the kind of an entity which can be updated.
type EntityKind uint

const (
	EntityUndefined EntityKind = iota
	EntityAccountKey
	EntityCharacter
	EntityMarketType
)

func (k EntityKind) String() string {
	switch k {
	case EntityAccountKey:
		return "account key"
	case EntityCharacter:
		return "character"
	case EntityMarketType:
		return "market type"
	}
	return "undefined"
}

// Entity identifies an entity for an update.
type Entity struct {
	Kind     EntityKind
	ID       int64 // ID of an account key or character or type ID of a market type
	RegionID int32 // only for market types
}

func AccountKeyEntity(id int64) Entity {
	return Entity{Kind: EntityAccountKey, ID: id}
}

func CharacterEntity(id int32) Entity {
	return Entity{Kind: EntityCharacter, ID: int64(id)}
}

func MarketTypeEntity(regionID, typeID int32) Entity {
	return Entity{Kind: EntityMarketType, ID: int64(typeID), RegionID: regionID}
}

func (e Entity) String() string {
	if e.Kind == EntityMarketType {
		return fmt.Sprintf("%s %d/%d", e.Kind, e.RegionID, e.ID)
	}
	return fmt.Sprintf("%s %d", e.Kind, e.ID)
}

// Update updates an entity with the default parameters for its kind.
func (s *SyncService) Update(ctx context.Context, e Entity) error {
	var err error
	switch e.Kind {
	case EntityAccountKey:
		_, err = s.UpdateAccountKey(ctx, AccountKeyUpdateParams{KeyID: e.ID})
	case EntityCharacter:
		_, err = s.UpdateCharacter(ctx, CharacterUpdateParams{CharacterID: int32(e.ID)})
	case EntityMarketType:
		_, err = s.UpdateMarketType(ctx, MarketTypeUpdateParams{RegionID: e.RegionID, TypeID: int32(e.ID)})
	default:
		err = fmt.Errorf("update %s: %w", e, app.ErrInvalid)
	}
	return err
}

// newRunLogger returns a logger for one update run.
func newRunLogger(op string, args ...any) *slog.Logger {
	return slog.With(append([]any{"op", op, "runID", uuid.NewString()}, args...)...)
}

// withTimeout returns a context with the given timeout or the policy's timeout when zero.
func (s *SyncService) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = s.policy.Timeout
	}
	return context.WithTimeout(ctx, timeout)
}
