// Package marketgroup resolves paths in the market group hierarchy.
package marketgroup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
)

// maxDepth is the maximum depth of the market group hierarchy.
const maxDepth = 32

// MarketGroupFetcher fetches market groups from the remote API.
type MarketGroupFetcher interface {
	FetchMarketGroup(ctx context.Context, groupID int32) (*app.MarketGroup, error)
}

// Service resolves market group paths.
// Market groups are cached in storage.
type Service struct {
	fetcher MarketGroupFetcher
	sfg     *singleflight.Group
	st      *storage.Storage
}

// New returns a new Service.
func New(st *storage.Storage, fetcher MarketGroupFetcher) *Service {
	s := &Service{
		fetcher: fetcher,
		sfg:     new(singleflight.Group),
		st:      st,
	}
	return s
}

// MarketGroupPath returns the IDs of all market groups from the root to the given group.
// The last element is the group itself.
func (s *Service) MarketGroupPath(ctx context.Context, groupID int32) ([]int32, error) {
	if groupID == 0 {
		return nil, fmt.Errorf("MarketGroupPath: %w", app.ErrInvalid)
	}
	path := make([]int32, 0)
	id := groupID
	for {
		if len(path) == maxDepth || slices.Contains(path, id) {
			return nil, fmt.Errorf("MarketGroupPath %d: invalid hierarchy: %w", groupID, app.ErrInvalid)
		}
		g, err := s.GetOrCreateMarketGroup(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("MarketGroupPath %d: %w", groupID, err)
		}
		path = append(path, g.ID)
		parentID, err := g.ParentID.Value()
		if err != nil {
			break
		}
		id = parentID
	}
	slices.Reverse(path)
	return path, nil
}

// GetOrCreateMarketGroup returns a market group from storage
// and fetches it from the remote API when it is not yet stored.
func (s *Service) GetOrCreateMarketGroup(ctx context.Context, id int32) (*app.MarketGroup, error) {
	x, err, _ := s.sfg.Do(fmt.Sprintf("GetOrCreateMarketGroup-%d", id), func() (any, error) {
		o, err := s.st.GetMarketGroup(ctx, id)
		if err == nil {
			return o, nil
		} else if !errors.Is(err, app.ErrNotFound) {
			return nil, err
		}
		g, err := s.fetcher.FetchMarketGroup(ctx, id)
		if err != nil {
			return nil, err
		}
		arg := storage.UpdateOrCreateMarketGroupParams{
			ID:       g.ID,
			Name:     g.Name,
			ParentID: g.ParentID,
		}
		if err := s.st.UpdateOrCreateMarketGroup(ctx, arg); err != nil {
			return nil, err
		}
		slog.Info("Created market group", "ID", id)
		return s.st.GetMarketGroup(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return x.(*app.MarketGroup), nil
}
