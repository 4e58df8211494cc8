package syncservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/marketmetrics"
	"github.com/ErikKalkoken/evesync/internal/app/storage"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

type MarketTypeUpdateParams struct {
	RegionID      int32
	TypeID        int32
	MarketGroupID int32 // when zero the market group is looked up

	// Character whose token is used for fetching market data. Optional.
	CharacterID  int32
	RefreshToken bool // refresh the character's token before fetching

	MaxAge  time.Duration // overrides the policy's max age when not zero
	Timeout time.Duration // overrides the policy's timeout when not zero
}

// MarketTypeUpdateResult reports the outcome of a market type update.
type MarketTypeUpdateResult struct {
	MarketType *app.MarketType
	Fetched    bool // reports whether market data was fetched
}

// UpdateMarketType updates the market data of an item type in a region
// when it is stale or incomplete and recalculates its summary.
//
// The summary consisting of the metrics and the market group path
// is recalculated on every call, even when the market data is still fresh.
func (s *SyncService) UpdateMarketType(ctx context.Context, arg MarketTypeUpdateParams) (*MarketTypeUpdateResult, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("UpdateMarketType: %d/%d: %w", arg.RegionID, arg.TypeID, err)
	}
	if arg.RegionID == 0 || arg.TypeID == 0 {
		return nil, wrapErr(app.ErrInvalid)
	}
	if s.market == nil {
		return nil, wrapErr(fmt.Errorf("no market data fetcher: %w", app.ErrInvalid))
	}
	key := fmt.Sprintf(
		"UpdateMarketType-%d-%d-%d-%d-%t-%s-%s",
		arg.RegionID,
		arg.TypeID,
		arg.MarketGroupID,
		arg.CharacterID,
		arg.RefreshToken,
		arg.MaxAge,
		arg.Timeout,
	)
	x, err, _ := s.sfg.Do(key, func() (any, error) {
		return s.updateMarketType(ctx, arg)
	})
	if err != nil {
		return nil, wrapErr(err)
	}
	return x.(*MarketTypeUpdateResult), nil
}

func (s *SyncService) updateMarketType(ctx context.Context, arg MarketTypeUpdateParams) (*MarketTypeUpdateResult, error) {
	logger := newRunLogger("UpdateMarketType", "regionID", arg.RegionID, "typeID", arg.TypeID)
	mt, err := s.st.GetOrCreateMarketType(ctx, storage.CreateMarketTypeParams{
		MarketGroupID: arg.MarketGroupID,
		RegionID:      arg.RegionID,
		TypeID:        arg.TypeID,
	})
	if err != nil {
		return nil, err
	}
	policy := s.policy.WithOverrides(arg.MaxAge, arg.Timeout)
	var fetched bool
	if policy.NeedsRefetch(mt.UpdatedAt, 0, mt.HasCompleteData()) {
		if err := s.fetchMarketData(ctx, arg, policy.Timeout); err != nil {
			return nil, err
		}
		mt, err = s.st.GetMarketType(ctx, storage.MarketTypeKey{RegionID: arg.RegionID, TypeID: arg.TypeID})
		if err != nil {
			return nil, err
		}
		fetched = true
	} else {
		logger.Debug("Market data is fresh", "updatedAt", mt.UpdatedAt)
	}

	m := marketmetrics.Calculate(mt.BuyOrders, mt.SellOrders)
	groupID, err := s.resolveMarketGroupID(ctx, arg, mt)
	if err != nil {
		return nil, err
	}
	var path []int32
	if groupID != 0 && s.groups != nil {
		path, err = s.groups.MarketGroupPath(ctx, groupID)
		if err != nil {
			return nil, err
		}
	}
	err = s.st.UpdateMarketTypeSummary(ctx, storage.UpdateMarketTypeSummaryParams{
		Buy:               m.Buy,
		Margin:            m.Margin,
		MarketGroupID:     groupID,
		MarketGroupIDPath: path,
		RegionID:          arg.RegionID,
		Sell:              m.Sell,
		Spread:            m.Spread,
		TypeID:            arg.TypeID,
	})
	if err != nil {
		return nil, err
	}
	mt, err = s.st.GetMarketType(ctx, storage.MarketTypeKey{RegionID: arg.RegionID, TypeID: arg.TypeID})
	if err != nil {
		return nil, err
	}
	logger.Info("Updated market type", "fetched", fetched, "buy", mt.Buy, "sell", mt.Sell)
	return &MarketTypeUpdateResult{MarketType: mt, Fetched: fetched}, nil
}

// resolveMarketGroupID returns the market group of a type.
// A type without a market group returns 0.
func (s *SyncService) resolveMarketGroupID(ctx context.Context, arg MarketTypeUpdateParams, mt *app.MarketType) (int32, error) {
	if arg.MarketGroupID != 0 {
		return arg.MarketGroupID, nil
	}
	if mt.MarketGroupID != 0 {
		return mt.MarketGroupID, nil
	}
	id, err := s.market.FetchTypeMarketGroupID(ctx, arg.TypeID)
	if errors.Is(err, app.ErrNotFound) {
		slog.Info("Type has no market group", "typeID", arg.TypeID)
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return id, nil
}

// fetchMarketData fetches sell orders, buy orders and history concurrently and stores them.
func (s *SyncService) fetchMarketData(ctx context.Context, arg MarketTypeUpdateParams, timeout time.Duration) error {
	fetchCtx, err := s.marketContext(ctx, arg)
	if err != nil {
		return err
	}
	fetchCtx, cancel := context.WithTimeout(fetchCtx, timeout)
	defer cancel()
	var buy, sell []app.MarketOrder
	var history []app.MarketHistoryItem
	g, fetchCtx := errgroup.WithContext(fetchCtx)
	g.Go(func() error {
		var err error
		sell, err = s.market.FetchOrders(fetchCtx, arg.RegionID, arg.TypeID, false)
		return err
	})
	g.Go(func() error {
		var err error
		buy, err = s.market.FetchOrders(fetchCtx, arg.RegionID, arg.TypeID, true)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = s.market.FetchHistory(fetchCtx, arg.RegionID, arg.TypeID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &app.TransportError{Endpoint: "market data", Err: err}
		}
		return err
	}
	// Fetched data is stored as empty lists, since nil means not fetched.
	if buy == nil {
		buy = []app.MarketOrder{}
	}
	if sell == nil {
		sell = []app.MarketOrder{}
	}
	if history == nil {
		history = []app.MarketHistoryItem{}
	}
	return s.st.UpdateMarketTypeData(ctx, storage.UpdateMarketTypeDataParams{
		BuyOrders:  buy,
		History:    history,
		RegionID:   arg.RegionID,
		SellOrders: sell,
		TypeID:     arg.TypeID,
	})
}

// marketContext returns a context authenticated with the character's access token
// when a character was given.
func (s *SyncService) marketContext(ctx context.Context, arg MarketTypeUpdateParams) (context.Context, error) {
	if arg.CharacterID == 0 {
		return ctx, nil
	}
	if s.credentials == nil {
		return nil, fmt.Errorf("no credential provider: %w", app.ErrInvalid)
	}
	if arg.RefreshToken {
		if _, err := s.credentials.Refresh(ctx, arg.CharacterID); err != nil {
			return nil, err
		}
	}
	token, err := s.credentials.AccessToken(ctx, arg.CharacterID)
	if err != nil {
		return nil, err
	}
	return xgoesi.NewContextWithAuth(ctx, arg.CharacterID, token), nil
}
