// Package esimarket fetches market data from ESI.
package esimarket

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/antihax/goesi"
	"github.com/antihax/goesi/esi"
	esioptional "github.com/antihax/goesi/optional"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
	"github.com/ErikKalkoken/evesync/internal/xesi"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

// Order types on ESI
const (
	OrderTypeBuy  = "buy"
	OrderTypeSell = "sell"
)

const defaultConcurrencyLimit = 5

// Client fetches market data from ESI.
//
// Requests are authenticated when the context was created with [xgoesi.NewContextWithAuth].
type Client struct {
	esiClient        *goesi.APIClient
	concurrencyLimit int
}

// New returns a new Client.
func New(esiClient *goesi.APIClient) *Client {
	c := &Client{
		esiClient:        esiClient,
		concurrencyLimit: defaultConcurrencyLimit,
	}
	return c
}

// FetchOrders returns all orders of one side for a type in a region.
func (c *Client) FetchOrders(ctx context.Context, regionID, typeID int32, isBuy bool) ([]app.MarketOrder, error) {
	orderType := OrderTypeSell
	if isBuy {
		orderType = OrderTypeBuy
	}
	ctx = xgoesi.NewContextWithOperationID(ctx, "GetMarketsRegionIdOrders")
	oo, err := xesi.FetchPages(ctx, c.concurrencyLimit, func(ctx context.Context, page int) ([]esi.GetMarketsRegionIdOrders200Ok, *http.Response, error) {
		arg := &esi.GetMarketsRegionIdOrdersOpts{
			Page:   esioptional.NewInt32(int32(page)),
			TypeId: esioptional.NewInt32(typeID),
		}
		oo, r, err := c.esiClient.ESI.MarketApi.GetMarketsRegionIdOrders(ctx, orderType, regionID, arg)
		if err != nil {
			return nil, r, convertError("GetMarketsRegionIdOrders", r, err)
		}
		return oo, r, nil
	})
	if err != nil {
		return nil, err
	}
	orders := make([]app.MarketOrder, 0, len(oo))
	for _, o := range oo {
		orders = append(orders, app.MarketOrder{
			Duration:     o.Duration,
			IsBuyOrder:   o.IsBuyOrder,
			Issued:       o.Issued,
			LocationID:   o.LocationId,
			MinVolume:    o.MinVolume,
			OrderID:      o.OrderId,
			Price:        o.Price,
			Range:        o.Range_,
			VolumeRemain: o.VolumeRemain,
			VolumeTotal:  o.VolumeTotal,
		})
	}
	return orders, nil
}

// FetchHistory returns the daily market history for a type in a region.
func (c *Client) FetchHistory(ctx context.Context, regionID, typeID int32) ([]app.MarketHistoryItem, error) {
	ctx = xgoesi.NewContextWithOperationID(ctx, "GetMarketsRegionIdHistory")
	hh, r, err := c.esiClient.ESI.MarketApi.GetMarketsRegionIdHistory(ctx, regionID, typeID, nil)
	if err != nil {
		return nil, convertError("GetMarketsRegionIdHistory", r, err)
	}
	items := make([]app.MarketHistoryItem, 0, len(hh))
	for _, h := range hh {
		items = append(items, app.MarketHistoryItem{
			Average:    h.Average,
			Date:       h.Date,
			Highest:    h.Highest,
			Lowest:     h.Lowest,
			OrderCount: h.OrderCount,
			Volume:     h.Volume,
		})
	}
	return items, nil
}

// FetchTypeMarketGroupID returns the ID of the market group a type belongs to.
// Returns [app.ErrNotFound] when the type is not on the market.
func (c *Client) FetchTypeMarketGroupID(ctx context.Context, typeID int32) (int32, error) {
	ctx = xgoesi.NewContextWithOperationID(ctx, "GetUniverseTypesTypeId")
	t, r, err := c.esiClient.ESI.UniverseApi.GetUniverseTypesTypeId(ctx, typeID, nil)
	if err != nil {
		return 0, convertError("GetUniverseTypesTypeId", r, err)
	}
	if t.MarketGroupId == 0 {
		return 0, fmt.Errorf("type %d has no market group: %w", typeID, app.ErrNotFound)
	}
	return t.MarketGroupId, nil
}

// FetchMarketGroup returns a market group.
func (c *Client) FetchMarketGroup(ctx context.Context, groupID int32) (*app.MarketGroup, error) {
	ctx = xgoesi.NewContextWithOperationID(ctx, "GetMarketsGroupsMarketGroupId")
	g, r, err := c.esiClient.ESI.MarketApi.GetMarketsGroupsMarketGroupId(ctx, groupID, nil)
	if err != nil {
		return nil, convertError("GetMarketsGroupsMarketGroupId", r, err)
	}
	o := &app.MarketGroup{
		ID:       g.MarketGroupId,
		Name:     g.Name,
		ParentID: optional.FromIntegerWithZero(g.ParentGroupId),
	}
	return o, nil
}

// convertError converts an error from ESI into an application error.
func convertError(operationID string, r *http.Response, err error) error {
	var statusCode int
	if r != nil {
		statusCode = r.StatusCode
	}
	var swaggerErr esi.GenericSwaggerError
	if errors.As(err, &swaggerErr) {
		err = errors.New(extractErrorMessage(swaggerErr))
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &app.AuthError{Endpoint: operationID, Code: statusCode, Message: err.Error()}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w: %w", operationID, app.ErrNotFound, err)
	case http.StatusTooManyRequests:
		d, _ := xgoesi.ParseRetryAfterHeader(r)
		return &app.RateLimitError{Endpoint: operationID, RetryAfter: d}
	case xgoesi.StatusTooManyErrors:
		d, _ := xgoesi.ParseErrorLimitResetHeader(r)
		return &app.RateLimitError{Endpoint: operationID, RetryAfter: d}
	}
	return &app.TransportError{Endpoint: operationID, StatusCode: statusCode, Err: err}
}

func extractErrorMessage(err esi.GenericSwaggerError) string {
	var detail string
	switch t2 := err.Model().(type) {
	case esi.BadRequest:
		detail = t2.Error_
	case esi.ErrorLimited:
		detail = t2.Error_
	case esi.GatewayTimeout:
		detail = t2.Error_
	case esi.InternalServerError:
		detail = t2.Error_
	case esi.ServiceUnavailable:
		detail = t2.Error_
	default:
		detail = string(err.Body())
	}
	return fmt.Sprintf("%s: %s", err.Error(), detail)
}
