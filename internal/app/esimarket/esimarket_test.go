package esimarket_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/antihax/goesi"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/app/esimarket"
	"github.com/ErikKalkoken/evesync/internal/xgoesi"
)

func TestClient(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	c := esimarket.New(goesi.NewAPIClient(nil, ""))
	ctx := context.Background()
	t.Run("should fetch sell orders", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/markets/10000002/orders/`,
			func(req *http.Request) (*http.Response, error) {
				q := req.URL.Query()
				assert.Equal(t, "sell", q.Get("order_type"))
				assert.Equal(t, "34", q.Get("type_id"))
				return httpmock.NewJsonResponse(200, []map[string]any{
					{
						"duration":      90,
						"is_buy_order":  false,
						"issued":        "2025-01-01T12:00:00Z",
						"location_id":   60003760,
						"min_volume":    1,
						"order_id":      42,
						"price":         5.5,
						"range":         "region",
						"system_id":     30000142,
						"type_id":       34,
						"volume_remain": 80,
						"volume_total":  100,
					},
				})
			},
		)
		// when
		oo, err := c.FetchOrders(ctx, 10000002, 34, false)
		// then
		if assert.NoError(t, err) {
			if assert.Len(t, oo, 1) {
				o := oo[0]
				assert.Equal(t, int64(42), o.OrderID)
				assert.Equal(t, 5.5, o.Price)
				assert.False(t, o.IsBuyOrder)
				assert.Equal(t, int32(80), o.VolumeRemain)
				assert.Equal(t, "region", o.Range)
			}
		}
	})
	t.Run("should return empty list when there are no orders", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/markets/10000002/orders/`,
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{}),
		)
		// when
		oo, err := c.FetchOrders(ctx, 10000002, 34, true)
		// then
		if assert.NoError(t, err) {
			assert.NotNil(t, oo)
			assert.Len(t, oo, 0)
		}
	})
	t.Run("should fetch history", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/markets/10000002/history/`,
			httpmock.NewJsonResponderOrPanic(200, []map[string]any{
				{
					"average":     5.25,
					"date":        "2025-01-01",
					"highest":     5.27,
					"lowest":      5.11,
					"order_count": 2267,
					"volume":      16276782035,
				},
			}),
		)
		// when
		hh, err := c.FetchHistory(ctx, 10000002, 34)
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, []app.MarketHistoryItem{{
				Average:    5.25,
				Date:       "2025-01-01",
				Highest:    5.27,
				Lowest:     5.11,
				OrderCount: 2267,
				Volume:     16276782035,
			}}, hh)
		}
	})
	t.Run("should fetch market group ID of a type", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/universe/types/34/`,
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"type_id":         34,
				"name":            "Tritanium",
				"description":     "",
				"group_id":        18,
				"market_group_id": 1857,
				"published":       true,
			}),
		)
		// when
		id, err := c.FetchTypeMarketGroupID(ctx, 34)
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, int32(1857), id)
		}
	})
	t.Run("should return not found when type is not on the market", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/universe/types/35/`,
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"type_id":     35,
				"name":        "Dummy",
				"description": "",
				"group_id":    18,
				"published":   true,
			}),
		)
		// when
		_, err := c.FetchTypeMarketGroupID(ctx, 35)
		// then
		assert.ErrorIs(t, err, app.ErrNotFound)
	})
	t.Run("should fetch market group", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/markets/groups/1857/`,
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"market_group_id": 1857,
				"name":            "Minerals",
				"description":     "",
				"parent_group_id": 54,
				"types":           []int{34},
			}),
		)
		// when
		g, err := c.FetchMarketGroup(ctx, 1857)
		// then
		if assert.NoError(t, err) {
			assert.Equal(t, int32(1857), g.ID)
			assert.Equal(t, "Minerals", g.Name)
			assert.Equal(t, int32(54), g.ParentID.ValueOrZero())
		}
	})
	t.Run("should report root market group without parent", func(t *testing.T) {
		// given
		httpmock.Reset()
		httpmock.RegisterResponder(
			"GET",
			`=~^https://esi\.evetech\.net/v\d+/markets/groups/475/`,
			httpmock.NewJsonResponderOrPanic(200, map[string]any{
				"market_group_id": 475,
				"name":            "Manufacture & Research",
				"description":     "",
				"types":           []int{},
			}),
		)
		// when
		g, err := c.FetchMarketGroup(ctx, 475)
		// then
		if assert.NoError(t, err) {
			assert.True(t, g.ParentID.IsEmpty())
		}
	})
	t.Run("should map error responses", func(t *testing.T) {
		cases := []struct {
			status int
			want   error
		}{
			{http.StatusForbidden, app.ErrAuth},
			{http.StatusNotFound, app.ErrNotFound},
			{http.StatusTooManyRequests, app.ErrRateLimited},
			{xgoesi.StatusTooManyErrors, app.ErrRateLimited},
			{http.StatusServiceUnavailable, app.ErrTransport},
		}
		for _, tc := range cases {
			// given
			httpmock.Reset()
			httpmock.RegisterResponder(
				"GET",
				`=~^https://esi\.evetech\.net/v\d+/markets/10000002/history/`,
				httpmock.NewJsonResponderOrPanic(tc.status, map[string]any{"error": "dummy"}),
			)
			// when
			_, err := c.FetchHistory(ctx, 10000002, 34)
			// then
			assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		}
	})
}
