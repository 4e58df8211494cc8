package app

import (
	"time"

	"github.com/ErikKalkoken/evesync/internal/optional"
)

// MarketType is a snapshot of the market for an item type in a region.
type MarketType struct {
	Buy               optional.Optional[float64]
	BuyOrders         []MarketOrder // nil when never fetched
	CreatedAt         time.Time
	History           []MarketHistoryItem // nil when never fetched
	Margin            float64
	MarketGroupID     int32
	MarketGroupIDPath []int32
	RegionID          int32
	Sell              optional.Optional[float64]
	SellOrders        []MarketOrder // nil when never fetched
	Spread            float64
	TypeID            int32
	UpdatedAt         time.Time // time of last successful market data fetch
}

// HasCompleteData reports whether all market data has been fetched.
// Empty lists count as fetched.
func (mt MarketType) HasCompleteData() bool {
	return mt.History != nil && mt.BuyOrders != nil && mt.SellOrders != nil
}

// MarketOrder is an order on a regional market.
type MarketOrder struct {
	Duration     int32     `json:"duration"`
	IsBuyOrder   bool      `json:"is_buy_order"`
	Issued       time.Time `json:"issued"`
	LocationID   int64     `json:"location_id"`
	MinVolume    int32     `json:"min_volume"`
	OrderID      int64     `json:"order_id"`
	Price        float64   `json:"price"`
	Range        string    `json:"range"`
	VolumeRemain int32     `json:"volume_remain"`
	VolumeTotal  int32     `json:"volume_total"`
}

// MarketHistoryItem is the market statistic of one day.
type MarketHistoryItem struct {
	Average    float64 `json:"average"`
	Date       string  `json:"date"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	OrderCount int64   `json:"order_count"`
	Volume     int64   `json:"volume"`
}

// MarketGroup is a node in the market group hierarchy.
type MarketGroup struct {
	ID       int32
	Name     string
	ParentID optional.Optional[int32]
}
