// Package marketmetrics derives best prices, spread and margin from market orders.
package marketmetrics

import (
	"github.com/ErikKalkoken/evesync/internal/app"
	"github.com/ErikKalkoken/evesync/internal/optional"
)

// Metrics are the metrics derived from the orders of a market.
type Metrics struct {
	Buy    optional.Optional[float64] // highest buy price
	Sell   optional.Optional[float64] // lowest sell price
	Spread float64
	Margin float64 // in percent of the buy price
}

// Calculate returns the metrics for the given buy and sell orders.
// Only the price of an order is considered.
func Calculate(buyOrders, sellOrders []app.MarketOrder) Metrics {
	var m Metrics
	for _, o := range buyOrders {
		if m.Buy.IsEmpty() || o.Price > m.Buy.ValueOrZero() {
			m.Buy.Set(o.Price)
		}
	}
	for _, o := range sellOrders {
		if m.Sell.IsEmpty() || o.Price < m.Sell.ValueOrZero() {
			m.Sell.Set(o.Price)
		}
	}
	if m.Buy.IsEmpty() || m.Sell.IsEmpty() {
		return m
	}
	buy := m.Buy.ValueOrZero()
	m.Spread = m.Sell.ValueOrZero() - buy
	if buy != 0 {
		m.Margin = m.Spread / buy * 100
	}
	return m
}

// Apply returns a copy of mt with the metrics applied.
func (m Metrics) Apply(mt app.MarketType) app.MarketType {
	mt.Buy = m.Buy
	mt.Sell = m.Sell
	mt.Spread = m.Spread
	mt.Margin = m.Margin
	return mt
}
