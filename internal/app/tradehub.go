package app

import "strings"

// TradeHub is a major market hub in Eve Online.
type TradeHub struct {
	SolarSystemName string
	SolarSystemID   int32
	RegionID        int32
	StationID       int64
}

// TradeHubs lists the major trade hubs by region ID.
var TradeHubs = map[int32]TradeHub{
	10000002: {"Jita", 30000142, 10000002, 60003760},
	10000030: {"Rens", 30002510, 10000030, 60004588},
	10000042: {"Hek", 30002053, 10000042, 60005686},
	10000043: {"Amarr", 30002187, 10000043, 60008494},
	10000032: {"Dodixie", 30002659, 10000032, 60011866},
}

// TradeHubByName returns the trade hub with the given solar system name.
// Matching is not case sensitive.
func TradeHubByName(name string) (TradeHub, bool) {
	for _, h := range TradeHubs {
		if strings.EqualFold(h.SolarSystemName, name) {
			return h, true
		}
	}
	return TradeHub{}, false
}
