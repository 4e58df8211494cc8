// Package xgoesi contains extensions for using ESI through goesi.
package xgoesi

import (
	"time"
)

// Daily server downtime as offsets from midnight UTC.
const (
	downtimeStart    = 11 * time.Hour
	downtimeDuration = 15 * time.Minute
)

// TimeNow returns the current time. It can be replaced in tests.
var TimeNow = time.Now

// IsDailyDowntime reports whether the daily downtime is currently planned to happen.
func IsDailyDowntime() bool {
	return IsDowntimeAt(TimeNow())
}

// IsDowntimeAt reports whether t falls into the daily downtime of its day.
// Both ends of the period are inclusive.
func IsDowntimeAt(t time.Time) bool {
	start, finish := DowntimeFor(t)
	return !t.Before(start) && !t.After(finish)
}

// DailyDowntime returns today's downtime period in UTC.
func DailyDowntime() (start, finish time.Time) {
	return DowntimeFor(TimeNow())
}

// DowntimeFor returns the downtime period for the UTC day of t.
func DowntimeFor(t time.Time) (start, finish time.Time) {
	day := t.UTC().Truncate(24 * time.Hour)
	start = day.Add(downtimeStart)
	finish = start.Add(downtimeDuration)
	return
}
