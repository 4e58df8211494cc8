package xgoesi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDowntimeFor(t *testing.T) {
	cases := []struct {
		name string
		t    time.Time
	}{
		{"early on the day", time.Date(2024, 3, 15, 0, 0, 1, 0, time.UTC)},
		{"late on the day", time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)},
		{"other timezone", time.Date(2024, 3, 15, 14, 30, 0, 0, time.FixedZone("EST", -5*3600))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, finish := DowntimeFor(tc.t)
			assert.Equal(t, time.Date(2024, 3, 15, 11, 0, 0, 0, time.UTC), start)
			assert.Equal(t, time.Date(2024, 3, 15, 11, 15, 0, 0, time.UTC), finish)
		})
	}
}

func TestIsDowntimeAt(t *testing.T) {
	cases := []struct {
		t    time.Time
		want bool
	}{
		{time.Date(2024, 1, 15, 10, 59, 59, 0, time.UTC), false},
		{time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 1, 15, 11, 7, 0, 0, time.UTC), true},
		{time.Date(2024, 1, 15, 11, 15, 0, 0, time.UTC), true},
		{time.Date(2024, 1, 15, 11, 15, 1, 0, time.UTC), false},
		{time.Date(2024, 1, 15, 6, 5, 0, 0, time.FixedZone("EST", -5*3600)), true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsDowntimeAt(tc.t), "time: %s", tc.t)
	}
}
