package freshness_test

import (
	"testing"
	"time"

	"github.com/ErikKalkoken/evesync/internal/app/freshness"
	"github.com/stretchr/testify/assert"
)

func TestNeedsRefetch(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := freshness.Default()
	p.Now = func() time.Time {
		return now
	}
	cases := []struct {
		name     string
		updated  time.Time
		maxAge   time.Duration
		complete bool
		want     bool
	}{
		{"fresh and complete", now.Add(-10 * time.Minute), 0, true, false},
		{"fresh but incomplete", now.Add(-10 * time.Minute), 0, false, true},
		{"stale and complete", now.Add(-31 * time.Minute), 0, true, true},
		{"exactly max age is stale", now.Add(-30 * time.Minute), 0, true, true},
		{"never updated", time.Time{}, 0, true, true},
		{"per call max age overrides default", now.Add(-10 * time.Minute), 5 * time.Minute, true, true},
		{"per call max age can extend freshness", now.Add(-45 * time.Minute), time.Hour, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.NeedsRefetch(tc.updated, tc.maxAge, tc.complete)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNeedsRefetchIsMonotonic(t *testing.T) {
	// given
	updated := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var current time.Time
	p := freshness.Default()
	p.Now = func() time.Time {
		return current
	}
	// when
	var flips int
	previous := false
	for i := 0; i <= 120; i++ {
		current = updated.Add(time.Duration(i) * 30 * time.Second)
		got := p.NeedsRefetch(updated, 0, true)
		if got != previous {
			flips++
		}
		previous = got
	}
	// then
	assert.Equal(t, 1, flips)
	assert.True(t, previous)
}

func TestNew(t *testing.T) {
	t.Run("should use defaults for zero values", func(t *testing.T) {
		p := freshness.New(0, 0)
		assert.Equal(t, freshness.DefaultMaxAge, p.MaxAge)
		assert.Equal(t, freshness.DefaultTimeout, p.Timeout)
	})
	t.Run("should use given values", func(t *testing.T) {
		p := freshness.New(time.Minute, time.Second)
		assert.Equal(t, time.Minute, p.MaxAge)
		assert.Equal(t, time.Second, p.Timeout)
	})
	t.Run("can override values", func(t *testing.T) {
		p := freshness.Default().WithOverrides(0, 3*time.Second)
		assert.Equal(t, freshness.DefaultMaxAge, p.MaxAge)
		assert.Equal(t, 3*time.Second, p.Timeout)
	})
}
